package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CaptureCollector counts frames captured from a render surface. Capture runs
// from the CLI, so these metrics live apart from the server's collector and
// are usually flushed with WriteTextfile.
type CaptureCollector struct {
	gatherer prometheus.Gatherer

	FramesCaptured   prometheus.Counter
	TileWaitTimeouts prometheus.Counter
}

// NewCaptureCollector registers the capture metrics against reg, defaulting
// to the global registry when nil.
func NewCaptureCollector(reg prometheus.Registerer) (*CaptureCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &CaptureCollector{gatherer: prometheus.DefaultGatherer}
	if g, ok := reg.(prometheus.Gatherer); ok {
		c.gatherer = g
	}

	var err error
	if c.FramesCaptured, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flyin_frames_captured_total",
		Help: "Frames captured from a render surface.",
	})); err != nil {
		return nil, err
	}
	if c.TileWaitTimeouts, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flyin_tile_wait_timeouts_total",
		Help: "Tile waits that gave up before the surface reported it was settled.",
	})); err != nil {
		return nil, err
	}
	return c, nil
}

// ObserveCapture records one captured frame and whether its tile wait timed
// out.
func (c *CaptureCollector) ObserveCapture(tileWaitTimedOut bool) {
	if c == nil {
		return
	}
	c.FramesCaptured.Inc()
	if tileWaitTimedOut {
		c.TileWaitTimeouts.Inc()
	}
}

// WriteTextfile writes every metric in the collector's registry to path in
// the text exposition format, for node_exporter's textfile collector.
func (c *CaptureCollector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.gatherer)
}
