// Package capture drives a render surface through a precomputed fly-in,
// pacing each frame on tile streaming so that captured images are complete.
package capture

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/flyin/internal/logging"
	"github.com/signalsfoundry/flyin/internal/observability"
	"github.com/signalsfoundry/flyin/model"
)

var ErrNoFrames = errors.New("no frames to capture")

// Surface is a renderer that can be posed and captured. Implementations
// decide what "tiles" and "render" mean; the loop only polls and waits.
type Surface interface {
	Apply(ctx context.Context, frame model.CameraFrame) error
	TilesLoaded(ctx context.Context) (bool, error)
	WaitForRender(ctx context.Context) error
	Capture(ctx context.Context, path string) error
}

// Recorder receives capture outcomes; *observability.FlyInCollector
// satisfies it.
type Recorder interface {
	ObserveCapture(tileWaitTimedOut bool)
}

// Settings tunes the pacing heuristic.
type Settings struct {
	WarmUp         time.Duration // first pose, while the globe streams in
	MovingTileWait time.Duration // after a pose that changed noticeably
	StaticTileWait time.Duration // once, when the pose stopped changing
	PollInterval   time.Duration

	// A frame counts as moving when altitude changes by more than
	// AltitudeChange (relative) or pitch by more than PitchChange degrees.
	AltitudeChange float64
	PitchChange    float64
}

// DefaultSettings matches a globe renderer streaming map tiles over the
// network.
func DefaultSettings() Settings {
	return Settings{
		WarmUp:         20 * time.Second,
		MovingTileWait: 1500 * time.Millisecond,
		StaticTileWait: 3 * time.Second,
		PollInterval:   200 * time.Millisecond,
		AltitudeChange: 0.005,
		PitchChange:    0.1,
	}
}

// Job describes where and how frames are written.
type Job struct {
	Dir       string
	Extension string // without the dot; defaults to "png"
	Width     int
	Height    int
	FPS       int
}

// Result summarises a finished capture.
type Result struct {
	Dir              string `json:"dir"`
	Frames           int    `json:"frames"`
	Resolution       string `json:"resolution"`
	FPS              int    `json:"fps"`
	TileWaitTimeouts int    `json:"tileWaitTimeouts"`
	Message          string `json:"message"`
}

// Runner executes capture jobs.
type Runner struct {
	settings Settings
	rec      Recorder
	log      logging.Logger
}

// Option customises a Runner.
type Option func(*Runner)

// WithSettings replaces DefaultSettings.
func WithSettings(s Settings) Option {
	return func(r *Runner) { r.settings = s }
}

// WithRecorder reports every captured frame to rec.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.rec = rec }
}

// WithLogger sets the fallback logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// NewRunner builds a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{settings: DefaultSettings(), log: logging.Noop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FrameFileName names the file for the zero-based frame index i. Names are
// one-based and zero padded so that encoders can glob them in order.
func FrameFileName(i int, ext string) string {
	return fmt.Sprintf("frame_%04d.%s", i+1, ext)
}

// Run poses surface at every frame in order and captures each one into
// job.Dir. It stops at the first surface error or when ctx is done.
func (r *Runner) Run(ctx context.Context, surface Surface, frames []model.CameraFrame, job Job) (res Result, err error) {
	if len(frames) == 0 {
		return Result{}, ErrNoFrames
	}
	ext := job.Extension
	if ext == "" {
		ext = "png"
	}
	ctx, span := observability.StartSpan(ctx, "capture.Run",
		attribute.Int("capture.frames", len(frames)),
		attribute.String("capture.dir", job.Dir),
	)
	defer func() { observability.EndSpan(span, err) }()
	log := logging.FromContext(ctx, r.log)

	if err := os.MkdirAll(job.Dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	res = Result{
		Dir:        job.Dir,
		Resolution: fmt.Sprintf("%dx%d", job.Width, job.Height),
		FPS:        job.FPS,
	}
	settled := false
	var prev model.CameraFrame

	for i, frame := range frames {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := surface.Apply(ctx, frame); err != nil {
			return res, fmt.Errorf("apply frame %d: %w", i, err)
		}

		var wait time.Duration
		switch {
		case i == 0:
			wait = r.settings.WarmUp
		case r.moved(prev, frame):
			wait = r.settings.MovingTileWait
			settled = false
		case !settled:
			wait = r.settings.StaticTileWait
			settled = true
		}
		prev = frame

		timedOut := false
		if wait > 0 {
			timedOut, err = r.waitForTiles(ctx, surface, wait)
			if err != nil {
				return res, fmt.Errorf("wait for tiles at frame %d: %w", i, err)
			}
			if timedOut {
				res.TileWaitTimeouts++
				log.Debug(ctx, "tile wait timed out",
					logging.Int("frame", i),
					logging.Duration("wait", wait),
				)
			}
		}

		if err := surface.WaitForRender(ctx); err != nil {
			return res, fmt.Errorf("wait for render at frame %d: %w", i, err)
		}
		path := filepath.Join(job.Dir, FrameFileName(i, ext))
		if err := surface.Capture(ctx, path); err != nil {
			return res, fmt.Errorf("capture frame %d: %w", i, err)
		}
		res.Frames++
		if r.rec != nil {
			r.rec.ObserveCapture(timedOut)
		}
	}

	res.Message = fmt.Sprintf("Captured %d frames at %s to %s", res.Frames, res.Resolution, job.Dir)
	if ext != "json" {
		res.Message += fmt.Sprintf(". Encode with: ffmpeg -framerate %d -i %s -c:v libx264 -pix_fmt yuv420p output.mp4",
			job.FPS, filepath.Join(job.Dir, "frame_%04d."+ext))
	}
	log.Info(ctx, "capture finished",
		logging.Int("frames", res.Frames),
		logging.Int("tile_wait_timeouts", res.TileWaitTimeouts),
		logging.String("dir", job.Dir),
	)
	return res, nil
}

func (r *Runner) moved(prev, cur model.CameraFrame) bool {
	altDelta := math.Abs(cur.Altitude-prev.Altitude) / math.Max(cur.Altitude, 1)
	pitchDelta := math.Abs(cur.Pitch - prev.Pitch)
	return altDelta > r.settings.AltitudeChange || pitchDelta > r.settings.PitchChange
}

// waitForTiles polls until the surface reports tiles loaded or timeout
// elapses. It reports whether the timeout was hit.
func (r *Runner) waitForTiles(ctx context.Context, surface Surface, timeout time.Duration) (bool, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	interval := r.settings.PollInterval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		loaded, err := surface.TilesLoaded(ctx)
		if err != nil {
			return false, err
		}
		if loaded {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return true, nil
		case <-ticker.C:
		}
	}
}
