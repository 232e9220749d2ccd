package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultMiss  = "miss"
)

// FlyInCollector bundles the Prometheus metrics for path generation, geocoding
// and the HTTP surface.
type FlyInCollector struct {
	gatherer prometheus.Gatherer

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec

	PathComputations *prometheus.CounterVec
	PathDuration     prometheus.Histogram
	FramesGenerated  *prometheus.CounterVec

	GeocodeLookups      *prometheus.CounterVec
	GeocodeCacheEntries prometheus.Gauge

}

// NewFlyInCollector registers the metrics against reg, defaulting to the
// global Prometheus registry when nil. Registering twice against the same
// registry returns the already registered collectors.
func NewFlyInCollector(reg prometheus.Registerer) (*FlyInCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	c := &FlyInCollector{gatherer: gatherer}

	var err error
	if c.HTTPRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flyin_http_requests_total",
		Help: "Total number of handled HTTP requests, labeled by route, method, and status code.",
	}, []string{"route", "method", "code"})); err != nil {
		return nil, err
	}
	if c.HTTPDurations, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flyin_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"route", "method"})); err != nil {
		return nil, err
	}
	if c.PathComputations, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flyin_path_computations_total",
		Help: "Camera path computations, labeled by easing profile and result.",
	}, []string{"easing", "result"})); err != nil {
		return nil, err
	}
	if c.PathDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flyin_path_computation_duration_seconds",
		Help:    "Duration of camera path computations.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	})); err != nil {
		return nil, err
	}
	if c.FramesGenerated, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flyin_frames_generated_total",
		Help: "Camera frames produced by the path generator, labeled by easing profile.",
	}, []string{"easing"})); err != nil {
		return nil, err
	}
	if c.GeocodeLookups, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flyin_geocode_lookups_total",
		Help: "Geocoder lookups, labeled by answering source and result.",
	}, []string{"source", "result"})); err != nil {
		return nil, err
	}
	if c.GeocodeCacheEntries, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flyin_geocode_cache_entries",
		Help: "Current number of cached remote geocoding results.",
	})); err != nil {
		return nil, err
	}
	return c, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *FlyInCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObservePath records one path computation.
func (c *FlyInCollector) ObservePath(easingName string, frames int, d time.Duration, err error) {
	if c == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	c.PathComputations.WithLabelValues(easingName, result).Inc()
	if err != nil {
		return
	}
	c.PathDuration.Observe(d.Seconds())
	c.FramesGenerated.WithLabelValues(easingName).Add(float64(frames))
}

// ObserveGeocode records which source answered a lookup and how it went.
func (c *FlyInCollector) ObserveGeocode(source, result string) {
	if c == nil {
		return
	}
	c.GeocodeLookups.WithLabelValues(source, result).Inc()
}

// SetGeocodeCacheEntries updates the cache size gauge.
func (c *FlyInCollector) SetGeocodeCacheEntries(n int) {
	if c == nil {
		return
	}
	c.GeocodeCacheEntries.Set(float64(n))
}

// Middleware records request counts and durations for chi-routed handlers.
// Routes are labeled by their chi pattern so path parameters do not explode
// label cardinality.
func (c *FlyInCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if c == nil {
			return
		}
		route := RoutePattern(r)
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		c.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(code)).Inc()
		c.HTTPDurations.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// RoutePattern returns the matched chi route pattern, or "unknown".
func RoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unknown"
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %T already registered with incompatible type", c)
		}
		var zero T
		return zero, err
	}
	return c, nil
}
