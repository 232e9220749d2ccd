// Package api exposes path generation and fly-in planning over HTTP.
package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/signalsfoundry/flyin/easing"
	"github.com/signalsfoundry/flyin/internal/flyin"
	"github.com/signalsfoundry/flyin/internal/logging"
	"github.com/signalsfoundry/flyin/internal/observability"
	"github.com/signalsfoundry/flyin/model"
)

const (
	defaultSamples = 11
	maxSamples     = 1001
)

// Server holds the HTTP handlers.
type Server struct {
	planner *flyin.Planner
	metrics *observability.FlyInCollector
	log     logging.Logger
}

// NewServer builds a Server. metrics may be nil.
func NewServer(planner *flyin.Planner, metrics *observability.FlyInCollector, log logging.Logger) *Server {
	if log == nil {
		log = logging.Noop()
	}
	return &Server{planner: planner, metrics: metrics, log: log}
}

// Routes returns the router with all middleware installed.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(
		middleware.RealIP,
		s.requestContext,
		middleware.Recoverer,
		s.metrics.Middleware,
	)

	r.Get("/api/health", s.health)
	r.Get("/api/presets", s.listPresets)
	r.Get("/api/easing", s.listEasings)
	r.Get("/api/easing/{name}", s.sampleEasing)
	r.Post("/api/frames", s.computeFrames)
	r.Post("/api/flyin", s.planFlyIn)
	return r
}

// requestContext attaches a request ID and a request-scoped logger.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := r.Header.Get(middleware.RequestIDHeader); id != "" {
			ctx = logging.ContextWithRequestID(ctx, id)
		}
		ctx, log := logging.WithRequestLogger(ctx, s.log)
		ctx = logging.ContextWithLogger(ctx, log)
		w.Header().Set(middleware.RequestIDHeader, logging.RequestIDFromContext(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := logging.FromContext(r.Context(), s.log)
	if status >= http.StatusInternalServerError {
		log.Error(r.Context(), "request failed",
			logging.String("route", observability.RoutePattern(r)),
			logging.Int("status", status),
			logging.Err(err),
		)
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	writeError(w, status, msg)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type presetsResponse struct {
	Presets []model.CityPreset `json:"presets"`
}

func (s *Server) listPresets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, presetsResponse{Presets: s.planner.Presets()})
}

type easingListResponse struct {
	Names   []easing.Name `json:"names"`
	Default easing.Name   `json:"default"`
}

func (s *Server) listEasings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, easingListResponse{
		Names:   easing.Names(),
		Default: s.planner.Defaults().Easing,
	})
}

type easingSamplesResponse struct {
	Name    easing.Name `json:"name"`
	Samples []float64   `json:"samples"`
}

func (s *Server) sampleEasing(w http.ResponseWriter, r *http.Request) {
	name, err := easing.ParseName(chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	n := defaultSamples
	if raw := r.URL.Query().Get("samples"); raw != "" {
		n, err = strconv.Atoi(raw)
		if err != nil || n < 2 || n > maxSamples {
			writeError(w, http.StatusBadRequest, "samples must be an integer between 2 and 1001")
			return
		}
	}
	fn, err := easing.Resolve(name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, easingSamplesResponse{Name: name, Samples: easing.Sample(fn, n)})
}

type framesResponse struct {
	Count  int                 `json:"count"`
	Frames []model.CameraFrame `json:"frames"`
}

func (s *Server) computeFrames(w http.ResponseWriter, r *http.Request) {
	var params model.AnimationParameters
	if err := decodeJSON(w, r, &params); err != nil {
		s.fail(w, r, err)
		return
	}
	frames, err := s.planner.Frames(r.Context(), params)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, framesResponse{Count: len(frames), Frames: frames})
}

type planResponse struct {
	flyin.Plan
	Resolution string `json:"resolution"`
}

// planFlyIn resolves a city or coordinates and returns a full plan. A matching
// preset's tilt and end altitude are applied only when "usePreset" is true.
func (s *Server) planFlyIn(w http.ResponseWriter, r *http.Request) {
	var req flyin.Request
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	plan, err := s.planner.Plan(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, planResponse{Plan: plan, Resolution: plan.Resolution()})
}
