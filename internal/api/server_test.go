package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/signalsfoundry/flyin/core"
	"github.com/signalsfoundry/flyin/easing"
	"github.com/signalsfoundry/flyin/internal/config"
	"github.com/signalsfoundry/flyin/internal/flyin"
	"github.com/signalsfoundry/flyin/internal/geocode"
	"github.com/signalsfoundry/flyin/internal/logging"
	"github.com/signalsfoundry/flyin/internal/observability"
	"github.com/signalsfoundry/flyin/kb"
	"github.com/signalsfoundry/flyin/model"
)

type mapGeocoder map[string]error

func (m mapGeocoder) Geocode(_ context.Context, q string) (model.GeoLocation, error) {
	if err, ok := m[q]; ok {
		return model.GeoLocation{}, err
	}
	return model.GeoLocation{Latitude: 1, Longitude: 2, Name: q}, nil
}

func newTestServer(t *testing.T) (http.Handler, *observability.FlyInCollector) {
	t.Helper()
	store := kb.NewLocationBase()
	if err := flyin.SeedPresets(store, config.DefaultPresets()); err != nil {
		t.Fatalf("SeedPresets error: %v", err)
	}
	collector, err := observability.NewFlyInCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewFlyInCollector error: %v", err)
	}
	geo := mapGeocoder{
		"Atlantis": fmt.Errorf("%w: %q", geocode.ErrNotFound, "Atlantis"),
		"Offline":  fmt.Errorf("%w: connection refused", geocode.ErrUpstream),
		"Broken":   errors.New("unexpected"),
	}
	planner := flyin.NewPlanner(geo, store, config.Default().Animation, flyin.WithPathRecorder(collector))
	return NewServer(planner, collector, logging.Noop()).Routes(), collector
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("missing X-Request-Id header")
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	h, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != "abc-123" {
		t.Fatalf("X-Request-Id = %q, want abc-123", got)
	}
}

func TestListPresets(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/api/presets", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decode[presetsResponse](t, rec)
	if len(resp.Presets) != 8 || resp.Presets[0].City != "Chicago" {
		t.Fatalf("presets = %+v", resp.Presets)
	}
}

func TestEasingEndpoints(t *testing.T) {
	h, _ := newTestServer(t)

	list := decode[easingListResponse](t, do(t, h, http.MethodGet, "/api/easing", ""))
	if len(list.Names) != 4 || list.Default != easing.Cinematic {
		t.Fatalf("easing list = %+v", list)
	}

	rec := do(t, h, http.MethodGet, "/api/easing/Linear?samples=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	samples := decode[easingSamplesResponse](t, rec)
	if samples.Name != easing.Linear || len(samples.Samples) != 5 || samples.Samples[2] != 0.5 {
		t.Fatalf("samples = %+v", samples)
	}

	if rec := do(t, h, http.MethodGet, "/api/easing/cubic", ""); len(decode[easingSamplesResponse](t, rec).Samples) != defaultSamples {
		t.Fatalf("default sample count not applied: %s", rec.Body.String())
	}

	for _, target := range []string{"/api/easing/bounce", "/api/easing/cubic?samples=1", "/api/easing/cubic?samples=x"} {
		if rec := do(t, h, http.MethodGet, target, ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s status = %d, want 400", target, rec.Code)
		}
	}
}

func TestComputeFrames(t *testing.T) {
	h, collector := newTestServer(t)
	body := `{"longitude":-87.6298,"latitude":41.8781,"startAltitude":800000,"endAltitude":2000,
		"tiltAngle":45,"heading":0,"totalFrames":180,"easing":"cinematic"}`

	rec := do(t, h, http.MethodPost, "/api/frames", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	resp := decode[framesResponse](t, rec)
	if resp.Count != 180 || len(resp.Frames) != 180 {
		t.Fatalf("count = %d frames = %d, want 180", resp.Count, len(resp.Frames))
	}
	if resp.Frames[0].Pitch != core.NadirPitch {
		t.Fatalf("first pitch = %v, want -90", resp.Frames[0].Pitch)
	}
	if got := testutil.ToFloat64(collector.FramesGenerated.WithLabelValues("cinematic")); got != 180 {
		t.Fatalf("frames generated metric = %v, want 180", got)
	}
	if got := testutil.ToFloat64(collector.HTTPRequests.WithLabelValues("/api/frames", "POST", "200")); got != 1 {
		t.Fatalf("http requests metric = %v, want 1", got)
	}
}

func TestComputeFramesRejectsBadInput(t *testing.T) {
	h, _ := newTestServer(t)
	tests := map[string]string{
		"unknown easing": `{"startAltitude":1000,"endAltitude":10,"totalFrames":10,"easing":"bounce"}`,
		"unknown field":  `{"startAltitude":1000,"endAltitude":10,"totalFrames":10,"easing":"linear","fov":60}`,
		"one frame":      `{"startAltitude":1000,"endAltitude":10,"totalFrames":1,"easing":"linear"}`,
		"zero altitude":  `{"startAltitude":0,"endAltitude":10,"totalFrames":10,"easing":"linear"}`,
		"trailing data":  `{"startAltitude":1000,"endAltitude":10,"totalFrames":10,"easing":"linear"} {}`,
		"not json":       `frames please`,
	}
	tests["too many frames"] = fmt.Sprintf(
		`{"startAltitude":1000,"endAltitude":10,"totalFrames":%d,"easing":"linear"}`, flyin.MaxFrames+1)
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/frames", body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
			if decode[errorBody](t, rec).Error == "" {
				t.Fatalf("empty error message")
			}
		})
	}
}

func TestPlanFlyIn(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, http.MethodPost, "/api/flyin", `{"city":"London","usePreset":true,"fps":10,"durationSeconds":3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	resp := decode[planResponse](t, rec)
	if resp.ID == "" || resp.Location.Name != "London" || len(resp.Frames) != 30 {
		t.Fatalf("unexpected plan: id=%q location=%+v frames=%d", resp.ID, resp.Location, len(resp.Frames))
	}
	if resp.Resolution != "1920x1080" || resp.Parameters.TiltAngle != 35 {
		t.Fatalf("resolution=%q tilt=%v", resp.Resolution, resp.Parameters.TiltAngle)
	}
}

func TestPlanFlyInErrorStatuses(t *testing.T) {
	h, _ := newTestServer(t)
	tests := []struct {
		body string
		want int
	}{
		{`{}`, http.StatusBadRequest},
		{`{"city":"Atlantis"}`, http.StatusNotFound},
		{`{"city":"Offline"}`, http.StatusBadGateway},
		{`{"city":"Broken"}`, http.StatusInternalServerError},
		{`{"city":"Paris","tiltAngle":91}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := do(t, h, http.MethodPost, "/api/flyin", tt.body)
		if rec.Code != tt.want {
			t.Fatalf("%s: status = %d, want %d (%s)", tt.body, rec.Code, tt.want, rec.Body.String())
		}
	}

	rec := do(t, h, http.MethodPost, "/api/flyin", `{"city":"Broken"}`)
	if msg := decode[errorBody](t, rec).Error; msg != http.StatusText(http.StatusInternalServerError) {
		t.Fatalf("internal error leaked %q", msg)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("wrap: %w", core.ErrInvalidTilt), http.StatusBadRequest},
		{easing.ErrUnknownEasing, http.StatusBadRequest},
		{geocode.ErrEmptyQuery, http.StatusBadRequest},
		{geocode.ErrNotFound, http.StatusNotFound},
		{geocode.ErrUpstream, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
