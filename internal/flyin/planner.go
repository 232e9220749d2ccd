// Package flyin turns a user-facing fly-in request (a city or coordinates plus
// timing options) into a complete, validated plan of camera frames.
package flyin

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/flyin/core"
	"github.com/signalsfoundry/flyin/easing"
	"github.com/signalsfoundry/flyin/internal/config"
	"github.com/signalsfoundry/flyin/internal/geocode"
	"github.com/signalsfoundry/flyin/internal/logging"
	"github.com/signalsfoundry/flyin/internal/observability"
	"github.com/signalsfoundry/flyin/kb"
	"github.com/signalsfoundry/flyin/model"
)

// ErrInvalidRequest covers request-level problems that the path generator
// never sees: missing location, bad fps or duration, and so on.
var ErrInvalidRequest = errors.New("invalid fly-in request")

// MaxFrames bounds a single plan.
const MaxFrames = 36000

// Request describes a fly-in. Pointer fields distinguish "unset" from a
// meaningful zero (tilt 0 looks straight down, heading 0 faces north).
//
// A city matching a preset always takes the preset's coordinates. The
// preset's tilt and end altitude replace the configured defaults only when
// UsePreset is set; explicit fields win either way.
type Request struct {
	City            string      `json:"city,omitempty"`
	UsePreset       bool        `json:"usePreset,omitempty"`
	Latitude        *float64    `json:"latitude,omitempty"`
	Longitude       *float64    `json:"longitude,omitempty"`
	FPS             int         `json:"fps,omitempty"`
	DurationSeconds float64     `json:"durationSeconds,omitempty"`
	Width           int         `json:"width,omitempty"`
	Height          int         `json:"height,omitempty"`
	StartAltitude   float64     `json:"startAltitude,omitempty"`
	EndAltitude     float64     `json:"endAltitude,omitempty"`
	TiltAngle       *float64    `json:"tiltAngle,omitempty"`
	Heading         *float64    `json:"heading,omitempty"`
	Easing          easing.Name `json:"easing,omitempty"`
}

// Plan is a ready-to-render fly-in.
type Plan struct {
	ID              string                    `json:"id"`
	Location        model.GeoLocation         `json:"location"`
	Parameters      model.AnimationParameters `json:"parameters"`
	Width           int                       `json:"width"`
	Height          int                       `json:"height"`
	FPS             int                       `json:"fps"`
	DurationSeconds float64                   `json:"durationSeconds"`
	Frames          []model.CameraFrame       `json:"frames"`
}

// Resolution formats the output size as WIDTHxHEIGHT.
func (p Plan) Resolution() string {
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}

// PathRecorder receives path computation outcomes;
// *observability.FlyInCollector satisfies it.
type PathRecorder interface {
	ObservePath(easingName string, frames int, d time.Duration, err error)
}

// Planner resolves locations and computes frames.
type Planner struct {
	geocoder geocode.Geocoder
	presets  *kb.LocationBase
	defaults config.AnimationDefaults
	rec      PathRecorder
	log      logging.Logger
	newID    func() string
}

// Option customises a Planner.
type Option func(*Planner)

// WithPathRecorder reports every path computation to rec.
func WithPathRecorder(rec PathRecorder) Option {
	return func(p *Planner) { p.rec = rec }
}

// WithLogger sets the fallback logger.
func WithLogger(l logging.Logger) Option {
	return func(p *Planner) { p.log = l }
}

// WithIDGenerator overrides plan ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(p *Planner) { p.newID = fn }
}

// NewPlanner builds a Planner. presets may be nil.
func NewPlanner(g geocode.Geocoder, presets *kb.LocationBase, defaults config.AnimationDefaults, opts ...Option) *Planner {
	if presets == nil {
		presets = kb.NewLocationBase()
	}
	p := &Planner{
		geocoder: g,
		presets:  presets,
		defaults: defaults,
		log:      logging.Noop(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Presets lists the known city presets.
func (p *Planner) Presets() []model.CityPreset {
	return p.presets.ListPresets()
}

// Defaults returns the animation defaults applied to requests.
func (p *Planner) Defaults() config.AnimationDefaults {
	return p.defaults
}

// Plan resolves the request location, fills in defaults and computes frames.
func (p *Planner) Plan(ctx context.Context, req Request) (plan Plan, err error) {
	ctx, span := observability.StartSpan(ctx, "flyin.Plan", attribute.String("flyin.city", req.City))
	defer func() { observability.EndSpan(span, err) }()
	log := logging.FromContext(ctx, p.log)

	d := p.defaults
	fps := req.FPS
	if fps == 0 {
		fps = d.FPS
	}
	duration := req.DurationSeconds
	if duration == 0 {
		duration = d.DurationSeconds
	}
	width, height := req.Width, req.Height
	if width == 0 {
		width = d.Width
	}
	if height == 0 {
		height = d.Height
	}
	if fps < 0 || duration < 0 || width < 0 || height < 0 {
		return Plan{}, fmt.Errorf("%w: fps, duration and resolution must be positive", ErrInvalidRequest)
	}
	totalFrames, err := TotalFrames(fps, duration)
	if err != nil {
		return Plan{}, err
	}

	loc, preset, err := p.locate(ctx, req)
	if err != nil {
		return Plan{}, err
	}

	params := model.AnimationParameters{
		Longitude:     loc.Longitude,
		Latitude:      loc.Latitude,
		StartAltitude: d.StartAltitude,
		EndAltitude:   d.EndAltitude,
		TiltAngle:     d.TiltAngle,
		Heading:       d.Heading,
		TotalFrames:   totalFrames,
		Easing:        d.Easing,
	}
	if preset != nil && req.UsePreset {
		params.TiltAngle = preset.TiltAngle
		params.EndAltitude = preset.EndAltitude
	}
	if req.StartAltitude != 0 {
		params.StartAltitude = req.StartAltitude
	}
	if req.EndAltitude != 0 {
		params.EndAltitude = req.EndAltitude
	}
	if req.TiltAngle != nil {
		params.TiltAngle = *req.TiltAngle
	}
	if req.Heading != nil {
		params.Heading = *req.Heading
	}
	if req.Easing != "" {
		params.Easing = req.Easing
	}

	frames, err := p.Frames(ctx, params)
	if err != nil {
		return Plan{}, err
	}

	plan = Plan{
		ID:              p.newID(),
		Location:        loc,
		Parameters:      params,
		Width:           width,
		Height:          height,
		FPS:             fps,
		DurationSeconds: duration,
		Frames:          frames,
	}
	log.Info(ctx, "fly-in planned",
		logging.String("plan_id", plan.ID),
		logging.String("location", loc.Name),
		logging.Int("frames", len(frames)),
		logging.String("easing", params.Easing.String()),
		logging.String("resolution", plan.Resolution()),
	)
	return plan, nil
}

// Frames computes the frame sequence for params and records the outcome.
// More than MaxFrames frames is rejected before anything is allocated.
func (p *Planner) Frames(ctx context.Context, params model.AnimationParameters) (frames []model.CameraFrame, err error) {
	_, span := observability.StartSpan(ctx, "core.ComputeCameraFrames",
		attribute.Int("flyin.total_frames", params.TotalFrames),
		attribute.String("flyin.easing", params.Easing.String()),
	)
	defer func() { observability.EndSpan(span, err) }()

	start := time.Now()
	if params.TotalFrames > MaxFrames {
		err = fmt.Errorf("%w: %d frames exceeds limit of %d", ErrInvalidRequest, params.TotalFrames, MaxFrames)
	} else {
		frames, err = core.ComputeCameraFrames(params)
	}
	if p.rec != nil {
		p.rec.ObservePath(params.Easing.String(), len(frames), time.Since(start), err)
	}
	return frames, err
}

// TotalFrames is fps × duration, rounded to the nearest frame. Products that
// are not finite or exceed MaxFrames are rejected before conversion.
func TotalFrames(fps int, durationSeconds float64) (int, error) {
	n := math.Round(float64(fps) * durationSeconds)
	switch {
	case math.IsNaN(n) || math.IsInf(n, 0):
		return 0, fmt.Errorf("%w: %d fps × %v s is not finite", ErrInvalidRequest, fps, durationSeconds)
	case n > MaxFrames:
		return 0, fmt.Errorf("%w: %d fps × %v s exceeds limit of %d frames", ErrInvalidRequest, fps, durationSeconds, MaxFrames)
	}
	return int(n), nil
}

// locate picks the ground target: explicit coordinates, then a preset, then
// the geocoder. The matching preset, if any, is returned too.
func (p *Planner) locate(ctx context.Context, req Request) (model.GeoLocation, *model.CityPreset, error) {
	city := strings.TrimSpace(req.City)
	switch {
	case req.Latitude != nil && req.Longitude != nil:
		name := city
		if name == "" {
			name = fmt.Sprintf("%.4f, %.4f", *req.Latitude, *req.Longitude)
		}
		return model.GeoLocation{Latitude: *req.Latitude, Longitude: *req.Longitude, Name: name}, nil, nil
	case req.Latitude != nil || req.Longitude != nil:
		return model.GeoLocation{}, nil, fmt.Errorf("%w: latitude and longitude must be given together", ErrInvalidRequest)
	case city == "":
		return model.GeoLocation{}, nil, fmt.Errorf("%w: city or coordinates required", ErrInvalidRequest)
	}

	if preset, ok := p.presets.Preset(city); ok {
		return preset.Location(), &preset, nil
	}
	if p.geocoder == nil {
		return model.GeoLocation{}, nil, fmt.Errorf("%w: %q", geocode.ErrNotFound, city)
	}
	loc, err := p.geocoder.Geocode(ctx, city)
	if err != nil {
		return model.GeoLocation{}, nil, err
	}
	return loc, nil, nil
}

// SeedPresets loads presets into store, skipping cities already present.
func SeedPresets(store *kb.LocationBase, presets []model.CityPreset) error {
	var errs []error
	for _, preset := range presets {
		if err := store.AddPreset(preset); err != nil && !errors.Is(err, kb.ErrPresetExists) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
