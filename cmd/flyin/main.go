// Command flyin plans a fly-in over a city or coordinates and writes the
// camera frames as JSON, optionally emitting one pose file per frame.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/flyin/core"
	"github.com/signalsfoundry/flyin/easing"
	"github.com/signalsfoundry/flyin/internal/capture"
	"github.com/signalsfoundry/flyin/internal/config"
	"github.com/signalsfoundry/flyin/internal/flyin"
	"github.com/signalsfoundry/flyin/internal/geocode"
	"github.com/signalsfoundry/flyin/internal/logging"
	"github.com/signalsfoundry/flyin/internal/observability"
	"github.com/signalsfoundry/flyin/kb"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log := logging.NewFromEnv()
	if err := run(ctx, os.Args[1:], os.Stdout, log); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Error(ctx, "flyin failed", logging.Err(err))
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	city        string
	lat, lon    float64
	fps         int
	duration    float64
	width       int
	height      int
	startAlt    float64
	endAlt      float64
	tilt        float64
	heading     float64
	easing      string
	out         string
	posesDir    string
	ecef        bool
	usePreset   bool
	metricsFile string
	listPresets bool

	set map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("flyin", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "Path to a YAML config file")
	fs.StringVar(&o.city, "city", "", "City or place name to fly into")
	fs.Float64Var(&o.lat, "lat", 0, "Target latitude in degrees (with -lon, skips geocoding)")
	fs.Float64Var(&o.lon, "lon", 0, "Target longitude in degrees (with -lat, skips geocoding)")
	fs.IntVar(&o.fps, "fps", 0, "Frames per second (default from config)")
	fs.Float64Var(&o.duration, "duration", 0, "Animation length in seconds (default from config)")
	fs.IntVar(&o.width, "width", 0, "Output width in pixels (default from config)")
	fs.IntVar(&o.height, "height", 0, "Output height in pixels (default from config)")
	fs.Float64Var(&o.startAlt, "start-altitude", 0, "Start altitude in metres")
	fs.Float64Var(&o.endAlt, "end-altitude", 0, "End altitude in metres")
	fs.Float64Var(&o.tilt, "tilt", 0, "Final tilt away from straight down, in degrees [0, 90]")
	fs.Float64Var(&o.heading, "heading", 0, "Camera heading in degrees")
	fs.StringVar(&o.easing, "easing", "", fmt.Sprintf("Easing profile, one of %v", easing.Names()))
	fs.StringVar(&o.out, "out", "", "Write the plan JSON to this file instead of stdout")
	fs.StringVar(&o.posesDir, "poses-dir", "", "Also write one pose file per frame into this directory")
	fs.BoolVar(&o.ecef, "ecef", false, "Include ECEF positions (km) for every frame")
	fs.BoolVar(&o.usePreset, "use-preset", false, "Apply the matching city preset's tilt and end altitude")
	fs.StringVar(&o.metricsFile, "metrics-file", "", "Write Prometheus metrics for this run to a textfile")
	fs.BoolVar(&o.listPresets, "list-presets", false, "List city presets and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	o.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

func (o options) request() (flyin.Request, error) {
	req := flyin.Request{
		City:            o.city,
		FPS:             o.fps,
		DurationSeconds: o.duration,
		Width:           o.width,
		Height:          o.height,
		StartAltitude:   o.startAlt,
		EndAltitude:     o.endAlt,
		UsePreset:       o.usePreset,
	}
	if o.set["lat"] {
		req.Latitude = &o.lat
	}
	if o.set["lon"] {
		req.Longitude = &o.lon
	}
	if o.set["tilt"] {
		req.TiltAngle = &o.tilt
	}
	if o.set["heading"] {
		req.Heading = &o.heading
	}
	if o.easing != "" {
		name, err := easing.ParseName(o.easing)
		if err != nil {
			return flyin.Request{}, err
		}
		req.Easing = name
	}
	return req, nil
}

type output struct {
	flyin.Plan
	Resolution string      `json:"resolution"`
	ECEF       []core.Vec3 `json:"ecef,omitempty"`
}

func run(ctx context.Context, args []string, stdout io.Writer, log logging.Logger) (err error) {
	o, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	store := kb.NewLocationBase()
	if err := flyin.SeedPresets(store, cfg.Presets); err != nil {
		log.Warn(ctx, "some presets were rejected", logging.Err(err))
	}
	if o.listPresets {
		return writePresets(stdout, store)
	}

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return err
	}
	defer shutdownTracing.Flush(context.Background(), log)

	req, err := o.request()
	if err != nil {
		return err
	}

	var (
		pathMetrics    *observability.FlyInCollector
		captureMetrics *observability.CaptureCollector
	)
	if o.metricsFile != "" {
		reg := prometheus.NewRegistry()
		if pathMetrics, err = observability.NewFlyInCollector(reg); err != nil {
			return err
		}
		if captureMetrics, err = observability.NewCaptureCollector(reg); err != nil {
			return err
		}
		// Written even when the run fails so failed geocodes are counted.
		defer func() {
			if werr := captureMetrics.WriteTextfile(o.metricsFile); werr != nil {
				err = errors.Join(err, fmt.Errorf("write metrics file: %w", werr))
			}
		}()
	}

	geoOpts := []geocode.Option{geocode.WithLogger(log)}
	planOpts := []flyin.Option{flyin.WithLogger(log)}
	if pathMetrics != nil {
		geoOpts = append(geoOpts, geocode.WithRecorder(pathMetrics))
		planOpts = append(planOpts, flyin.WithPathRecorder(pathMetrics))
	}
	resolver := geocode.FromConfig(cfg.Geocoder, store, geoOpts...)
	defer resolver.Close()
	planner := flyin.NewPlanner(resolver, store, cfg.Animation, planOpts...)

	plan, err := planner.Plan(ctx, req)
	if err != nil {
		return err
	}

	doc := output{Plan: plan, Resolution: plan.Resolution()}
	if o.ecef {
		doc.ECEF = make([]core.Vec3, len(plan.Frames))
		for i, f := range plan.Frames {
			doc.ECEF[i] = core.FramePositionECEF(f)
		}
	}
	if err := writePlan(o.out, stdout, doc); err != nil {
		return err
	}

	if o.posesDir != "" {
		runOpts := []capture.Option{capture.WithLogger(log)}
		if captureMetrics != nil {
			runOpts = append(runOpts, capture.WithRecorder(captureMetrics))
		}
		runner := capture.NewRunner(runOpts...)
		res, err := runner.Run(ctx, capture.NewPoseWriter(o.ecef), plan.Frames, capture.Job{
			Dir:       o.posesDir,
			Extension: "json",
			Width:     plan.Width,
			Height:    plan.Height,
			FPS:       plan.FPS,
		})
		if err != nil {
			return err
		}
		log.Info(ctx, res.Message)
	}
	return nil
}

func writePlan(path string, stdout io.Writer, doc output) (err error) {
	w := stdout
	if path != "" {
		f, cerr := os.Create(path)
		if cerr != nil {
			return cerr
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func writePresets(w io.Writer, store *kb.LocationBase) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CITY\tLAT\tLON\tTILT\tEND ALT (m)\tDESCRIPTION")
	for _, p := range store.ListPresets() {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.0f\t%.0f\t%s\n",
			p.City, p.Latitude, p.Longitude, p.TiltAngle, p.EndAltitude, p.Description)
	}
	return tw.Flush()
}
