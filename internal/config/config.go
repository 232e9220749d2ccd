// Package config loads fly-in defaults, presets and service settings from a
// YAML file and FLYIN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/flyin/easing"
	"github.com/signalsfoundry/flyin/model"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config is the top-level configuration document.
type Config struct {
	Animation AnimationDefaults  `yaml:"animation"`
	Geocoder  GeocoderConfig     `yaml:"geocoder"`
	Server    ServerConfig       `yaml:"server"`
	Tracing   TracingConfig      `yaml:"tracing"`
	Presets   []model.CityPreset `yaml:"presets"`
}

// AnimationDefaults fills in any fly-in option a request leaves out.
type AnimationDefaults struct {
	Width           int         `yaml:"width"`
	Height          int         `yaml:"height"`
	FPS             int         `yaml:"fps"`
	DurationSeconds float64     `yaml:"durationSeconds"`
	StartAltitude   float64     `yaml:"startAltitude"`
	EndAltitude     float64     `yaml:"endAltitude"`
	TiltAngle       float64     `yaml:"tiltAngle"`
	Heading         float64     `yaml:"heading"`
	Easing          easing.Name `yaml:"easing"`
}

// GeocoderConfig configures the remote geocoder.
type GeocoderConfig struct {
	Enabled   bool          `yaml:"enabled"`
	BaseURL   string        `yaml:"baseURL"`
	UserAgent string        `yaml:"userAgent"`
	Timeout   time.Duration `yaml:"timeout"`
}

// ServerConfig holds listener addresses for cmd/flyin-server.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	MetricsAddr  string        `yaml:"metricsAddr"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// Tracing exporters.
const (
	TracingExporterStdout = "stdout"
	TracingExporterOTLP   = "otlp"
)

// TracingConfig selects the OpenTelemetry exporter and sampling.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"` // stdout or otlp
	Endpoint    string  `yaml:"endpoint"` // OTLP gRPC collector address
	ServiceName string  `yaml:"serviceName"`
	SampleRatio float64 `yaml:"sampleRatio"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Animation: AnimationDefaults{
			Width:           1920,
			Height:          1080,
			FPS:             30,
			DurationSeconds: 6,
			StartAltitude:   800000,
			EndAltitude:     2000,
			TiltAngle:       45,
			Heading:         0,
			Easing:          easing.Cinematic,
		},
		Geocoder: GeocoderConfig{
			Enabled:   true,
			BaseURL:   "https://nominatim.openstreetmap.org",
			UserAgent: "flyin/1.0",
			Timeout:   10 * time.Second,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			MetricsAddr:  ":9090",
			WriteTimeout: 60 * time.Second,
		},
		Tracing: TracingConfig{
			Exporter:    TracingExporterStdout,
			ServiceName: "flyin",
			SampleRatio: 1,
		},
		Presets: DefaultPresets(),
	}
}

// DefaultPresets returns the built-in city presets.
func DefaultPresets() []model.CityPreset {
	return []model.CityPreset{
		{City: "New York", Latitude: 40.7128, Longitude: -74.006, TiltAngle: 45, EndAltitude: 2000,
			Description: "Manhattan skyline with a 45-degree tilt for dramatic skyscraper views"},
		{City: "Chicago", Latitude: 41.8781, Longitude: -87.6298, TiltAngle: 40, EndAltitude: 2000,
			Description: "Lake Michigan waterfront and downtown loop from a moderate angle"},
		{City: "London", Latitude: 51.5074, Longitude: -0.1278, TiltAngle: 35, EndAltitude: 1500,
			Description: "Thames river corridor with gentle tilt showcasing historic landmarks"},
		{City: "Tokyo", Latitude: 35.6762, Longitude: 139.6503, TiltAngle: 50, EndAltitude: 2500,
			Description: "Dense urban sprawl with steep tilt for depth perception"},
		{City: "Dubai", Latitude: 25.2048, Longitude: 55.2708, TiltAngle: 45, EndAltitude: 3000,
			Description: "Burj Khalifa and Palm Jumeirah from an elevated perspective"},
		{City: "San Francisco", Latitude: 37.7749, Longitude: -122.4194, TiltAngle: 40, EndAltitude: 1800,
			Description: "Bay Area with Golden Gate Bridge at a cinematic angle"},
		{City: "Paris", Latitude: 48.8566, Longitude: 2.3522, TiltAngle: 35, EndAltitude: 1500,
			Description: "City of Light from a gentle angle highlighting the Seine"},
		{City: "Sydney", Latitude: -33.8688, Longitude: 151.2093, TiltAngle: 45, EndAltitude: 2000,
			Description: "Opera House and Harbour Bridge from a dramatic harbor approach"},
	}
}

// Load reads path on top of Default, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from FLYIN_* variables. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s=%q", ErrInvalidConfig, key, v))
				return
			}
			*dst = f
		}
	}

	str("FLYIN_ADDR", &c.Server.Addr)
	str("FLYIN_METRICS_ADDR", &c.Server.MetricsAddr)
	str("FLYIN_GEOCODER_URL", &c.Geocoder.BaseURL)
	str("FLYIN_GEOCODER_USER_AGENT", &c.Geocoder.UserAgent)
	num("FLYIN_START_ALTITUDE", &c.Animation.StartAltitude)
	num("FLYIN_END_ALTITUDE", &c.Animation.EndAltitude)
	num("FLYIN_TILT_ANGLE", &c.Animation.TiltAngle)
	str("FLYIN_TRACING_EXPORTER", &c.Tracing.Exporter)
	str("FLYIN_TRACING_SERVICE_NAME", &c.Tracing.ServiceName)
	str("FLYIN_OTLP_ENDPOINT", &c.Tracing.Endpoint)
	num("FLYIN_TRACING_SAMPLE_RATIO", &c.Tracing.SampleRatio)

	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s=%q", ErrInvalidConfig, key, v))
				return
			}
			*dst = b
		}
	}
	boolean("FLYIN_GEOCODER_ENABLED", &c.Geocoder.Enabled)
	boolean("FLYIN_TRACING_ENABLED", &c.Tracing.Enabled)
	c.Tracing.Exporter = strings.ToLower(c.Tracing.Exporter)

	if v, ok := lookup("FLYIN_EASING"); ok && v != "" {
		name, err := easing.ParseName(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: FLYIN_EASING: %v", ErrInvalidConfig, err))
		} else {
			c.Animation.Easing = name
		}
	}
	return errors.Join(errs...)
}

// Validate rejects configurations that cannot produce a fly-in.
func (c Config) Validate() error {
	a := c.Animation
	var problems []string
	if a.Width <= 0 || a.Height <= 0 {
		problems = append(problems, fmt.Sprintf("resolution %dx%d must be positive", a.Width, a.Height))
	}
	if a.FPS <= 0 {
		problems = append(problems, "fps must be positive")
	}
	if a.DurationSeconds <= 0 {
		problems = append(problems, "durationSeconds must be positive")
	}
	if a.StartAltitude <= 0 || a.EndAltitude <= 0 {
		problems = append(problems, "altitudes must be positive")
	}
	if a.TiltAngle < 0 || a.TiltAngle > 90 {
		problems = append(problems, "tiltAngle must lie in [0, 90]")
	}
	if !a.Easing.Valid() {
		problems = append(problems, fmt.Sprintf("unknown easing %q", a.Easing))
	}
	if c.Geocoder.Enabled && c.Geocoder.Timeout <= 0 {
		problems = append(problems, "geocoder timeout must be positive")
	}
	t := c.Tracing
	if t.Exporter != TracingExporterStdout && t.Exporter != TracingExporterOTLP {
		problems = append(problems, fmt.Sprintf("unknown tracing exporter %q", t.Exporter))
	}
	if !(t.SampleRatio >= 0 && t.SampleRatio <= 1) {
		problems = append(problems, "tracing sampleRatio must lie in [0, 1]")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
