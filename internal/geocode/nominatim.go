package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/flyin/internal/observability"
	"github.com/signalsfoundry/flyin/model"
)

// DefaultNominatimURL is the public OpenStreetMap search endpoint.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// Nominatim queries an OpenStreetMap Nominatim search endpoint and keeps the
// best match only.
type Nominatim struct {
	BaseURL   string
	UserAgent string
	Client    *http.Client
}

// NewNominatim builds a client. Nominatim's usage policy requires an
// identifying User-Agent.
func NewNominatim(baseURL, userAgent string, timeout time.Duration) *Nominatim {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	if userAgent == "" {
		userAgent = "flyin/1.0"
	}
	return &Nominatim{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		UserAgent: userAgent,
		Client:    &http.Client{Timeout: timeout},
	}
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode implements Geocoder.
func (n *Nominatim) Geocode(ctx context.Context, query string) (loc model.GeoLocation, err error) {
	ctx, span := observability.StartSpan(ctx, "geocode.Nominatim", attribute.String("geocode.query", query))
	defer func() { observability.EndSpan(span, err) }()

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.BaseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return model.GeoLocation{}, fmt.Errorf("build nominatim request: %w", err)
	}
	req.Header.Set("User-Agent", n.UserAgent)
	req.Header.Set("Accept", "application/json")

	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return model.GeoLocation{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.GeoLocation{}, fmt.Errorf("%w: %s", ErrUpstream, resp.Status)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return model.GeoLocation{}, fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	if len(results) == 0 {
		return model.GeoLocation{}, fmt.Errorf("%w: %q", ErrNotFound, query)
	}

	best := results[0]
	lat, err := strconv.ParseFloat(best.Lat, 64)
	if err != nil {
		return model.GeoLocation{}, fmt.Errorf("%w: bad latitude %q", ErrUpstream, best.Lat)
	}
	lon, err := strconv.ParseFloat(best.Lon, 64)
	if err != nil {
		return model.GeoLocation{}, fmt.Errorf("%w: bad longitude %q", ErrUpstream, best.Lon)
	}

	// Display names look like "Reykjavík, Capital Region, Iceland".
	name, _, _ := strings.Cut(best.DisplayName, ",")
	return model.GeoLocation{Latitude: lat, Longitude: lon, Name: strings.TrimSpace(name)}, nil
}
