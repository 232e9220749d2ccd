package geocode

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/flyin/kb"
	"github.com/signalsfoundry/flyin/model"
)

// Static answers from a fixed table keyed by kb.Key.
type Static map[string]model.GeoLocation

// NewStatic returns the built-in table of well-known cities.
func NewStatic() Static {
	return Static{
		"new york":       {Latitude: 40.7128, Longitude: -74.006, Name: "New York"},
		"los angeles":    {Latitude: 34.0522, Longitude: -118.2437, Name: "Los Angeles"},
		"chicago":        {Latitude: 41.8781, Longitude: -87.6298, Name: "Chicago"},
		"london":         {Latitude: 51.5074, Longitude: -0.1278, Name: "London"},
		"paris":          {Latitude: 48.8566, Longitude: 2.3522, Name: "Paris"},
		"tokyo":          {Latitude: 35.6762, Longitude: 139.6503, Name: "Tokyo"},
		"sydney":         {Latitude: -33.8688, Longitude: 151.2093, Name: "Sydney"},
		"dubai":          {Latitude: 25.2048, Longitude: 55.2708, Name: "Dubai"},
		"rome":           {Latitude: 41.9028, Longitude: 12.4964, Name: "Rome"},
		"berlin":         {Latitude: 52.52, Longitude: 13.405, Name: "Berlin"},
		"moscow":         {Latitude: 55.7558, Longitude: 37.6173, Name: "Moscow"},
		"beijing":        {Latitude: 39.9042, Longitude: 116.4074, Name: "Beijing"},
		"mumbai":         {Latitude: 19.076, Longitude: 72.8777, Name: "Mumbai"},
		"san francisco":  {Latitude: 37.7749, Longitude: -122.4194, Name: "San Francisco"},
		"seattle":        {Latitude: 47.6062, Longitude: -122.3321, Name: "Seattle"},
		"toronto":        {Latitude: 43.6532, Longitude: -79.3832, Name: "Toronto"},
		"rio de janeiro": {Latitude: -22.9068, Longitude: -43.1729, Name: "Rio de Janeiro"},
		"singapore":      {Latitude: 1.3521, Longitude: 103.8198, Name: "Singapore"},
		"cairo":          {Latitude: 30.0444, Longitude: 31.2357, Name: "Cairo"},
		"istanbul":       {Latitude: 41.0082, Longitude: 28.9784, Name: "Istanbul"},
	}
}

// Geocode implements Geocoder.
func (s Static) Geocode(_ context.Context, query string) (model.GeoLocation, error) {
	if loc, ok := s[kb.Key(query)]; ok {
		return loc, nil
	}
	return model.GeoLocation{}, fmt.Errorf("%w: %q", ErrNotFound, query)
}
