package model

// GeoLocation is a resolved place: WGS84 degrees plus a short display name.
type GeoLocation struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
	Name      string  `json:"name" yaml:"name"`
}

// CityPreset is a city with camera settings known to look good for it.
type CityPreset struct {
	City        string  `json:"city" yaml:"city"`
	Latitude    float64 `json:"latitude" yaml:"latitude"`
	Longitude   float64 `json:"longitude" yaml:"longitude"`
	TiltAngle   float64 `json:"tiltAngle" yaml:"tiltAngle"`
	EndAltitude float64 `json:"endAltitude" yaml:"endAltitude"`
	Description string  `json:"description" yaml:"description"`
}

// Location returns the preset's ground point.
func (p CityPreset) Location() GeoLocation {
	return GeoLocation{Latitude: p.Latitude, Longitude: p.Longitude, Name: p.City}
}
