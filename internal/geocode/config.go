package geocode

import (
	"github.com/signalsfoundry/flyin/internal/config"
	"github.com/signalsfoundry/flyin/kb"
)

// FromConfig builds the resolver chain described by cfg. The remote geocoder
// is left out when cfg disables it.
func FromConfig(cfg config.GeocoderConfig, cache *kb.LocationBase, opts ...Option) *Resolver {
	var remote Geocoder
	if cfg.Enabled {
		remote = NewNominatim(cfg.BaseURL, cfg.UserAgent, cfg.Timeout)
	}
	return NewResolver(cache, remote, opts...)
}
