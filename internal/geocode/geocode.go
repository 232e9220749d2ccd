// Package geocode resolves place names to coordinates. A Resolver answers from
// a built-in city table first, then from the shared location cache, and only
// then asks a remote geocoder, caching whatever it returns.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/flyin/internal/logging"
	"github.com/signalsfoundry/flyin/internal/observability"
	"github.com/signalsfoundry/flyin/kb"
	"github.com/signalsfoundry/flyin/model"
)

var (
	ErrNotFound   = errors.New("location not found")
	ErrUpstream   = errors.New("geocoder upstream failure")
	ErrEmptyQuery = errors.New("empty geocode query")
)

// Source label values reported to the Recorder.
const (
	SourceStatic = "static"
	SourceCache  = "cache"
	SourceRemote = "remote"
)

// Geocoder resolves a free-form place name.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (model.GeoLocation, error)
}

// Recorder receives lookup outcomes; *observability.FlyInCollector satisfies it.
type Recorder interface {
	ObserveGeocode(source, result string)
	SetGeocodeCacheEntries(n int)
}

// Resolver chains the static table, the cache and a remote geocoder.
type Resolver struct {
	static Geocoder
	cache  *kb.LocationBase
	remote Geocoder
	rec    Recorder
	log    logging.Logger

	unsubscribe func()
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithRecorder reports lookups to rec.
func WithRecorder(rec Recorder) Option {
	return func(r *Resolver) { r.rec = rec }
}

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(l logging.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

// WithStatic replaces the built-in city table.
func WithStatic(g Geocoder) Option {
	return func(r *Resolver) { r.static = g }
}

// NewResolver builds a Resolver. cache may be shared with other components;
// remote may be nil, in which case only local answers are possible.
func NewResolver(cache *kb.LocationBase, remote Geocoder, opts ...Option) *Resolver {
	if cache == nil {
		cache = kb.NewLocationBase()
	}
	r := &Resolver{
		static: NewStatic(),
		cache:  cache,
		remote: remote,
		log:    logging.Noop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.rec != nil {
		r.rec.SetGeocodeCacheEntries(cache.CachedCount())
		r.unsubscribe = cache.Subscribe(func(ev kb.Event) {
			if ev.Type == kb.EventLocationCached {
				r.rec.SetGeocodeCacheEntries(cache.CachedCount())
			}
		})
	}
	return r
}

// Close stops tracking the shared cache. The Resolver still answers lookups.
func (r *Resolver) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
}

// Geocode implements Geocoder.
func (r *Resolver) Geocode(ctx context.Context, query string) (loc model.GeoLocation, err error) {
	if strings.TrimSpace(query) == "" {
		return model.GeoLocation{}, ErrEmptyQuery
	}
	ctx, span := observability.StartSpan(ctx, "geocode.Resolve", attribute.String("geocode.query", query))
	defer func() { observability.EndSpan(span, err) }()
	log := logging.FromContext(ctx, r.log)

	if r.static != nil {
		loc, err := r.static.Geocode(ctx, query)
		if err == nil {
			r.observe(SourceStatic, observability.ResultOK)
			return loc, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return model.GeoLocation{}, err
		}
	}

	if loc, ok := r.cache.CachedLocation(query); ok {
		r.observe(SourceCache, observability.ResultOK)
		return loc, nil
	}

	if r.remote == nil {
		r.observe(SourceRemote, observability.ResultMiss)
		return model.GeoLocation{}, fmt.Errorf("%w: %q", ErrNotFound, query)
	}

	loc, err = r.remote.Geocode(ctx, query)
	switch {
	case errors.Is(err, ErrNotFound):
		r.observe(SourceRemote, observability.ResultMiss)
		return model.GeoLocation{}, err
	case err != nil:
		r.observe(SourceRemote, observability.ResultError)
		log.Warn(ctx, "remote geocoder failed", logging.String("query", query), logging.Err(err))
		return model.GeoLocation{}, err
	}

	r.cache.CacheLocation(query, loc)
	r.observe(SourceRemote, observability.ResultOK)
	log.Debug(ctx, "geocoded remotely",
		logging.String("query", query),
		logging.String("name", loc.Name),
		logging.Float("latitude", loc.Latitude),
		logging.Float("longitude", loc.Longitude),
	)
	return loc, nil
}

func (r *Resolver) observe(source, result string) {
	if r.rec != nil {
		r.rec.ObserveGeocode(source, result)
	}
}
