package kb

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/signalsfoundry/flyin/model"
)

var (
	ErrPresetExists  = errors.New("preset already exists")
	ErrPresetInvalid = errors.New("invalid preset")
)

// EventType indicates what kind of change happened in the store.
type EventType int

const (
	EventPresetAdded EventType = iota
	EventLocationCached
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type     EventType
	Key      string
	Location model.GeoLocation
}

// LocationBase is an in-memory, thread-safe store for city presets and
// geocoded places. Lookups are keyed by the lower-cased, trimmed name.
type LocationBase struct {
	mu sync.RWMutex

	presets   map[string]model.CityPreset
	locations map[string]model.GeoLocation

	subs map[int]func(Event)
	next int
}

// NewLocationBase constructs an empty store.
func NewLocationBase() *LocationBase {
	return &LocationBase{
		presets:   make(map[string]model.CityPreset),
		locations: make(map[string]model.GeoLocation),
		subs:      make(map[int]func(Event)),
	}
}

// Key normalizes a place name for lookups.
func Key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// AddPreset stores a preset. It returns an error if a preset for the same
// city already exists.
func (b *LocationBase) AddPreset(p model.CityPreset) error {
	key := Key(p.City)
	if key == "" {
		return fmt.Errorf("%w: city is required", ErrPresetInvalid)
	}
	if p.TiltAngle < 0 || p.TiltAngle > 90 {
		return fmt.Errorf("%w: %s tiltAngle %v outside [0, 90]", ErrPresetInvalid, p.City, p.TiltAngle)
	}
	if p.EndAltitude <= 0 {
		return fmt.Errorf("%w: %s endAltitude must be positive", ErrPresetInvalid, p.City)
	}

	b.mu.Lock()
	if _, exists := b.presets[key]; exists {
		b.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrPresetExists, p.City)
	}
	b.presets[key] = p
	subs := b.snapshotSubs()
	b.mu.Unlock()

	notify(subs, Event{Type: EventPresetAdded, Key: key, Location: p.Location()})
	return nil
}

// Preset returns the preset for city, if any.
func (b *LocationBase) Preset(city string) (model.CityPreset, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.presets[Key(city)]
	return p, ok
}

// ListPresets returns a snapshot of all presets ordered by city name.
func (b *LocationBase) ListPresets() []model.CityPreset {
	b.mu.RLock()
	res := make([]model.CityPreset, 0, len(b.presets))
	for _, p := range b.presets {
		res = append(res, p)
	}
	b.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool { return res[i].City < res[j].City })
	return res
}

// CacheLocation remembers a geocoding result for query and notifies
// subscribers.
func (b *LocationBase) CacheLocation(query string, loc model.GeoLocation) {
	key := Key(query)
	if key == "" {
		return
	}

	b.mu.Lock()
	b.locations[key] = loc
	subs := b.snapshotSubs()
	b.mu.Unlock()

	notify(subs, Event{Type: EventLocationCached, Key: key, Location: loc})
}

// CachedLocation returns a previously cached geocoding result.
func (b *LocationBase) CachedLocation(query string) (model.GeoLocation, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	loc, ok := b.locations[Key(query)]
	return loc, ok
}

// CachedCount returns the number of cached geocoding results.
func (b *LocationBase) CachedCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.locations)
}

// Subscribe registers a callback for store events. It returns an unsubscribe
// function; calling it more than once is harmless.
func (b *LocationBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.subs[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// snapshotSubs must be called with b.mu held.
func (b *LocationBase) snapshotSubs() []func(Event) {
	subs := make([]func(Event), 0, len(b.subs))
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		subs = append(subs, b.subs[id])
	}
	return subs
}

// notify runs outside the lock so subscribers may call back into the store.
func notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		sub(ev)
	}
}
