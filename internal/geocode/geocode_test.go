package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/signalsfoundry/flyin/internal/config"
	"github.com/signalsfoundry/flyin/kb"
	"github.com/signalsfoundry/flyin/model"
)

type fakeRecorder struct {
	lookups map[string]int
	entries int
}

func (f *fakeRecorder) ObserveGeocode(source, result string) {
	if f.lookups == nil {
		f.lookups = make(map[string]int)
	}
	f.lookups[source+"/"+result]++
}

func (f *fakeRecorder) SetGeocodeCacheEntries(n int) { f.entries = n }

func nominatimServer(t *testing.T, status int, body string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		if r.URL.Path != "/search" {
			t.Errorf("path = %q, want /search", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("format") != "json" || q.Get("limit") != "1" || q.Get("q") == "" {
			t.Errorf("unexpected query %v", q)
		}
		if r.Header.Get("User-Agent") != "flyin-test/1.0" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStaticLookup(t *testing.T) {
	s := NewStatic()
	loc, err := s.Geocode(context.Background(), "  San Francisco ")
	if err != nil {
		t.Fatalf("Geocode err = %v", err)
	}
	if loc.Name != "San Francisco" || loc.Latitude != 37.7749 {
		t.Fatalf("Geocode = %+v", loc)
	}
	if _, err := s.Geocode(context.Background(), "Atlantis"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Geocode(Atlantis) err = %v, want ErrNotFound", err)
	}
	if len(s) != 20 {
		t.Fatalf("static table has %d cities, want 20", len(s))
	}
}

func TestNominatimParsesFirstResult(t *testing.T) {
	srv := nominatimServer(t, http.StatusOK,
		`[{"lat":"64.1466","lon":"-21.9426","display_name":"Reykjavík, Capital Region, Iceland"},{"lat":"0","lon":"0","display_name":"x"}]`, nil)

	n := NewNominatim(srv.URL+"/", "flyin-test/1.0", time.Second)
	loc, err := n.Geocode(context.Background(), "Reykjavik")
	if err != nil {
		t.Fatalf("Geocode err = %v", err)
	}
	want := model.GeoLocation{Latitude: 64.1466, Longitude: -21.9426, Name: "Reykjavík"}
	if loc != want {
		t.Fatalf("Geocode = %+v, want %+v", loc, want)
	}
}

func TestNominatimErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "no results", status: http.StatusOK, body: `[]`, wantErr: ErrNotFound},
		{name: "server error", status: http.StatusServiceUnavailable, body: ``, wantErr: ErrUpstream},
		{name: "bad json", status: http.StatusOK, body: `{`, wantErr: ErrUpstream},
		{name: "bad latitude", status: http.StatusOK, body: `[{"lat":"north","lon":"1","display_name":"x"}]`, wantErr: ErrUpstream},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := nominatimServer(t, tc.status, tc.body, nil)
			_, err := NewNominatim(srv.URL, "flyin-test/1.0", time.Second).Geocode(context.Background(), "Somewhere")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestResolverPrefersStaticTable(t *testing.T) {
	var hits int32
	srv := nominatimServer(t, http.StatusOK, `[]`, &hits)
	rec := &fakeRecorder{}

	r := NewResolver(nil, NewNominatim(srv.URL, "flyin-test/1.0", time.Second), WithRecorder(rec))
	loc, err := r.Geocode(context.Background(), "Tokyo")
	if err != nil {
		t.Fatalf("Geocode err = %v", err)
	}
	if loc.Name != "Tokyo" {
		t.Fatalf("Geocode = %+v, want Tokyo", loc)
	}
	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Fatalf("remote called %d times, want 0", n)
	}
	if rec.lookups["static/ok"] != 1 {
		t.Fatalf("recorder lookups = %v", rec.lookups)
	}
}

func TestResolverCachesRemoteResults(t *testing.T) {
	var hits int32
	srv := nominatimServer(t, http.StatusOK, `[{"lat":"59.9139","lon":"10.7522","display_name":"Oslo, Norway"}]`, &hits)
	rec := &fakeRecorder{}
	cache := kb.NewLocationBase()

	r := NewResolver(cache, NewNominatim(srv.URL, "flyin-test/1.0", time.Second), WithRecorder(rec))
	for range 3 {
		loc, err := r.Geocode(context.Background(), "Oslo")
		if err != nil {
			t.Fatalf("Geocode err = %v", err)
		}
		if loc.Name != "Oslo" {
			t.Fatalf("Geocode = %+v, want Oslo", loc)
		}
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("remote called %d times, want 1", n)
	}
	if _, ok := cache.CachedLocation("oslo"); !ok {
		t.Fatalf("result not cached")
	}
	if rec.lookups["remote/ok"] != 1 || rec.lookups["cache/ok"] != 2 || rec.entries != 1 {
		t.Fatalf("recorder = %+v", rec)
	}
}

func TestResolverDoesNotCacheFailures(t *testing.T) {
	var hits int32
	srv := nominatimServer(t, http.StatusBadGateway, ``, &hits)
	cache := kb.NewLocationBase()
	r := NewResolver(cache, NewNominatim(srv.URL, "flyin-test/1.0", time.Second))

	for range 2 {
		if _, err := r.Geocode(context.Background(), "Nowhere"); !errors.Is(err, ErrUpstream) {
			t.Fatalf("err = %v, want ErrUpstream", err)
		}
	}
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Fatalf("remote called %d times, want 2", n)
	}
	if cache.CachedCount() != 0 {
		t.Fatalf("failure was cached")
	}
}

func TestResolverWithoutRemote(t *testing.T) {
	r := NewResolver(nil, nil)
	if _, err := r.Geocode(context.Background(), "Atlantis"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := r.Geocode(context.Background(), "   "); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("err = %v, want ErrEmptyQuery", err)
	}
}

func TestResolverCustomStatic(t *testing.T) {
	r := NewResolver(nil, nil, WithStatic(Static{"base camp": {Latitude: 1, Longitude: 2, Name: "Base Camp"}}))
	loc, err := r.Geocode(context.Background(), "Base Camp")
	if err != nil || loc.Name != "Base Camp" {
		t.Fatalf("Geocode = %+v, %v", loc, err)
	}
	if _, err := r.Geocode(context.Background(), "Tokyo"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Geocode(Tokyo) err = %v, want ErrNotFound with custom table", err)
	}
}

func TestFromConfig(t *testing.T) {
	var hits int32
	srv := nominatimServer(t, http.StatusOK, `[{"lat":"59.9139","lon":"10.7522","display_name":"Oslo, Norway"}]`, &hits)

	cfg := config.Default().Geocoder
	cfg.BaseURL = srv.URL
	cfg.UserAgent = "flyin-test/1.0"
	r := FromConfig(cfg, kb.NewLocationBase())
	loc, err := r.Geocode(context.Background(), "Oslo")
	if err != nil || loc.Name != "Oslo" {
		t.Fatalf("Geocode(Oslo) = %+v, %v", loc, err)
	}

	cfg.Enabled = false
	r = FromConfig(cfg, kb.NewLocationBase())
	if _, err := r.Geocode(context.Background(), "Oslo"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("disabled remote err = %v, want ErrNotFound", err)
	}
}

func TestResolverTracksSharedCacheSize(t *testing.T) {
	cache := kb.NewLocationBase()
	cache.CacheLocation("Bergen", model.GeoLocation{Name: "Bergen"})
	rec := &fakeRecorder{}

	r := NewResolver(cache, nil, WithRecorder(rec))
	if rec.entries != 1 {
		t.Fatalf("initial cache entries = %d, want 1", rec.entries)
	}

	cache.CacheLocation("Oslo", model.GeoLocation{Name: "Oslo"})
	if rec.entries != 2 {
		t.Fatalf("cache entries after shared write = %d, want 2", rec.entries)
	}

	r.Close()
	r.Close()
	cache.CacheLocation("Tromsø", model.GeoLocation{Name: "Tromsø"})
	if rec.entries != 2 {
		t.Fatalf("cache entries after Close = %d, want 2", rec.entries)
	}
}
