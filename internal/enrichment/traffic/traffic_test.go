package traffic

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kelvins/geocoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/snow-status-aggregation/internal/logger"
	"github.com/i474232898/snow-status-aggregation/internal/resort"
	"github.com/i474232898/snow-status-aggregation/internal/transport"
)

func TestMain(m *testing.M) {
	logger.UseTestMode()
	os.Exit(m.Run())
}

func sample(d, delay int) resort.TrafficSample {
	return resort.TrafficSample{Duration: d, Delay: delay, At: time.Now().UTC()}
}

func TestStats(t *testing.T) {
	assert.Nil(t, Stats(nil))

	one := Stats([]resort.TrafficSample{sample(1200, 60)})
	require.NotNil(t, one)
	assert.Equal(t, 1, one.Samples)
	assert.Equal(t, 1200.0, one.MeanDuration)
	assert.Equal(t, 1200, one.MinDuration)
	assert.Equal(t, 1200, one.MaxDuration)

	many := Stats([]resort.TrafficSample{sample(1000, 0), sample(1600, 300), sample(1300, 90)})
	assert.Equal(t, 3, many.Samples)
	assert.Equal(t, 1300.0, many.MeanDuration)
	assert.Equal(t, 1000, many.MinDuration)
	assert.Equal(t, 1600, many.MaxDuration)
	assert.Equal(t, 130.0, many.MeanDelay)
}

func TestStore_HistoryIsCapped(t *testing.T) {
	s := NewStore(3)
	for i := 1; i <= 5; i++ {
		s.Record("axamer", sample(i*100, i))
	}

	e, ok := s.Lookup("axamer")
	require.True(t, ok)
	assert.Equal(t, 500, e.Duration)
	assert.Equal(t, 5, e.Delay)
	require.Len(t, e.History, 3)
	assert.Equal(t, 300, e.History[0].Duration)
	require.NotNil(t, e.HistoryStats)
	assert.Equal(t, 3, e.HistoryStats.Samples)

	_, ok = s.Lookup("missing")
	assert.False(t, ok)
}

func TestStore_LookupReturnsCopy(t *testing.T) {
	s := NewStore(10)
	s.Record("a", sample(100, 0))

	e, _ := s.Lookup("a")
	e.History[0].Duration = 999

	again, _ := s.Lookup("a")
	assert.Equal(t, 100, again.History[0].Duration)
}

func TestBudget_ResetsDaily(t *testing.T) {
	b := NewBudget(2)
	day := time.Date(2026, 1, 9, 23, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return day }

	assert.True(t, b.Take(1))
	assert.True(t, b.Take(1))
	assert.False(t, b.Take(1))
	assert.Equal(t, 0, b.Remaining())

	b.now = func() time.Time { return day.Add(2 * time.Hour) }
	assert.True(t, b.Take(1))
	assert.Equal(t, 1, b.Remaining())

	assert.Equal(t, -1, NewBudget(0).Remaining())
}

type fakeRouter struct {
	mu    sync.Mutex
	calls []Point
	fail  map[Point]bool
}

func (f *fakeRouter) Route(_ context.Context, _, to Point) (resort.TrafficSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, to)
	if f.fail[to] {
		return resort.TrafficSample{}, errors.New("no route")
	}
	return sample(1800, 120), nil
}

func TestRefresher(t *testing.T) {
	lat1, lon1, lat2, lon2 := 47.2, 11.3, 47.1, 11.1
	defs := []resort.Definition{
		{ID: "axamer", TrafficID: "ibk-axams", Lat: &lat1, Lon: &lon1},
		{ID: "axamer-kids", TrafficID: "ibk-axams", Lat: &lat1, Lon: &lon1},
		{ID: "oetz", TrafficID: "ibk-oetz", Lat: &lat2, Lon: &lon2},
		{ID: "no-traffic", Lat: &lat2, Lon: &lon2},
	}
	routes := RoutesFrom(defs)
	require.Len(t, routes, 2)

	router := &fakeRouter{fail: map[Point]bool{{Lat: lat2, Lon: lon2}: true}}
	store := NewStore(10)

	n, err := NewRefresher(router, store, NewBudget(10), Point{Lat: 47.26, Lon: 11.39}, routes).Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, router.calls, 2)

	e, ok := store.Lookup("ibk-axams")
	require.True(t, ok)
	assert.Equal(t, 1800, e.Duration)
	_, ok = store.Lookup("ibk-oetz")
	assert.False(t, ok)
}

func TestRefresher_StopsAtBudget(t *testing.T) {
	lat, lon := 47.0, 11.0
	routes := []Route{{ID: "a", Dest: Point{lat, lon}}, {ID: "b", Dest: Point{lat, lon}}, {ID: "c", Dest: Point{lat, lon}}}
	router := &fakeRouter{}

	n, err := NewRefresher(router, NewStore(5), NewBudget(2), Point{}, routes).Refresh(context.Background())
	assert.ErrorIs(t, err, ErrBudgetExhausted)
	assert.Equal(t, 2, n)
	assert.Len(t, router.calls, 2)
}

func TestTomTomRouter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/json"))
		assert.Contains(t, r.URL.Path, ":")
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"routes":[{"summary":{"travelTimeInSeconds":2100,"trafficDelayInSeconds":240}}]}`))
	}))
	defer srv.Close()

	r := NewTomTomRouter(transport.New(transport.Config{Client: &http.Client{}, Timeout: time.Second}), "k")
	r.baseURL = srv.URL

	s, err := r.Route(context.Background(), Point{47.26, 11.39}, Point{47.2, 11.3})
	require.NoError(t, err)
	assert.Equal(t, 2100, s.Duration)
	assert.Equal(t, 240, s.Delay)

	_, err = NewTomTomRouter(nil, "").Route(context.Background(), Point{}, Point{})
	assert.Error(t, err)
}

func TestTomTomRouter_ErrorHidesAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	r := NewTomTomRouter(transport.New(transport.Config{Client: &http.Client{}, Timeout: time.Second}), "SECRET-KEY-123")
	r.baseURL = srv.URL

	_, err := r.Route(context.Background(), Point{47.26, 11.39}, Point{47.2, 11.3})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET-KEY-123")
	assert.Contains(t, err.Error(), "403")
}

func TestResolveOrigin(t *testing.T) {
	p, err := ResolveOrigin("47.2692, 11.4041", geocoder.Address{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 47.2692, p.Lat)

	_, err = ResolveOrigin("47.2", geocoder.Address{}, nil)
	assert.Error(t, err)
	_, err = ResolveOrigin("147.2,11", geocoder.Address{}, nil)
	assert.Error(t, err)
	_, err = ResolveOrigin("", geocoder.Address{}, nil)
	assert.Error(t, err)

	geocode := func(a geocoder.Address) (geocoder.Location, error) {
		assert.Equal(t, "Innsbruck", a.City)
		return geocoder.Location{Latitude: 47.26, Longitude: 11.39}, nil
	}
	p, err = ResolveOrigin("", geocoder.Address{City: "Innsbruck", Country: "Austria"}, geocode)
	require.NoError(t, err)
	assert.Equal(t, Point{Lat: 47.26, Lon: 11.39}, p)
}
