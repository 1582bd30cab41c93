package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

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

func testClient() *transport.Client {
	return transport.New(transport.Config{Client: &http.Client{}, Timeout: time.Second})
}

const openMeteoBody = `{
	"current": {"temperature_2m": -6.2, "weather_code": 73, "snowfall": 0.7},
	"daily": {
		"time": ["2026-01-06","2026-01-07","2026-01-08","2026-01-09","2026-01-10","2026-01-11"],
		"snowfall_sum": [4.2, 0.0, 1.5, 0.0, 12.3, null]
	}
}`

func TestOpenMeteo_Fetch(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_, _ = w.Write([]byte(openMeteoBody))
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(testClient())
	p.baseURL = srv.URL
	p.now = func() time.Time { return time.Date(2026, 1, 9, 10, 0, 0, 0, time.UTC) }

	w, err := p.Fetch(context.Background(), 47.13, 11.07)
	require.NoError(t, err)

	assert.Contains(t, query, "past_days=7")
	assert.Equal(t, "open-meteo", w.Source)
	require.NotNil(t, w.Current)
	assert.Equal(t, -6.2, *w.Current.Temperature)
	assert.Equal(t, string(ConditionSnow), w.Current.Condition)
	assert.NotEmpty(t, w.Current.Icon)

	require.NotNil(t, w.LastSnowfall)
	assert.Equal(t, "2026-01-08", *w.LastSnowfall)

	require.Len(t, w.Forecast, 3)
	assert.Equal(t, "2026-01-09", w.Forecast[0].Date)
	assert.Equal(t, 12.3, *w.Forecast[1].Snowfall)
	assert.Nil(t, w.Forecast[2].Snowfall)
}

func TestWeatherAPI_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{
			"current":{"temp_c":-2,"condition":{"text":"Moderate snow"}},
			"forecast":{"forecastday":[{"date":"2026-01-09","day":{"totalsnow_cm":5.5}}]}}`))
	}))
	defer srv.Close()

	p := NewWeatherAPIProvider(testClient(), "secret")
	p.baseURL = srv.URL

	w, err := p.Fetch(context.Background(), 47.1, 11.1)
	require.NoError(t, err)
	assert.Equal(t, string(ConditionSnow), w.Current.Condition)
	require.Len(t, w.Forecast, 1)
	assert.Equal(t, 5.5, *w.Forecast[0].Snowfall)

	_, err = NewWeatherAPIProvider(testClient(), "").Fetch(context.Background(), 47.1, 11.1)
	assert.Error(t, err)
}

func TestOpenWeather_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"main":{"temp":1.5},"snow":{"3h":0.4},"weather":[{"main":"Clouds"}]}`))
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(testClient(), "k")
	p.baseURL = srv.URL

	w, err := p.Fetch(context.Background(), 47.1, 11.1)
	require.NoError(t, err)
	assert.Equal(t, 1.5, *w.Current.Temperature)
	assert.Equal(t, 0.4, *w.Current.Snow)
	assert.Equal(t, string(ConditionCloudy), w.Current.Condition)
	assert.Empty(t, w.Forecast)
}

type fakeProvider struct {
	name  string
	w     resort.Weather
	err   error
	calls atomic.Int32
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Fetch(context.Context, float64, float64) (resort.Weather, error) {
	f.calls.Add(1)
	return f.w, f.err
}

func temp(v float64) *float64 { return &v }

func TestService_FallbackChainFillsMissing(t *testing.T) {
	first := &fakeProvider{name: "a", err: errors.New("down")}
	second := &fakeProvider{name: "b", w: resort.Weather{
		Current: &resort.CurrentWeather{Condition: string(ConditionSnow)},
		Source:  "b",
	}}
	third := &fakeProvider{name: "c", w: resort.Weather{
		Current:  &resort.CurrentWeather{Temperature: temp(-3), Condition: string(ConditionClear)},
		Forecast: []resort.ForecastDay{{Date: "2026-01-09", Snowfall: temp(2)}},
		Source:   "c",
	}}

	svc := NewService(time.Minute, first, second, third)
	w, err := svc.Forecast(context.Background(), 47.1, 11.1)
	require.NoError(t, err)

	assert.Equal(t, "b", w.Source)
	assert.Equal(t, string(ConditionSnow), w.Current.Condition)
	assert.Equal(t, -3.0, *w.Current.Temperature)
	require.Len(t, w.Forecast, 1)
}

func TestService_StopsWhenComplete(t *testing.T) {
	full := &fakeProvider{name: "a", w: resort.Weather{
		Current:  &resort.CurrentWeather{Temperature: temp(-1)},
		Forecast: []resort.ForecastDay{{Date: "2026-01-09"}},
	}}
	backup := &fakeProvider{name: "b"}

	w, err := NewService(time.Minute, full, backup).Forecast(context.Background(), 47.1, 11.1)
	require.NoError(t, err)
	assert.Nil(t, w.LastSnowfall)
	assert.Equal(t, int32(0), backup.calls.Load())
}

func TestService_CachesPerRoundedCoordinate(t *testing.T) {
	p := &fakeProvider{name: "a", w: resort.Weather{
		Current:  &resort.CurrentWeather{Temperature: temp(-1)},
		Forecast: []resort.ForecastDay{{Date: "2026-01-09"}},
	}}
	svc := NewService(time.Minute, p)
	base := time.Date(2026, 1, 9, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	_, err := svc.Forecast(context.Background(), 47.1301, 11.0702)
	require.NoError(t, err)
	_, err = svc.Forecast(context.Background(), 47.1299, 11.0698)
	require.NoError(t, err)
	assert.Equal(t, int32(1), p.calls.Load())

	svc.now = func() time.Time { return base.Add(2 * time.Minute) }
	assert.Equal(t, 1, svc.Purge())
	_, err = svc.Forecast(context.Background(), 47.13, 11.07)
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestService_AllProvidersFail(t *testing.T) {
	svc := NewService(time.Minute,
		&fakeProvider{name: "a", err: errors.New("timeout")},
		&fakeProvider{name: "b", err: errors.New("quota")},
	)

	_, err := svc.Forecast(context.Background(), 47.1, 11.1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")

	_, err = NewService(time.Minute).Forecast(context.Background(), 1, 1)
	assert.Error(t, err)
}
