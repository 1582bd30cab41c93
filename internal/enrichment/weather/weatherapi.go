package weather

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/i474232898/snow-status-aggregation/internal/resort"
	"github.com/i474232898/snow-status-aggregation/internal/transport"
)

// WeatherAPIProvider implements Provider for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	http    *transport.Client
	now     func() time.Time
}

func NewWeatherAPIProvider(client *transport.Client, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1/forecast.json",
		http:    client,
		now:     time.Now,
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) Fetch(ctx context.Context, lat, lon float64) (resort.Weather, error) {
	if p.apiKey == "" {
		return resort.Weather{}, fmt.Errorf("weatherapi api key is not configured")
	}

	values := url.Values{}
	values.Set("key", p.apiKey)
	// WeatherAPI uses "q" for location; it accepts "lat,lon".
	values.Set("q", fmt.Sprintf("%f,%f", lat, lon))
	values.Set("days", "3")

	var payload struct {
		Current struct {
			TempC     *float64 `json:"temp_c"`
			Condition struct {
				Text string `json:"text"`
			} `json:"condition"`
		} `json:"current"`
		Forecast struct {
			ForecastDay []struct {
				Date string `json:"date"`
				Day  struct {
					TotalSnowCm *float64 `json:"totalsnow_cm"`
				} `json:"day"`
			} `json:"forecastday"`
		} `json:"forecast"`
	}

	u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
	if err := p.http.GetJSON(ctx, u, nil, &payload); err != nil {
		return resort.Weather{}, err
	}

	w := resort.Weather{
		Current:   current(payload.Current.TempC, fromText(payload.Current.Condition.Text), nil),
		Source:    p.name,
		FetchedAt: p.now().UTC(),
	}
	for _, d := range payload.Forecast.ForecastDay {
		w.Forecast = append(w.Forecast, resort.ForecastDay{Date: d.Date, Snowfall: d.Day.TotalSnowCm})
	}
	return w, nil
}
