package weather

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/i474232898/snow-status-aggregation/internal/resort"
	"github.com/i474232898/snow-status-aggregation/internal/transport"
)

// OpenWeatherProvider implements Provider for OpenWeatherMap current
// conditions. It has no forecast, so it only fills the current block.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	http    *transport.Client
	now     func() time.Time
}

func NewOpenWeatherProvider(client *transport.Client, apiKey string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/2.5/weather",
		http:    client,
		now:     time.Now,
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

func (p *OpenWeatherProvider) Fetch(ctx context.Context, lat, lon float64) (resort.Weather, error) {
	if p.apiKey == "" {
		return resort.Weather{}, fmt.Errorf("openweather api key is not configured")
	}

	values := url.Values{}
	values.Set("appid", p.apiKey)
	values.Set("units", "metric")
	values.Set("lat", fmt.Sprintf("%f", lat))
	values.Set("lon", fmt.Sprintf("%f", lon))

	var payload struct {
		Main struct {
			Temp *float64 `json:"temp"`
		} `json:"main"`
		Snow struct {
			OneH   *float64 `json:"1h"`
			ThreeH *float64 `json:"3h"`
		} `json:"snow"`
		Weather []struct {
			Main string `json:"main"`
		} `json:"weather"`
	}

	u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
	if err := p.http.GetJSON(ctx, u, nil, &payload); err != nil {
		return resort.Weather{}, err
	}

	// OpenWeather reports snow in mm of water; we pass it through as-is.
	snow := payload.Snow.OneH
	if snow == nil {
		snow = payload.Snow.ThreeH
	}

	cond := ConditionUnknown
	if len(payload.Weather) > 0 {
		cond = mapOpenWeatherCondition(payload.Weather[0].Main)
	}

	return resort.Weather{
		Current:   current(payload.Main.Temp, cond, snow),
		Source:    p.name,
		FetchedAt: p.now().UTC(),
	}, nil
}

func mapOpenWeatherCondition(main string) Condition {
	switch main {
	case "Clear":
		return ConditionClear
	case "Clouds":
		return ConditionCloudy
	case "Rain", "Drizzle":
		return ConditionRain
	case "Snow":
		return ConditionSnow
	case "Thunderstorm":
		return ConditionStorm
	case "Mist", "Fog", "Haze":
		return ConditionFog
	default:
		return ConditionUnknown
	}
}
