package weather

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/i474232898/snow-status-aggregation/internal/resort"
	"github.com/i474232898/snow-status-aggregation/internal/transport"
)

// OpenMeteoProvider implements Provider for Open-Meteo. It needs no key and
// is the only source that reports past snowfall.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	http    *transport.Client
	now     func() time.Time
}

func NewOpenMeteoProvider(client *transport.Client) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "open-meteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		http:    client,
		now:     time.Now,
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, lat, lon float64) (resort.Weather, error) {
	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", lat))
	values.Set("longitude", fmt.Sprintf("%f", lon))
	values.Set("current", "temperature_2m,weather_code,snowfall")
	values.Set("daily", "snowfall_sum")
	values.Set("past_days", "7")
	values.Set("forecast_days", "7")
	values.Set("timezone", "UTC")

	var payload struct {
		Current struct {
			Temperature *float64 `json:"temperature_2m"`
			WeatherCode *int     `json:"weather_code"`
			Snowfall    *float64 `json:"snowfall"`
		} `json:"current"`
		Daily struct {
			Time        []string   `json:"time"`
			SnowfallSum []*float64 `json:"snowfall_sum"`
		} `json:"daily"`
	}

	u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
	if err := p.http.GetJSON(ctx, u, nil, &payload); err != nil {
		return resort.Weather{}, err
	}

	cond := ConditionUnknown
	if payload.Current.WeatherCode != nil {
		cond = mapOpenMeteoCondition(*payload.Current.WeatherCode)
	}

	now := p.now().UTC()
	today := now.Format("2006-01-02")

	w := resort.Weather{
		Current:   current(payload.Current.Temperature, cond, payload.Current.Snowfall),
		Source:    p.name,
		FetchedAt: now,
	}

	for i, day := range payload.Daily.Time {
		var sum *float64
		if i < len(payload.Daily.SnowfallSum) {
			sum = payload.Daily.SnowfallSum[i]
		}
		// ISO dates compare lexically.
		if day >= today {
			w.Forecast = append(w.Forecast, resort.ForecastDay{Date: day, Snowfall: sum})
		}
		if day <= today && sum != nil && *sum > 0 {
			d := day
			w.LastSnowfall = &d
		}
	}
	return w, nil
}

// mapOpenMeteoCondition maps WMO weather codes.
func mapOpenMeteoCondition(code int) Condition {
	switch {
	case code == 0:
		return ConditionClear
	case code >= 1 && code <= 3:
		return ConditionCloudy
	case code == 45 || code == 48:
		return ConditionFog
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return ConditionSnow
	case code >= 95:
		return ConditionStorm
	default:
		return ConditionUnknown
	}
}
