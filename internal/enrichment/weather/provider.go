package weather

import (
	"context"
	"strings"

	"github.com/i474232898/snow-status-aggregation/internal/resort"
)

// Provider abstracts a weather data source (e.g. Open-Meteo, WeatherAPI, OpenWeatherMap).
type Provider interface {
	Name() string
	Fetch(ctx context.Context, lat, lon float64) (resort.Weather, error)
}

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionFog     Condition = "fog"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
)

var icons = map[Condition]string{
	ConditionClear:  "☀️",
	ConditionCloudy: "☁️",
	ConditionFog:    "🌫️",
	ConditionRain:   "🌧️",
	ConditionSnow:   "🌨️",
	ConditionStorm:  "⛈️",
}

// Icon returns a display icon, empty for unknown.
func (c Condition) Icon() string {
	return icons[c]
}

func fromText(text string) Condition {
	t := strings.ToLower(text)
	switch {
	case t == "":
		return ConditionUnknown
	case strings.Contains(t, "snow") || strings.Contains(t, "sleet") || strings.Contains(t, "blizzard"):
		return ConditionSnow
	case strings.Contains(t, "thunder") || strings.Contains(t, "storm"):
		return ConditionStorm
	case strings.Contains(t, "rain") || strings.Contains(t, "shower") || strings.Contains(t, "drizzle"):
		return ConditionRain
	case strings.Contains(t, "fog") || strings.Contains(t, "mist") || strings.Contains(t, "haze"):
		return ConditionFog
	case strings.Contains(t, "cloud") || strings.Contains(t, "overcast"):
		return ConditionCloudy
	case strings.Contains(t, "sunny") || strings.Contains(t, "clear"):
		return ConditionClear
	default:
		return ConditionUnknown
	}
}

func current(temp *float64, cond Condition, snow *float64) *resort.CurrentWeather {
	return &resort.CurrentWeather{
		Temperature: temp,
		Condition:   string(cond),
		Icon:        cond.Icon(),
		Snow:        snow,
	}
}
