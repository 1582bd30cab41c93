package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/snow-status-aggregation/internal/logger"
)

type AppConfig struct {
	Port string

	// FetchInterval controls how often a full aggregation cycle runs.
	FetchInterval time.Duration

	// CycleDeadline bounds one cycle; FetchTimeout bounds one upstream request.
	CycleDeadline  time.Duration
	FetchTimeout   time.Duration
	MaxConcurrency int
	UserAgent      string

	ResortsFile string
	ChromeBin   string

	WeatherCacheTTL   time.Duration
	WeatherAPIKey     string
	OpenWeatherAPIKey string

	TrafficAPIKey      string
	TrafficInterval    time.Duration
	TrafficDailyBudget int
	TrafficHistorySize int
	TrafficOrigin      string // "lat,lon"
	OriginStreet       string
	OriginCity         string
	OriginCountry      string
	GeocoderAPIKey     string

	AnalyticsDriver string
	AnalyticsDSN    string

	LogLevel string
	LogJSON  bool
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded: %v", err)
	}

	var err error
	cfg := &AppConfig{
		Port:              getenvDefault("PORT", "8080"),
		UserAgent:         os.Getenv("USER_AGENT"),
		ResortsFile:       os.Getenv("RESORTS_FILE"),
		ChromeBin:         os.Getenv("CHROME_BIN"),
		WeatherAPIKey:     os.Getenv("WEATHERAPI_API_KEY"),
		OpenWeatherAPIKey: os.Getenv("OPENWEATHER_API_KEY"),
		TrafficAPIKey:     os.Getenv("TRAFFIC_API_KEY"),
		TrafficOrigin:     os.Getenv("TRAFFIC_ORIGIN"),
		OriginStreet:      os.Getenv("TRAFFIC_ORIGIN_STREET"),
		OriginCity:        os.Getenv("TRAFFIC_ORIGIN_CITY"),
		OriginCountry:     os.Getenv("TRAFFIC_ORIGIN_COUNTRY"),
		GeocoderAPIKey:    os.Getenv("GEOCODER_API_KEY"),
		AnalyticsDriver:   os.Getenv("ANALYTICS_DRIVER"),
		AnalyticsDSN:      os.Getenv("ANALYTICS_DSN"),
		LogLevel:          getenvDefault("LOG_LEVEL", "info"),
	}

	durations := []struct {
		key  string
		def  string
		dest *time.Duration
	}{
		{"FETCH_INTERVAL", "10m", &cfg.FetchInterval},
		{"CYCLE_DEADLINE", "25s", &cfg.CycleDeadline},
		{"FETCH_TIMEOUT", "9s", &cfg.FetchTimeout},
		{"WEATHER_CACHE_TTL", "30m", &cfg.WeatherCacheTTL},
		{"TRAFFIC_INTERVAL", "30m", &cfg.TrafficInterval},
	}
	for _, d := range durations {
		if *d.dest, err = getenvDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	ints := []struct {
		key  string
		def  int
		dest *int
	}{
		{"MAX_CONCURRENCY", 16, &cfg.MaxConcurrency},
		{"TRAFFIC_DAILY_BUDGET", 2000, &cfg.TrafficDailyBudget},
		{"TRAFFIC_HISTORY_SIZE", 48, &cfg.TrafficHistorySize},
	}
	for _, i := range ints {
		if *i.dest, err = getenvInt(i.key, i.def); err != nil {
			return nil, err
		}
	}

	if cfg.LogJSON, err = getenvBool("LOG_JSON", false); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	if c.FetchTimeout >= c.CycleDeadline {
		return fmt.Errorf("FETCH_TIMEOUT (%s) must be shorter than CYCLE_DEADLINE (%s)", c.FetchTimeout, c.CycleDeadline)
	}
	if c.CycleDeadline >= c.FetchInterval {
		return fmt.Errorf("CYCLE_DEADLINE (%s) must be shorter than FETCH_INTERVAL (%s)", c.CycleDeadline, c.FetchInterval)
	}
	switch c.AnalyticsDriver {
	case "", "sqlite3", "postgres":
	default:
		return fmt.Errorf("invalid ANALYTICS_DRIVER %q: want sqlite3 or postgres", c.AnalyticsDriver)
	}
	if c.AnalyticsDriver != "" && c.AnalyticsDSN == "" {
		return fmt.Errorf("ANALYTICS_DSN is required when ANALYTICS_DRIVER is set")
	}
	return nil
}

// TrafficEnabled reports whether travel-time enrichment can run.
func (c *AppConfig) TrafficEnabled() bool {
	return c.TrafficAPIKey != "" && (c.TrafficOrigin != "" || c.OriginCity != "" || c.OriginStreet != "")
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return n, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
