package cli

import (
	"context"
	"net/http"
	"time"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/snow-status-aggregation/internal/analytics"
	"github.com/i474232898/snow-status-aggregation/internal/config"
	"github.com/i474232898/snow-status-aggregation/internal/enrichment/traffic"
	"github.com/i474232898/snow-status-aggregation/internal/enrichment/weather"
	"github.com/i474232898/snow-status-aggregation/internal/logger"
	"github.com/i474232898/snow-status-aggregation/internal/resort"
	"github.com/i474232898/snow-status-aggregation/internal/resort/sources"
	"github.com/i474232898/snow-status-aggregation/internal/store"
	"github.com/i474232898/snow-status-aggregation/internal/transport"
)

// runtime holds the wired components shared by serve and fetch.
type runtime struct {
	cfg     *config.AppConfig
	defs    []resort.Definition
	service *resort.Service
	weather *weather.Service

	// nil when traffic enrichment is not configured
	refresher *traffic.Refresher
	// nil when analytics is not configured or unreachable
	clicks *analytics.Store
}

func newRuntime(ctx context.Context, cfg *config.AppConfig, withAnalytics bool) (*runtime, error) {
	defs, err := config.LoadResorts(cfg.ResortsFile)
	if err != nil {
		return nil, err
	}

	// Shared HTTP client for outbound calls. Resort adapters do not retry
	// within a cycle; enrichment upstreams get a small retry budget.
	httpClient := transport.New(transport.Config{
		Client:    &http.Client{},
		Timeout:   cfg.FetchTimeout,
		UserAgent: cfg.UserAgent,
	})
	enrichClient := httpClient.WithRetries(2)

	registry, err := sources.BuildRegistry(defs, sources.Deps{
		HTTP:          httpClient,
		ChromeBin:     cfg.ChromeBin,
		RenderTimeout: cfg.CycleDeadline - time.Second,
	})
	if err != nil {
		return nil, err
	}

	// Open-Meteo needs no key and always leads the fallback chain.
	provs := []weather.Provider{weather.NewOpenMeteoProvider(enrichClient)}
	if cfg.WeatherAPIKey != "" {
		provs = append(provs, weather.NewWeatherAPIProvider(enrichClient, cfg.WeatherAPIKey))
	}
	if cfg.OpenWeatherAPIKey != "" {
		provs = append(provs, weather.NewOpenWeatherProvider(enrichClient, cfg.OpenWeatherAPIKey))
	}
	weatherSvc := weather.NewService(cfg.WeatherCacheTTL, provs...)

	rt := &runtime{cfg: cfg, defs: defs, weather: weatherSvc}

	opts := resort.Options{
		CycleDeadline:  cfg.CycleDeadline,
		MaxConcurrency: cfg.MaxConcurrency,
		Weather:        weatherSvc,
	}

	if cfg.TrafficEnabled() {
		if refresher, trafficStore, err := newTraffic(cfg, defs, enrichClient); err != nil {
			logger.Warn("traffic enrichment disabled: %v", err)
		} else {
			rt.refresher = refresher
			opts.Traffic = trafficStore
		}
	}

	rt.service = resort.NewService(registry, store.NewLiveCache(), opts)

	if withAnalytics && cfg.AnalyticsDriver != "" {
		clicks, err := analytics.Open(ctx, cfg.AnalyticsDriver, cfg.AnalyticsDSN)
		if err != nil {
			logger.Warn("analytics store unavailable, click routes will return 503: %v", err)
		} else {
			rt.clicks = clicks
		}
	}

	logger.Info("registry loaded: %d resorts, %d weather providers, traffic=%t, analytics=%t",
		len(defs), len(provs), rt.refresher != nil, rt.clicks != nil)
	return rt, nil
}

func newTraffic(cfg *config.AppConfig, defs []resort.Definition, client *transport.Client) (*traffic.Refresher, *traffic.Store, error) {
	geocoder.ApiKey = cfg.GeocoderAPIKey

	origin, err := traffic.ResolveOrigin(cfg.TrafficOrigin, geocoder.Address{
		Street:  cfg.OriginStreet,
		City:    cfg.OriginCity,
		Country: cfg.OriginCountry,
	}, nil)
	if err != nil {
		return nil, nil, err
	}

	trafficStore := traffic.NewStore(cfg.TrafficHistorySize)
	refresher := traffic.NewRefresher(
		traffic.NewTomTomRouter(client, cfg.TrafficAPIKey),
		trafficStore,
		traffic.NewBudget(cfg.TrafficDailyBudget),
		origin,
		traffic.RoutesFrom(defs),
	)
	return refresher, trafficStore, nil
}

func (r *runtime) Close() {
	if r.clicks != nil {
		if err := r.clicks.Close(); err != nil {
			logger.Warn("closing analytics store: %v", err)
		}
	}
}
