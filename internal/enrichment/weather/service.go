package weather

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/i474232898/snow-status-aggregation/internal/logger"
	"github.com/i474232898/snow-status-aggregation/internal/resort"
)

const defaultTTL = 30 * time.Minute

// Service asks providers in order and keeps one result per rounded
// coordinate for the TTL. Later providers only fill what earlier ones left
// empty.
type Service struct {
	providers []Provider
	ttl       time.Duration
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

type entry struct {
	weather resort.Weather
	at      time.Time
}

// NewService creates a new Service. Providers are tried in the given order.
func NewService(ttl time.Duration, providers ...Provider) *Service {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Service{
		providers: providers,
		ttl:       ttl,
		now:       time.Now,
		entries:   make(map[string]entry),
	}
}

// Forecast implements resort.WeatherLookup.
func (s *Service) Forecast(ctx context.Context, lat, lon float64) (resort.Weather, error) {
	key := cacheKey(lat, lon)

	s.mu.Lock()
	if e, ok := s.entries[key]; ok && s.now().Sub(e.at) < s.ttl {
		s.mu.Unlock()
		return e.weather, nil
	}
	s.mu.Unlock()

	if len(s.providers) == 0 {
		return resort.Weather{}, fmt.Errorf("no weather providers configured")
	}

	var (
		merged *resort.Weather
		errs   []error
	)
	for _, p := range s.providers {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		w, err := p.Fetch(ctx, lat, lon)
		if err != nil {
			// Log and continue; the next provider may answer.
			logger.Debug("weather provider %s failed for %s: %v", p.Name(), key, err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}

		if merged == nil {
			merged = &w
		} else {
			fillMissing(merged, w)
		}
		if complete(*merged) {
			break
		}
	}

	if merged == nil {
		return resort.Weather{}, errors.Join(errs...)
	}

	s.mu.Lock()
	s.entries[key] = entry{weather: *merged, at: s.now()}
	s.mu.Unlock()

	return *merged, nil
}

// Purge drops entries older than the TTL.
func (s *Service) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, e := range s.entries {
		if s.now().Sub(e.at) >= s.ttl {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// cacheKey rounds to two decimals (about 1 km), so neighbouring resorts share a forecast.
func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.2f,%.2f", lat, lon)
}

// complete ignores LastSnowfall: it is nil whenever no snow fell in the
// lookback window, and only Open-Meteo reports it.
func complete(w resort.Weather) bool {
	return w.Current != nil && w.Current.Temperature != nil && len(w.Forecast) > 0
}

// fillMissing copies fields from src that dst does not have yet.
func fillMissing(dst *resort.Weather, src resort.Weather) {
	switch {
	case dst.Current == nil:
		dst.Current = src.Current
	case src.Current != nil:
		c := *dst.Current
		if c.Temperature == nil {
			c.Temperature = src.Current.Temperature
		}
		if c.Condition == "" || c.Condition == string(ConditionUnknown) {
			c.Condition = src.Current.Condition
			c.Icon = src.Current.Icon
		}
		if c.Snow == nil {
			c.Snow = src.Current.Snow
		}
		dst.Current = &c
	}
	if len(dst.Forecast) == 0 {
		dst.Forecast = src.Forecast
	}
	if dst.LastSnowfall == nil {
		dst.LastSnowfall = src.LastSnowfall
	}
}
