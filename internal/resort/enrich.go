package resort

import (
	"context"
	"sync"

	"github.com/i474232898/snow-status-aggregation/internal/logger"
)

// enrichAll merges weather and traffic enrichment into records in place.
// Enrichment is additive: a failed lookup leaves the record untouched.
func (s *Service) enrichAll(ctx context.Context, parsers []Parser, records []Record) {
	if s.weather == nil && s.traffic == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.enrichTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for i, p := range parsers {
		wg.Add(1)
		go func(i int, def Definition) {
			defer wg.Done()
			records[i] = s.enrichOne(ctx, def, records[i])
		}(i, p.Definition())
	}
	wg.Wait()
}

func (s *Service) enrichOne(ctx context.Context, def Definition, rec Record) Record {
	if s.weather != nil && def.HasCoordinates() {
		w, err := s.weather.Forecast(ctx, *def.Lat, *def.Lon)
		if err != nil {
			// Log and continue; enrichment never downgrades a record.
			logger.Debug("weather enrichment failed for %s: %v", def.ID, err)
		} else {
			rec = mergeWeather(rec, w)
		}
	}

	if s.traffic != nil && def.TrafficID != "" {
		if entry, ok := s.traffic.Lookup(def.TrafficID); ok {
			rec.Traffic = &Traffic{
				Duration:     entry.Duration,
				Delay:        entry.Delay,
				HistoryStats: entry.HistoryStats,
			}
		}
	}

	return rec
}

// mergeWeather attaches the forecast and fills a missing last-snowfall date.
// The record's own snow depths always win over the weather service.
func mergeWeather(rec Record, w Weather) Record {
	wc := w
	rec.Weather = &wc

	if w.LastSnowfall == nil {
		return rec
	}

	if rec.Snow == nil {
		rec.Snow = &Snow{
			LastSnowfall: w.LastSnowfall,
			Source:       w.Source,
			Timestamp:    w.FetchedAt,
		}
		return rec
	}

	if rec.Snow.LastSnowfall == nil {
		snow := *rec.Snow
		snow.LastSnowfall = w.LastSnowfall
		rec.Snow = &snow
	}
	return rec
}
