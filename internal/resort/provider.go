package resort

import (
	"context"
)

// Parser produces one Record for one resort. Parse never returns an error:
// failures come back as a record with StatusError.
type Parser interface {
	Definition() Definition
	Parse(ctx context.Context) Record
}

// Cache is the contract the live cache must satisfy.
type Cache interface {
	Get(resortID string) (CacheEntry, bool)
	Put(resortID string, rec Record)
}

// WeatherLookup resolves a forecast for coordinates.
type WeatherLookup interface {
	Forecast(ctx context.Context, lat, lon float64) (Weather, error)
}

// TrafficLookup returns the cached travel-time entry for a traffic id.
// It must not trigger metered upstream calls.
type TrafficLookup interface {
	Lookup(trafficID string) (TrafficEntry, bool)
}
