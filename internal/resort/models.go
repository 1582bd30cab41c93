package resort

import (
	"time"
)

// RecordStatus describes how trustworthy a Record is.
type RecordStatus string

const (
	StatusLive        RecordStatus = "live"
	StatusStatic      RecordStatus = "static"
	StatusMaintenance RecordStatus = "maintenance"
	StatusStale       RecordStatus = "stale"
	StatusError       RecordStatus = "error"
)

// FacilityStatus is the canonical open/closed state of a lift or slope.
type FacilityStatus string

const (
	FacilityOpen    FacilityStatus = "open"
	FacilityClosed  FacilityStatus = "closed"
	FacilityUnknown FacilityStatus = "unknown"
)

// FacilityKind is the structural class of a facility reported by a vendor.
type FacilityKind string

const (
	KindLift  FacilityKind = "lift"
	KindSlope FacilityKind = "slope"
	KindOther FacilityKind = "other"
)

// Facility is one named lift or slope.
type Facility struct {
	Name   string         `json:"name"`
	Status FacilityStatus `json:"status"`
}

// Snow holds snow depth in centimetres as reported by the resort or a weather service.
type Snow struct {
	Valley       *float64  `json:"valley"`
	Mountain     *float64  `json:"mountain"`
	LastSnowfall *string   `json:"lastSnowfall"`
	Source       string    `json:"source"`
	Timestamp    time.Time `json:"timestamp"`
}

// CurrentWeather is the present condition at a resort.
type CurrentWeather struct {
	Temperature *float64 `json:"temp,omitempty"`
	Condition   string   `json:"condition,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	Snow        *float64 `json:"snow,omitempty"`
}

// ForecastDay is the expected snowfall (cm) for one calendar day.
type ForecastDay struct {
	Date     string   `json:"date"`
	Snowfall *float64 `json:"snowfall"`
}

// Weather is the weather enrichment attached to a record.
type Weather struct {
	Current      *CurrentWeather `json:"current,omitempty"`
	Forecast     []ForecastDay   `json:"forecast,omitempty"`
	LastSnowfall *string         `json:"lastSnowfall,omitempty"`
	Source       string          `json:"source"`
	FetchedAt    time.Time       `json:"fetchedAt"`
}

// TrafficSample is one travel-time observation in seconds.
type TrafficSample struct {
	Duration int       `json:"duration"`
	Delay    int       `json:"delay"`
	At       time.Time `json:"at"`
}

// TrafficStats summarizes accumulated travel-time samples.
type TrafficStats struct {
	Samples      int     `json:"samples"`
	MeanDuration float64 `json:"meanDuration"`
	MinDuration  int     `json:"minDuration"`
	MaxDuration  int     `json:"maxDuration"`
	MeanDelay    float64 `json:"meanDelay"`
}

// TrafficEntry is what the travel-time service holds for one traffic id.
type TrafficEntry struct {
	Duration     int             `json:"duration"`
	Delay        int             `json:"delay"`
	History      []TrafficSample `json:"trafficHistory"`
	HistoryStats *TrafficStats   `json:"historyStats,omitempty"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Traffic is the travel-time enrichment attached to a record.
type Traffic struct {
	Duration     int           `json:"duration"`
	Delay        int           `json:"delay"`
	HistoryStats *TrafficStats `json:"historyStats,omitempty"`
}

// Record is the canonical resort status produced by every parser.
type Record struct {
	ResortID   string       `json:"resortId"`
	Name       string       `json:"name,omitempty"`
	LiftsOpen  *int         `json:"liftsOpen"`
	LiftsTotal *int         `json:"liftsTotal"`
	Status     RecordStatus `json:"status"`
	Lifts      []Facility   `json:"lifts,omitempty"`
	Slopes     []Facility   `json:"slopes,omitempty"`
	Snow       *Snow        `json:"snow,omitempty"`
	Weather    *Weather     `json:"weather,omitempty"`
	Traffic    *Traffic     `json:"traffic,omitempty"`
	Source     string       `json:"source"`
	FetchedAt  time.Time    `json:"fetchedAt"`
	CachedAt   *time.Time   `json:"cachedAt,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// IsError reports whether the record is a failure placeholder.
func (r Record) IsError() bool {
	return r.Status == StatusError
}

// ErrorRecord builds a failure placeholder. Numeric fields stay nil.
func ErrorRecord(def Definition, err error, at time.Time) Record {
	rec := Record{
		ResortID:  def.ID,
		Name:      def.Name,
		Status:    StatusError,
		Source:    def.Source(),
		FetchedAt: at.UTC(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}

// CacheEntry is a last-known-good record held by the live cache.
type CacheEntry struct {
	Record   Record    `json:"record"`
	CachedAt time.Time `json:"cachedAt"`
}

// SourceHealth tracks fetch outcomes for one resort across cycles.
type SourceHealth struct {
	ResortID            string    `json:"resortId"`
	Vendor              string    `json:"vendor"`
	LastAttempt         time.Time `json:"lastAttempt"`
	LastSuccess         time.Time `json:"lastSuccess,omitempty"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	LastError           string    `json:"lastError,omitempty"`

	// CachedAt is when the record served on failure was stored; nil when
	// nothing is cached yet.
	CachedAt *time.Time `json:"cachedAt,omitempty"`
}
