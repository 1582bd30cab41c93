package traffic

import (
	"sync"

	"github.com/i474232898/snow-status-aggregation/internal/resort"
)

const defaultHistorySize = 48

// Store keeps the latest travel time and a bounded sample history per
// traffic id. Lookups never call upstream.
type Store struct {
	mu      sync.RWMutex
	size    int
	entries map[string]*resort.TrafficEntry
}

func NewStore(historySize int) *Store {
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	return &Store{
		size:    historySize,
		entries: make(map[string]*resort.TrafficEntry),
	}
}

// Record appends a sample, dropping the oldest beyond the history size.
func (s *Store) Record(id string, sample resort.TrafficSample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		e = &resort.TrafficEntry{}
		s.entries[id] = e
	}
	e.Duration = sample.Duration
	e.Delay = sample.Delay
	e.UpdatedAt = sample.At
	e.History = append(e.History, sample)
	if over := len(e.History) - s.size; over > 0 {
		e.History = append([]resort.TrafficSample(nil), e.History[over:]...)
	}
}

// Lookup implements resort.TrafficLookup.
func (s *Store) Lookup(id string) (resort.TrafficEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return resort.TrafficEntry{}, false
	}
	out := *e
	out.History = append([]resort.TrafficSample(nil), e.History...)
	out.HistoryStats = Stats(out.History)
	return out, true
}

// Stats summarizes samples; nil when there are none.
func Stats(samples []resort.TrafficSample) *resort.TrafficStats {
	if len(samples) == 0 {
		return nil
	}

	st := &resort.TrafficStats{
		Samples:     len(samples),
		MinDuration: samples[0].Duration,
		MaxDuration: samples[0].Duration,
	}
	var sumDuration, sumDelay int
	for _, s := range samples {
		sumDuration += s.Duration
		sumDelay += s.Delay
		if s.Duration < st.MinDuration {
			st.MinDuration = s.Duration
		}
		if s.Duration > st.MaxDuration {
			st.MaxDuration = s.Duration
		}
	}
	n := float64(len(samples))
	st.MeanDuration = float64(sumDuration) / n
	st.MeanDelay = float64(sumDelay) / n
	return st
}
