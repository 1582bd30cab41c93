package resort

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/i474232898/snow-status-aggregation/internal/logger"
)

const (
	defaultCycleDeadline = 25 * time.Second
	defaultEnrichTimeout = 10 * time.Second
)

// Options tunes the aggregation cycle.
type Options struct {
	// CycleDeadline bounds the parse phase of one cycle regardless of the slowest parser.
	CycleDeadline time.Duration

	// EnrichTimeout bounds the enrichment phase.
	EnrichTimeout time.Duration

	// MaxConcurrency caps in-flight parsers (0 = unbounded).
	MaxConcurrency int

	Weather WeatherLookup
	Traffic TrafficLookup
}

// Service fans out to every registered parser, falls back to the live cache
// for failed resorts and merges enrichment into the result.
type Service struct {
	registry *Registry
	cache    Cache
	weather  WeatherLookup
	traffic  TrafficLookup

	deadline      time.Duration
	enrichTimeout time.Duration
	sem           *semaphore.Weighted
	now           func() time.Time

	mu     sync.RWMutex
	latest []Record
	health map[string]*SourceHealth
}

// NewService creates a new Service.
func NewService(registry *Registry, cache Cache, opts Options) *Service {
	s := &Service{
		registry:      registry,
		cache:         cache,
		weather:       opts.Weather,
		traffic:       opts.Traffic,
		deadline:      opts.CycleDeadline,
		enrichTimeout: opts.EnrichTimeout,
		now:           time.Now,
		health:        make(map[string]*SourceHealth, registry.Len()),
	}
	if s.deadline <= 0 {
		s.deadline = defaultCycleDeadline
	}
	if s.enrichTimeout <= 0 {
		s.enrichTimeout = defaultEnrichTimeout
	}
	if opts.MaxConcurrency > 0 {
		s.sem = semaphore.NewWeighted(int64(opts.MaxConcurrency))
	}
	return s
}

type parseResult struct {
	idx int
	rec Record
}

// AggregateAll runs one aggregation cycle. It never fails as a whole: every
// registered resort yields exactly one record, in registry order.
func (s *Service) AggregateAll(ctx context.Context) []Record {
	log := logger.With("cycle", uuid.NewString())
	start := s.now()

	parsers := s.registry.Parsers()
	log.Debugf("aggregation started for %d resorts", len(parsers))

	cycleCtx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	// Buffered so parsers finishing after the deadline never block.
	results := make(chan parseResult, len(parsers))
	for i, p := range parsers {
		go func(i int, p Parser) {
			results <- parseResult{idx: i, rec: s.parseOne(cycleCtx, p)}
		}(i, p)
	}

	records := make([]Record, len(parsers))
	settled := make([]bool, len(parsers))
	remaining := len(parsers)

wait:
	for remaining > 0 {
		select {
		case r := <-results:
			records[r.idx] = r.rec
			settled[r.idx] = true
			remaining--
		case <-cycleCtx.Done():
			break wait
		}
	}

drain:
	for remaining > 0 {
		select {
		case r := <-results:
			records[r.idx] = r.rec
			settled[r.idx] = true
			remaining--
		default:
			break drain
		}
	}

	var failed, stale int
	for i, p := range parsers {
		def := p.Definition()
		if !settled[i] {
			log.Warnf("resort %s did not settle within %s", def.ID, s.deadline)
			records[i] = ErrorRecord(def, &TimeoutError{URL: def.Source(), After: s.deadline}, s.now())
		}
		if records[i].IsError() {
			failed++
		}
		records[i] = s.settle(def, records[i])
		if records[i].Status == StatusStale {
			stale++
		}
	}

	s.enrichAll(ctx, parsers, records)

	s.mu.Lock()
	s.latest = records
	s.mu.Unlock()

	log.Infof("aggregation finished in %s: %d resorts, %d failed, %d served stale",
		s.now().Sub(start).Truncate(time.Millisecond), len(records), failed, stale)

	return cloneRecords(records)
}

// Latest returns the merged list of the most recent cycle. Before the first
// cycle it is assembled from the live cache and placeholders.
func (s *Service) Latest() []Record {
	s.mu.RLock()
	var latest []Record
	if s.latest != nil {
		latest = cloneRecords(s.latest)
	}
	s.mu.RUnlock()

	if latest != nil {
		return latest
	}
	return s.placeholders()
}

// placeholders assembles a list from the live cache, marking every entry
// stale, with error records for resorts never fetched.
func (s *Service) placeholders() []Record {
	parsers := s.registry.Parsers()
	out := make([]Record, 0, len(parsers))
	for _, p := range parsers {
		def := p.Definition()
		if entry, ok := s.cache.Get(def.ID); ok {
			out = append(out, staleRecord(entry, ""))
			continue
		}
		out = append(out, ErrorRecord(def, fmt.Errorf("not fetched yet"), s.now()))
	}
	return out
}

// Get returns the record for one resort from the most recent list.
func (s *Service) Get(id string) (Record, error) {
	if _, ok := s.registry.Get(id); !ok {
		return Record{}, ErrUnknownResort
	}
	for _, rec := range s.Latest() {
		if rec.ResortID == id {
			return rec, nil
		}
	}
	return Record{}, ErrUnknownResort
}

// Refresh parses one resort on demand, bypassing the full cycle. The result
// goes through the same cache fallback and enrichment as a cycle entry.
func (s *Service) Refresh(ctx context.Context, id string) (Record, error) {
	p, ok := s.registry.Get(id)
	if !ok {
		return Record{}, ErrUnknownResort
	}
	def := p.Definition()

	parseCtx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	rec := s.settle(def, s.parseOne(parseCtx, p))

	enrichCtx, cancelEnrich := context.WithTimeout(ctx, s.enrichTimeout)
	defer cancelEnrich()
	rec = s.enrichOne(enrichCtx, def, rec)

	s.mu.Lock()
	if s.latest == nil {
		s.latest = s.placeholders()
	}
	for i := range s.latest {
		if s.latest[i].ResortID == id {
			s.latest[i] = rec
		}
	}
	s.mu.Unlock()

	return rec, nil
}

// Health returns per-resort fetch outcomes in registry order.
func (s *Service) Health() []SourceHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SourceHealth, 0, s.registry.Len())
	for _, p := range s.registry.Parsers() {
		def := p.Definition()
		h := SourceHealth{ResortID: def.ID, Vendor: def.Vendor}
		if known, ok := s.health[def.ID]; ok {
			h = *known
		}
		if entry, ok := s.cache.Get(def.ID); ok {
			cachedAt := entry.CachedAt
			h.CachedAt = &cachedAt
		}
		out = append(out, h)
	}
	return out
}

// parseOne runs a parser, converting panics and semaphore timeouts into error records.
func (s *Service) parseOne(ctx context.Context, p Parser) (rec Record) {
	def := p.Definition()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("parser for %s panicked: %v", def.ID, r)
			rec = ErrorRecord(def, fmt.Errorf("parser panic: %v", r), s.now())
		}
	}()

	if s.sem != nil {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return ErrorRecord(def, &TimeoutError{URL: def.Source(), After: s.deadline}, s.now())
		}
		defer s.sem.Release(1)
	}

	rec = p.Parse(ctx)
	if rec.ResortID == "" {
		rec.ResortID = def.ID
	}
	return rec
}

// settle writes successful records through to the cache and substitutes
// the last cached entry (or a placeholder) for failed ones.
func (s *Service) settle(def Definition, rec Record) Record {
	s.recordHealth(def, rec)

	if !rec.IsError() {
		s.cache.Put(def.ID, rec)
		return rec
	}

	if entry, ok := s.cache.Get(def.ID); ok {
		logger.Debug("serving cached record for %s from %s: %s",
			def.ID, entry.CachedAt.Format(time.RFC3339), rec.Error)
		return staleRecord(entry, rec.Error)
	}

	rec.LiftsOpen = nil
	rec.LiftsTotal = nil
	rec.Lifts = nil
	rec.Slopes = nil
	return rec
}

func (s *Service) recordHealth(def Definition, rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.health[def.ID]
	if !ok {
		h = &SourceHealth{ResortID: def.ID, Vendor: def.Vendor}
		s.health[def.ID] = h
	}
	h.LastAttempt = s.now().UTC()
	if rec.IsError() {
		h.ConsecutiveFailures++
		h.LastError = rec.Error
		return
	}
	h.ConsecutiveFailures = 0
	h.LastError = ""
	h.LastSuccess = h.LastAttempt
}

func staleRecord(entry CacheEntry, reason string) Record {
	rec := entry.Record
	rec.Status = StatusStale
	cachedAt := entry.CachedAt
	rec.CachedAt = &cachedAt
	rec.Error = reason
	rec.Weather = nil
	rec.Traffic = nil
	return rec
}

func cloneRecords(in []Record) []Record {
	return append([]Record(nil), in...)
}
