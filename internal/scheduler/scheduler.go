package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/snow-status-aggregation/internal/logger"
	"github.com/i474232898/snow-status-aggregation/internal/resort"
)

// Aggregator runs one aggregation cycle.
type Aggregator interface {
	AggregateAll(ctx context.Context) []resort.Record
}

// TrafficRefresher samples travel times.
type TrafficRefresher interface {
	Refresh(ctx context.Context) (int, error)
}

// Purger drops expired cache entries and reports how many were removed.
type Purger interface {
	Purge() int
}

// Scheduler periodically runs aggregation cycles and, when configured,
// traffic refreshes. Jobs run in singleton mode so a slow run is never
// overlapped by the next tick.
type Scheduler struct {
	scheduler *gocron.Scheduler

	aggregator Aggregator
	interval   time.Duration

	traffic         TrafficRefresher
	trafficInterval time.Duration

	purger Purger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Scheduler. traffic may be nil.
func New(aggregator Aggregator, interval time.Duration, traffic TrafficRefresher, trafficInterval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler:       gocron.NewScheduler(time.UTC),
		aggregator:      aggregator,
		interval:        interval,
		traffic:         traffic,
		trafficInterval: trafficInterval,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// WithPurger registers a cache purge that runs once per aggregation interval.
func (s *Scheduler) WithPurger(p Purger) *Scheduler {
	s.purger = p
	return s
}

// Start schedules the periodic jobs and starts the underlying scheduler.
// The first run of each job starts immediately.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.interval = 10 * time.Minute
	}

	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(s.runAggregation)
	if err != nil {
		return err
	}

	if s.traffic != nil {
		if s.trafficInterval <= 0 {
			s.trafficInterval = 30 * time.Minute
		}
		if _, err := s.scheduler.Every(s.trafficInterval).SingletonMode().Do(s.runTraffic); err != nil {
			return err
		}
	}

	if s.purger != nil {
		if _, err := s.scheduler.Every(s.interval).SingletonMode().Do(s.runPurge); err != nil {
			return err
		}
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any running job.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) runAggregation() {
	logger.Debug("scheduler: running aggregation job")
	records := s.aggregator.AggregateAll(s.ctx)
	logger.Debug("scheduler: aggregation job produced %d records", len(records))
}

func (s *Scheduler) runTraffic() {
	ctx, cancel := context.WithTimeout(s.ctx, s.trafficInterval)
	defer cancel()

	n, err := s.traffic.Refresh(ctx)
	if err != nil {
		logger.Warn("scheduler: traffic refresh stopped after %d routes: %v", n, err)
		return
	}
	logger.Debug("scheduler: traffic refresh updated %d routes", n)
}

func (s *Scheduler) runPurge() {
	if n := s.purger.Purge(); n > 0 {
		logger.Debug("scheduler: purged %d expired cache entries", n)
	}
}
