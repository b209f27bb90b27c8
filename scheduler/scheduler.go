// Package scheduler triggers the daily snapshot capture on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is scheduled work. Its context is cancelled when the scheduler stops.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs jobs on six-field cron schedules ("0 30 9 * * MON-FRI"),
// or descriptors such as "@daily" and "@every 1h". A run still in progress
// when its next tick fires makes that tick a no-op.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger
}

// New returns a stopped scheduler reading schedules in loc (local time if nil).
func New(loc *time.Location, log zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		ctx:    ctx,
		cancel: cancel,
		log:    log.With().Str("component", "scheduler").Logger(),
	}
}

func (s *Scheduler) AddJob(schedule string, job Job) error {
	if _, err := s.cron.AddFunc(schedule, func() { s.run(job) }); err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", schedule, job.Name(), err)
	}
	s.log.Info().Str("job", job.Name()).Str("schedule", schedule).Msg("job scheduled")
	return nil
}

func (s *Scheduler) run(job Job) {
	if err := job.Run(s.ctx); err != nil {
		s.log.Error().Err(err).Str("job", job.Name()).Msg("job failed")
	}
}

// RunNow runs job once, outside of its schedule.
func (s *Scheduler) RunNow(job Job) error { return job.Run(s.ctx) }

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop cancels the running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}
