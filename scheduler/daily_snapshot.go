package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/etnz/stocker"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Snapshotter is the part of stocker.Engine the snapshot job needs.
type Snapshotter interface {
	Today() stocker.Date
	Users(ctx context.Context) ([]string, error)
	CaptureDailySnapshot(ctx context.Context, user string, day stocker.Date, refresh bool) (stocker.DailySnapshot, error)
}

// DailySnapshotJob captures the daily snapshot of every user.
type DailySnapshotJob struct {
	engine  Snapshotter
	workers int
	refresh bool
	timeout time.Duration
	log     zerolog.Logger
}

// NewDailySnapshotJob returns a job capturing up to workers users at a time.
// With refresh, today's existing snapshots are recomputed; otherwise the first
// snapshot of the day is kept.
func NewDailySnapshotJob(engine Snapshotter, workers int, refresh bool, log zerolog.Logger) *DailySnapshotJob {
	return &DailySnapshotJob{
		engine:  engine,
		workers: workers,
		refresh: refresh,
		timeout: 10 * time.Minute,
		log:     log.With().Str("job", "daily_snapshot").Logger(),
	}
}

func (j *DailySnapshotJob) Name() string { return "daily_snapshot" }

// Run captures today's snapshot of every user.
func (j *DailySnapshotJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	_, err := j.Capture(ctx, j.engine.Today(), nil)
	return err
}

// Capture captures the snapshot of users on day, or of every user when users
// is empty. A failing user does not stop the others: the snapshots captured
// are returned with the joined errors of the failures.
func (j *DailySnapshotJob) Capture(ctx context.Context, day stocker.Date, users []string) ([]stocker.DailySnapshot, error) {
	if len(users) == 0 {
		var err error
		if users, err = j.engine.Users(ctx); err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}
	}

	var (
		mu       sync.Mutex
		failures []error
	)
	results := make([]*stocker.DailySnapshot, len(users))
	g, gctx := errgroup.WithContext(ctx)
	if j.workers > 0 {
		g.SetLimit(j.workers)
	}
	for i, user := range users {
		g.Go(func() error {
			snap, err := j.engine.CaptureDailySnapshot(gctx, user, day, j.refresh)
			if err != nil {
				j.log.Error().Err(err).Str("user", user).Stringer("date", day).Msg("snapshot failed")
				mu.Lock()
				failures = append(failures, fmt.Errorf("%s: %w", user, err))
				mu.Unlock()
				return nil
			}
			j.log.Info().Str("user", user).Stringer("date", day).Str("net_liquidity", snap.NetLiquidity.String()).Msg("snapshot captured")
			results[i] = &snap
			return nil
		})
	}
	_ = g.Wait()

	var snaps []stocker.DailySnapshot
	for _, s := range results {
		if s != nil {
			snaps = append(snaps, *s)
		}
	}
	j.log.Info().Int("captured", len(snaps)).Int("failed", len(failures)).Msg("daily snapshot done")
	return snaps, errors.Join(failures...)
}
