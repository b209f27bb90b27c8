package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/etnz/stocker"
	"github.com/etnz/stocker/scheduler"
	"github.com/google/subcommands"
)

// --- Snapshot Command ---

type snapshotCmd struct {
	user    string
	date    string
	all     bool
	refresh bool
}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "take the daily snapshot of one or every user" }
func (*snapshotCmd) Usage() string {
	return `snapshot (-u <user> | -all) [-d <date>] [-refresh]

  Takes the start-of-day snapshot if it does not exist yet, and prints it.
  An existing snapshot is returned unchanged, unless -refresh is set and the
  date is today. Past snapshots are computed from the entries dated on or
  before that day.
`
}

func (c *snapshotCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "u", defaultUser(), "User owning the ledger (defaults to $STOCKER_USER)")
	f.StringVar(&c.date, "d", "", "Snapshot date (defaults to today)")
	f.BoolVar(&c.all, "all", false, "Snapshot every user")
	f.BoolVar(&c.refresh, "refresh", false, "Recompute today's snapshot if it exists")
}

func (c *snapshotCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" && !c.all {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, "taking snapshot", func(ctx context.Context, a *app) error {
		day := a.engine.Today()
		if c.date != "" {
			var err error
			if day, err = stocker.ParseDate(c.date); err != nil {
				return fmt.Errorf("%w: %v", stocker.ErrInvalidInput, err)
			}
		}
		var users []string
		if !c.all {
			users = []string{c.user}
		}
		job := scheduler.NewDailySnapshotJob(a.engine, a.cfg.Snapshot.Workers, c.refresh, a.log)
		snapshots, err := job.Capture(ctx, day, users)
		if len(snapshots) > 0 {
			if perr := printJSON(snapshots); perr != nil {
				return perr
			}
		}
		return err
	})
}

// --- History Command ---

type historyCmd struct {
	user  string
	limit int
	date  string
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "display the stored daily snapshots" }
func (*historyCmd) Usage() string {
	return `history -u <user> [-n <count>] [-d <date>]

  Lists the most recent daily snapshots, newest first. With -d, prints the
  snapshot of that day only, without creating it.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "u", defaultUser(), "User owning the ledger (defaults to $STOCKER_USER)")
	f.IntVar(&c.limit, "n", 30, "Number of snapshots, 0 for all")
	f.StringVar(&c.date, "d", "", "Print the snapshot of this date only")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" || c.limit < 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, "reading snapshots", func(ctx context.Context, a *app) error {
		if c.date != "" {
			day, err := stocker.ParseDate(c.date)
			if err != nil {
				return fmt.Errorf("%w: %v", stocker.ErrInvalidInput, err)
			}
			snap, found, err := a.engine.GetDailySnapshot(ctx, c.user, day)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("%s on %s: %w", c.user, day, stocker.ErrSnapshotNotFound)
			}
			return printJSON(snap)
		}
		snapshots, err := a.engine.ListDailySnapshots(ctx, c.user, c.limit)
		if err != nil {
			return err
		}
		if snapshots == nil {
			snapshots = []stocker.DailySnapshot{}
		}
		return printJSON(snapshots)
	})
}

// --- Serve Command ---

type serveCmd struct {
	now bool
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the daily snapshot job on its schedule" }
func (*serveCmd) Usage() string {
	return `serve [-now]

  Runs until interrupted, taking the snapshot of every user on the schedule
  of the configuration (snapshot.schedule, a cron expression with seconds).
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.now, "now", false, "Also run the job once at startup")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, "serving", func(ctx context.Context, a *app) error {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		loc, err := a.cfg.Location()
		if err != nil {
			return err
		}
		sched := scheduler.New(loc, a.log)
		job := scheduler.NewDailySnapshotJob(a.engine, a.cfg.Snapshot.Workers, a.cfg.Snapshot.Refresh, a.log)
		if err := sched.AddJob(a.cfg.Snapshot.Schedule, job); err != nil {
			return err
		}
		if c.now {
			if err := sched.RunNow(job); err != nil {
				a.log.Error().Err(err).Msg("initial snapshot run failed")
			}
		}
		sched.Start()
		<-ctx.Done()
		sched.Stop()
		return nil
	})
}
