package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/etnz/stocker"
	"github.com/google/subcommands"
)

// --- Positions Command ---

type positionsCmd struct {
	user string
}

func (*positionsCmd) Name() string     { return "positions" }
func (*positionsCmd) Synopsis() string { return "display the open positions valued at current prices" }
func (*positionsCmd) Usage() string {
	return `positions -u <user>

  Lists every symbol with an open quantity, long or short, with its average
  cost, current price, market value and profit. Symbols without a price are
  listed as stale.
`
}

func (c *positionsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "u", defaultUser(), "User owning the ledger (defaults to $STOCKER_USER)")
}

func (c *positionsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, "computing positions", func(ctx context.Context, a *app) error {
		positions, err := a.engine.ComputePositions(ctx, c.user)
		if err != nil {
			return err
		}
		if positions == nil {
			positions = []stocker.Position{}
		}
		return printJSON(positions)
	})
}

// --- Summary Command ---

type summaryCmd struct {
	user string
	date string
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "display the portfolio summary in the base currency" }
func (*summaryCmd) Usage() string {
	return `summary -u <user> [-d <date>]

  Consolidates positions and cash in the base currency: net liquidity,
  invested capital, profit and ROI. With -d, only the entries dated on or
  before that day are considered, still valued at current prices.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "u", defaultUser(), "User owning the ledger (defaults to $STOCKER_USER)")
	f.StringVar(&c.date, "d", "", "Consider entries up to this date (defaults to today)")
}

func (c *summaryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, "computing summary", func(ctx context.Context, a *app) error {
		day := a.engine.Today()
		if c.date != "" {
			var err error
			if day, err = stocker.ParseDate(c.date); err != nil {
				return fmt.Errorf("%w: %v", stocker.ErrInvalidInput, err)
			}
		}
		summary, err := a.engine.Summary(ctx, c.user, day)
		if err != nil {
			return err
		}
		return printJSON(summary)
	})
}

// --- Today Command ---

type todayCmd struct {
	user string
}

func (*todayCmd) Name() string     { return "today" }
func (*todayCmd) Synopsis() string { return "display the change of the portfolio since the start of the day" }
func (*todayCmd) Usage() string {
	return `today -u <user>

  Compares the current valuation with the start-of-day snapshot, per symbol
  and for cash. The snapshot is taken now if it does not exist yet.
`
}

func (c *todayCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "u", defaultUser(), "User owning the ledger (defaults to $STOCKER_USER)")
}

func (c *todayCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, "computing today's change", func(ctx context.Context, a *app) error {
		change, err := a.engine.ComputeTodayChange(ctx, c.user)
		if err != nil {
			return err
		}
		return printJSON(change)
	})
}

// --- Stats Command ---

type statsCmd struct {
	user string
	year int
}

func (*statsCmd) Name() string     { return "stats" }
func (*statsCmd) Synopsis() string { return "display monthly trading statistics" }
func (*statsCmd) Usage() string {
	return `stats -u <user> [-y <year>]

  Reports, for each month of the year, the closed trades, win rate, realized
  profit and loss and average holding period.
`
}

func (c *statsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "u", defaultUser(), "User owning the ledger (defaults to $STOCKER_USER)")
	f.IntVar(&c.year, "y", stocker.Today().Year(), "Year")
}

func (c *statsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" || c.year <= 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, "computing statistics", func(ctx context.Context, a *app) error {
		stats, err := a.engine.ComputeMonthlyStats(ctx, c.user, c.year)
		if err != nil {
			return err
		}
		return printJSON(stats)
	})
}
