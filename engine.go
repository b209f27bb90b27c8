package stocker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LedgerStore is the durable, ordered log of ledger entries of every user.
type LedgerStore interface {
	// Entries returns all entries of user, in insertion order.
	Entries(ctx context.Context, user string) ([]Entry, error)
	AppendEntry(ctx context.Context, e Entry) error
	// ReplaceEntry overwrites the entry with the same id and owner, or returns ErrNotFound.
	ReplaceEntry(ctx context.Context, e Entry) error
	// RemoveEntry deletes an entry of user, or returns ErrNotFound.
	RemoveEntry(ctx context.Context, user, id string) error
	// Users returns every user that owns at least one entry, sorted.
	Users(ctx context.Context) ([]string, error)
}

// Options configure an Engine.
type Options struct {
	BaseCurrency string
	Location     *time.Location // calendar of the start-of-day baseline
	AllowShort   bool
	PriceTimeout time.Duration
	PriceWorkers int
	Now          func() time.Time
	Logger       zerolog.Logger
}

// Engine is the portfolio valuation engine.
//
// It holds no derived state: every computation replays the ledger as it is in
// the store at call time.
type Engine struct {
	ledgers   LedgerStore
	rates     RateSource
	opts      Options
	positions *PositionAggregator
	snapshots *DailySnapshotService
	log       zerolog.Logger
}

// NewEngine wires an engine on its collaborators.
func NewEngine(ledgers LedgerStore, snapshots SnapshotStore, prices PriceSource, rates RateSource, opts Options) (*Engine, error) {
	if err := ValidateCurrency(opts.BaseCurrency); err != nil {
		return nil, fmt.Errorf("base currency: %w", err)
	}
	log := opts.Logger.With().Str("component", "engine").Logger()
	e := &Engine{
		ledgers: ledgers,
		rates:   rates,
		opts:    opts,
		log:     log,
		positions: &PositionAggregator{
			Prices:  prices,
			Timeout: opts.PriceTimeout,
			Workers: opts.PriceWorkers,
			Log:     log,
		},
	}
	e.snapshots = NewDailySnapshotService(snapshots, e, opts.Now, opts.Location, opts.Logger)
	return e, nil
}

// Today returns the current calendar date in the engine location.
func (e *Engine) Today() Date { return e.snapshots.Today() }

// BaseCurrency returns the currency of every consolidated figure.
func (e *Engine) BaseCurrency() string { return e.opts.BaseCurrency }

// Users returns every user with at least one ledger entry.
func (e *Engine) Users(ctx context.Context) ([]string, error) { return e.ledgers.Users(ctx) }

// Ledger loads the ledger of user.
func (e *Engine) Ledger(ctx context.Context, user string) (*Ledger, error) {
	entries, err := e.ledgers.Entries(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("loading ledger of %s: %w", user, err)
	}
	return NewLedger(user, entries...), nil
}

// Record validates and appends a transaction or a cash flow.
func (e *Engine) Record(ctx context.Context, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if err := e.ledgers.AppendEntry(ctx, entry); err != nil {
		return err
	}
	e.log.Debug().Str("user", entry.Owner()).Str("id", entry.EntryID()).Str("command", string(entry.What())).Msg("entry recorded")
	return nil
}

// Amend replaces an existing entry. The next computation replays the whole
// history of the affected symbol.
func (e *Engine) Amend(ctx context.Context, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if err := e.ledgers.ReplaceEntry(ctx, entry); err != nil {
		return err
	}
	e.log.Debug().Str("user", entry.Owner()).Str("id", entry.EntryID()).Msg("entry amended")
	return nil
}

// Delete removes an entry of user.
func (e *Engine) Delete(ctx context.Context, user, id string) error {
	if err := e.ledgers.RemoveEntry(ctx, user, id); err != nil {
		return err
	}
	e.log.Debug().Str("user", user).Str("id", id).Msg("entry deleted")
	return nil
}

func (e *Engine) matchOptions() MatchOptions { return MatchOptions{AllowShort: e.opts.AllowShort} }

// ComputePositions returns the open positions of user as of today. Positions
// whose price is unavailable are returned stale, without market value.
func (e *Engine) ComputePositions(ctx context.Context, user string) ([]Position, error) {
	ledger, err := e.Ledger(ctx, user)
	if err != nil {
		return nil, err
	}
	ledger = ledger.AsOf(e.Today())
	replays, failures := ReplayLedger(ledger, e.matchOptions())
	return e.positions.Aggregate(ctx, replays, failures), nil
}

// ComputeSummary returns the current summary of user.
func (e *Engine) ComputeSummary(ctx context.Context, user string) (*Summary, error) {
	return e.Summary(ctx, user, e.Today())
}

// Summary returns the summary of user computed from the entries dated on or
// before asOf, valued at current prices and rates.
func (e *Engine) Summary(ctx context.Context, user string, asOf Date) (*Summary, error) {
	ledger, err := e.Ledger(ctx, user)
	if err != nil {
		return nil, err
	}
	ledger = ledger.AsOf(asOf)
	replays, failures := ReplayLedger(ledger, e.matchOptions())
	positions := e.positions.Aggregate(ctx, replays, failures)
	s, err := Summarize(ctx, positions, replays, AggregateCash(ledger), NewRates(e.opts.BaseCurrency, e.rates))
	if err != nil {
		return nil, err
	}
	s.User, s.Date = user, asOf
	return s, nil
}

// GetOrCreateDailySnapshot returns the snapshot of user on day, creating it if
// absent. A zero day means today.
func (e *Engine) GetOrCreateDailySnapshot(ctx context.Context, user string, day Date) (DailySnapshot, error) {
	if day.IsZero() {
		return e.snapshots.GetOrCreateToday(ctx, user)
	}
	return e.snapshots.GetOrCreate(ctx, user, day)
}

// CaptureDailySnapshot creates, or with refresh recomputes, the snapshot of user on day.
func (e *Engine) CaptureDailySnapshot(ctx context.Context, user string, day Date, refresh bool) (DailySnapshot, error) {
	return e.snapshots.Capture(ctx, user, day, refresh)
}

// GetDailySnapshot looks a snapshot up without creating it.
func (e *Engine) GetDailySnapshot(ctx context.Context, user string, day Date) (DailySnapshot, bool, error) {
	return e.snapshots.Get(ctx, user, day)
}

// ListDailySnapshots returns the limit most recent snapshots of user, newest first.
func (e *Engine) ListDailySnapshots(ctx context.Context, user string, limit int) ([]DailySnapshot, error) {
	return e.snapshots.History(ctx, user, limit)
}

// ComputeTodayChange compares the current summary of user with today's
// baseline, creating the baseline on first touch.
func (e *Engine) ComputeTodayChange(ctx context.Context, user string) (TodayChange, error) {
	baseline, err := e.snapshots.GetOrCreateToday(ctx, user)
	if err != nil {
		return TodayChange{}, err
	}
	current, err := e.ComputeSummary(ctx, user)
	if err != nil {
		return TodayChange{}, err
	}
	return ComputeTodayChange(current, baseline)
}

// ComputeMonthlyStats returns the twelve monthly statistics of user for year.
// Symbols whose history cannot be replayed are left out.
func (e *Engine) ComputeMonthlyStats(ctx context.Context, user string, year int) ([]MonthlyStat, error) {
	ledger, err := e.Ledger(ctx, user)
	if err != nil {
		return nil, err
	}
	replays, failures := ReplayLedger(ledger, e.matchOptions())
	for symbol, err := range failures {
		e.log.Warn().Err(err).Str("user", user).Str("symbol", symbol).Msg("symbol left out of monthly stats")
	}
	var events []RealizedEvent
	for _, r := range replays {
		events = append(events, r.Events...)
	}
	return MonthlyStats(ctx, events, year, NewRates(e.opts.BaseCurrency, e.rates))
}
