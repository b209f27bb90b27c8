package stocker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DailySnapshot is the persisted start-of-day state of a user's portfolio.
// There is at most one per (user, date).
type DailySnapshot struct {
	User             string
	Date             Date
	BaseCurrency     string
	NetLiquidity     Money
	CurrentCash      Money
	TotalMarketValue Money
	TotalInvested    Money
	NetProfit        Money
	ROIPercentage    decimal.Decimal
	CashBalances     map[string]Money // native currency
	Positions        map[string]Money // base market value per symbol
	ExchangeRates    map[string]decimal.Decimal
	// Unvalued lists the stale or unavailable symbols, absent from Positions.
	Unvalued  []string
	Partial   bool
	CreatedAt time.Time
}

// NewDailySnapshot freezes s as the snapshot of user on day.
func NewDailySnapshot(user string, day Date, s *Summary, now time.Time) DailySnapshot {
	return DailySnapshot{
		User:             user,
		Date:             day,
		BaseCurrency:     s.BaseCurrency,
		NetLiquidity:     s.NetLiquidity,
		CurrentCash:      s.CurrentCash,
		TotalMarketValue: s.TotalMarketValue,
		TotalInvested:    s.TotalInvested,
		NetProfit:        s.NetProfit,
		ROIPercentage:    s.ROIPercentage,
		CashBalances:     s.CashBalances,
		Positions:        s.PositionValues,
		ExchangeRates:    s.ExchangeRates,
		Unvalued:         unvalued(s),
		Partial:          s.Partial,
		CreatedAt:        now.UTC(),
	}
}

// unvalued returns the sorted stale and unavailable symbols of s.
func unvalued(s *Summary) []string {
	set := make(map[string]bool)
	for _, symbol := range s.StaleSymbols {
		set[symbol] = true
	}
	for _, symbol := range s.UnavailableSymbols {
		set[symbol] = true
	}
	if len(set) == 0 {
		return nil
	}
	return sortedKeys(set)
}

// MarshalJSON writes the snapshot with ordered keys.
func (d DailySnapshot) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("user", d.User)
	w.Append("date", d.Date)
	w.Append("base_currency", d.BaseCurrency)
	w.Append("net_liquidity", d.NetLiquidity)
	w.Append("current_cash", d.CurrentCash)
	w.Append("total_market_value", d.TotalMarketValue)
	w.Append("total_invested", d.TotalInvested)
	w.Append("net_profit", d.NetProfit)
	w.Append("roi_percentage", d.ROIPercentage)
	w.Append("cash_balances", d.CashBalances)
	w.Append("positions", d.Positions)
	w.Optional("exchange_rates", d.ExchangeRates)
	w.Optional("unvalued_symbols", d.Unvalued)
	w.Optional("partial", d.Partial)
	w.Append("created_at", d.CreatedAt)
	return w.MarshalJSON()
}

// SnapshotStore persists daily snapshots, enforcing uniqueness of (user, date).
type SnapshotStore interface {
	// InsertSnapshot atomically stores s if no snapshot exists for (s.User, s.Date),
	// and returns ErrSnapshotConflict otherwise.
	InsertSnapshot(ctx context.Context, s DailySnapshot) error
	// ReplaceSnapshot stores s, overwriting any snapshot for the same (user, date).
	ReplaceSnapshot(ctx context.Context, s DailySnapshot) error
	// Snapshot returns the snapshot of user on day, or ErrSnapshotNotFound.
	Snapshot(ctx context.Context, user string, day Date) (DailySnapshot, error)
	// Snapshots returns up to limit snapshots of user, newest first. limit <= 0 means all.
	Snapshots(ctx context.Context, user string, limit int) ([]DailySnapshot, error)
}

// Summarizer computes the summary of a user's portfolio from the ledger entries dated on or before asOf.
type Summarizer interface {
	Summary(ctx context.Context, user string, asOf Date) (*Summary, error)
}

// DailySnapshotService manages the start-of-day baselines.
//
// For a given (user, date) a snapshot goes from absent to created once. Past
// dates are never written again; the current date may be refreshed
// explicitly with Capture.
type DailySnapshotService struct {
	store     SnapshotStore
	summaries Summarizer
	now       func() time.Time
	loc       *time.Location
	log       zerolog.Logger
}

// NewDailySnapshotService returns a service computing snapshots with summaries
// and persisting them into store. Calendar dates are taken in loc.
func NewDailySnapshotService(store SnapshotStore, summaries Summarizer, now func() time.Time, loc *time.Location, log zerolog.Logger) *DailySnapshotService {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &DailySnapshotService{
		store:     store,
		summaries: summaries,
		now:       now,
		loc:       loc,
		log:       log.With().Str("component", "snapshots").Logger(),
	}
}

// Today returns the current calendar date in the service location.
func (s *DailySnapshotService) Today() Date { return DateOf(s.now(), s.loc) }

// GetOrCreateToday returns today's snapshot, creating it on first touch.
func (s *DailySnapshotService) GetOrCreateToday(ctx context.Context, user string) (DailySnapshot, error) {
	return s.GetOrCreate(ctx, user, s.Today())
}

// GetOrCreate returns the snapshot of user on day. When there is none it
// computes one from the ledger as of day and inserts it; if a concurrent
// caller inserted first, the stored snapshot is returned instead.
func (s *DailySnapshotService) GetOrCreate(ctx context.Context, user string, day Date) (DailySnapshot, error) {
	if day.After(s.Today()) {
		return DailySnapshot{}, fmt.Errorf("%w: snapshot date %s is in the future", ErrInvalidInput, day)
	}
	existing, err := s.store.Snapshot(ctx, user, day)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrSnapshotNotFound) {
		return DailySnapshot{}, err
	}

	snap, err := s.compute(ctx, user, day)
	if err != nil {
		return DailySnapshot{}, err
	}
	err = s.store.InsertSnapshot(ctx, snap)
	if errors.Is(err, ErrSnapshotConflict) {
		s.log.Debug().Str("user", user).Stringer("date", day).Msg("snapshot created concurrently, reading back")
		return s.store.Snapshot(ctx, user, day)
	}
	if err != nil {
		return DailySnapshot{}, err
	}
	s.log.Info().Str("user", user).Stringer("date", day).Str("net_liquidity", snap.NetLiquidity.String()).Msg("snapshot created")
	// the stored row is the reference: every caller gets the same value.
	return s.store.Snapshot(ctx, user, day)
}

// Capture is used by the scheduled job. It creates the snapshot of user on day
// if it is absent. With refresh set, today's snapshot is recomputed and
// overwritten; refresh is ignored for past dates.
func (s *DailySnapshotService) Capture(ctx context.Context, user string, day Date, refresh bool) (DailySnapshot, error) {
	today := s.Today()
	if !refresh || day != today {
		return s.GetOrCreate(ctx, user, day)
	}
	snap, err := s.compute(ctx, user, day)
	if err != nil {
		return DailySnapshot{}, err
	}
	if err := s.store.ReplaceSnapshot(ctx, snap); err != nil {
		return DailySnapshot{}, err
	}
	s.log.Info().Str("user", user).Stringer("date", day).Str("net_liquidity", snap.NetLiquidity.String()).Msg("snapshot refreshed")
	return s.store.Snapshot(ctx, user, day)
}

func (s *DailySnapshotService) compute(ctx context.Context, user string, day Date) (DailySnapshot, error) {
	summary, err := s.summaries.Summary(ctx, user, day)
	if err != nil {
		return DailySnapshot{}, fmt.Errorf("summary of %s on %s: %w", user, day, err)
	}
	return NewDailySnapshot(user, day, summary, s.now()), nil
}

// Get returns the snapshot of user on day. A missing snapshot is reported
// with found == false, not as an error.
func (s *DailySnapshotService) Get(ctx context.Context, user string, day Date) (snap DailySnapshot, found bool, err error) {
	snap, err = s.store.Snapshot(ctx, user, day)
	if errors.Is(err, ErrSnapshotNotFound) {
		return DailySnapshot{}, false, nil
	}
	if err != nil {
		return DailySnapshot{}, false, err
	}
	return snap, true, nil
}

// History returns the limit most recent snapshots of user, newest first.
func (s *DailySnapshotService) History(ctx context.Context, user string, limit int) ([]DailySnapshot, error) {
	return s.store.Snapshots(ctx, user, limit)
}

// TodayChange is the change of a portfolio since its start-of-day baseline.
// Total is the sum of Positions and Cash, term by term.
type TodayChange struct {
	Date      Date
	Baseline  Date
	Currency  string
	Positions map[string]Money
	Cash      Money
	Total     Money
	// Skipped lists symbols left out because they could not be valued now
	// or in the baseline.
	Skipped []string
}

// ComputeTodayChange compares the current summary with the baseline snapshot.
//
// The per-symbol change is the current base value minus the baseline value,
// over the union of both symbol sets: a symbol closed since the baseline
// contributes minus its baseline value, a new one its full value. A symbol
// unvalued on either side has no known change and is skipped.
func ComputeTodayChange(current *Summary, baseline DailySnapshot) (TodayChange, error) {
	if current.BaseCurrency != baseline.BaseCurrency {
		return TodayChange{}, fmt.Errorf("%w: baseline in %s, summary in %s", ErrInvalidInput, baseline.BaseCurrency, current.BaseCurrency)
	}
	c := TodayChange{
		Date:      current.Date,
		Baseline:  baseline.Date,
		Currency:  current.BaseCurrency,
		Positions: make(map[string]Money),
	}
	skipped := make(map[string]bool)
	for _, symbol := range unvalued(current) {
		skipped[symbol] = true
	}
	for _, symbol := range baseline.Unvalued {
		skipped[symbol] = true
	}
	if len(skipped) > 0 {
		c.Skipped = sortedKeys(skipped)
	}

	symbols := make(map[string]bool)
	for symbol := range current.PositionValues {
		symbols[symbol] = true
	}
	for symbol := range baseline.Positions {
		symbols[symbol] = true
	}

	total := M(0, c.Currency)
	for _, symbol := range sortedKeys(symbols) {
		if skipped[symbol] {
			continue
		}
		now, ok := current.PositionValues[symbol]
		if !ok {
			now = M(0, c.Currency)
		}
		then, ok := baseline.Positions[symbol]
		if !ok {
			then = M(0, c.Currency)
		}
		change := now.Sub(then)
		c.Positions[symbol] = change
		total = total.Add(change)
	}
	c.Cash = current.CurrentCash.Sub(baseline.CurrentCash)
	c.Total = total.Add(c.Cash)
	return c, nil
}

// MarshalJSON writes the change with ordered keys.
func (c TodayChange) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("date", c.Date)
	w.Append("baseline", c.Baseline)
	w.Append("currency", c.Currency)
	w.Append("positions", c.Positions)
	w.Append("cash", c.Cash)
	w.Append("total", c.Total)
	w.Optional("skipped", c.Skipped)
	return w.MarshalJSON()
}
