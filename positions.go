package stocker

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// PriceSource provides the current price of a symbol in its trading currency.
// Implementations return an error wrapping ErrPriceUnavailable when they have no price.
type PriceSource interface {
	Price(ctx context.Context, symbol string) (Money, error)
}

// Position is the current state of a symbol with open quantity.
//
// Price, MarketValue and UnrealizedPL are nil when no price could be obtained,
// in which case PriceStale is set. A symbol whose history cannot be replayed
// is reported Unavailable with the reason in Problem.
type Position struct {
	Symbol       string
	Quantity     Quantity // signed: positive long, negative short
	Side         Side
	AvgCost      Money
	Currency     string
	Price        *Money
	MarketValue  *Money // quantity × price, negative for shorts
	UnrealizedPL *Money
	RealizedPL   Money
	Dividends    Money
	PriceStale   bool
	Unavailable  bool
	Problem      string
}

// MarshalJSON writes the position with ordered keys.
func (p Position) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("symbol", p.Symbol)
	if p.Unavailable {
		w.Append("unavailable", true)
		w.Append("problem", p.Problem)
		return w.MarshalJSON()
	}
	w.Append("quantity", p.Quantity)
	w.Append("side", p.Side)
	w.Append("avg_cost", p.AvgCost.exact())
	w.Append("currency", p.Currency)
	if p.Price != nil {
		w.Append("price", p.Price.exact())
	} else {
		w.Append("price", nil)
	}
	w.Append("market_value", p.MarketValue)
	w.Append("unrealized_pl", p.UnrealizedPL)
	w.Append("realized_pl", p.RealizedPL)
	w.Append("dividends", p.Dividends)
	w.Optional("price_stale", p.PriceStale)
	w.Optional("problem", p.Problem)
	return w.MarshalJSON()
}

// ReplayLedger runs MatchLots on every symbol of the ledger.
// Symbols that fail to replay are returned in failures and do not prevent the others.
func ReplayLedger(l *Ledger, opts MatchOptions) (replays []*Replay, failures map[string]error) {
	failures = make(map[string]error)
	for _, symbol := range l.Symbols() {
		r, err := MatchLots(symbol, l.Transactions(symbol), opts)
		if err != nil {
			failures[symbol] = err
			continue
		}
		replays = append(replays, r)
	}
	return replays, failures
}

// PositionAggregator marks replays to market.
type PositionAggregator struct {
	Prices  PriceSource
	Timeout time.Duration // per symbol price fetch, 0 for none
	Workers int           // concurrent price fetches, 0 for unlimited
	Log     zerolog.Logger
}

// Aggregate returns one Position per replay with non-zero quantity, plus one
// Unavailable position per failure. Prices are fetched concurrently; a price
// that fails or times out only marks its own position stale.
func (a *PositionAggregator) Aggregate(ctx context.Context, replays []*Replay, failures map[string]error) []Position {
	var open []*Replay
	for _, r := range replays {
		if !r.Quantity().IsZero() {
			open = append(open, r)
		}
	}

	positions := make([]Position, len(open))
	var g errgroup.Group
	if a.Workers > 0 {
		g.SetLimit(a.Workers)
	}
	for i, r := range open {
		g.Go(func() error {
			positions[i] = a.position(ctx, r)
			return nil
		})
	}
	_ = g.Wait()

	for _, symbol := range sortedKeys(failures) {
		err := failures[symbol]
		a.Log.Warn().Err(err).Str("symbol", symbol).Msg("position unavailable")
		positions = append(positions, Position{Symbol: symbol, Unavailable: true, Problem: err.Error()})
	}
	sortPositions(positions)
	return positions
}

func (a *PositionAggregator) position(ctx context.Context, r *Replay) Position {
	p := Position{
		Symbol:     r.Symbol,
		Quantity:   r.Quantity(),
		Side:       r.Side(),
		AvgCost:    r.AvgCost(),
		Currency:   r.Currency,
		RealizedPL: r.RealizedPL(),
		Dividends:  r.Dividends,
	}
	price, err := a.fetch(ctx, r.Symbol, r.Currency)
	if err != nil {
		a.Log.Warn().Err(err).Str("symbol", r.Symbol).Msg("stale price")
		p.PriceStale = true
		p.Problem = err.Error()
		return p
	}
	value := price.Mul(p.Quantity)
	unrealized := r.Unrealized(price)
	p.Price, p.MarketValue, p.UnrealizedPL = &price, &value, &unrealized
	return p
}

// fetch returns the price of symbol, giving up after the aggregator timeout
// even if the source ignores its context.
func (a *PositionAggregator) fetch(ctx context.Context, symbol, currency string) (Money, error) {
	if a.Prices == nil {
		return Money{}, fmt.Errorf("%w: %s: no price source", ErrPriceUnavailable, symbol)
	}
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}
	type result struct {
		price Money
		err   error
	}
	done := make(chan result, 1)
	go func() {
		price, err := a.Prices.Price(ctx, symbol)
		done <- result{price, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	switch {
	case res.err != nil && errors.Is(res.err, ErrPriceUnavailable):
		return Money{}, res.err
	case res.err != nil:
		return Money{}, fmt.Errorf("%w: %s: %v", ErrPriceUnavailable, symbol, res.err)
	case res.price.Currency() == "":
		res.price = M(res.price.Decimal(), currency)
	case res.price.Currency() != currency:
		return Money{}, fmt.Errorf("%w: %s quoted in %s, traded in %s", ErrPriceUnavailable, symbol, res.price.Currency(), currency)
	}
	if !res.price.IsPositive() {
		return Money{}, fmt.Errorf("%w: %s: non positive price %s", ErrPriceUnavailable, symbol, res.price.Decimal())
	}
	return res.price, nil
}

// StaticPrices is a PriceSource backed by a fixed table.
type StaticPrices map[string]Money

func (s StaticPrices) Price(_ context.Context, symbol string) (Money, error) {
	if p, ok := s[symbol]; ok {
		return p, nil
	}
	return Money{}, fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
}

func sortedKeys[V any](m map[string]V) []string { return slices.Sorted(maps.Keys(m)) }

func sortPositions(positions []Position) {
	slices.SortFunc(positions, func(a, b Position) int { return strings.Compare(a.Symbol, b.Symbol) })
}
