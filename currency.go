package stocker

import (
	"context"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// ValidateCurrency checks that code is a known ISO 4217 currency code.
func ValidateCurrency(code string) error {
	if code == "" {
		return fmt.Errorf("%w: missing currency", ErrInvalidInput)
	}
	if code != strings.ToUpper(code) || money.GetCurrency(code) == nil {
		return fmt.Errorf("%w: unknown currency %q", ErrInvalidInput, code)
	}
	return nil
}

// RateSource provides exchange rates: 1 unit of from is worth rate units of to.
type RateSource interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// Rates converts amounts to a single base currency.
//
// A Rates is built once per computation so that every conversion of a given
// currency uses the same rate.
type Rates struct {
	base   string
	source RateSource
	known  map[string]decimal.Decimal // currency -> base
}

// NewRates returns a conversion table towards base, resolving missing rates from source.
// source may be nil, in which case only rates added with Set are known.
func NewRates(base string, source RateSource) *Rates {
	return &Rates{base: base, source: source, known: map[string]decimal.Decimal{base: decimal.NewFromInt(1)}}
}

// Base returns the base currency.
func (r *Rates) Base() string { return r.base }

// Set records the rate from currency to base.
func (r *Rates) Set(currency string, rate decimal.Decimal) { r.known[currency] = rate }

// Rate returns the rate from currency to base.
//
// It tries the direct pair first and falls back on the inverse pair.
func (r *Rates) Rate(ctx context.Context, currency string) (decimal.Decimal, error) {
	if rate, ok := r.known[currency]; ok {
		return rate, nil
	}
	if r.source == nil {
		return decimal.Zero, fmt.Errorf("%w: %s%s", ErrRateUnavailable, currency, r.base)
	}
	rate, err := r.source.Rate(ctx, currency, r.base)
	if err == nil && rate.IsPositive() {
		r.known[currency] = rate
		return rate, nil
	}
	inverse, ierr := r.source.Rate(ctx, r.base, currency)
	if ierr == nil && inverse.IsPositive() {
		rate = decimal.NewFromInt(1).Div(inverse)
		r.known[currency] = rate
		return rate, nil
	}
	if err == nil {
		err = ierr
	}
	return decimal.Zero, fmt.Errorf("%w: %s%s: %v", ErrRateUnavailable, currency, r.base, err)
}

// Convert returns m expressed in the base currency, rounded to its minor unit.
func (r *Rates) Convert(ctx context.Context, m Money) (Money, error) {
	if m.cur == "" || m.cur == r.base {
		return Money{value: m.value, cur: r.base}.Round(), nil
	}
	rate, err := r.Rate(ctx, m.cur)
	if err != nil {
		return Money{}, err
	}
	return Money{value: m.value.Mul(rate), cur: r.base}.Round(), nil
}

// Used returns the rates resolved so far, keyed by currency, excluding the base.
func (r *Rates) Used() map[string]decimal.Decimal {
	used := make(map[string]decimal.Decimal, len(r.known))
	for c, rate := range r.known {
		if c != r.base {
			used[c] = rate
		}
	}
	return used
}

// StaticRates is a RateSource backed by a fixed table keyed by pair ("USDHKD").
type StaticRates map[string]decimal.Decimal

func (s StaticRates) Rate(_ context.Context, from, to string) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	if rate, ok := s[from+to]; ok {
		return rate, nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s%s", ErrRateUnavailable, from, to)
}
