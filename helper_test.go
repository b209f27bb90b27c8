package stocker

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// USD is a helper for test to create usd money from const
func USD(v float64) Money { return M(v, "USD") }

// HKD is a helper for test to create hkd money from const
func HKD(v float64) Money { return M(v, "HKD") }

// day parses a test date.
func day(s string) Date { return MustParse(s) }

// seq stamps transactions with increasing creation instants, in argument order.
func seq(txs ...Transaction) []Transaction {
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := range txs {
		txs[i].CreatedAt = base.Add(time.Duration(i) * time.Second)
	}
	return txs
}

func buy(on, symbol string, q, price, fees float64) Transaction {
	return NewBuy(day(on), "alice", symbol, Q(q), USD(price), USD(fees))
}

func sell(on, symbol string, q, price, fees float64) Transaction {
	return NewSell(day(on), "alice", symbol, Q(q), USD(price), USD(fees))
}

// entries converts transactions and cash flows into ledger entries.
func entries[T Entry](items ...T) []Entry {
	out := make([]Entry, len(items))
	for i, e := range items {
		out[i] = e
	}
	return out
}

// fixedClock returns a clock stopped at the given instant.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func mustEqual(t *testing.T, what string, got, want Money) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("%s = %v (%s), want %v (%s)", what, got.Decimal(), got.Currency(), want.Decimal(), want.Currency())
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
