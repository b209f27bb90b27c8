package stocker

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// portfolio returns a two currency ledger with one symbol never priced.
func portfolio() *Ledger {
	deposit := NewDeposit(day("2025-01-02"), "alice", USD(10000))
	hkdeposit := NewDeposit(day("2025-01-03"), "alice", HKD(7800))
	txs := []Transaction{
		buy("2025-01-10", "AAPL", 10, 150, 1),
		NewBuy(day("2025-01-11"), "alice", "0700.HK", Q(100), HKD(30), HKD(0)),
		buy("2025-01-12", "MSFT", 1, 100, 0),
	}
	return NewLedger("alice", append(entries(txs...), deposit, hkdeposit)...)
}

var portfolioPrices = StaticPrices{
	"AAPL":    USD(160),
	"0700.HK": HKD(35),
}

func TestAggregateCash(t *testing.T) {
	book := AggregateCash(portfolio())
	mustEqual(t, "Balances[USD]", book.Balances["USD"], USD(8399))
	mustEqual(t, "Balances[HKD]", book.Balances["HKD"], HKD(4800))
	mustEqual(t, "Invested[USD]", book.Invested["USD"], USD(10000))
	mustEqual(t, "Invested[HKD]", book.Invested["HKD"], HKD(7800))
	if got, want := book.Currencies(), []string{"HKD", "USD"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Currencies() = %v, want %v", got, want)
	}
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	ledger := portfolio()
	replays, failures := ReplayLedger(ledger, MatchOptions{})
	agg := &PositionAggregator{Prices: portfolioPrices, Log: zerolog.Nop()}
	positions := agg.Aggregate(ctx, replays, failures)

	rates := NewRates("USD", StaticRates{"USDHKD": dec("7.8")})
	s, err := Summarize(ctx, positions, replays, AggregateCash(ledger), rates)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}

	mustEqual(t, "PositionValues[AAPL]", s.PositionValues["AAPL"], USD(1600))
	mustEqual(t, "PositionValues[0700.HK]", s.PositionValues["0700.HK"], USD(448.72))
	if _, ok := s.PositionValues["MSFT"]; ok {
		t.Errorf("PositionValues[MSFT] is set, want it left out")
	}
	mustEqual(t, "TotalMarketValue", s.TotalMarketValue, USD(2048.72))
	mustEqual(t, "CurrentCash", s.CurrentCash, USD(9014.38))
	mustEqual(t, "NetLiquidity", s.NetLiquidity, USD(11063.10))
	mustEqual(t, "TotalInvested", s.TotalInvested, USD(11000))
	mustEqual(t, "NetProfit", s.NetProfit, USD(63.10))
	mustEqual(t, "UnrealizedPL", s.UnrealizedPL, USD(164.10))
	if got, want := s.ROIPercentage, dec("0.57"); !got.Equal(want) {
		t.Errorf("ROIPercentage = %v, want %v", got, want)
	}
	if !s.Partial || !reflect.DeepEqual(s.StaleSymbols, []string{"MSFT"}) {
		t.Errorf("Partial = %v, StaleSymbols = %v, want MSFT stale", s.Partial, s.StaleSymbols)
	}

	// identities hold exactly.
	sum := M(0, "USD")
	for _, v := range s.PositionValues {
		sum = sum.Add(v)
	}
	mustEqual(t, "Σ PositionValues", sum, s.TotalMarketValue)
	mustEqual(t, "TotalMarketValue + CurrentCash", s.TotalMarketValue.Add(s.CurrentCash), s.NetLiquidity)
}

func TestSummarize_MissingRate(t *testing.T) {
	ctx := context.Background()
	ledger := portfolio()
	replays, failures := ReplayLedger(ledger, MatchOptions{})
	agg := &PositionAggregator{Prices: portfolioPrices, Log: zerolog.Nop()}
	positions := agg.Aggregate(ctx, replays, failures)

	_, err := Summarize(ctx, positions, replays, AggregateCash(ledger), NewRates("USD", StaticRates{}))
	if !errors.Is(err, ErrRateUnavailable) {
		t.Errorf("Summarize() error = %v, want ErrRateUnavailable", err)
	}
}

func TestROI(t *testing.T) {
	tests := []struct {
		profit, invested Money
		want             string
	}{
		{USD(10), USD(0), "0"},
		{USD(10), USD(-5), "0"},
		{USD(-25), USD(200), "-12.5"},
		{USD(1), USD(3), "33.33"},
	}
	for _, tt := range tests {
		if got := ROI(tt.profit, tt.invested); !got.Equal(dec(tt.want)) {
			t.Errorf("ROI(%v, %v) = %v, want %v", tt.profit.Decimal(), tt.invested.Decimal(), got, tt.want)
		}
	}
}

// slowPrices answers only when its context is done.
type slowPrices struct{}

func (slowPrices) Price(ctx context.Context, symbol string) (Money, error) {
	<-ctx.Done()
	return Money{}, ctx.Err()
}

func TestPositionAggregator(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger("alice", entries(seq(
		buy("2025-01-10", "AAPL", 10, 150, 0),
		sell("2025-01-11", "TSLA", 5, 200, 0),
		buy("2025-01-12", "MSFT", 3, 100, 0),
		sell("2025-01-13", "MSFT", 3, 110, 0),
		buy("2025-01-14", "KO", 1, 60, 0),
		NewBuy(day("2025-01-15"), "alice", "KO", Q(1), HKD(60), HKD(0)),
	)...)...)
	replays, failures := ReplayLedger(ledger, MatchOptions{AllowShort: true})
	agg := &PositionAggregator{
		Prices:  StaticPrices{"AAPL": USD(160), "TSLA": M(180, "")},
		Workers: 2,
		Log:     zerolog.Nop(),
	}
	positions := agg.Aggregate(ctx, replays, failures)

	var symbols []string
	for _, p := range positions {
		symbols = append(symbols, p.Symbol)
	}
	// MSFT is closed.
	if want := []string{"AAPL", "KO", "TSLA"}; !reflect.DeepEqual(symbols, want) {
		t.Fatalf("symbols = %v, want %v", symbols, want)
	}

	aapl, ko, tsla := positions[0], positions[1], positions[2]
	mustEqual(t, "AAPL.MarketValue", *aapl.MarketValue, USD(1600))
	mustEqual(t, "AAPL.UnrealizedPL", *aapl.UnrealizedPL, USD(100))

	if !ko.Unavailable || !errors.Is(failures["KO"], ErrInconsistentLedger) {
		t.Errorf("KO = %+v, want unavailable", ko)
	}

	// a price without currency is taken in the trading currency.
	if tsla.Side != Short || tsla.PriceStale {
		t.Errorf("TSLA = %+v, want a priced short", tsla)
	}
	mustEqual(t, "TSLA.MarketValue", *tsla.MarketValue, USD(-900))
	mustEqual(t, "TSLA.UnrealizedPL", *tsla.UnrealizedPL, USD(100))
}

func TestPositionAggregator_Stale(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger("alice", entries(seq(
		buy("2025-01-10", "AAPL", 10, 150, 0),
		buy("2025-01-10", "GOOG", 1, 150, 0),
		buy("2025-01-10", "HSBC", 1, 150, 0),
	)...)...)
	replays, failures := ReplayLedger(ledger, MatchOptions{})

	tests := []struct {
		name   string
		prices PriceSource
	}{
		{"missing", StaticPrices{}},
		{"wrong currency", StaticPrices{"AAPL": HKD(10), "GOOG": HKD(10), "HSBC": HKD(10)}},
		{"zero", StaticPrices{"AAPL": USD(0), "GOOG": USD(0), "HSBC": USD(0)}},
		{"timeout", slowPrices{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := &PositionAggregator{Prices: tt.prices, Timeout: 10 * time.Millisecond, Log: zerolog.Nop()}
			for _, p := range agg.Aggregate(ctx, replays, failures) {
				if !p.PriceStale || p.MarketValue != nil || p.Price != nil {
					t.Errorf("%s = %+v, want stale without value", p.Symbol, p)
				}
			}
		})
	}
}
