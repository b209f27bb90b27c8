package stocker

import (
	"errors"
	"testing"
)

func TestMatchLots_ShortFlip(t *testing.T) {
	txs := seq(
		sell("2025-01-10", "AAPL", 100, 10, 0),
		buy("2025-01-20", "AAPL", 150, 8, 0),
	)
	r, err := MatchLots("AAPL", txs, MatchOptions{AllowShort: true})
	if err != nil {
		t.Fatalf("MatchLots() error = %v", err)
	}

	if got, want := r.Quantity(), Q(50); !got.Equal(want) {
		t.Errorf("Quantity() = %v, want %v", got, want)
	}
	if got, want := r.Side(), Long; got != want {
		t.Errorf("Side() = %v, want %v", got, want)
	}
	mustEqual(t, "AvgCost()", r.AvgCost(), USD(8))
	mustEqual(t, "RealizedPL()", r.RealizedPL(), USD(200))

	if len(r.Events) != 1 {
		t.Fatalf("len(Events) = %d, want 1", len(r.Events))
	}
	e := r.Events[0]
	if e.Side != Short || !e.ClosedQuantity.Equal(Q(100)) {
		t.Errorf("event = %v %v, want SHORT 100", e.Side, e.ClosedQuantity)
	}
	mustEqual(t, "event.EntryPrice", e.EntryPrice, USD(10))
	mustEqual(t, "event.ExitPrice", e.ExitPrice, USD(8))
	if got := r.OpenLots(); len(got) != 1 || got[0].Side != Long || !got[0].Remaining.Equal(Q(50)) {
		t.Errorf("OpenLots() = %+v, want one long lot of 50", got)
	}
}

func TestMatchLots_PartialCloseWithFees(t *testing.T) {
	txs := seq(
		buy("2025-01-10", "AAPL", 10, 100, 5),
		sell("2025-02-10", "AAPL", 4, 120, 2),
	)
	r, err := MatchLots("AAPL", txs, MatchOptions{AllowShort: true})
	if err != nil {
		t.Fatalf("MatchLots() error = %v", err)
	}

	// (120-100)*4 - entry fee share 5*4/10 - exit fee 2
	mustEqual(t, "RealizedPL()", r.RealizedPL(), USD(76))
	mustEqual(t, "event.Fees", r.Events[0].Fees, USD(4))

	lots := r.OpenLots()
	if len(lots) != 1 {
		t.Fatalf("len(OpenLots()) = %d, want 1", len(lots))
	}
	if got, want := lots[0].Remaining, Q(6); !got.Equal(want) {
		t.Errorf("lot.Remaining = %v, want %v", got, want)
	}
	mustEqual(t, "lot.UnitCost", lots[0].UnitCost, USD(100))
	mustEqual(t, "lot.Fees", lots[0].Fees, USD(3))

	// closing the rest charges the remaining entry fee.
	txs = append(txs, seq(sell("2025-03-10", "AAPL", 6, 100, 0))...)
	r, err = MatchLots("AAPL", txs, MatchOptions{AllowShort: true})
	if err != nil {
		t.Fatalf("MatchLots() error = %v", err)
	}
	mustEqual(t, "RealizedPL() after full close", r.RealizedPL(), USD(73))
	if !r.Quantity().IsZero() {
		t.Errorf("Quantity() = %v, want 0", r.Quantity())
	}
}

func TestMatchLots_RoundTrip(t *testing.T) {
	txs := seq(
		buy("2025-01-10", "AAPL", 7, 123.45, 0),
		sell("2025-01-10", "AAPL", 7, 123.45, 0),
	)
	r, err := MatchLots("AAPL", txs, MatchOptions{AllowShort: true})
	if err != nil {
		t.Fatalf("MatchLots() error = %v", err)
	}
	mustEqual(t, "RealizedPL()", r.RealizedPL(), USD(0))
	if len(r.OpenLots()) != 0 {
		t.Errorf("OpenLots() = %v, want none", r.OpenLots())
	}
	if r.Side() != Flat {
		t.Errorf("Side() = %v, want flat", r.Side())
	}
}

func TestMatchLots_FIFO(t *testing.T) {
	txs := seq(
		buy("2025-01-01", "MSFT", 10, 100, 0),
		buy("2025-01-02", "MSFT", 10, 110, 0),
		buy("2025-01-03", "MSFT", 10, 120, 0),
		sell("2025-01-04", "MSFT", 15, 130, 0),
	)
	r, err := MatchLots("MSFT", txs, MatchOptions{AllowShort: true})
	if err != nil {
		t.Fatalf("MatchLots() error = %v", err)
	}
	if len(r.Events) != 2 {
		t.Fatalf("len(Events) = %d, want 2", len(r.Events))
	}
	// oldest lot first, then half of the second one.
	mustEqual(t, "Events[0].EntryPrice", r.Events[0].EntryPrice, USD(100))
	mustEqual(t, "Events[0].RealizedPL", r.Events[0].RealizedPL, USD(300))
	mustEqual(t, "Events[1].EntryPrice", r.Events[1].EntryPrice, USD(110))
	mustEqual(t, "Events[1].RealizedPL", r.Events[1].RealizedPL, USD(100))

	// conservation: open lots sum to the position quantity.
	var sum Quantity
	for _, l := range r.OpenLots() {
		sum = sum.Add(l.Remaining)
	}
	if !sum.Equal(r.Quantity().Abs()) {
		t.Errorf("sum of lots = %v, want %v", sum, r.Quantity())
	}
	mustEqual(t, "CostBasis()", r.CostBasis(), USD(5*110+10*120))
	mustEqual(t, "Unrealized(130)", r.Unrealized(USD(130)), USD(200))
}

func TestMatchLots_ShortUnrealized(t *testing.T) {
	txs := seq(
		sell("2025-01-01", "TSLA", 10, 200, 0),
		sell("2025-01-02", "TSLA", 10, 220, 0),
	)
	r, err := MatchLots("TSLA", txs, MatchOptions{AllowShort: true})
	if err != nil {
		t.Fatalf("MatchLots() error = %v", err)
	}
	if got, want := r.Quantity(), Q(-20); !got.Equal(want) {
		t.Errorf("Quantity() = %v, want %v", got, want)
	}
	mustEqual(t, "AvgCost()", r.AvgCost(), USD(210))
	// (190-210) * -20
	mustEqual(t, "Unrealized(190)", r.Unrealized(USD(190)), USD(400))
}

func TestMatchLots_FlipCarriesFee(t *testing.T) {
	txs := seq(
		buy("2025-01-01", "AAPL", 10, 50, 0),
		sell("2025-01-02", "AAPL", 40, 60, 8),
	)
	r, err := MatchLots("AAPL", txs, MatchOptions{AllowShort: true})
	if err != nil {
		t.Fatalf("MatchLots() error = %v", err)
	}
	// 10 closed with a quarter of the fee, 30 opened short with the rest.
	mustEqual(t, "RealizedPL()", r.RealizedPL(), USD(98))
	lots := r.OpenLots()
	if len(lots) != 1 || lots[0].Side != Short || !lots[0].Remaining.Equal(Q(30)) {
		t.Fatalf("OpenLots() = %+v, want one short lot of 30", lots)
	}
	mustEqual(t, "lot.Fees", lots[0].Fees, USD(6))
}

func TestMatchLots_Dividends(t *testing.T) {
	txs := seq(
		buy("2025-01-01", "KO", 100, 60, 0),
		NewDividend(day("2025-03-01"), "alice", "KO", Q(100), USD(0.5), USD(1)),
	)
	r, err := MatchLots("KO", txs, MatchOptions{AllowShort: true})
	if err != nil {
		t.Fatalf("MatchLots() error = %v", err)
	}
	mustEqual(t, "Dividends", r.Dividends, USD(49))
	mustEqual(t, "RealizedPL()", r.RealizedPL(), USD(0))
	if got, want := r.Quantity(), Q(100); !got.Equal(want) {
		t.Errorf("Quantity() = %v, want %v", got, want)
	}
}

func TestMatchLots_Errors(t *testing.T) {
	tests := []struct {
		name string
		txs  []Transaction
		opts MatchOptions
		want error
	}{
		{
			name: "sell without inventory when shorting is disabled",
			txs:  seq(sell("2025-01-01", "AAPL", 1, 10, 0)),
			want: ErrInconsistentLedger,
		},
		{
			name: "oversell when shorting is disabled",
			txs:  seq(buy("2025-01-01", "AAPL", 1, 10, 0), sell("2025-01-02", "AAPL", 2, 10, 0)),
			want: ErrInconsistentLedger,
		},
		{
			name: "mixed currencies",
			txs: seq(
				buy("2025-01-01", "0700.HK", 1, 10, 0),
				NewBuy(day("2025-01-02"), "alice", "0700.HK", Q(1), HKD(300), HKD(0)),
			),
			opts: MatchOptions{AllowShort: true},
			want: ErrInconsistentLedger,
		},
		{
			name: "zero price",
			txs:  seq(buy("2025-01-01", "AAPL", 1, 0, 0)),
			opts: MatchOptions{AllowShort: true},
			want: ErrInvalidInput,
		},
		{
			name: "zero quantity",
			txs:  seq(buy("2025-01-01", "AAPL", 0, 10, 0)),
			opts: MatchOptions{AllowShort: true},
			want: ErrInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MatchLots(tt.txs[0].Symbol, tt.txs, tt.opts)
			if !errors.Is(err, tt.want) {
				t.Errorf("MatchLots() error = %v, want %v", err, tt.want)
			}
		})
	}
}
