package stocker

import (
	"errors"
	"reflect"
	"testing"
)

func TestLedger_Order(t *testing.T) {
	// same-day entries keep their creation order whatever the insertion order.
	txs := seq(
		buy("2025-01-15", "AAPL", 10, 150, 0),
		sell("2025-01-15", "AAPL", 5, 155, 0),
		buy("2025-01-10", "GOOG", 2, 2800, 0),
	)
	ledger := NewLedger("alice", txs[1], txs[2], txs[0])

	var got []string
	for _, e := range ledger.Entries() {
		got = append(got, e.EntryID())
	}
	want := []string{txs[2].ID, txs[0].ID, txs[1].ID}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Entries() order = %v, want %v", got, want)
	}
}

func TestLedger_Transactions(t *testing.T) {
	txs := seq(
		buy("2025-01-10", "AAPL", 10, 150, 0),
		sell("2025-01-15", "AAPL", 5, 155, 0),
		buy("2025-01-15", "GOOG", 2, 2800, 0),
		NewDividend(day("2025-01-20"), "alice", "AAPL", Q(5), USD(0.2), USD(0)),
	)
	deposit := NewDeposit(day("2025-01-22"), "alice", USD(1000))
	ledger := NewLedger("alice", append(entries(txs...), deposit)...)

	testCases := []struct {
		name    string
		symbol  string
		maxDate string
		want    []Transaction
	}{
		{name: "AAPL before any transactions", symbol: "AAPL", maxDate: "2025-01-01", want: nil},
		{name: "AAPL on the day of first buy", symbol: "AAPL", maxDate: "2025-01-10", want: txs[:1]},
		{name: "AAPL on the day of the sell", symbol: "AAPL", maxDate: "2025-01-15", want: txs[:2]},
		{name: "AAPL after all its transactions", symbol: "AAPL", maxDate: "2025-02-01", want: []Transaction{txs[0], txs[1], txs[3]}},
		{name: "GOOG on the day of its transaction", symbol: "GOOG", maxDate: "2025-01-15", want: txs[2:3]},
		{name: "Symbol with no transactions", symbol: "MSFT", maxDate: "2025-02-01", want: nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ledger.AsOf(day(tc.maxDate)).Transactions(tc.symbol)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("AsOf(%s).Transactions(%q) = %v, want %v", tc.maxDate, tc.symbol, got, tc.want)
			}
		})
	}

	if got, want := ledger.Symbols(), []string{"AAPL", "GOOG"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Symbols() = %v, want %v", got, want)
	}
	if got := ledger.CashFlows(); len(got) != 1 || got[0].ID != deposit.ID {
		t.Errorf("CashFlows() = %v, want [%v]", got, deposit)
	}
}

func TestLedger_Mutations(t *testing.T) {
	ledger := NewLedger("alice")
	b := buy("2025-01-10", "AAPL", 10, 150, 0)
	if err := ledger.Append(b); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := ledger.Append(b); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Append(duplicate) error = %v, want ErrInvalidInput", err)
	}
	bob := NewBuy(day("2025-01-10"), "bob", "AAPL", Q(1), USD(1), USD(0))
	if err := ledger.Append(bob); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Append(other user) error = %v, want ErrInvalidInput", err)
	}

	amended := b
	amended.Quantity = Q(20)
	if err := ledger.Replace(amended); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if e, _ := ledger.Get(b.ID); !e.(Transaction).Quantity.Equal(Q(20)) {
		t.Errorf("Get() after Replace = %v, want quantity 20", e)
	}

	flow := NewDeposit(day("2025-01-10"), "alice", USD(10))
	flow.ID = b.ID
	if err := ledger.Replace(flow); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Replace(trade with cash flow) error = %v, want ErrInvalidInput", err)
	}
	if err := ledger.Replace(buy("2025-01-10", "AAPL", 1, 1, 0)); !errors.Is(err, ErrNotFound) {
		t.Errorf("Replace(unknown) error = %v, want ErrNotFound", err)
	}

	if err := ledger.Remove(b.ID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if ledger.Len() != 0 {
		t.Errorf("Len() after Remove = %d, want 0", ledger.Len())
	}
	if err := ledger.Remove(b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Remove(unknown) error = %v, want ErrNotFound", err)
	}
}
