package stocker

// CashBook holds the per-currency cash state of a ledger. Nothing is converted.
type CashBook struct {
	// Balances is the cash held per currency: deposits minus withdrawals plus
	// the cash effect of every trade and dividend.
	Balances map[string]Money
	// Invested is the cumulative net deposits per currency.
	Invested map[string]Money
}

// AggregateCash folds the cash flows and trade cash effects of l, in
// chronological order, into per-currency balances.
//
// A buy debits price×quantity+fees, a sell or a dividend credits
// price×quantity−fees, a deposit credits and a withdrawal debits its amount.
func AggregateCash(l *Ledger) CashBook {
	book := CashBook{Balances: make(map[string]Money), Invested: make(map[string]Money)}
	for _, e := range l.Entries() {
		switch e := e.(type) {
		case Transaction:
			book.add(book.Balances, e.CashEffect())
		case CashFlow:
			book.add(book.Balances, e.CashEffect())
			book.add(book.Invested, e.CashEffect())
		}
	}
	return book
}

func (b CashBook) add(m map[string]Money, amount Money) {
	cur := amount.Currency()
	m[cur] = m[cur].Add(amount)
}

// Currencies returns the sorted currencies that hold a balance or an investment.
func (b CashBook) Currencies() []string {
	set := make(map[string]bool)
	for c := range b.Balances {
		set[c] = true
	}
	for c := range b.Invested {
		set[c] = true
	}
	return sortedKeys(set)
}
