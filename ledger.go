package stocker

import (
	"fmt"
	"iter"
	"slices"
	"sort"
)

// Ledger is the time-ordered sequence of one user's transactions and cash flows.
//
// Entries are kept sorted by date, then creation instant, then insertion order.
type Ledger struct {
	user    string
	entries []Entry
}

// NewLedger returns the ledger of user holding entries.
// Entries are not validated, only sorted.
func NewLedger(user string, entries ...Entry) *Ledger {
	l := &Ledger{user: user, entries: slices.Clone(entries)}
	l.stableSort()
	return l
}

// User returns the owner of the ledger.
func (l *Ledger) User() string { return l.user }

// Len returns the number of entries.
func (l *Ledger) Len() int { return len(l.entries) }

// Append validates and inserts entries in chronological order.
func (l *Ledger) Append(entries ...Entry) error {
	for _, e := range entries {
		if err := l.check(e); err != nil {
			return err
		}
		if _, exists := l.Get(e.EntryID()); exists {
			return fmt.Errorf("%w: duplicate entry id %q", ErrInvalidInput, e.EntryID())
		}
		l.entries = append(l.entries, e)
	}
	l.stableSort()
	return nil
}

// Replace swaps the entry with the same id as e.
func (l *Ledger) Replace(e Entry) error {
	if err := l.check(e); err != nil {
		return err
	}
	i := l.index(e.EntryID())
	if i < 0 {
		return fmt.Errorf("entry %q: %w", e.EntryID(), ErrNotFound)
	}
	if l.entries[i].What().IsTrade() != e.What().IsTrade() {
		return fmt.Errorf("%w: entry %q cannot change from %s to %s", ErrInvalidInput, e.EntryID(), l.entries[i].What(), e.What())
	}
	l.entries[i] = e
	l.stableSort()
	return nil
}

// Remove deletes the entry with the given id.
func (l *Ledger) Remove(id string) error {
	i := l.index(id)
	if i < 0 {
		return fmt.Errorf("entry %q: %w", id, ErrNotFound)
	}
	l.entries = slices.Delete(l.entries, i, i+1)
	return nil
}

// Get returns the entry with the given id.
func (l *Ledger) Get(id string) (Entry, bool) {
	i := l.index(id)
	if i < 0 {
		return nil, false
	}
	return l.entries[i], true
}

func (l *Ledger) index(id string) int {
	return slices.IndexFunc(l.entries, func(e Entry) bool { return e.EntryID() == id })
}

func (l *Ledger) check(e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.Owner() != l.user {
		return fmt.Errorf("%w: entry %q belongs to %q, not %q", ErrInvalidInput, e.EntryID(), e.Owner(), l.user)
	}
	return nil
}

// Entries returns an iterator over the entries that match all filters, in chronological order.
func (l *Ledger) Entries(filters ...func(Entry) bool) iter.Seq2[int, Entry] {
	return func(yield func(int, Entry) bool) {
	next:
		for i, e := range l.entries {
			for _, accept := range filters {
				if !accept(e) {
					continue next
				}
			}
			if !yield(i, e) {
				return
			}
		}
	}
}

// BySymbol accepts transactions on symbol.
func BySymbol(symbol string) func(Entry) bool {
	return func(e Entry) bool {
		t, ok := e.(Transaction)
		return ok && t.Symbol == symbol
	}
}

// Until accepts entries dated on or before day.
func Until(day Date) func(Entry) bool {
	return func(e Entry) bool { return !e.When().After(day) }
}

// Transactions returns the transactions on symbol in chronological order.
func (l *Ledger) Transactions(symbol string) []Transaction {
	var txs []Transaction
	for _, e := range l.Entries(BySymbol(symbol)) {
		txs = append(txs, e.(Transaction))
	}
	return txs
}

// CashFlows returns all cash flows in chronological order.
func (l *Ledger) CashFlows() []CashFlow {
	var flows []CashFlow
	for _, e := range l.entries {
		if c, ok := e.(CashFlow); ok {
			flows = append(flows, c)
		}
	}
	return flows
}

// Symbols returns the sorted list of symbols that have at least one transaction.
func (l *Ledger) Symbols() []string {
	var symbols []string
	for _, e := range l.entries {
		if t, ok := e.(Transaction); ok && !slices.Contains(symbols, t.Symbol) {
			symbols = append(symbols, t.Symbol)
		}
	}
	slices.Sort(symbols)
	return symbols
}

// AsOf returns the sub-ledger of entries dated on or before day.
func (l *Ledger) AsOf(day Date) *Ledger {
	sub := &Ledger{user: l.user}
	for _, e := range l.Entries(Until(day)) {
		sub.entries = append(sub.entries, e)
	}
	return sub
}

// stableSort sorts the entries by date, then creation instant, keeping insertion order for ties.
func (l *Ledger) stableSort() {
	sort.SliceStable(l.entries, func(i, j int) bool {
		a, b := l.entries[i], l.entries[j]
		if c := a.When().Compare(b.When()); c != 0 {
			return c < 0
		}
		return a.Created().Before(b.Created())
	})
}
