package stocker

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// MarshalJSON writes the transaction as a flat object with ordered keys.
func (t Transaction) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("command", t.Action)
	w.Append("date", t.Date)
	w.Append("id", t.ID)
	w.Optional("user", t.User)
	w.Append("symbol", t.Symbol)
	w.Append("quantity", t.Quantity)
	w.Append("price", t.Price.Decimal())
	w.Optional("fees", t.Fees.Decimal())
	w.Append("currency", t.Currency())
	w.Optional("notes", t.Notes)
	w.Optional("created", t.CreatedAt)
	return w.MarshalJSON()
}

// MarshalJSON writes the cash flow as a flat object with ordered keys.
func (c CashFlow) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("command", c.Type)
	w.Append("date", c.Date)
	w.Append("id", c.ID)
	w.Optional("user", c.User)
	w.Append("amount", c.Amount.Decimal())
	w.Append("currency", c.Currency())
	w.Optional("notes", c.Notes)
	w.Optional("created", c.CreatedAt)
	return w.MarshalJSON()
}

// entryLine has all possible fields of a ledger line.
type entryLine struct {
	Command  string          `json:"command"`
	Date     Date            `json:"date"`
	ID       string          `json:"id"`
	User     string          `json:"user"`
	Symbol   string          `json:"symbol"`
	Quantity Quantity        `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Fees     decimal.Decimal `json:"fees"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Notes    string          `json:"notes"`
	Created  time.Time       `json:"created"`
}

// DecodeEntries decodes ledger entries from a stream of JSONL data.
//
// Lines without a user are assigned to user, lines without an id get a fresh
// one, and lines without a creation instant are stamped in reading order so
// that same-day entries keep the file order. Entries are not validated.
func DecodeEntries(r io.Reader, user string) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	stamp := time.Now().UTC()
	lineno := 0
	for scanner.Scan() {
		lineno++
		lineBytes := scanner.Bytes()
		if len(lineBytes) == 0 {
			continue // Skip empty lines
		}
		var l entryLine
		if err := json.Unmarshal(lineBytes, &l); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineno, err)
		}
		cmd, err := ParseCommand(l.Command)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineno, err)
		}
		if l.User == "" {
			l.User = user
		}
		if l.ID == "" {
			l.ID = NewID()
		}
		if l.Created.IsZero() {
			l.Created = stamp.Add(time.Duration(lineno))
		}

		switch {
		case cmd.IsTrade():
			entries = append(entries, Transaction{
				ID:        l.ID,
				User:      l.User,
				Symbol:    l.Symbol,
				Action:    cmd,
				Date:      l.Date,
				Price:     M(l.Price, l.Currency),
				Quantity:  l.Quantity,
				Fees:      M(l.Fees, l.Currency),
				Notes:     l.Notes,
				CreatedAt: l.Created,
			})
		case cmd.IsCashFlow():
			entries = append(entries, CashFlow{
				ID:        l.ID,
				User:      l.User,
				Type:      cmd,
				Date:      l.Date,
				Amount:    M(l.Amount, l.Currency),
				Notes:     l.Notes,
				CreatedAt: l.Created,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading from input: %w", err)
	}
	return entries, nil
}

// DecodeLedger decodes the JSONL stream into a validated ledger for user.
func DecodeLedger(r io.Reader, user string) (*Ledger, error) {
	entries, err := DecodeEntries(r, user)
	if err != nil {
		return nil, err
	}
	ledger := NewLedger(user)
	if err := ledger.Append(entries...); err != nil {
		return nil, err
	}
	return ledger, nil
}

// EncodeEntry marshals a single entry to JSON and writes it to the
// writer, followed by a newline, in JSONL format.
func EncodeEntry(w io.Writer, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entry %s: %w", e.EntryID(), err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}
	return nil
}

// EncodeLedger writes the ledger entries in chronological order in JSONL format.
func EncodeLedger(w io.Writer, ledger *Ledger) error {
	for _, e := range ledger.Entries() {
		if err := EncodeEntry(w, e); err != nil {
			return err
		}
	}
	return nil
}
