package stocker

import (
	"fmt"
	"slices"
)

// Side is the direction of a lot or position.
type Side string

const (
	Flat  Side = ""
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Lot is a slice of an opening trade still awaiting an offsetting trade.
//
// UnitCost is the trade price; fees are tracked apart in Fees, which holds the
// part of the opening fee not yet charged to a closing match.
type Lot struct {
	Open      string // id of the opening transaction
	Side      Side
	Date      Date
	Remaining Quantity
	UnitCost  Money
	Fees      Money
}

// RealizedEvent is produced each time a lot is partially or fully closed.
type RealizedEvent struct {
	Symbol         string
	Side           Side // side of the closed lot
	ClosedQuantity Quantity
	EntryPrice     Money
	ExitPrice      Money
	EntryDate      Date
	ExitDate       Date
	Fees           Money // entry and exit fee shares charged to this match
	RealizedPL     Money
	Open, Close    string // ids of the opening and closing transactions
}

// Currency returns the currency of the event amounts.
func (e RealizedEvent) Currency() string { return e.RealizedPL.Currency() }

// HoldingDays returns the number of days between opening and closing.
func (e RealizedEvent) HoldingDays() int { return e.EntryDate.DaysUntil(e.ExitDate) }

// CostBasis returns entry price × closed quantity.
func (e RealizedEvent) CostBasis() Money { return e.EntryPrice.Mul(e.ClosedQuantity) }

// MatchOptions tunes a replay.
type MatchOptions struct {
	// AllowShort lets a sell without long inventory open a short lot. When
	// false such a sell is an inconsistent ledger.
	AllowShort bool
}

// Replay is the result of matching one symbol's transactions.
type Replay struct {
	Symbol    string
	Currency  string
	Events    []RealizedEvent
	Dividends Money // dividend income net of fees

	long, short []Lot // FIFO queues, oldest first
}

// MatchLots replays txs, the chronologically ordered transactions of a single
// symbol, with FIFO matching on both sides.
//
// A buy first closes short lots, oldest first, and opens a long lot with what
// is left; a sell does the converse. Dividends never touch inventory.
//
// Fees are charged to realized P&L as lots get closed: a closing match is
// charged its prorated share of the closing trade fee plus the prorated share
// of the closed lot's unconsumed opening fee. The part of a trade fee that
// belongs to the quantity opening a new lot becomes that lot's Fees.
func MatchLots(symbol string, txs []Transaction, opts MatchOptions) (*Replay, error) {
	r := &Replay{Symbol: symbol}
	for _, tx := range txs {
		if tx.Symbol != symbol {
			return nil, fmt.Errorf("%w: transaction %s is on %q, not %q", ErrInvalidInput, tx.ID, tx.Symbol, symbol)
		}
		if err := tx.Validate(); err != nil {
			return nil, err
		}
		if r.Currency == "" {
			r.Currency = tx.Currency()
			r.Dividends = M(0, r.Currency)
		}
		if tx.Currency() != r.Currency {
			return nil, fmt.Errorf("%w: %s traded in both %s and %s", ErrInconsistentLedger, symbol, r.Currency, tx.Currency())
		}

		switch tx.Action {
		case CmdDividend:
			r.Dividends = r.Dividends.Add(tx.Gross().Sub(tx.fees()))
		case CmdBuy:
			left, fee := r.close(&r.short, tx)
			r.open(&r.long, Long, tx, left, fee)
		case CmdSell:
			if !opts.AllowShort && total(r.long).LessThan(tx.Quantity) {
				return nil, fmt.Errorf("%w: %s sells %s on %s with %s held and short selling disabled",
					ErrInconsistentLedger, symbol, tx.Quantity, tx.Date, total(r.long))
			}
			left, fee := r.close(&r.long, tx)
			r.open(&r.short, Short, tx, left, fee)
		}
	}
	return r, nil
}

// close matches tx against queue and returns the quantity and fee left unmatched.
func (r *Replay) close(queue *[]Lot, tx Transaction) (Quantity, Money) {
	q := tx.Quantity
	fee := tx.fees()
	for q.IsPositive() && len(*queue) > 0 {
		lot := &(*queue)[0]
		m := MinQ(q, lot.Remaining)

		entryFee := lot.Fees
		if m.LessThan(lot.Remaining) {
			entryFee = lot.Fees.Mul(m).Div(lot.Remaining)
		}
		exitFee := fee
		if m.LessThan(q) {
			exitFee = tx.fees().Mul(m).Div(tx.Quantity)
		}

		diff := tx.Price.Sub(lot.UnitCost)
		if lot.Side == Short {
			diff = diff.Neg()
		}
		fees := entryFee.Add(exitFee)
		r.Events = append(r.Events, RealizedEvent{
			Symbol:         r.Symbol,
			Side:           lot.Side,
			ClosedQuantity: m,
			EntryPrice:     lot.UnitCost,
			ExitPrice:      tx.Price,
			EntryDate:      lot.Date,
			ExitDate:       tx.Date,
			Fees:           fees,
			RealizedPL:     diff.Mul(m).Sub(fees),
			Open:           lot.Open,
			Close:          tx.ID,
		})

		lot.Remaining = lot.Remaining.Sub(m)
		lot.Fees = lot.Fees.Sub(entryFee)
		fee = fee.Sub(exitFee)
		q = q.Sub(m)
		if lot.Remaining.IsZero() {
			*queue = (*queue)[1:]
		}
	}
	return q, fee
}

func (r *Replay) open(queue *[]Lot, side Side, tx Transaction, q Quantity, fee Money) {
	if !q.IsPositive() {
		return
	}
	*queue = append(*queue, Lot{
		Open:      tx.ID,
		Side:      side,
		Date:      tx.Date,
		Remaining: q,
		UnitCost:  tx.Price,
		Fees:      fee,
	})
}

func total(lots []Lot) Quantity {
	var q Quantity
	for _, l := range lots {
		q = q.Add(l.Remaining)
	}
	return q
}

// Side returns the open side, Flat if there is no open lot.
func (r *Replay) Side() Side {
	switch {
	case len(r.long) > 0:
		return Long
	case len(r.short) > 0:
		return Short
	}
	return Flat
}

// OpenLots returns a copy of the open lots of the open side, oldest first.
func (r *Replay) OpenLots() []Lot {
	if len(r.long) > 0 {
		return slices.Clone(r.long)
	}
	return slices.Clone(r.short)
}

// Quantity returns the signed open quantity: positive when long, negative when short.
func (r *Replay) Quantity() Quantity {
	return total(r.long).Sub(total(r.short))
}

// CostBasis returns Σ unit cost × remaining over the open lots, as a positive amount.
func (r *Replay) CostBasis() Money {
	c := M(0, r.Currency)
	for _, l := range r.OpenLots() {
		c = c.Add(l.UnitCost.Mul(l.Remaining))
	}
	return c
}

// AvgCost returns the quantity-weighted mean unit cost of the open lots.
// It is recomputed from the lots on every call.
func (r *Replay) AvgCost() Money {
	q := r.Quantity().Abs()
	if q.IsZero() {
		return M(0, r.Currency)
	}
	return r.CostBasis().Div(q)
}

// RealizedPL returns the sum of the realized P&L of all closing matches.
func (r *Replay) RealizedPL() Money {
	pl := M(0, r.Currency)
	for _, e := range r.Events {
		pl = pl.Add(e.RealizedPL)
	}
	return pl
}

// Unrealized returns the paper P&L of the open lots marked at price.
// It equals (price - AvgCost) × Quantity without the rounding of AvgCost.
func (r *Replay) Unrealized(price Money) Money {
	value := price.Mul(r.Quantity().Abs()).Sub(r.CostBasis())
	if r.Side() == Short {
		return value.Neg()
	}
	return value
}
