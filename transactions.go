package stocker

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CommandType is a typed string for identifying ledger entries.
type CommandType string

// Command types used for identifying ledger entries.
const (
	CmdBuy      CommandType = "buy"
	CmdSell     CommandType = "sell"
	CmdDividend CommandType = "dividend"
	CmdDeposit  CommandType = "deposit"
	CmdWithdraw CommandType = "withdraw"
)

// ParseCommand parses a command name, case-insensitively ("BUY" and "buy" are the same).
func ParseCommand(s string) (CommandType, error) {
	c := CommandType(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CmdBuy, CmdSell, CmdDividend, CmdDeposit, CmdWithdraw:
		return c, nil
	}
	return "", fmt.Errorf("%w: unknown command %q", ErrInvalidInput, s)
}

// IsTrade reports whether c is a Transaction action.
func (c CommandType) IsTrade() bool { return c == CmdBuy || c == CmdSell || c == CmdDividend }

// IsCashFlow reports whether c is a CashFlow type.
func (c CommandType) IsCashFlow() bool { return c == CmdDeposit || c == CmdWithdraw }

// Entry is a record of a user's ledger: either a Transaction or a CashFlow.
//
// The set of implementations is closed; callers resolve the concrete type with
// a type switch.
type Entry interface {
	EntryID() string    // EntryID returns the unique id of the entry.
	Owner() string      // Owner returns the user the entry belongs to.
	What() CommandType  // What returns the command type of the entry.
	When() Date         // When returns the date on which the entry occurred.
	Created() time.Time // Created returns the creation instant, used to order same-day entries.
	Validate() error
	// CashEffect returns the signed effect of the entry on its currency's cash balance.
	CashEffect() Money

	entry()
}

// NewID returns a fresh entry id.
func NewID() string { return uuid.NewString() }

// Transaction is a trade (buy or sell) or a dividend on a symbol.
//
// Quantity is always a positive magnitude, the direction comes from Action.
// Price and Fees carry the trading currency.
type Transaction struct {
	ID        string
	User      string
	Symbol    string
	Action    CommandType
	Date      Date
	Price     Money
	Quantity  Quantity
	Fees      Money
	Notes     string
	CreatedAt time.Time
}

// NewBuy creates a new buy Transaction.
func NewBuy(day Date, user, symbol string, quantity Quantity, price, fees Money) Transaction {
	return newTransaction(CmdBuy, day, user, symbol, quantity, price, fees)
}

// NewSell creates a new sell Transaction.
func NewSell(day Date, user, symbol string, quantity Quantity, price, fees Money) Transaction {
	return newTransaction(CmdSell, day, user, symbol, quantity, price, fees)
}

// NewDividend creates a new dividend Transaction: quantity shares paid price each.
func NewDividend(day Date, user, symbol string, quantity Quantity, price, fees Money) Transaction {
	return newTransaction(CmdDividend, day, user, symbol, quantity, price, fees)
}

func newTransaction(action CommandType, day Date, user, symbol string, quantity Quantity, price, fees Money) Transaction {
	return Transaction{
		ID:        NewID(),
		User:      user,
		Symbol:    symbol,
		Action:    action,
		Date:      day,
		Price:     price,
		Quantity:  quantity,
		Fees:      fees,
		CreatedAt: time.Now().UTC(),
	}
}

func (t Transaction) EntryID() string    { return t.ID }
func (t Transaction) Owner() string      { return t.User }
func (t Transaction) What() CommandType  { return t.Action }
func (t Transaction) When() Date         { return t.Date }
func (t Transaction) Created() time.Time { return t.CreatedAt }
func (Transaction) entry()               {}

// Currency returns the trading currency of the transaction.
func (t Transaction) Currency() string { return t.Price.Currency() }

// Gross returns price × quantity.
func (t Transaction) Gross() Money { return t.Price.Mul(t.Quantity) }

// fees returns the fees in the trading currency, zero if unset.
func (t Transaction) fees() Money { return Money{value: t.Fees.value, cur: t.Currency()} }

// CashEffect returns -(price×quantity+fees) for a buy and price×quantity-fees otherwise.
func (t Transaction) CashEffect() Money {
	switch t.Action {
	case CmdBuy:
		return t.Gross().Add(t.fees()).Neg()
	default:
		return t.Gross().Sub(t.fees())
	}
}

// Validate checks the transaction fields.
func (t Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidInput)
	}
	if t.User == "" {
		return fmt.Errorf("%w: missing user", ErrInvalidInput)
	}
	if t.Symbol == "" {
		return fmt.Errorf("%w: missing symbol", ErrInvalidInput)
	}
	if !t.Action.IsTrade() {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidInput, t.Action)
	}
	if t.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidInput)
	}
	if err := ValidateCurrency(t.Currency()); err != nil {
		return fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	if !t.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive, got %s", ErrInvalidInput, t.Price.Decimal())
	}
	if !t.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive, got %s", ErrInvalidInput, t.Quantity)
	}
	if t.Fees.IsNegative() {
		return fmt.Errorf("%w: fees must not be negative, got %s", ErrInvalidInput, t.Fees.Decimal())
	}
	if c := t.Fees.Currency(); c != "" && c != t.Currency() {
		return fmt.Errorf("%w: fees in %s for a trade in %s", ErrInvalidInput, c, t.Currency())
	}
	return nil
}

// CashFlow is a deposit or a withdrawal of cash.
type CashFlow struct {
	ID        string
	User      string
	Type      CommandType
	Date      Date
	Amount    Money
	Notes     string
	CreatedAt time.Time
}

// NewDeposit creates a new deposit CashFlow.
func NewDeposit(day Date, user string, amount Money) CashFlow {
	return CashFlow{ID: NewID(), User: user, Type: CmdDeposit, Date: day, Amount: amount, CreatedAt: time.Now().UTC()}
}

// NewWithdraw creates a new withdraw CashFlow.
func NewWithdraw(day Date, user string, amount Money) CashFlow {
	return CashFlow{ID: NewID(), User: user, Type: CmdWithdraw, Date: day, Amount: amount, CreatedAt: time.Now().UTC()}
}

func (c CashFlow) EntryID() string    { return c.ID }
func (c CashFlow) Owner() string      { return c.User }
func (c CashFlow) What() CommandType  { return c.Type }
func (c CashFlow) When() Date         { return c.Date }
func (c CashFlow) Created() time.Time { return c.CreatedAt }
func (CashFlow) entry()               {}

// Currency returns the currency of the cash flow.
func (c CashFlow) Currency() string { return c.Amount.Currency() }

// CashEffect returns +amount for a deposit and -amount for a withdrawal.
func (c CashFlow) CashEffect() Money {
	if c.Type == CmdWithdraw {
		return c.Amount.Neg()
	}
	return c.Amount
}

// Validate checks the cash flow fields.
func (c CashFlow) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidInput)
	}
	if c.User == "" {
		return fmt.Errorf("%w: missing user", ErrInvalidInput)
	}
	if !c.Type.IsCashFlow() {
		return fmt.Errorf("%w: unknown cash flow type %q", ErrInvalidInput, c.Type)
	}
	if c.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidInput)
	}
	if err := ValidateCurrency(c.Currency()); err != nil {
		return fmt.Errorf("cash flow %s: %w", c.ID, err)
	}
	if !c.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidInput, c.Amount.Decimal())
	}
	return nil
}
