package stocker

import (
	"encoding/json"
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Money is an amount in a currency. The zero currency "" is a wildcard
// that adopts the currency of the other operand.
type Money struct {
	value      decimal.Decimal // major unit
	cur        string
	fractional bool // marshal every digit instead of the minor unit
}

// M returns value in currency.
func M[T float32 | float64 | int | int32 | int64 | uint | uint32 | uint64 | decimal.Decimal](value T, currency string) Money {
	return Money{value: newDecimal(value), cur: currency}
}

// ParseMoney parses a decimal amount in the given currency.
func ParseMoney(amount, currency string) (Money, error) {
	if err := ValidateCurrency(currency); err != nil {
		return Money{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("%w: amount %q: %v", ErrInvalidInput, amount, err)
	}
	return Money{value: d, cur: currency}, nil
}

// currency returns the go-money description of the currency, with its
// minor unit and format. Unknown codes get a two digits default.
func (m Money) currency() money.Currency { return *money.New(0, m.cur).Currency() }

// String formats m the way the currency is usually written, as in "$1,234.50".
func (m Money) String() string {
	cur := m.currency()
	dec := m.value.Shift(int32(cur.Fraction))
	return cur.Formatter().Format(dec.IntPart())
}

// Round returns m rounded to the minor unit of its currency (2 digits for
// USD, 0 for JPY). Every consolidated figure goes through Round.
func (m Money) Round() Money {
	return Money{value: m.value.Round(int32(m.currency().Fraction)), cur: m.cur}
}

func (m Money) Currency() string           { return m.cur }
func (m Money) Decimal() decimal.Decimal   { return m.value }
func (m Money) Equal(n Money) bool         { return m.value.Equal(n.value) && m.cur == n.cur }
func (m Money) IsZero() bool               { return m.value.IsZero() }
func (m Money) IsPositive() bool           { return m.value.IsPositive() }
func (m Money) IsNegative() bool           { return m.value.IsNegative() }
func (m Money) LessThan(amount Money) bool { return m.value.LessThan(amount.value) }
func (m Money) GreaterThan(n Money) bool   { return m.value.GreaterThan(n.value) }
func (m Money) Neg() Money                 { return Money{value: m.value.Neg(), cur: m.cur} }
func (m Money) Abs() Money                 { return Money{value: m.value.Abs(), cur: m.cur} }
func (m Money) Mul(n Quantity) Money       { return Money{value: m.value.Mul(n.value), cur: m.cur} }
func (m Money) Div(n Quantity) Money       { return Money{value: m.value.Div(n.value), cur: m.cur} }

// Add and Sub panic on a currency mismatch: callers convert first.
func (m Money) Add(n Money) Money { return Money{value: m.value.Add(n.value), cur: cur(m, n)} }
func (m Money) Sub(n Money) Money { return Money{value: m.value.Sub(n.value), cur: cur(m, n)} }

func cur(A, B Money) string {
	if A.cur == "" {
		return B.cur
	}
	if B.cur == "" {
		return A.cur
	}
	if A.cur != B.cur {
		panic("currency mismatch " + A.cur + "!=" + B.cur)
	}
	return A.cur
}

// exact returns m marshaled with all its digits, for prices and costs.
func (m Money) exact() Money {
	m.fractional = true
	return m
}

func (m Money) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Optional("currency", m.cur)
	if m.fractional {
		w.Append("amount", m.value)
	} else {
		w.Append("amount", m.Round().value)
	}
	return w.MarshalJSON()
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var aux struct {
		Currency string          `json:"currency"`
		Amount   decimal.Decimal `json:"amount"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.value, m.cur = aux.Amount, aux.Currency
	return nil
}
