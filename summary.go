package stocker

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Summary consolidates positions and cash into a single base currency.
//
// Every base amount is rounded to the base currency minor unit before being
// summed, so that NetLiquidity == TotalMarketValue + CurrentCash and
// TotalMarketValue == Σ PositionValues hold exactly.
type Summary struct {
	User         string
	Date         Date
	BaseCurrency string

	Positions        []Position
	PositionValues   map[string]Money // base market value of each priced position
	CashBalances     map[string]Money // native currency
	CurrentCash      Money
	TotalMarketValue Money
	NetLiquidity     Money
	GrossPosition    Money
	TotalInvested    Money // cumulative net deposits
	NetProfit        Money // NetLiquidity - TotalInvested
	ROIPercentage    decimal.Decimal
	RealizedPL       Money
	UnrealizedPL     Money
	Dividends        Money
	ExchangeRates    map[string]decimal.Decimal // currency -> base

	StaleSymbols       []string
	UnavailableSymbols []string
	// Partial is set when some positions could not be valued and are left out of the totals.
	Partial bool
}

var hundred = decimal.NewFromInt(100)

// Summarize combines positions, the replays they come from and the cash book
// into a Summary expressed in the base currency of rates.
//
// Stale and unavailable positions are excluded from every total and listed
// instead; they never count as zero. A missing exchange rate is an error.
func Summarize(ctx context.Context, positions []Position, replays []*Replay, cash CashBook, rates *Rates) (*Summary, error) {
	base := rates.Base()
	zero := M(0, base)
	s := &Summary{
		BaseCurrency:     base,
		Positions:        positions,
		PositionValues:   make(map[string]Money),
		CashBalances:     make(map[string]Money),
		CurrentCash:      zero,
		TotalMarketValue: zero,
		GrossPosition:    zero,
		TotalInvested:    zero,
		RealizedPL:       zero,
		UnrealizedPL:     zero,
		Dividends:        zero,
	}

	for _, p := range positions {
		switch {
		case p.Unavailable:
			s.UnavailableSymbols = append(s.UnavailableSymbols, p.Symbol)
			continue
		case p.PriceStale:
			s.StaleSymbols = append(s.StaleSymbols, p.Symbol)
			continue
		}
		value, err := rates.Convert(ctx, *p.MarketValue)
		if err != nil {
			return nil, fmt.Errorf("valuing %s: %w", p.Symbol, err)
		}
		unrealized, err := rates.Convert(ctx, *p.UnrealizedPL)
		if err != nil {
			return nil, fmt.Errorf("valuing %s: %w", p.Symbol, err)
		}
		s.PositionValues[p.Symbol] = value
		s.TotalMarketValue = s.TotalMarketValue.Add(value)
		s.GrossPosition = s.GrossPosition.Add(value.Abs())
		s.UnrealizedPL = s.UnrealizedPL.Add(unrealized)
	}

	for _, r := range replays {
		realized, err := rates.Convert(ctx, r.RealizedPL())
		if err != nil {
			return nil, fmt.Errorf("valuing %s: %w", r.Symbol, err)
		}
		dividends, err := rates.Convert(ctx, r.Dividends)
		if err != nil {
			return nil, fmt.Errorf("valuing %s: %w", r.Symbol, err)
		}
		s.RealizedPL = s.RealizedPL.Add(realized)
		s.Dividends = s.Dividends.Add(dividends)
	}

	for _, c := range cash.Currencies() {
		if balance, ok := cash.Balances[c]; ok {
			s.CashBalances[c] = balance
			converted, err := rates.Convert(ctx, balance)
			if err != nil {
				return nil, fmt.Errorf("valuing cash: %w", err)
			}
			s.CurrentCash = s.CurrentCash.Add(converted)
		}
		if invested, ok := cash.Invested[c]; ok {
			converted, err := rates.Convert(ctx, invested)
			if err != nil {
				return nil, fmt.Errorf("valuing deposits: %w", err)
			}
			s.TotalInvested = s.TotalInvested.Add(converted)
		}
	}

	s.NetLiquidity = s.TotalMarketValue.Add(s.CurrentCash)
	s.NetProfit = s.NetLiquidity.Sub(s.TotalInvested)
	s.ROIPercentage = ROI(s.NetProfit, s.TotalInvested)
	s.ExchangeRates = rates.Used()
	s.Partial = len(s.StaleSymbols) > 0 || len(s.UnavailableSymbols) > 0
	return s, nil
}

// ROI returns profit / invested × 100 rounded to 2 decimals, or 0 when nothing
// (or less than nothing) has been invested.
func ROI(profit, invested Money) decimal.Decimal {
	if !invested.IsPositive() {
		return decimal.Zero
	}
	return profit.Decimal().Div(invested.Decimal()).Mul(hundred).Round(2)
}

// MarshalJSON writes the summary with ordered keys.
func (s Summary) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Optional("user", s.User)
	w.Append("date", s.Date)
	w.Append("base_currency", s.BaseCurrency)
	w.Append("net_liquidity", s.NetLiquidity)
	w.Append("total_market_value", s.TotalMarketValue)
	w.Append("current_cash", s.CurrentCash)
	w.Append("cash_balances", s.CashBalances)
	w.Append("gross_position", s.GrossPosition)
	w.Append("total_invested", s.TotalInvested)
	w.Append("net_profit", s.NetProfit)
	w.Append("roi_percentage", s.ROIPercentage)
	w.Append("realized_pl", s.RealizedPL)
	w.Append("unrealized_pl", s.UnrealizedPL)
	w.Append("dividends", s.Dividends)
	w.Append("position_values", s.PositionValues)
	w.Optional("exchange_rates", s.ExchangeRates)
	w.Optional("stale_symbols", s.StaleSymbols)
	w.Optional("unavailable_symbols", s.UnavailableSymbols)
	w.Optional("partial", s.Partial)
	w.Append("positions", s.Positions)
	return w.MarshalJSON()
}
