package stocker

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// MonthlyStat summarizes the closing matches of one calendar month.
//
// Amounts are in the base currency. Percentages are relative to the cost
// basis of each match (entry price × closed quantity). A match with zero
// realized P&L counts in TotalTrades only.
type MonthlyStat struct {
	Month              Month
	TotalTrades        int
	Wins               int
	Losses             int
	WinRate            decimal.Decimal // percent of TotalTrades
	RealizedPL         Money
	AvgProfit          Money
	AvgProfitPercent   decimal.Decimal
	AvgLoss            Money
	AvgLossPercent     decimal.Decimal
	MaxProfit          Money
	MaxLoss            Money
	AvgHoldingDaysWin  float64
	AvgHoldingDaysLoss float64
}

// MonthlyStats groups events by the month of their closing transaction and
// returns the twelve months of year, January first.
func MonthlyStats(ctx context.Context, events []RealizedEvent, year int, rates *Rates) ([]MonthlyStat, error) {
	base := rates.Base()

	var stats []MonthlyStat
	for m := time.January; m <= time.December; m++ {
		month := Month{Year: year, Month: m}
		var wins, losses outcomes
		total, realized := 0, M(0, base)
		for _, e := range events {
			if !month.Contains(e.ExitDate) {
				continue
			}
			pl, err := rates.Convert(ctx, e.RealizedPL)
			if err != nil {
				return nil, err
			}
			total++
			realized = realized.Add(pl)
			// the sign is taken before rounding to the base minor unit.
			switch {
			case e.RealizedPL.IsPositive():
				wins.add(pl, e)
			case e.RealizedPL.IsNegative():
				losses.add(pl, e)
			}
		}
		s := MonthlyStat{
			Month:              month,
			TotalTrades:        total,
			Wins:               len(wins.amounts),
			Losses:             len(losses.amounts),
			WinRate:            decimal.Zero,
			RealizedPL:         realized,
			AvgProfit:          wins.mean(base),
			AvgProfitPercent:   wins.meanPercent(),
			AvgLoss:            losses.mean(base),
			AvgLossPercent:     losses.meanPercent(),
			MaxProfit:          wins.max(base),
			MaxLoss:            losses.min(base),
			AvgHoldingDaysWin:  wins.meanDays(),
			AvgHoldingDaysLoss: losses.meanDays(),
		}
		if total > 0 {
			s.WinRate = decimal.NewFromInt(int64(s.Wins)).Div(decimal.NewFromInt(int64(total))).Mul(hundred).Round(2)
		}
		stats = append(stats, s)
	}
	return stats, nil
}

// outcomes accumulates winning or losing matches.
type outcomes struct {
	amounts  []Money
	percents []decimal.Decimal
	days     []float64
}

func (o *outcomes) add(pl Money, e RealizedEvent) {
	o.amounts = append(o.amounts, pl)
	if basis := e.CostBasis(); !basis.IsZero() {
		o.percents = append(o.percents, e.RealizedPL.Decimal().Div(basis.Decimal()).Mul(hundred))
	}
	o.days = append(o.days, float64(e.HoldingDays()))
}

func (o *outcomes) mean(base string) Money {
	if len(o.amounts) == 0 {
		return M(0, base)
	}
	sum := M(0, base)
	for _, a := range o.amounts {
		sum = sum.Add(a)
	}
	return sum.Div(Q(len(o.amounts))).Round()
}

func (o *outcomes) meanPercent() decimal.Decimal {
	if len(o.percents) == 0 {
		return decimal.Zero
	}
	return decimal.Avg(o.percents[0], o.percents[1:]...).Round(2)
}

func (o *outcomes) meanDays() float64 {
	if len(o.days) == 0 {
		return 0
	}
	return stat.Mean(o.days, nil)
}

func (o *outcomes) max(base string) Money {
	m := M(0, base)
	for i, a := range o.amounts {
		if i == 0 || a.GreaterThan(m) {
			m = a
		}
	}
	return m
}

func (o *outcomes) min(base string) Money {
	m := M(0, base)
	for i, a := range o.amounts {
		if i == 0 || a.LessThan(m) {
			m = a
		}
	}
	return m
}

// MarshalJSON writes the statistics with ordered keys.
func (s MonthlyStat) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("month", s.Month)
	w.Append("total_trades", s.TotalTrades)
	w.Append("wins", s.Wins)
	w.Append("losses", s.Losses)
	w.Append("win_rate", s.WinRate)
	w.Append("realized_pl", s.RealizedPL)
	w.Append("avg_profit", s.AvgProfit)
	w.Append("avg_profit_percent", s.AvgProfitPercent)
	w.Append("avg_loss", s.AvgLoss)
	w.Append("avg_loss_percent", s.AvgLossPercent)
	w.Append("max_profit", s.MaxProfit)
	w.Append("max_loss", s.MaxLoss)
	w.Append("avg_holding_days_win", s.AvgHoldingDaysWin)
	w.Append("avg_holding_days_loss", s.AvgHoldingDaysLoss)
	return w.MarshalJSON()
}
