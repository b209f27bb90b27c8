package stocker

import (
	"context"
	"errors"
	"testing"
)

func closed(opened, closed string, q float64, entry, exit Money) RealizedEvent {
	return RealizedEvent{
		Side:           Long,
		ClosedQuantity: Q(q),
		EntryPrice:     entry,
		ExitPrice:      exit,
		EntryDate:      day(opened),
		ExitDate:       day(closed),
		Fees:           M(0, entry.Currency()),
		RealizedPL:     exit.Sub(entry).Mul(Q(q)),
	}
}

func TestMonthlyStats(t *testing.T) {
	events := []RealizedEvent{
		closed("2025-03-01", "2025-03-11", 10, USD(100), USD(110)),
		closed("2025-03-01", "2025-03-05", 20, USD(25), USD(22.5)),
		closed("2025-03-02", "2025-03-20", 5, USD(40), USD(40)),
		closed("2025-02-01", "2025-04-01", 10, HKD(100), HKD(178)),
		closed("2024-12-01", "2024-12-31", 10, USD(1), USD(2)), // other year
	}
	rates := NewRates("USD", StaticRates{"USDHKD": dec("7.8")})
	stats, err := MonthlyStats(context.Background(), events, 2025, rates)
	if err != nil {
		t.Fatalf("MonthlyStats() error = %v", err)
	}
	if len(stats) != 12 {
		t.Fatalf("len(MonthlyStats()) = %d, want 12", len(stats))
	}

	jan := stats[0]
	if jan.Month.String() != "2025-01" || jan.TotalTrades != 0 || !jan.WinRate.IsZero() {
		t.Errorf("January = %+v, want an empty month", jan)
	}
	mustEqual(t, "January.RealizedPL", jan.RealizedPL, USD(0))

	mar := stats[2]
	if mar.TotalTrades != 3 || mar.Wins != 1 || mar.Losses != 1 {
		t.Errorf("March trades = %d (%d wins, %d losses), want 3 (1, 1)", mar.TotalTrades, mar.Wins, mar.Losses)
	}
	if !mar.WinRate.Equal(dec("33.33")) {
		t.Errorf("March.WinRate = %v, want 33.33", mar.WinRate)
	}
	mustEqual(t, "March.RealizedPL", mar.RealizedPL, USD(50))
	mustEqual(t, "March.AvgProfit", mar.AvgProfit, USD(100))
	mustEqual(t, "March.AvgLoss", mar.AvgLoss, USD(-50))
	mustEqual(t, "March.MaxProfit", mar.MaxProfit, USD(100))
	mustEqual(t, "March.MaxLoss", mar.MaxLoss, USD(-50))
	if !mar.AvgProfitPercent.Equal(dec("10")) || !mar.AvgLossPercent.Equal(dec("-10")) {
		t.Errorf("March percents = %v / %v, want 10 / -10", mar.AvgProfitPercent, mar.AvgLossPercent)
	}
	if mar.AvgHoldingDaysWin != 10 || mar.AvgHoldingDaysLoss != 4 {
		t.Errorf("March holding days = %v / %v, want 10 / 4", mar.AvgHoldingDaysWin, mar.AvgHoldingDaysLoss)
	}

	apr := stats[3]
	mustEqual(t, "April.RealizedPL", apr.RealizedPL, USD(100))
	if apr.AvgHoldingDaysWin != 59 {
		t.Errorf("April.AvgHoldingDaysWin = %v, want 59", apr.AvgHoldingDaysWin)
	}

	dec2024 := stats[11]
	if dec2024.TotalTrades != 0 {
		t.Errorf("December counts %d trades of another year", dec2024.TotalTrades)
	}
}

func TestMonthlyStats_MissingRate(t *testing.T) {
	events := []RealizedEvent{closed("2025-03-01", "2025-03-11", 1, HKD(1), HKD(2))}
	_, err := MonthlyStats(context.Background(), events, 2025, NewRates("USD", nil))
	if !errors.Is(err, ErrRateUnavailable) {
		t.Errorf("MonthlyStats() error = %v, want ErrRateUnavailable", err)
	}
}

func TestMonthlyStats_SubCentProfitIsAWin(t *testing.T) {
	events := []RealizedEvent{closed("2025-05-01", "2025-05-02", 1, USD(10), USD(10.004))}
	stats, err := MonthlyStats(context.Background(), events, 2025, NewRates("USD", nil))
	if err != nil {
		t.Fatalf("MonthlyStats() error = %v", err)
	}
	may := stats[4]
	if may.TotalTrades != 1 || may.Wins != 1 || may.Losses != 0 {
		t.Errorf("May trades = %d (%d wins, %d losses), want 1 (1, 0)", may.TotalTrades, may.Wins, may.Losses)
	}
	if !may.WinRate.Equal(dec("100")) {
		t.Errorf("May.WinRate = %v, want 100", may.WinRate)
	}
}
