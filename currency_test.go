package stocker

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateCurrency(t *testing.T) {
	for _, code := range []string{"USD", "HKD", "EUR", "JPY"} {
		if err := ValidateCurrency(code); err != nil {
			t.Errorf("ValidateCurrency(%q) = %v, want nil", code, err)
		}
	}
	for _, code := range []string{"", "usd", "ZZZ", "US"} {
		if err := ValidateCurrency(code); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("ValidateCurrency(%q) = %v, want ErrInvalidInput", code, err)
		}
	}
}

func TestRates_Convert(t *testing.T) {
	ctx := context.Background()
	source := StaticRates{"USDHKD": dec("7.8")}

	hkd := NewRates("HKD", source)
	got, err := hkd.Convert(ctx, USD(12.5))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	mustEqual(t, "Convert(USD 12.5)", got, HKD(97.5))

	// the inverse pair is used when the direct one is missing.
	usd := NewRates("USD", source)
	got, err = usd.Convert(ctx, HKD(78))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	mustEqual(t, "Convert(HKD 78)", got, USD(10))

	// results are rounded to the base minor unit.
	got, err = usd.Convert(ctx, HKD(1))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	mustEqual(t, "Convert(HKD 1)", got, USD(0.13))

	if _, err := usd.Convert(ctx, M(1, "EUR")); !errors.Is(err, ErrRateUnavailable) {
		t.Errorf("Convert(EUR) error = %v, want ErrRateUnavailable", err)
	}

	used := usd.Used()
	if len(used) != 1 || !used["HKD"].Equal(decimal.NewFromInt(1).Div(dec("7.8"))) {
		t.Errorf("Used() = %v, want only HKD", used)
	}
}

func TestRates_WithoutSource(t *testing.T) {
	r := NewRates("USD", nil)
	r.Set("HKD", dec("0.128"))
	got, err := r.Convert(context.Background(), HKD(100))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	mustEqual(t, "Convert(HKD 100)", got, USD(12.8))
	if _, err := r.Rate(context.Background(), "EUR"); !errors.Is(err, ErrRateUnavailable) {
		t.Errorf("Rate(EUR) error = %v, want ErrRateUnavailable", err)
	}
}

func TestMoney_Round(t *testing.T) {
	tests := []struct {
		in   Money
		want string
	}{
		{M(12.345, "USD"), "12.35"},
		{M(12.344, "USD"), "12.34"},
		{M(1234.5, "JPY"), "1235"},
		{M(-0.005, "HKD"), "-0.01"},
	}
	for _, tt := range tests {
		if got := tt.in.Round().Decimal().String(); got != tt.want {
			t.Errorf("%v.Round() = %s, want %s", tt.in.Decimal(), got, tt.want)
		}
	}
}

func TestParseMoney(t *testing.T) {
	m, err := ParseMoney("150.25", "USD")
	if err != nil {
		t.Fatalf("ParseMoney() error = %v", err)
	}
	mustEqual(t, "ParseMoney", m, USD(150.25))

	if _, err := ParseMoney("abc", "USD"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("ParseMoney(abc) error = %v, want ErrInvalidInput", err)
	}
	if _, err := ParseMoney("1", "usd"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("ParseMoney(usd) error = %v, want ErrInvalidInput", err)
	}
}
