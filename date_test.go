package stocker

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	today := Today()

	tests := []struct {
		input   string
		want    Date
		wantErr bool
	}{
		{"2025-01-15", NewDate(2025, time.January, 15), false},
		{"2025-7-1", NewDate(2025, time.July, 1), false},
		{" 2024-02-29 ", NewDate(2024, time.February, 29), false},
		{"2025-02-30", Date{}, true},
		{"invalid-date", Date{}, true},
		{"15", Date{}, true},

		{"0d", today, false},
		{"-1d", today.Add(-1), false},
		{"+1d", today.Add(1), false},
		{"1d", Date{}, true},
		{"-2w", today.Add(-14), false},
		{"+1m", NewDate(today.Year(), today.Month()+1, today.Day()), false},
		{"-1y", NewDate(today.Year()-1, today.Month(), today.Day()), false},
		{"-1q", Date{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDate(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewDate_Normalizes(t *testing.T) {
	if got, want := NewDate(2025, time.March, 0), NewDate(2025, time.February, 28); got != want {
		t.Errorf("NewDate(2025, 3, 0) = %v, want %v", got, want)
	}
	if got, want := NewDate(2024, time.December, 32), NewDate(2025, time.January, 1); got != want {
		t.Errorf("NewDate(2024, 12, 32) = %v, want %v", got, want)
	}
	if !(Date{}).IsZero() || NewDate(2025, 1, 1).IsZero() {
		t.Errorf("IsZero() is wrong")
	}
}

func TestDate_JSON(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2025-8-3"`), &d); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	got, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(got) != `"2025-08-03"` {
		t.Errorf("Marshal() = %s, want \"2025-08-03\"", got)
	}
	if err := json.Unmarshal([]byte(`"-1d"`), &d); err == nil {
		t.Errorf("Unmarshal(-1d) succeeded, relative dates are not data")
	}
}

func TestMonth(t *testing.T) {
	feb := MonthOf(MustParse("2024-02-17"))
	if feb.String() != "2024-02" {
		t.Errorf("String() = %s, want 2024-02", feb)
	}
	if feb.First() != MustParse("2024-02-01") || feb.Last() != MustParse("2024-02-29") {
		t.Errorf("February 2024 = %v..%v", feb.First(), feb.Last())
	}
	for _, tt := range []struct {
		day  string
		want bool
	}{
		{"2024-02-01", true},
		{"2024-02-29", true},
		{"2024-03-01", false},
		{"2023-02-15", false},
	} {
		if got := feb.Contains(MustParse(tt.day)); got != tt.want {
			t.Errorf("Contains(%s) = %v, want %v", tt.day, got, tt.want)
		}
	}
}

func TestDateOf(t *testing.T) {
	hk, err := time.LoadLocation("Asia/Hong_Kong")
	if err != nil {
		t.Skipf("no tzdata: %v", err)
	}
	// 20:30 UTC on Jan 31 is already Feb 1 in Hong Kong.
	instant := time.Date(2025, time.January, 31, 20, 30, 0, 0, time.UTC)

	if got, want := DateOf(instant, time.UTC), NewDate(2025, time.January, 31); got != want {
		t.Errorf("DateOf(UTC) = %v, want %v", got, want)
	}
	if got, want := DateOf(instant, hk), NewDate(2025, time.February, 1); got != want {
		t.Errorf("DateOf(HK) = %v, want %v", got, want)
	}
}

func TestDaysUntil(t *testing.T) {
	tests := []struct {
		from, to string
		want     int
	}{
		{"2025-01-01", "2025-01-01", 0},
		{"2025-01-01", "2025-01-31", 30},
		{"2024-02-01", "2024-03-01", 29},
		{"2025-03-10", "2025-03-01", -9},
	}
	for _, tt := range tests {
		if got := MustParse(tt.from).DaysUntil(MustParse(tt.to)); got != tt.want {
			t.Errorf("%s.DaysUntil(%s) = %d, want %d", tt.from, tt.to, got, tt.want)
		}
	}
}
