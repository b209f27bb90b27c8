package stocker

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateFormat is the ISO-8601 layout of dates in files, databases and JSON.
const DateFormat = "2006-01-02"

// lenientDateFormat also accepts single-digit months and days, as in 2025-7-1.
const lenientDateFormat = "2006-1-2"

// Day is the duration of a calendar day.
const Day = 24 * time.Hour

// Date is a calendar day, without time zone. Dates are comparable with ==.
type Date struct {
	y int
	m time.Month
	d int
}

// NewDate returns the normalized date of year, month and day: NewDate(2025, 3, 0)
// is the last day of February.
func NewDate(year int, month time.Month, day int) Date {
	y, m, d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Date()
	return Date{y, m, d}
}

// DateOf returns the calendar date of t in loc. A nil loc means t's own location.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc != nil {
		t = t.In(loc)
	}
	return NewDate(t.Date())
}

// Today returns the current date in the local time zone.
func Today() Date { return DateOf(time.Now(), nil) }

func (d Date) Year() int          { return d.y }
func (d Date) Month() time.Month  { return d.m }
func (d Date) Day() int           { return d.d }
func (d Date) IsZero() bool       { return d == Date{} }
func (d Date) String() string     { return d.time().Format(DateFormat) }
func (d Date) Before(x Date) bool { return d.Compare(x) < 0 }
func (d Date) After(x Date) bool  { return d.Compare(x) > 0 }

// time is midnight UTC of the day.
func (d Date) time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

// Compare returns -1, 0 or +1 depending on whether d is before, equal to or after x.
func (d Date) Compare(x Date) int { return d.time().Compare(x.time()) }

// Add returns the date i days after d.
func (d Date) Add(i int) Date { return NewDate(d.y, d.m, d.d+i) }

// DaysUntil returns the number of calendar days from d to x (negative if x is before d).
func (d Date) DaysUntil(x Date) int { return int(x.time().Sub(d.time()) / Day) }

var relativeDateRE = regexp.MustCompile(`^([+-])(\d+)([dwmy])$`)

// ParseDate parses an ISO date ("2025-07-01", "2025-7-1") or a date relative
// to today: "0d" is today, "-1d" yesterday, "+2w" in two weeks, "-1m" a month
// ago and "-1y" a year ago.
func ParseDate(str string) (Date, error) {
	str = strings.TrimSpace(str)
	if str == "0d" {
		return Today(), nil
	}
	if match := relativeDateRE.FindStringSubmatch(str); match != nil {
		n, err := strconv.Atoi(match[2])
		if err != nil {
			return Date{}, fmt.Errorf("invalid relative date %q: %w", str, err)
		}
		if match[1] == "-" {
			n = -n
		}
		today := Today()
		switch match[3] {
		case "w":
			return today.Add(7 * n), nil
		case "m":
			return NewDate(today.y, today.m+time.Month(n), today.d), nil
		case "y":
			return NewDate(today.y+n, today.m, today.d), nil
		default:
			return today.Add(n), nil
		}
	}
	t, err := time.Parse(lenientDateFormat, str)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, want format %q: %w", str, DateFormat, err)
	}
	return NewDate(t.Date()), nil
}

// MustParse is like ParseDate but panics on error.
func MustParse(str string) Date {
	d, err := ParseDate(str)
	if err != nil {
		panic(err.Error())
	}
	return d
}

// UnmarshalJSON reads an ISO date. Relative dates are not accepted in data.
func (d *Date) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	t, err := time.Parse(lenientDateFormat, str)
	if err != nil {
		return fmt.Errorf("invalid date %q, want format %q: %w", str, DateFormat, err)
	}
	*d = NewDate(t.Date())
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

var (
	_ json.Marshaler   = Date{}
	_ json.Unmarshaler = (*Date)(nil)
)

// Month is a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month of d.
func MonthOf(d Date) Month { return Month{d.y, d.m} }

// First returns the first day of m.
func (m Month) First() Date { return NewDate(m.Year, m.Month, 1) }

// Last returns the last day of m.
func (m Month) Last() Date { return NewDate(m.Year, m.Month+1, 0) }

// Contains reports whether d is in m.
func (m Month) Contains(d Date) bool { return MonthOf(d) == m }

// String returns the month as "2006-01".
func (m Month) String() string { return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)) }

func (m Month) MarshalJSON() ([]byte, error) { return json.Marshal(m.String()) }
