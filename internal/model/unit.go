package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidUnit is returned for an unknown time unit name.
var ErrInvalidUnit = errors.New("model: invalid time unit")

// Unit is a calendar or clock unit for relative time windows.
type Unit string

const (
	Second Unit = "second"
	Minute Unit = "minute"
	Hour   Unit = "hour"
	Day    Unit = "day"
	Week   Unit = "week"
	Month  Unit = "month"
	Year   Unit = "year"
)

// ParseUnit accepts singular, plural and short unit names ("day", "days", "d").
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "s", "sec", "second", "seconds":
		return Second, nil
	case "m", "min", "minute", "minutes":
		return Minute, nil
	case "h", "hour", "hours":
		return Hour, nil
	case "d", "day", "days":
		return Day, nil
	case "w", "week", "weeks":
		return Week, nil
	case "mo", "month", "months":
		return Month, nil
	case "y", "year", "years":
		return Year, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidUnit, s)
	}
}

// Sub returns t moved n units into the past. Months and years follow
// calendar arithmetic.
func (u Unit) Sub(t time.Time, n int) (time.Time, error) {
	switch u {
	case Second:
		return t.Add(-time.Duration(n) * time.Second), nil
	case Minute:
		return t.Add(-time.Duration(n) * time.Minute), nil
	case Hour:
		return t.Add(-time.Duration(n) * time.Hour), nil
	case Day:
		return t.AddDate(0, 0, -n), nil
	case Week:
		return t.AddDate(0, 0, -7*n), nil
	case Month:
		return t.AddDate(0, -n, 0), nil
	case Year:
		return t.AddDate(-n, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidUnit, string(u))
	}
}
