package models

import (
	"fmt"
	"strings"
)

// Interval specifies the sampling frequency of a price series.
type Interval uint8

const (
	IntervalWeekly Interval = iota
	IntervalMonthly
)

const (
	Weekly  = 52
	Monthly = 12
)

func (i Interval) Name() string {
	switch i {
	case IntervalWeekly:
		return "weekly"
	case IntervalMonthly:
		return "monthly"
	default:
		return ""
	}
}

func (i Interval) String() string {
	return i.Name()
}

// PeriodsPerYear is the annualization factor for the interval
func (i Interval) PeriodsPerYear() int {
	switch i {
	case IntervalWeekly:
		return Weekly
	case IntervalMonthly:
		return Monthly
	default:
		return 0
	}
}

func (i Interval) IsValid() bool {
	return i == IntervalWeekly || i == IntervalMonthly
}

// ParseInterval accepts the names used by the api and config ("weekly", "1wk", "1 week", ...)
func ParseInterval(s string) (Interval, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weekly", "week", "1wk", "1 week":
		return IntervalWeekly, nil
	case "monthly", "month", "1mo", "1 month":
		return IntervalMonthly, nil
	default:
		return 0, fmt.Errorf("%q is not a recognized interval, expected weekly or monthly", s)
	}
}

func (i Interval) MarshalText() ([]byte, error) {
	if !i.IsValid() {
		return nil, fmt.Errorf("invalid interval %d", i)
	}
	return []byte(i.Name()), nil
}

func (i *Interval) UnmarshalText(text []byte) error {
	parsed, err := ParseInterval(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
