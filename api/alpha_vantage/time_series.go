package alpha_vantage

import (
	"fmt"

	m "beta.service/data/models"
)

type TimeSeries uint8

// TimeSeries specifies a frequency to query for stock data.
// Only the adjusted series carry the adjusted close returns are computed on.
const (
	TimeSeriesWeeklyAdjusted TimeSeries = iota
	TimeSeriesMonthlyAdjusted
)

func (t TimeSeries) Name() string {
	switch t {
	case TimeSeriesWeeklyAdjusted:
		return "TimeSeriesWeeklyAdjusted"
	case TimeSeriesMonthlyAdjusted:
		return "TimeSeriesMonthlyAdjusted"
	default:
		return ""
	}
}

func (t TimeSeries) Function() string {
	switch t {
	case TimeSeriesWeeklyAdjusted:
		return "TIME_SERIES_WEEKLY_ADJUSTED"
	case TimeSeriesMonthlyAdjusted:
		return "TIME_SERIES_MONTHLY_ADJUSTED"
	default:
		return ""
	}
}

func (t TimeSeries) TimeSeriesKey() string {
	switch t {
	case TimeSeriesWeeklyAdjusted:
		return "Weekly Adjusted Time Series"
	case TimeSeriesMonthlyAdjusted:
		return "Monthly Adjusted Time Series"
	default:
		return ""
	}
}

// TimeSeriesFor maps a sampling interval to the alpha vantage function that serves it
func TimeSeriesFor(interval m.Interval) (TimeSeries, error) {
	switch interval {
	case m.IntervalWeekly:
		return TimeSeriesWeeklyAdjusted, nil
	case m.IntervalMonthly:
		return TimeSeriesMonthlyAdjusted, nil
	default:
		return 0, fmt.Errorf("interval %d has no alpha vantage time series", interval)
	}
}
