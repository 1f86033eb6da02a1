package models

import (
	"fmt"
	"time"
)

// PriceBar is a single ohlc bar for one ticker and one interval bucket
type PriceBar struct {
	Timestamp     time.Time `json:"timestamp" db:"timestamp"`
	Open          float64   `json:"open" db:"open"`
	High          float64   `json:"high" db:"high"`
	Low           float64   `json:"low" db:"low"`
	Close         float64   `json:"close" db:"close"`
	AdjustedClose float64   `json:"adjustedClose" db:"adjusted_close"`
	Volume        float64   `json:"volume" db:"volume"`
}

// PriceSeries is the bars for a single ticker, ascending by timestamp
type PriceSeries struct {
	Symbol    string     `json:"symbol"`
	Interval  Interval   `json:"interval"`
	Source    string     `json:"source"`
	FetchedAt time.Time  `json:"fetchedAt"`
	Bars      []PriceBar `json:"bars"`
}

func (ps *PriceSeries) Len() int {
	return len(ps.Bars)
}

// Validate checks the series is non empty, ascending, and has no duplicate timestamps
func (ps *PriceSeries) Validate() error {
	if len(ps.Bars) == 0 {
		return fmt.Errorf("price series for %s has no bars", ps.Symbol)
	}

	for i := 1; i < len(ps.Bars); i++ {
		prev, curr := ps.Bars[i-1].Timestamp, ps.Bars[i].Timestamp
		if curr.Equal(prev) {
			return fmt.Errorf("price series for %s has duplicate timestamp %s", ps.Symbol, curr.Format(time.DateOnly))
		}
		if curr.Before(prev) {
			return fmt.Errorf("price series for %s is not ascending at index %d", ps.Symbol, i)
		}
	}

	return nil
}

// AdjustedCloses extracts the return basis for the series
func (ps *PriceSeries) AdjustedCloses() []float64 {
	res := make([]float64, len(ps.Bars))
	for i, b := range ps.Bars {
		res[i] = b.AdjustedClose
	}
	return res
}
