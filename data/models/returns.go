package models

import (
	"time"

	"github.com/guregu/null/v6"
)

// ReturnPoint is the fractional change of adjusted close against the prior bar.
// Value is invalid when there is no prior bar or the prior close is zero.
type ReturnPoint struct {
	Timestamp time.Time  `json:"timestamp"`
	Value     null.Float `json:"value"`
}

type ReturnSeries struct {
	Symbol string        `json:"symbol"`
	Points []ReturnPoint `json:"points"`
}

func (rs *ReturnSeries) Len() int {
	return len(rs.Points)
}

// ValidCount is the number of defined returns
func (rs *ReturnSeries) ValidCount() (n int) {
	for _, p := range rs.Points {
		if p.Value.Valid {
			n++
		}
	}
	return
}

// ReturnTable is the inner join of several return series on timestamp.
// Values[i] of a row belongs to Columns[i].
type ReturnTable struct {
	Columns []string    `json:"columns"`
	Rows    []ReturnRow `json:"rows"`
}

type ReturnRow struct {
	Timestamp time.Time    `json:"timestamp"`
	Values    []null.Float `json:"values"`
}

// ReturnPair is a row where both the asset and market returns are defined
type ReturnPair struct {
	Timestamp time.Time
	Asset     float64
	Market    float64
}
