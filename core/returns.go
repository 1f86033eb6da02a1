package core

import (
	"fmt"

	"github.com/guregu/null/v6"

	ex "beta.service/data/extensions"
	m "beta.service/data/models"
)

// ComputeReturns converts a price series into simple returns on adjusted close.
// The first point is always undefined, as is any point whose prior close is zero.
func ComputeReturns(series *m.PriceSeries) (*m.ReturnSeries, error) {
	if series == nil {
		return nil, fmt.Errorf("%w: nil series", ErrInvalidSeries)
	}
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSeries, err)
	}

	points := make([]m.ReturnPoint, len(series.Bars))
	for i, bar := range series.Bars {
		points[i] = m.ReturnPoint{Timestamp: bar.Timestamp}
		if i == 0 {
			continue
		}
		points[i].Value = pctChange(series.Bars[i-1].AdjustedClose, bar.AdjustedClose)
	}

	return &m.ReturnSeries{
		Symbol: series.Symbol,
		Points: points,
	}, nil
}

func pctChange(prev, curr float64) null.Float {
	if prev == 0 || !ex.IsFinite(prev) || !ex.IsFinite(curr) {
		return null.Float{}
	}
	return null.FloatFrom((curr - prev) / prev)
}
