package models

import "github.com/guregu/null/v6"

// SeriesStatistics describe one side of the aligned returns, per period and annualized
type SeriesStatistics struct {
	Symbol               string     `json:"symbol"`
	Observations         int        `json:"observations"`
	MeanReturn           float64    `json:"meanReturn"`
	Volatility           float64    `json:"volatility"`
	AnnualizedReturn     float64    `json:"annualizedReturn"`
	AnnualizedVolatility float64    `json:"annualizedVolatility"`
	TotalReturn          null.Float `json:"totalReturn"`
	MaxDrawdown          null.Float `json:"maxDrawdown"`
}

// ReturnStatistics summarise the rows the betas were estimated from
type ReturnStatistics struct {
	PeriodsPerYear int              `json:"periodsPerYear"`
	Asset          SeriesStatistics `json:"asset"`
	Market         SeriesStatistics `json:"market"`
	Covariance     float64          `json:"covariance"`
	Correlation    null.Float       `json:"correlation"`
}
