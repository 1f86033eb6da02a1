package models

import (
	"time"

	"github.com/shopspring/decimal"

	"beta.service/config"
	dm "beta.service/data/models"
)

const (
	betaDisplayPlaces        = 5
	coefficientDisplayPlaces = 2
)

// BetaRequest is everything a beta estimate depends on. Empty fields fall back to the configured defaults,
// dates are yyyy-mm-dd.
type BetaRequest struct {
	Ticker                string   `json:"ticker"`
	Index                 string   `json:"index"`
	Interval              string   `json:"interval"`
	StartDate             string   `json:"startDate"`
	EndDate               string   `json:"endDate"`
	AdjustmentCoefficient *float64 `json:"adjustmentCoefficient,omitempty"`
	IncludePrices         bool     `json:"includePrices"`
}

type BetaResponse struct {
	RequestId              string              `json:"requestId"`
	Ticker                 string              `json:"ticker"`
	Index                  config.MarketIndex  `json:"index"`
	Interval               dm.Interval         `json:"interval"`
	StartDate              string              `json:"startDate"`
	EndDate                string              `json:"endDate"`
	Source                 string              `json:"source"`
	FetchedAt              time.Time           `json:"fetchedAt"`
	Observations           int                 `json:"observations"`
	CovarianceVarianceBeta float64             `json:"covarianceVarianceBeta"`
	OLSBeta                float64             `json:"olsBeta"`
	Regression             dm.RegressionResult `json:"regression"`
	Adjusted               dm.AdjustedBeta     `json:"adjusted"`
	Formatted              FormattedBeta       `json:"formatted"`
	Returns                dm.ReturnTable      `json:"returns"`
	Statistics             dm.ReturnStatistics `json:"statistics"`
	Prices                 *BetaPrices         `json:"prices,omitempty"`
}

// BetaPrices are the bars behind the estimate, for candle charts
type BetaPrices struct {
	Asset *dm.PriceSeries `json:"asset"`
	Index *dm.PriceSeries `json:"index"`
}

// FormattedBeta holds the display strings, betas to five places and the coefficient to two
type FormattedBeta struct {
	CovarianceVarianceBeta string `json:"covarianceVarianceBeta"`
	OLSBeta                string `json:"olsBeta"`
	RawBeta                string `json:"rawBeta"`
	Coefficient            string `json:"coefficient"`
	AdjustedBeta           string `json:"adjustedBeta"`
}

func FormatBeta(estimate *dm.BetaEstimate, adjusted *dm.AdjustedBeta) FormattedBeta {
	return FormattedBeta{
		CovarianceVarianceBeta: fixed(estimate.CovarianceVarianceBeta, betaDisplayPlaces),
		OLSBeta:                fixed(estimate.OLSBeta, betaDisplayPlaces),
		RawBeta:                fixed(adjusted.RawBeta, betaDisplayPlaces),
		Coefficient:            fixed(adjusted.Coefficient, coefficientDisplayPlaces),
		AdjustedBeta:           fixed(adjusted.AdjustedValue, betaDisplayPlaces),
	}
}

func fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}
