package models

import "github.com/guregu/null/v6"

// RegressionResult is a simple linear fit of asset returns on market returns
type RegressionResult struct {
	Intercept   float64               `json:"intercept"`
	Slope       float64               `json:"slope"`
	Diagnostics RegressionDiagnostics `json:"diagnostics"`
}

// RegressionDiagnostics are passed through as is. Anything that cannot be
// computed for the sample (ie. zero residual degrees of freedom) is left invalid.
type RegressionDiagnostics struct {
	Observations     int        `json:"observations"`
	DegreesOfFreedom int        `json:"degreesOfFreedom"`
	RSquared         null.Float `json:"rSquared"`
	AdjustedRSquared null.Float `json:"adjustedRSquared"`
	ResidualStdErr   null.Float `json:"residualStdErr"`
	StdErrIntercept  null.Float `json:"stdErrIntercept"`
	StdErrSlope      null.Float `json:"stdErrSlope"`
	TStatIntercept   null.Float `json:"tStatIntercept"`
	TStatSlope       null.Float `json:"tStatSlope"`
	PValueIntercept  null.Float `json:"pValueIntercept"`
	PValueSlope      null.Float `json:"pValueSlope"`
}

type BetaEstimate struct {
	CovarianceVarianceBeta float64          `json:"covarianceVarianceBeta"`
	OLSBeta                float64          `json:"olsBeta"`
	Regression             RegressionResult `json:"regression"`
}

type AdjustedBeta struct {
	RawBeta       float64 `json:"rawBeta"`
	Coefficient   float64 `json:"coefficient"`
	AdjustedValue float64 `json:"adjustedValue"`
}
