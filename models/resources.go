package models

import (
	"beta.service/config"
	dm "beta.service/data/models"
)

// BetaSettingsResources are the choices a client offers for a beta request, rest are free text and dates
type BetaSettingsResources struct {
	MarketIndices         []config.MarketIndex `json:"marketIndices"`
	DefaultIndex          string               `json:"defaultIndex"`
	Intervals             map[string]string    `json:"intervals"` // label -> interval name
	DefaultInterval       dm.Interval          `json:"defaultInterval"`
	AdjustmentCoefficient CoefficientRange     `json:"adjustmentCoefficient"`
	Provider              string               `json:"provider"`
}

type CoefficientRange struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
}

// GetBetaSettingsResources builds the resources from the running config so the choices always match what
// the service accepts
func GetBetaSettingsResources(cfg *config.Config) BetaSettingsResources {
	intervals := map[string]string{
		"1 week":  dm.IntervalWeekly.Name(),
		"1 month": dm.IntervalMonthly.Name(),
	}

	return BetaSettingsResources{
		MarketIndices:   cfg.MarketIndices,
		DefaultIndex:    cfg.DefaultIndex,
		Intervals:       intervals,
		DefaultInterval: cfg.Interval(),
		AdjustmentCoefficient: CoefficientRange{
			Min:     0,
			Max:     1,
			Default: cfg.AdjustmentCoefficient,
		},
		Provider: cfg.Provider,
	}
}
