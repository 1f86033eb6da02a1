package core

import (
	"fmt"
	"math"

	m "beta.service/data/models"
)

const (
	// BlumeCoefficient is the conventional weight on the raw beta (M. Blume 1971)
	BlumeCoefficient = 2.0 / 3.0

	marketBeta = 1.0
)

// AdjustBeta shrinks a raw beta toward the market beta of 1.0:
// coefficient * raw + (1 - coefficient) * 1.0
func AdjustBeta(rawBeta, coefficient float64) (float64, error) {
	if err := ValidateCoefficient(coefficient); err != nil {
		return 0, err
	}
	return coefficient*rawBeta + (1-coefficient)*marketBeta, nil
}

func ValidateCoefficient(coefficient float64) error {
	if math.IsNaN(coefficient) || coefficient < 0 || coefficient > 1 {
		return fmt.Errorf("%w: %v is outside of [0, 1]", ErrInvalidCoefficient, coefficient)
	}
	return nil
}

func NewAdjustedBeta(rawBeta, coefficient float64) (*m.AdjustedBeta, error) {
	adjusted, err := AdjustBeta(rawBeta, coefficient)
	if err != nil {
		return nil, err
	}

	return &m.AdjustedBeta{
		RawBeta:       rawBeta,
		Coefficient:   coefficient,
		AdjustedValue: adjusted,
	}, nil
}
