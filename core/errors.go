package core

import "errors"

var (
	ErrInsufficientData   = errors.New("insufficient data")
	ErrDegenerateVariance = errors.New("degenerate market variance")
	ErrInvalidCoefficient = errors.New("invalid adjustment coefficient")
	ErrInvalidSeries      = errors.New("invalid price series")
	ErrInvalidColumn      = errors.New("invalid return table column")
	ErrInvalidRequest     = errors.New("invalid request")
)
