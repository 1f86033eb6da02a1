package core

import (
	"errors"
	"fmt"
	"math"

	"github.com/guregu/null/v6"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	ex "beta.service/data/extensions"
	m "beta.service/data/models"
)

const (
	// MinimumObservations is the fewest aligned return pairs a beta can be estimated from
	MinimumObservations = 2

	// varianceTolerance is the relative variance below which market returns count as constant
	varianceTolerance = 1e-12
)

// AlignReturns inner joins the asset and market returns on timestamp, keeping the asset's order.
// Undefined returns are kept in the table and only dropped when estimating.
func AlignReturns(asset, market *m.ReturnSeries, assetColumn, marketColumn string) *m.ReturnTable {
	marketLookup := make(map[int64]null.Float, len(market.Points))
	for _, p := range market.Points {
		marketLookup[p.Timestamp.Unix()] = p.Value
	}

	rows := make([]m.ReturnRow, 0, ex.Min(len(asset.Points), len(market.Points)))
	for _, p := range asset.Points {
		mv, ok := marketLookup[p.Timestamp.Unix()]
		if !ok {
			continue
		}
		rows = append(rows, m.ReturnRow{
			Timestamp: p.Timestamp,
			Values:    []null.Float{p.Value, mv},
		})
	}

	return &m.ReturnTable{
		Columns: []string{assetColumn, marketColumn},
		Rows:    rows,
	}
}

// CleanPairs pulls the asset and market columns out of the table, dropping any row where either is undefined
func CleanPairs(table *m.ReturnTable, assetCol, marketCol int) ([]m.ReturnPair, error) {
	if table == nil {
		return nil, fmt.Errorf("%w: nil return table", ErrInvalidColumn)
	}

	nCols := len(table.Columns)
	if assetCol < 0 || assetCol >= nCols || marketCol < 0 || marketCol >= nCols {
		return nil, fmt.Errorf("%w: columns %d and %d, table has %d", ErrInvalidColumn, assetCol, marketCol, nCols)
	}
	if assetCol == marketCol {
		return nil, fmt.Errorf("%w: asset and market are both column %d", ErrInvalidColumn, assetCol)
	}

	pairs := make([]m.ReturnPair, 0, len(table.Rows))
	for _, row := range table.Rows {
		if assetCol >= len(row.Values) || marketCol >= len(row.Values) {
			continue
		}

		a, mkt := row.Values[assetCol], row.Values[marketCol]
		if !a.Valid || !mkt.Valid || !ex.IsFinite(a.Float64) || !ex.IsFinite(mkt.Float64) {
			continue
		}

		pairs = append(pairs, m.ReturnPair{
			Timestamp: row.Timestamp,
			Asset:     a.Float64,
			Market:    mkt.Float64,
		})
	}

	return pairs, nil
}

// EstimateBeta computes the covariance/variance beta and the ols beta over the same cleaned rows.
// Either both are returned or neither.
func EstimateBeta(table *m.ReturnTable, assetCol, marketCol int) (*m.BetaEstimate, error) {
	pairs, err := CleanPairs(table, assetCol, marketCol)
	if err != nil {
		return nil, err
	}

	if len(pairs) < MinimumObservations {
		return nil, fmt.Errorf("%w: %d valid aligned return pairs, need at least %d", ErrInsufficientData, len(pairs), MinimumObservations)
	}

	asset := make([]float64, len(pairs))
	market := make([]float64, len(pairs))
	for i, p := range pairs {
		asset[i] = p.Asset
		market[i] = p.Market
	}

	betaCov, err := CovarianceVarianceBeta(asset, market)
	if err != nil {
		return nil, err
	}

	regression, err := OLSRegression(asset, market)
	if err != nil {
		return nil, err
	}

	return &m.BetaEstimate{
		CovarianceVarianceBeta: betaCov,
		OLSBeta:                regression.Slope,
		Regression:             *regression,
	}, nil
}

// CovarianceVarianceBeta is Cov(asset, market) / Var(market), both with n-1 denominators
func CovarianceVarianceBeta(asset, market []float64) (float64, error) {
	if len(asset) != len(market) {
		return 0, fmt.Errorf("%w: asset has %d returns, market has %d", ErrInvalidSeries, len(asset), len(market))
	}
	if len(market) < MinimumObservations {
		return 0, fmt.Errorf("%w: %d returns, need at least %d", ErrInsufficientData, len(market), MinimumObservations)
	}

	variance, err := marketVariance(market)
	if err != nil {
		return 0, err
	}

	return stat.Covariance(asset, market, nil) / variance, nil
}

// OLSRegression fits asset = alpha + beta * market + e by least squares, with a constant column for the intercept
func OLSRegression(asset, market []float64) (*m.RegressionResult, error) {
	n := len(market)
	if len(asset) != n {
		return nil, fmt.Errorf("%w: asset has %d returns, market has %d", ErrInvalidSeries, len(asset), n)
	}
	if n < MinimumObservations {
		return nil, fmt.Errorf("%w: %d returns, need at least %d", ErrInsufficientData, n, MinimumObservations)
	}
	if _, err := marketVariance(market); err != nil {
		return nil, err
	}

	design := addConstant(market)
	y := mat.NewVecDense(n, asset)

	var coef mat.VecDense
	if err := coef.SolveVec(design, y); err != nil && !isConditionOnly(err) {
		return nil, fmt.Errorf("error solving least squares: %w", err)
	}

	intercept, slope := coef.AtVec(0), coef.AtVec(1)

	return &m.RegressionResult{
		Intercept:   intercept,
		Slope:       slope,
		Diagnostics: regressionDiagnostics(design, asset, market, intercept, slope),
	}, nil
}

// marketVariance is the sample variance of the market returns, or ErrDegenerateVariance when it is
// negligible against the size of the returns. Returns that only differ by rounding, ie. a geometric
// price series, land here rather than yielding a beta in the 1e15s.
func marketVariance(market []float64) (float64, error) {
	if ex.AreAllEqual(market) {
		return 0, fmt.Errorf("%w: market returns are constant", ErrDegenerateVariance)
	}

	mean, variance := stat.MeanVariance(market, nil)
	if !ex.IsFinite(variance) || variance <= varianceTolerance*math.Max(1, mean*mean) {
		return 0, fmt.Errorf("%w: market variance is %v", ErrDegenerateVariance, variance)
	}

	return variance, nil
}

// addConstant builds the n x 2 design matrix [1, x]
func addConstant(x []float64) *mat.Dense {
	data := make([]float64, 0, 2*len(x))
	for _, v := range x {
		data = append(data, 1, v)
	}
	return mat.NewDense(len(x), 2, data)
}

func regressionDiagnostics(design *mat.Dense, y, x []float64, intercept, slope float64) m.RegressionDiagnostics {
	n := len(y)
	df := n - 2

	res := m.RegressionDiagnostics{
		Observations:     n,
		DegreesOfFreedom: df,
	}

	fitted := make([]float64, n)
	ssr := 0.0
	for i := range n {
		fitted[i] = intercept + slope*x[i]
		resid := y[i] - fitted[i]
		ssr += resid * resid
	}

	rSquared := stat.RSquaredFrom(fitted, y, nil)
	res.RSquared = nullable(rSquared)

	// everything below needs at least one residual degree of freedom
	if df <= 0 {
		return res
	}

	res.AdjustedRSquared = nullable(1 - (1-rSquared)*float64(n-1)/float64(df))

	sigma2 := ssr / float64(df)
	res.ResidualStdErr = nullable(math.Sqrt(sigma2))

	var xtx, xtxInv mat.Dense
	xtx.Mul(design.T(), design)
	if err := xtxInv.Inverse(&xtx); err != nil && !isConditionOnly(err) {
		return res
	}

	seIntercept := math.Sqrt(sigma2 * xtxInv.At(0, 0))
	seSlope := math.Sqrt(sigma2 * xtxInv.At(1, 1))
	res.StdErrIntercept = nullable(seIntercept)
	res.StdErrSlope = nullable(seSlope)

	tIntercept := intercept / seIntercept
	tSlope := slope / seSlope
	res.TStatIntercept = nullable(tIntercept)
	res.TStatSlope = nullable(tSlope)

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	res.PValueIntercept = nullable(2 * dist.Survival(math.Abs(tIntercept)))
	res.PValueSlope = nullable(2 * dist.Survival(math.Abs(tSlope)))

	return res
}

// isConditionOnly is true when gonum solved the system but flagged it as ill conditioned
func isConditionOnly(err error) bool {
	var cond mat.Condition
	return errors.As(err, &cond)
}

func nullable(v float64) null.Float {
	return null.NewFloat(v, ex.IsFinite(v))
}
