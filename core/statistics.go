package core

import (
	"fmt"
	"math"

	"github.com/guregu/null/v6"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	ex "beta.service/data/extensions"
	m "beta.service/data/models"
)

// GetReturnStatistics describes the cleaned return pairs of an estimate. Prices are only used for
// total return and drawdown and may be nil.
func GetReturnStatistics(pairs []m.ReturnPair, assetPrices, marketPrices *m.PriceSeries, interval m.Interval) (*m.ReturnStatistics, error) {
	if len(pairs) < MinimumObservations {
		return nil, fmt.Errorf("%w: %d valid aligned return pairs, need at least %d", ErrInsufficientData, len(pairs), MinimumObservations)
	}
	if !interval.IsValid() {
		return nil, fmt.Errorf("%w: interval %d", ErrInvalidRequest, interval)
	}

	asset := make([]float64, len(pairs))
	market := make([]float64, len(pairs))
	for i, p := range pairs {
		asset[i] = p.Asset
		market[i] = p.Market
	}

	periodsPerYear := interval.PeriodsPerYear()
	covMatrix := GetCovarianceMatrix([][]float64{asset, market})
	corrMatrix := GetCorrelationMatrix(covMatrix)

	res := &m.ReturnStatistics{
		PeriodsPerYear: periodsPerYear,
		Asset:          seriesStatistics(asset, assetPrices, periodsPerYear),
		Market:         seriesStatistics(market, marketPrices, periodsPerYear),
		Covariance:     covMatrix.At(0, 1),
		Correlation:    nullable(corrMatrix.At(0, 1)),
	}

	return res, nil
}

func seriesStatistics(returns []float64, prices *m.PriceSeries, periodsPerYear int) m.SeriesStatistics {
	mean, std := stat.MeanStdDev(returns, nil)

	res := m.SeriesStatistics{
		Observations:         len(returns),
		MeanReturn:           mean,
		Volatility:           std,
		AnnualizedReturn:     mean * float64(periodsPerYear),
		AnnualizedVolatility: std * math.Sqrt(float64(periodsPerYear)),
	}

	if prices != nil {
		res.Symbol = prices.Symbol
		totalReturn, maxDrawdown := priceMetrics(prices.AdjustedCloses())
		res.TotalReturn = totalReturn
		res.MaxDrawdown = maxDrawdown
	}

	return res
}

// priceMetrics is the simple return from first to last close and the largest peak to trough fall
func priceMetrics(closes []float64) (totalReturn, maxDrawdown null.Float) {
	n := len(closes)
	if n < 2 {
		return
	}

	initialValue, finalValue := closes[0], closes[n-1]
	if initialValue > 0 {
		totalReturn = nullable((finalValue - initialValue) / initialValue)
	}

	var peak, drawdown float64
	for _, v := range closes {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			drawdown = math.Max(drawdown, (peak-v)/peak)
		}
	}
	if peak > 0 {
		maxDrawdown = nullable(drawdown)
	}

	return
}

func GetCovarianceMatrix[T ex.Number](data [][]T) *mat.SymDense {
	returnMatrix := ArrToMatrix(data)
	covMatrix := mat.NewSymDense(len(data), nil)
	stat.CovarianceMatrix(covMatrix, returnMatrix, nil)
	return covMatrix
}

// GetCorrelationMatrix builds a correlation matrix from a covariance matrix so diagonal is 1.
// corr_ij = cov_ij / sqrt(cov_ii*cov_jj), a zero variance leaves NaN in its row and column
func GetCorrelationMatrix(covMatrix *mat.SymDense) *mat.SymDense {
	n := covMatrix.SymmetricDim()
	corrMatrix := mat.NewSymDense(n, nil)

	for i := range n {
		for j := range i + 1 {
			corr := covMatrix.At(i, j) / math.Sqrt(covMatrix.At(i, i)*covMatrix.At(j, j))
			corrMatrix.SetSym(i, j, corr)
		}
	}

	return corrMatrix
}

// ArrToMatrix lays each series out as a column
func ArrToMatrix[T ex.Number](data [][]T) *mat.Dense {
	nSymbols := len(data)
	nObservations := len(data[0])
	res := mat.NewDense(nObservations, nSymbols, nil)
	for j, col := range data {
		for i, row := range col {
			res.Set(i, j, float64(row))
		}
	}
	return res
}
