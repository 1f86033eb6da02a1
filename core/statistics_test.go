package core

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	ex "beta.service/data/extensions"
	dm "beta.service/data/models"
)

const (
	mu_asset     = 0.12
	mu_market    = 0.08
	sigma_asset  = 0.30
	sigma_market = 0.16
	corr_am      = 0.8

	// beta = corr * sigma_asset / sigma_market
	expected_beta = corr_am * sigma_asset / sigma_market
)

// TestSupportingGenerators ensures the math is correct for supporting testing functionality
func TestSupportingGenerators(t *testing.T) {
	nSamples := dm.Weekly * 500
	returns := generateMockReturns(t, nSamples, dm.Weekly)

	eval_corr := stat.Correlation(returns[0], returns[1], nil)
	if math.Abs(eval_corr-corr_am) > 0.01 {
		t.Errorf("Corr(Asset, Market): expected %.4f, got %.4f", corr_am, eval_corr)
	}

	eval_sigma_asset := stat.StdDev(returns[0], nil) * math.Sqrt(dm.Weekly)
	eval_sigma_market := stat.StdDev(returns[1], nil) * math.Sqrt(dm.Weekly)
	if math.Abs(eval_sigma_asset-sigma_asset) > 0.01 {
		t.Errorf("Sigma(Asset): expected %.4f, got %.4f", sigma_asset, eval_sigma_asset)
	}
	if math.Abs(eval_sigma_market-sigma_market) > 0.01 {
		t.Errorf("Sigma(Market): expected %.4f, got %.4f", sigma_market, eval_sigma_market)
	}

	prices := generateMockStockPrices(t, returns)
	for series := range returns {
		for period := range len(returns[series]) {
			calculatedReturn := prices[series][period+1]/prices[series][period] - 1
			diff := math.Abs(returns[series][period] - calculatedReturn)
			if diff > 1e-10 {
				t.Errorf("Series %d, Period %d: return mismatch (diff: %.2e)", series, period, diff)
			}
		}
	}
}

func TestReturnStatisticsRecoversGeneratedMoments(t *testing.T) {
	nSamples := dm.Weekly * 500
	returns := generateMockReturns(t, nSamples, dm.Weekly)

	pairs := make([]dm.ReturnPair, nSamples)
	for i := range nSamples {
		pairs[i] = dm.ReturnPair{Asset: returns[0][i], Market: returns[1][i]}
	}

	stats, err := GetReturnStatistics(pairs, nil, nil, dm.IntervalWeekly)
	if err != nil {
		t.Fatalf("Failed to get return statistics: %v", err)
	}

	ex.AssertAreEqual(t, "periods per year", dm.Weekly, stats.PeriodsPerYear)
	ex.AssertAreEqual(t, "observations", nSamples, stats.Asset.Observations)
	ex.AssertInDelta(t, "correlation", corr_am, stats.Correlation.Float64, 0.01)
	ex.AssertInDelta(t, "asset volatility", sigma_asset, stats.Asset.AnnualizedVolatility, 0.01)
	ex.AssertInDelta(t, "market volatility", sigma_market, stats.Market.AnnualizedVolatility, 0.01)
	ex.AssertInDelta(t, "asset return", mu_asset, stats.Asset.AnnualizedReturn, 0.05)
	ex.AssertInDelta(t, "market return", mu_market, stats.Market.AnnualizedReturn, 0.05)

	// covariance / market variance is the beta
	marketVariance := stats.Market.Volatility * stats.Market.Volatility
	ex.AssertInDelta(t, "implied beta", expected_beta, stats.Covariance/marketVariance, 0.03)

	if stats.Asset.TotalReturn.Valid || stats.Asset.MaxDrawdown.Valid {
		t.Errorf("price metrics should be undefined without prices")
	}
}

func TestReturnStatisticsPriceMetrics(t *testing.T) {
	asset := seriesFromCloses("AAPL", dm.IntervalWeekly, []float64{100, 120, 90, 110})
	market := seriesFromCloses("^GSPC", dm.IntervalWeekly, []float64{50, 51, 52, 53})

	assetReturns, _ := ComputeReturns(asset)
	marketReturns, _ := ComputeReturns(market)
	pairs, err := CleanPairs(AlignReturns(assetReturns, marketReturns, "a", "m"), 0, 1)
	if err != nil {
		t.Fatalf("Failed to clean pairs: %v", err)
	}

	stats, err := GetReturnStatistics(pairs, asset, market, dm.IntervalWeekly)
	if err != nil {
		t.Fatalf("Failed to get return statistics: %v", err)
	}

	ex.AssertAreEqual(t, "asset symbol", "AAPL", stats.Asset.Symbol)
	ex.AssertInDelta(t, "asset total return", 0.10, stats.Asset.TotalReturn.Float64, 1e-12)
	ex.AssertInDelta(t, "asset max drawdown", 0.25, stats.Asset.MaxDrawdown.Float64, 1e-12)
	ex.AssertInDelta(t, "market total return", 0.06, stats.Market.TotalReturn.Float64, 1e-12)
	ex.AssertInDelta(t, "market max drawdown", 0, stats.Market.MaxDrawdown.Float64, 1e-12)
}

func TestReturnStatisticsConstantAssetHasNoCorrelation(t *testing.T) {
	pairs := []dm.ReturnPair{
		{Asset: 0.5, Market: 0.02},
		{Asset: 0.5, Market: -0.01},
		{Asset: 0.5, Market: 0.03},
	}

	stats, err := GetReturnStatistics(pairs, nil, nil, dm.IntervalMonthly)
	if err != nil {
		t.Fatalf("Failed to get return statistics: %v", err)
	}

	if stats.Correlation.Valid {
		t.Errorf("correlation should be undefined for a constant asset, got %v", stats.Correlation.Float64)
	}
	ex.AssertInDelta(t, "covariance", 0, stats.Covariance, 1e-15)
	ex.AssertAreEqual(t, "periods per year", dm.Monthly, stats.PeriodsPerYear)
}

func TestReturnStatisticsInsufficientData(t *testing.T) {
	_, err := GetReturnStatistics([]dm.ReturnPair{{Asset: 0.1, Market: 0.1}}, nil, nil, dm.IntervalWeekly)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestCovarianceAndCorrelationMatrix(t *testing.T) {
	returns := generateMockReturns(t, 1000, dm.Weekly)

	covMatrix := GetCovarianceMatrix(returns)
	ex.AssertInDelta(t, "cov(0, 1)", stat.Covariance(returns[0], returns[1], nil), covMatrix.At(0, 1), 1e-12)
	ex.AssertInDelta(t, "var(1)", stat.Variance(returns[1], nil), covMatrix.At(1, 1), 1e-12)

	corrMatrix := GetCorrelationMatrix(covMatrix)
	ex.AssertInDelta(t, "corr(0, 0)", 1, corrMatrix.At(0, 0), 1e-12)
	ex.AssertInDelta(t, "corr(1, 1)", 1, corrMatrix.At(1, 1), 1e-12)
	ex.AssertInDelta(t, "corr(0, 1)", stat.Correlation(returns[0], returns[1], nil), corrMatrix.At(1, 0), 1e-12)
}

func TestArrToMatrix(t *testing.T) {
	res := ArrToMatrix([][]int{{1, 2, 3}, {4, 5, 6}})

	rows, cols := res.Dims()
	ex.AssertAreEqual(t, "rows", 3, rows)
	ex.AssertAreEqual(t, "cols", 2, cols)
	ex.AssertAreEqual(t, "(2, 1)", 6.0, res.At(2, 1))
}

// Helper: correlated asset and market simple returns, per period
func generateMockReturns(t *testing.T, n int, periodsPerYear float64) [][]float64 {
	t.Helper()

	corrMatrix := mat.NewSymDense(2, []float64{
		1.0, corr_am,
		corr_am, 1.0,
	})

	var chol mat.Cholesky
	if ok := chol.Factorize(corrMatrix); !ok {
		t.Fatalf("Correlation matrix is not positive definite")
	}

	L := new(mat.TriDense)
	chol.LTo(L)

	src := rand.NewPCG(42, 0)
	normalDist := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	asset := make([]float64, n)
	market := make([]float64, n)

	z := make([]float64, 2)
	for sim := range n {
		z[0], z[1] = normalDist.Rand(), normalDist.Rand()

		correlatedZ := mat.NewVecDense(2, nil)
		correlatedZ.MulVec(L, mat.NewVecDense(2, z))

		asset[sim] = calculatePeriodReturn(t, mu_asset, sigma_asset, correlatedZ.AtVec(0), periodsPerYear)
		market[sim] = calculatePeriodReturn(t, mu_market, sigma_market, correlatedZ.AtVec(1), periodsPerYear)
	}

	return [][]float64{asset, market}
}

// Helper: annual mu and sigma scaled down to one period
func calculatePeriodReturn(t *testing.T, mu, sigma, rng, normalization float64) float64 {
	t.Helper()
	return mu/normalization + sigma*rng/math.Sqrt(normalization)
}

// Helper: compounds returns into prices
func generateMockStockPrices(t *testing.T, returns [][]float64) [][]float64 {
	t.Helper()

	res := make([][]float64, len(returns))
	for i, series := range returns {
		prices := make([]float64, len(series)+1)
		prices[0] = 100
		for period, r := range series {
			prices[period+1] = prices[period] * (1 + r)
		}
		res[i] = prices
	}

	return res
}

// Helper: a series of consecutive weekly (or monthly) bars starting 2020-01-06
func seriesFromCloses(symbol string, interval dm.Interval, closes []float64) *dm.PriceSeries {
	start := time.Date(2020, 1, 6, 0, 0, 0, 0, time.UTC)

	bars := make([]dm.PriceBar, len(closes))
	for i, c := range closes {
		ts := start.AddDate(0, 0, 7*i)
		if interval == dm.IntervalMonthly {
			ts = start.AddDate(0, i, 0)
		}
		bars[i] = dm.PriceBar{Timestamp: ts, Open: c, High: c, Low: c, Close: c, AdjustedClose: c}
	}

	return &dm.PriceSeries{
		Symbol:   symbol,
		Interval: interval,
		Source:   "test",
		Bars:     bars,
	}
}
