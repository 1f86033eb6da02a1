package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"beta.service/api"
	"beta.service/config"
	ex "beta.service/data/extensions"
	dm "beta.service/data/models"
	sm "beta.service/models"
)

const (
	// defaultLookbackYears is the window used when a request has no start date
	defaultLookbackYears = 5
	requestDateFormat    = time.DateOnly
)

// ErrUpstream marks failures of the market data provider that are not a missing symbol or missing data
var ErrUpstream = errors.New("market data provider failure")

// betaParams is a BetaRequest with every default applied and every field validated
type betaParams struct {
	ticker      string
	index       config.MarketIndex
	interval    dm.Interval
	start       time.Time
	end         time.Time
	coefficient float64
	prices      bool
}

// RunBetaEstimate fetches the ticker and the market index, computes their returns, and estimates
// and adjusts the beta. Nothing is returned unless every step succeeds.
func (sc *ServiceContext) RunBetaEstimate(ctx context.Context, req sm.BetaRequest) (*sm.BetaResponse, error) {
	start := time.Now()
	requestId := uuid.NewString()
	logger := sc.Logger.With().Str("request_id", requestId).Logger()

	params, err := sc.resolveRequest(req)
	if err != nil {
		logger.Info().Err(err).Msg("Rejected beta request")
		estimatesTotal.WithLabelValues(outcomeLabel(err)).Inc()
		return nil, err
	}

	logger = logger.With().Str("ticker", params.ticker).Str("index", params.index.Name).Str("interval", params.interval.Name()).Logger()
	logger.Info().
		Str("start", ex.FmtShort(params.start)).
		Str("end", ex.FmtShort(params.end)).
		Msgf("Received request to estimate beta of %s against %s", params.ticker, params.index.Name)

	logger.Debug().Msgf("Getting price series (time: %v)", time.Since(start))
	assetSeries, indexSeries, err := sc.fetchSeries(ctx, params)
	if err != nil {
		logger.Error().Err(err).Msgf("Error getting price series for %s", params.ticker)
		estimatesTotal.WithLabelValues(outcomeLabel(err)).Inc()
		return nil, err
	}

	logger.Debug().Msgf("Computing returns (time: %v)", time.Since(start))
	table, err := buildReturnTable(params, assetSeries, indexSeries)
	if err != nil {
		logger.Error().Err(err).Msg("Error computing returns")
		estimatesTotal.WithLabelValues(outcomeLabel(err)).Inc()
		return nil, err
	}

	logger.Debug().Msgf("Estimating beta over %d aligned rows (time: %v)", len(table.Rows), time.Since(start))
	estimate, err := EstimateBeta(table, 0, 1)
	if err != nil {
		logger.Error().Err(err).Msgf("Error estimating beta for %s", params.ticker)
		estimatesTotal.WithLabelValues(outcomeLabel(err)).Inc()
		return nil, err
	}

	// the adjustment shrinks the covariance/variance beta
	adjusted, err := NewAdjustedBeta(estimate.CovarianceVarianceBeta, params.coefficient)
	if err != nil {
		logger.Error().Err(err).Msg("Error adjusting beta")
		estimatesTotal.WithLabelValues(outcomeLabel(err)).Inc()
		return nil, err
	}

	pairs, err := CleanPairs(table, 0, 1)
	if err != nil {
		logger.Error().Err(err).Msg("Error cleaning return pairs")
		estimatesTotal.WithLabelValues(outcomeLabel(err)).Inc()
		return nil, err
	}
	stats, err := GetReturnStatistics(pairs, assetSeries, indexSeries, params.interval)
	if err != nil {
		logger.Error().Err(err).Msg("Error computing return statistics")
		estimatesTotal.WithLabelValues(outcomeLabel(err)).Inc()
		return nil, err
	}

	res := buildBetaResponse(requestId, params, assetSeries, indexSeries, table, estimate, adjusted)
	res.Statistics = *stats
	estimatesTotal.WithLabelValues(outcomeLabel(nil)).Inc()

	logger.Info().
		Float64("beta_cov", estimate.CovarianceVarianceBeta).
		Float64("beta_ols", estimate.OLSBeta).
		Float64("beta_adjusted", adjusted.AdjustedValue).
		Int("observations", estimate.Regression.Diagnostics.Observations).
		Msgf("Beta estimate for %s completed (time: %v)", params.ticker, time.Since(start))

	return res, nil
}

func (sc *ServiceContext) resolveRequest(req sm.BetaRequest) (*betaParams, error) {
	cfg := sc.Config
	params := &betaParams{
		ticker:      strings.ToUpper(strings.TrimSpace(req.Ticker)),
		interval:    cfg.Interval(),
		coefficient: cfg.AdjustmentCoefficient,
		prices:      req.IncludePrices,
	}

	if params.ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", ErrInvalidRequest)
	}

	indexName := strings.TrimSpace(req.Index)
	if indexName == "" {
		indexName = cfg.DefaultIndex
	}
	index, ok := cfg.IndexSymbol(indexName)
	if !ok {
		return nil, fmt.Errorf("%w: unknown market index %q", ErrInvalidRequest, indexName)
	}
	params.index = index

	if req.Interval != "" {
		interval, err := dm.ParseInterval(req.Interval)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		params.interval = interval
	}

	params.end = ex.DateOnly(sc.now())
	if req.EndDate != "" {
		end, err := time.Parse(requestDateFormat, req.EndDate)
		if err != nil {
			return nil, fmt.Errorf("%w: end date %q is not yyyy-mm-dd", ErrInvalidRequest, req.EndDate)
		}
		params.end = end
	}

	params.start = params.end.AddDate(-defaultLookbackYears, 0, 0)
	if req.StartDate != "" {
		start, err := time.Parse(requestDateFormat, req.StartDate)
		if err != nil {
			return nil, fmt.Errorf("%w: start date %q is not yyyy-mm-dd", ErrInvalidRequest, req.StartDate)
		}
		params.start = start
	}

	if !params.start.Before(params.end) {
		return nil, fmt.Errorf("%w: start date %s must be before end date %s", ErrInvalidRequest, ex.FmtShort(params.start), ex.FmtShort(params.end))
	}

	if req.AdjustmentCoefficient != nil {
		params.coefficient = *req.AdjustmentCoefficient
	}
	if err := ValidateCoefficient(params.coefficient); err != nil {
		return nil, err
	}

	return params, nil
}

// fetchSeries gets the asset and the index concurrently, either failure aborts both
func (sc *ServiceContext) fetchSeries(ctx context.Context, params *betaParams) (*dm.PriceSeries, *dm.PriceSeries, error) {
	symbols := []string{params.ticker}
	if params.index.Symbol != params.ticker {
		symbols = append(symbols, params.index.Symbol)
	}

	series, err := api.FetchAll(ctx, sc.Provider, symbols, params.start, params.end, params.interval)
	if err != nil {
		if errors.Is(err, api.ErrSymbolNotFound) || errors.Is(err, api.ErrNoDataInRange) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	return series[params.ticker], series[params.index.Symbol], nil
}

// buildReturnTable computes both return series and inner joins them, asset first
func buildReturnTable(params *betaParams, assetSeries, indexSeries *dm.PriceSeries) (*dm.ReturnTable, error) {
	assetReturns, err := ComputeReturns(assetSeries)
	if err != nil {
		return nil, fmt.Errorf("error computing returns for %s: %w", params.ticker, err)
	}

	indexReturns, err := ComputeReturns(indexSeries)
	if err != nil {
		return nil, fmt.Errorf("error computing returns for %s: %w", params.index.Symbol, err)
	}

	return AlignReturns(assetReturns, indexReturns, ReturnColumnName(params.ticker), ReturnColumnName(params.index.Name)), nil
}

// ReturnColumnName is the heading of a return table column, ie. AAPL_return
func ReturnColumnName(name string) string {
	return name + "_return"
}

func buildBetaResponse(
	requestId string,
	params *betaParams,
	assetSeries, indexSeries *dm.PriceSeries,
	table *dm.ReturnTable,
	estimate *dm.BetaEstimate,
	adjusted *dm.AdjustedBeta,
) *sm.BetaResponse {
	// report the older of the two fetches
	fetchedAt := assetSeries.FetchedAt
	if indexSeries.FetchedAt.Before(fetchedAt) {
		fetchedAt = indexSeries.FetchedAt
	}

	res := &sm.BetaResponse{
		RequestId:              requestId,
		Ticker:                 params.ticker,
		Index:                  params.index,
		Interval:               params.interval,
		StartDate:              ex.FmtShort(params.start),
		EndDate:                ex.FmtShort(params.end),
		Source:                 assetSeries.Source,
		FetchedAt:              fetchedAt,
		Observations:           estimate.Regression.Diagnostics.Observations,
		CovarianceVarianceBeta: estimate.CovarianceVarianceBeta,
		OLSBeta:                estimate.OLSBeta,
		Regression:             estimate.Regression,
		Adjusted:               *adjusted,
		Formatted:              sm.FormatBeta(estimate, adjusted),
		Returns:                *table,
	}

	if params.prices {
		res.Prices = &sm.BetaPrices{
			Asset: assetSeries,
			Index: indexSeries,
		}
	}

	return res
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrInvalidCoefficient):
		return "invalid_request"
	case errors.Is(err, api.ErrSymbolNotFound):
		return "symbol_not_found"
	case errors.Is(err, api.ErrNoDataInRange):
		return "no_data"
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrDegenerateVariance):
		return "degenerate_variance"
	case errors.Is(err, ErrUpstream):
		return "upstream_error"
	default:
		return "error"
	}
}
