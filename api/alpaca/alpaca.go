package alpaca

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/rs/zerolog/log"

	c "beta.service/api"
	ex "beta.service/data/extensions"
	m "beta.service/data/models"
)

const SourceName = "alpaca"

// barsClient is the part of the marketdata client the provider uses
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

type AlpacaClient struct {
	md       barsClient
	location *time.Location
}

// GetClient builds a marketdata client, an empty baseURL uses alpaca's data api
func GetClient(apiKey, apiSecret, baseURL string) AlpacaClient {
	md := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})
	return newAlpacaClient(md)
}

func newAlpacaClient(md barsClient) AlpacaClient {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return AlpacaClient{md: md, location: loc}
}

func (ac AlpacaClient) Name() string { return SourceName }

func timeFrame(interval m.Interval) (marketdata.TimeFrame, error) {
	switch interval {
	case m.IntervalWeekly:
		return marketdata.NewTimeFrame(1, marketdata.Week), nil
	case m.IntervalMonthly:
		return marketdata.NewTimeFrame(1, marketdata.Month), nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("interval %d has no alpaca time frame", interval)
	}
}

// FetchSeries requests split and dividend adjusted bars, so the adjusted close is the bar close
func (ac AlpacaClient) FetchSeries(ctx context.Context, symbol string, start, end time.Time, interval m.Interval) (*m.PriceSeries, error) {
	if ac.md == nil {
		panic("alpaca client has not been set.")
	}

	if err := c.ValidateRange(start, end); err != nil {
		return nil, err
	}

	tf, err := timeFrame(interval)
	if err != nil {
		return nil, err
	}

	// the marketdata client does not take a context
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bars, err := ac.md.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame:  tf,
		Start:      ex.DateOnly(start),
		End:        ex.DateOnly(end),
		Adjustment: marketdata.All,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s bars for %s: %w", interval, symbol, err)
	}

	res := make([]m.PriceBar, 0, len(bars))
	for _, bar := range bars {
		ts := ex.DateOnly(bar.Timestamp.In(ac.location))
		if !c.InRange(ts, start, end) {
			continue
		}
		res = append(res, m.PriceBar{
			Timestamp:     ts,
			Open:          bar.Open,
			High:          bar.High,
			Low:           bar.Low,
			Close:         bar.Close,
			AdjustedClose: bar.Close,
			Volume:        float64(bar.Volume),
		})
	}

	log.Debug().
		Str("source", SourceName).
		Str("symbol", symbol).
		Int("received", len(bars)).
		Int("in_range", len(res)).
		Msg("fetched alpaca bars")

	// alpaca answers an unknown symbol with no bars, so it surfaces as no data
	return c.NewPriceSeries(SourceName, symbol, interval, res)
}
