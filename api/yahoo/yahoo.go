package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	c "beta.service/api"
	ex "beta.service/data/extensions"
	m "beta.service/data/models"
)

const (
	HostDefault = "query1.finance.yahoo.com"
	SourceName  = "yahoo"

	defaultTimeout = 30 * time.Second
	chartPath      = "v8/finance/chart/"
	notFoundCode   = "Not Found"
)

// YahooClient reads split and dividend adjusted bars from the public chart api
type YahooClient struct {
	*c.Client
	SymbolMap map[string]string // maps common aliases to yahoo tickers
}

func GetClient() YahooClient {
	return YahooClient{
		Client:    c.ClientFactory(HostDefault, "", defaultTimeout),
		SymbolMap: defaultSymbolMap(),
	}
}

func GetClientForBaseURL(baseURL string) (YahooClient, error) {
	client, err := c.ClientFactoryFromBaseURL(baseURL, "", defaultTimeout)
	if err != nil {
		return YahooClient{}, err
	}
	return YahooClient{Client: client, SymbolMap: defaultSymbolMap()}, nil
}

func defaultSymbolMap() map[string]string {
	return map[string]string{
		"SPX":   "^GSPC",
		"SP500": "^GSPC",
	}
}

func (yc YahooClient) Name() string { return SourceName }

func (yc YahooClient) yahooSymbol(symbol string) string {
	if mapped, ok := yc.SymbolMap[strings.ToUpper(symbol)]; ok {
		return mapped
	}
	return symbol
}

// chart is the response structure from the chart api, prices are nullable for halted sessions
type chart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol               string `json:"symbol"`
				ExchangeTimezoneName string `json:"exchangeTimezoneName"`
				GmtOffset            int    `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func chartInterval(interval m.Interval) (string, error) {
	switch interval {
	case m.IntervalWeekly:
		return "1wk", nil
	case m.IntervalMonthly:
		return "1mo", nil
	default:
		return "", fmt.Errorf("interval %d has no yahoo chart interval", interval)
	}
}

func (yc YahooClient) FetchSeries(ctx context.Context, symbol string, start, end time.Time, interval m.Interval) (*m.PriceSeries, error) {
	if yc.Client == nil {
		panic("yahoo client has not been set.")
	}

	if err := c.ValidateRange(start, end); err != nil {
		return nil, err
	}

	chartInt, err := chartInterval(interval)
	if err != nil {
		return nil, err
	}

	endpoint := &url.URL{Path: chartPath + yc.yahooSymbol(symbol)}
	query := endpoint.Query()
	query.Set("period1", strconv.FormatInt(ex.DateOnly(start).Unix(), 10))
	query.Set("period2", strconv.FormatInt(ex.DateOnly(end).Unix(), 10))
	query.Set("interval", chartInt)
	query.Set("events", "div,split")
	query.Set("includeAdjustedClose", "true")
	endpoint.RawQuery = query.Encode()

	resp, err := yc.Client.Connection.Request(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}

	// a missing symbol comes back as a 404 with a chart error body
	var ch chart
	if err := json.Unmarshal(body, &ch); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if ch.Chart.Error != nil {
		if ch.Chart.Error.Code == notFoundCode {
			return nil, fmt.Errorf("yahoo: %s (%s): %w", symbol, ch.Chart.Error.Description, c.ErrSymbolNotFound)
		}
		return nil, fmt.Errorf("yahoo api error: %s", ch.Chart.Error.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}
	if len(ch.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo: no result for %s: %w", symbol, c.ErrNoDataInRange)
	}

	bars, err := toBars(&ch)
	if err != nil {
		return nil, err
	}

	inRange := ex.FilterMultiple(bars, func(b m.PriceBar) bool { return c.InRange(b.Timestamp, start, end) })

	log.Debug().
		Str("source", SourceName).
		Str("symbol", symbol).
		Int("received", len(bars)).
		Int("in_range", len(inRange)).
		Msg("parsed yahoo chart")

	return c.NewPriceSeries(SourceName, symbol, interval, inRange)
}

func toBars(ch *chart) ([]m.PriceBar, error) {
	result := ch.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 || len(result.Indicators.AdjClose) == 0 {
		return []m.PriceBar{}, nil
	}

	loc := exchangeLocation(result.Meta.ExchangeTimezoneName, result.Meta.GmtOffset)
	quote := result.Indicators.Quote[0]
	adjClose := result.Indicators.AdjClose[0].AdjClose

	n := len(result.Timestamp)
	if len(quote.Close) != n || len(adjClose) != n {
		return nil, fmt.Errorf("yahoo: %d timestamps but %d closes and %d adjusted closes", n, len(quote.Close), len(adjClose))
	}

	bars := make([]m.PriceBar, 0, n)
	for i, ts := range result.Timestamp {
		// skip null bars (holidays, halted sessions)
		if adjClose[i] == nil || quote.Close[i] == nil {
			continue
		}
		bars = append(bars, m.PriceBar{
			Timestamp:     ex.DateOnly(time.Unix(ts, 0).In(loc)),
			Open:          valueAt(quote.Open, i),
			High:          valueAt(quote.High, i),
			Low:           valueAt(quote.Low, i),
			Close:         *quote.Close[i],
			AdjustedClose: *adjClose[i],
			Volume:        valueAt(quote.Volume, i),
		})
	}

	return bars, nil
}

func valueAt(values []*float64, i int) float64 {
	if i >= len(values) || values[i] == nil {
		return 0
	}
	return *values[i]
}

func exchangeLocation(name string, gmtOffset int) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.FixedZone("exchange", gmtOffset)
}
