package alpaca

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	c "beta.service/api"
	ex "beta.service/data/extensions"
	m "beta.service/data/models"
)

type fakeBars struct {
	req  marketdata.GetBarsRequest
	bars []marketdata.Bar
	err  error
}

func (f *fakeBars) GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	f.req = req
	return f.bars, f.err
}

func Test_Alpaca_FetchSeries_Weekly(t *testing.T) {
	fake := &fakeBars{
		bars: []marketdata.Bar{
			{Timestamp: time.Date(2024, 1, 15, 5, 0, 0, 0, time.UTC), Open: 10, High: 12, Low: 9, Close: 11, Volume: 1000},
			{Timestamp: time.Date(2024, 1, 8, 5, 0, 0, 0, time.UTC), Open: 9, High: 11, Low: 8, Close: 10, Volume: 900},
			{Timestamp: time.Date(2024, 1, 22, 5, 0, 0, 0, time.UTC), Open: 11, High: 13, Low: 10, Close: 12, Volume: 1100},
		},
	}
	client := newAlpacaClient(fake)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	res, err := client.FetchSeries(context.Background(), "AAPL", start, end, m.IntervalWeekly)
	if err != nil {
		t.Fatalf("error fetching series: %s", err)
	}

	ex.AssertAreEqual(t, "time frame unit", marketdata.Week, fake.req.TimeFrame.Unit)
	ex.AssertAreEqual(t, "adjustment", marketdata.All, fake.req.Adjustment)

	ex.AssertAreEqual(t, "bar count", 3, res.Len())
	ex.AssertAreEqual(t, "first timestamp", time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), res.Bars[0].Timestamp)
	ex.AssertInDelta(t, "adjusted close", 11, res.Bars[1].AdjustedClose, 1e-9)
	ex.AssertInDelta(t, "volume", 1100, res.Bars[2].Volume, 1e-9)
}

func Test_Alpaca_FetchSeries_MonthlyTimeFrame(t *testing.T) {
	fake := &fakeBars{
		bars: []marketdata.Bar{
			{Timestamp: time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC), Close: 10},
		},
	}
	client := newAlpacaClient(fake)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	if _, err := client.FetchSeries(context.Background(), "AAPL", start, end, m.IntervalMonthly); err != nil {
		t.Fatalf("error fetching series: %s", err)
	}

	ex.AssertAreEqual(t, "time frame unit", marketdata.Month, fake.req.TimeFrame.Unit)
}

func Test_Alpaca_FetchSeries_NoBars(t *testing.T) {
	client := newAlpacaClient(&fakeBars{})

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	// an unknown symbol is an empty page, so it is reported as no data
	_, err := client.FetchSeries(context.Background(), "NOPE", start, end, m.IntervalWeekly)
	if !errors.Is(err, c.ErrNoDataInRange) {
		t.Fatalf("expected ErrNoDataInRange, got %v", err)
	}
	if errors.Is(err, c.ErrSymbolNotFound) {
		t.Fatalf("an empty page should not be reported as a missing symbol, got %v", err)
	}
}

func Test_Alpaca_FetchSeries_ClientError(t *testing.T) {
	upstream := errors.New("forbidden")
	client := newAlpacaClient(&fakeBars{err: upstream})

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	_, err := client.FetchSeries(context.Background(), "AAPL", start, end, m.IntervalWeekly)
	if !errors.Is(err, upstream) {
		t.Fatalf("expected wrapped upstream error, got %v", err)
	}
}

func Test_Alpaca_FetchSeries_CancelledContext(t *testing.T) {
	fake := &fakeBars{}
	client := newAlpacaClient(fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	if _, err := client.FetchSeries(ctx, "AAPL", start, end, m.IntervalWeekly); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
