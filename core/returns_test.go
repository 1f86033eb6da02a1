package core

import (
	"errors"
	"testing"
	"time"

	ex "beta.service/data/extensions"
	dm "beta.service/data/models"
)

func TestComputeReturns(t *testing.T) {
	series := seriesFromCloses("AAPL", dm.IntervalWeekly, []float64{100, 110, 99, 99})

	res, err := ComputeReturns(series)
	if err != nil {
		t.Fatalf("Failed to compute returns: %v", err)
	}

	ex.AssertAreEqual(t, "symbol", "AAPL", res.Symbol)
	ex.AssertAreEqual(t, "length", 4, res.Len())
	ex.AssertAreEqual(t, "valid count", 3, res.ValidCount())

	if res.Points[0].Value.Valid {
		t.Errorf("first return should be undefined, got %v", res.Points[0].Value.Float64)
	}
	ex.AssertInDelta(t, "return 1", 0.10, res.Points[1].Value.Float64, 1e-12)
	ex.AssertInDelta(t, "return 2", -0.10, res.Points[2].Value.Float64, 1e-12)
	ex.AssertInDelta(t, "return 3", 0, res.Points[3].Value.Float64, 1e-12)

	for i, p := range res.Points {
		ex.AssertAreEqual(t, "timestamp", series.Bars[i].Timestamp, p.Timestamp)
	}
}

func TestComputeReturnsUsesAdjustedClose(t *testing.T) {
	series := seriesFromCloses("AAPL", dm.IntervalWeekly, []float64{100, 100})
	// a 2 for 1 split halves the close but not the adjusted close
	series.Bars[1].Close = 50

	res, err := ComputeReturns(series)
	if err != nil {
		t.Fatalf("Failed to compute returns: %v", err)
	}

	ex.AssertInDelta(t, "return", 0, res.Points[1].Value.Float64, 1e-12)
}

func TestComputeReturnsZeroPriorClose(t *testing.T) {
	series := seriesFromCloses("AAPL", dm.IntervalWeekly, []float64{10, 0, 5, 6})

	res, err := ComputeReturns(series)
	if err != nil {
		t.Fatalf("Failed to compute returns: %v", err)
	}

	ex.AssertInDelta(t, "return to zero", -1, res.Points[1].Value.Float64, 1e-12)
	if res.Points[2].Value.Valid {
		t.Errorf("return after a zero close should be undefined, got %v", res.Points[2].Value.Float64)
	}
	ex.AssertInDelta(t, "return 3", 0.2, res.Points[3].Value.Float64, 1e-12)
}

func TestComputeReturnsSingleBar(t *testing.T) {
	res, err := ComputeReturns(seriesFromCloses("AAPL", dm.IntervalMonthly, []float64{100}))
	if err != nil {
		t.Fatalf("Failed to compute returns: %v", err)
	}

	ex.AssertAreEqual(t, "length", 1, res.Len())
	ex.AssertAreEqual(t, "valid count", 0, res.ValidCount())
}

func TestComputeReturnsInvalidSeries(t *testing.T) {
	tests := []struct {
		name   string
		series *dm.PriceSeries
	}{
		{name: "nil", series: nil},
		{name: "empty", series: &dm.PriceSeries{Symbol: "AAPL"}},
		{name: "descending", series: func() *dm.PriceSeries {
			s := seriesFromCloses("AAPL", dm.IntervalWeekly, []float64{1, 2})
			s.Bars[0], s.Bars[1] = s.Bars[1], s.Bars[0]
			return s
		}()},
		{name: "duplicate", series: func() *dm.PriceSeries {
			s := seriesFromCloses("AAPL", dm.IntervalWeekly, []float64{1, 2})
			s.Bars[1].Timestamp = s.Bars[0].Timestamp
			return s
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ComputeReturns(tt.series); !errors.Is(err, ErrInvalidSeries) {
				t.Fatalf("expected ErrInvalidSeries, got %v", err)
			}
		})
	}
}

func TestAlignReturnsInnerJoin(t *testing.T) {
	asset := seriesFromCloses("AAPL", dm.IntervalWeekly, []float64{100, 102, 101, 105, 104})
	market := seriesFromCloses("^SPX", dm.IntervalWeekly, []float64{50, 51, 50, 52, 53})

	// the market is closed the week of the third asset bar
	holiday := asset.Bars[2].Timestamp
	market.Bars = append(market.Bars[:2], market.Bars[3:]...)
	// and has a bar the asset does not
	market.Bars = append(market.Bars, dm.PriceBar{Timestamp: asset.Bars[4].Timestamp.AddDate(0, 0, 7), AdjustedClose: 54})

	assetReturns, _ := ComputeReturns(asset)
	marketReturns, _ := ComputeReturns(market)

	table := AlignReturns(assetReturns, marketReturns, "AAPL_return", "SP500_return")

	ex.AssertAreEqual(t, "columns", 2, len(table.Columns))
	ex.AssertAreEqual(t, "asset column", "AAPL_return", table.Columns[0])
	ex.AssertAreEqual(t, "market column", "SP500_return", table.Columns[1])
	ex.AssertAreEqual(t, "rows", 4, len(table.Rows))

	for i, row := range table.Rows {
		if row.Timestamp.Equal(holiday) {
			t.Fatalf("row %d is on a date the market has no bar", i)
		}
		if i > 0 && !row.Timestamp.After(table.Rows[i-1].Timestamp) {
			t.Fatalf("rows are not ascending at %d", i)
		}
	}

	// first row has no return on either side
	if table.Rows[0].Values[0].Valid || table.Rows[0].Values[1].Valid {
		t.Errorf("first row should be undefined on both sides")
	}

	// the market return after the holiday spans two weeks: 50 -> 52
	ex.AssertInDelta(t, "market return over gap", 52.0/51.0-1, table.Rows[2].Values[1].Float64, 1e-12)
}

func TestAlignReturnsNoOverlap(t *testing.T) {
	asset := seriesFromCloses("AAPL", dm.IntervalWeekly, []float64{100, 102})
	market := seriesFromCloses("^SPX", dm.IntervalWeekly, []float64{50, 51})
	for i := range market.Bars {
		market.Bars[i].Timestamp = market.Bars[i].Timestamp.Add(24 * time.Hour)
	}

	assetReturns, _ := ComputeReturns(asset)
	marketReturns, _ := ComputeReturns(market)

	table := AlignReturns(assetReturns, marketReturns, "a", "m")
	ex.AssertAreEqual(t, "rows", 0, len(table.Rows))

	if _, err := EstimateBeta(table, 0, 1); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}
