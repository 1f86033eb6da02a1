package api

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	ex "beta.service/data/extensions"
	m "beta.service/data/models"
)

var (
	ErrSymbolNotFound = errors.New("symbol not found")
	ErrNoDataInRange  = errors.New("no data in range")
)

// Provider supplies ohlc bars for a ticker over a date range at a sampling interval.
// Implementations return ErrSymbolNotFound or ErrNoDataInRange (wrapped) rather than partial data.
type Provider interface {
	Name() string
	FetchSeries(ctx context.Context, symbol string, start, end time.Time, interval m.Interval) (*m.PriceSeries, error)
}

// FetchAll fetches every symbol concurrently, the first failure cancels the rest
func FetchAll(ctx context.Context, p Provider, symbols []string, start, end time.Time, interval m.Interval) (map[string]*m.PriceSeries, error) {
	res := make(map[string]*m.PriceSeries, len(symbols))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, symbol := range symbols {
		g.Go(func() error {
			series, err := p.FetchSeries(gctx, symbol, start, end, interval)
			if err != nil {
				return err
			}

			mu.Lock()
			res[symbol] = series
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return res, nil
}

// ValidateRange checks the requested dates before anything goes over the wire
func ValidateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("start and end dates are required")
	}
	if !start.Before(end) {
		return fmt.Errorf("start date %s must be before end date %s", ex.FmtShort(start), ex.FmtShort(end))
	}
	return nil
}

// InRange is inclusive of the start date and exclusive of the end date, like the upstream apis
func InRange(t, start, end time.Time) bool {
	return !t.Before(ex.DateOnly(start)) && t.Before(ex.DateOnly(end))
}

// NewPriceSeries sorts the bars ascending, drops duplicate timestamps (last one wins),
// and returns ErrNoDataInRange if nothing is left
func NewPriceSeries(source, symbol string, interval m.Interval, bars []m.PriceBar) (*m.PriceSeries, error) {
	slices.SortStableFunc(bars, func(a, b m.PriceBar) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	deduped := make([]m.PriceBar, 0, len(bars))
	for _, b := range bars {
		if n := len(deduped); n > 0 && deduped[n-1].Timestamp.Equal(b.Timestamp) {
			deduped[n-1] = b
			continue
		}
		deduped = append(deduped, b)
	}

	if len(deduped) == 0 {
		return nil, fmt.Errorf("%s returned no %s bars for %s: %w", source, interval, symbol, ErrNoDataInRange)
	}

	return &m.PriceSeries{
		Symbol:    symbol,
		Interval:  interval,
		Source:    source,
		FetchedAt: time.Now().UTC(),
		Bars:      deduped,
	}, nil
}
