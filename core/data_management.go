package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"beta.service/api"
	ex "beta.service/data/extensions"
	m "beta.service/data/models"
	r "beta.service/data/repos"
)

// PriceCache memoises provider fetches by (provider, symbol, interval, start, end).
// Get returns nil, nil on a miss or an expired entry.
type PriceCache interface {
	Name() string
	Get(ctx context.Context, key m.PriceSeriesKey) (*m.PriceSeries, error)
	Put(ctx context.Context, key m.PriceSeriesKey, series *m.PriceSeries) error
}

// NewPriceSeriesKey normalises the dates so equal requests share a key
func NewPriceSeriesKey(provider, symbol string, interval m.Interval, start, end time.Time) m.PriceSeriesKey {
	return m.PriceSeriesKey{
		Provider: provider,
		Symbol:   strings.ToUpper(symbol),
		Interval: interval,
		Start:    ex.DateOnly(start),
		End:      ex.DateOnly(end),
	}
}

func keyString(key m.PriceSeriesKey) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", key.Provider, key.Symbol, key.Interval.Name(), ex.FmtShort(key.Start), ex.FmtShort(key.End))
}

func cloneSeries(series *m.PriceSeries) *m.PriceSeries {
	res := *series
	res.Bars = slices.Clone(series.Bars)
	return &res
}

// MemoryPriceCache is a process local cache, entries expire after ttl
type MemoryPriceCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*m.PriceSeries
}

func NewMemoryPriceCache(ttl time.Duration) *MemoryPriceCache {
	return &MemoryPriceCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*m.PriceSeries),
	}
}

func (mc *MemoryPriceCache) Name() string { return "memory" }

func (mc *MemoryPriceCache) Get(ctx context.Context, key m.PriceSeriesKey) (*m.PriceSeries, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	series, ok := mc.entries[keyString(key)]
	if !ok || mc.expired(series.FetchedAt) {
		return nil, nil
	}
	return cloneSeries(series), nil
}

func (mc *MemoryPriceCache) Put(ctx context.Context, key m.PriceSeriesKey, series *m.PriceSeries) error {
	if series == nil {
		return fmt.Errorf("cannot cache a nil series for %s", keyString(key))
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.entries[keyString(key)] = cloneSeries(series)
	return nil
}

// Prune drops expired entries and returns how many went
func (mc *MemoryPriceCache) Prune() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	n := 0
	for k, series := range mc.entries {
		if mc.expired(series.FetchedAt) {
			delete(mc.entries, k)
			n++
		}
	}
	return n
}

func (mc *MemoryPriceCache) expired(fetchedAt time.Time) bool {
	return mc.now().Sub(fetchedAt) > mc.ttl
}

// PostgresPriceCache keeps fetched bars in postgres so they survive restarts
type PostgresPriceCache struct {
	pg  *r.Postgres
	ttl time.Duration
	now func() time.Time
}

func NewPostgresPriceCache(pg *r.Postgres, ttl time.Duration) *PostgresPriceCache {
	return &PostgresPriceCache{pg: pg, ttl: ttl, now: time.Now}
}

func (pc *PostgresPriceCache) Name() string { return "postgres" }

func (pc *PostgresPriceCache) Get(ctx context.Context, key m.PriceSeriesKey) (*m.PriceSeries, error) {
	md, err := pc.pg.GetPriceSeriesMetadata(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("error determining if %s is cached: %w", keyString(key), err)
	}

	if md == nil {
		return nil, nil
	}

	if pc.now().Sub(md.LastRefreshed) > pc.ttl {
		return nil, nil
	}

	bars, err := pc.pg.GetPriceBars(ctx, md.Id)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, nil
	}

	return &m.PriceSeries{
		Symbol:    md.Symbol,
		Interval:  key.Interval,
		Source:    md.Provider,
		FetchedAt: md.LastRefreshed.UTC(),
		Bars:      bars,
	}, nil
}

// Put replaces whatever is cached for the key in a single transaction
func (pc *PostgresPriceCache) Put(ctx context.Context, key m.PriceSeriesKey, series *m.PriceSeries) error {
	if series == nil {
		return fmt.Errorf("cannot cache a nil series for %s", keyString(key))
	}

	md, err := pc.pg.GetPriceSeriesMetadata(ctx, key)
	if err != nil {
		return fmt.Errorf("error determining if %s is cached: %w", keyString(key), err)
	}

	tx, err := pc.pg.GetTransaction(ctx)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) // this will kick off if we return before committing

	if md == nil {
		md = &m.PriceSeriesMetadata{
			Provider:      key.Provider,
			Symbol:        key.Symbol,
			Interval:      key.Interval.Name(),
			StartDate:     key.Start,
			EndDate:       key.End,
			LastRefreshed: series.FetchedAt,
		}
		if err := pc.pg.InsertPriceSeriesMetadata(ctx, md, &tx); err != nil {
			return fmt.Errorf("error adding %s to db: %w", keyString(key), err)
		}
	} else {
		if err := pc.pg.UpdateLastRefreshedDate(ctx, md.Id, series.FetchedAt, &tx); err != nil {
			return err
		}
		if err := pc.pg.DeletePriceBars(ctx, md.Id, &tx); err != nil {
			return err
		}
	}

	if _, err := pc.pg.InsertPriceBars(ctx, md.Id, series.Bars, &tx); err != nil {
		return fmt.Errorf("error inserting price bars: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("error committing transaction to cache %s: %w", keyString(key), err)
	}

	return nil
}

// Prune deletes every series older than the ttl
func (pc *PostgresPriceCache) Prune(ctx context.Context) (int64, error) {
	return pc.pg.DeleteExpiredPriceSeries(ctx, pc.now().Add(-pc.ttl))
}

// CachingProvider reads through a PriceCache. Cache failures are logged and the provider is used instead.
type CachingProvider struct {
	Provider api.Provider
	Cache    PriceCache
	Logger   zerolog.Logger
}

func (cp *CachingProvider) Name() string { return cp.Provider.Name() }

func (cp *CachingProvider) FetchSeries(ctx context.Context, symbol string, start, end time.Time, interval m.Interval) (*m.PriceSeries, error) {
	key := NewPriceSeriesKey(cp.Provider.Name(), symbol, interval, start, end)

	cached, err := cp.Cache.Get(ctx, key)
	switch {
	case err != nil:
		priceCacheLookups.WithLabelValues(cp.Cache.Name(), "error").Inc()
		cp.Logger.Warn().Err(err).Str("key", keyString(key)).Msg("price cache read failed, fetching from provider")
	case cached != nil:
		priceCacheLookups.WithLabelValues(cp.Cache.Name(), "hit").Inc()
		cp.Logger.Debug().Str("key", keyString(key)).Int("bars", cached.Len()).Msg("price cache hit")
		// the caller's spelling of the symbol wins
		cached.Symbol = symbol
		return cached, nil
	default:
		priceCacheLookups.WithLabelValues(cp.Cache.Name(), "miss").Inc()
	}

	series, err := cp.Provider.FetchSeries(ctx, symbol, start, end, interval)
	if err != nil {
		return nil, err
	}

	if err := cp.Cache.Put(ctx, key, series); err != nil && !errors.Is(err, context.Canceled) {
		cp.Logger.Warn().Err(err).Str("key", keyString(key)).Msg("price cache write failed")
	}

	return series, nil
}

// MeteredProvider records fetch latency per provider and outcome
type MeteredProvider struct {
	Provider api.Provider
}

func (mp *MeteredProvider) Name() string { return mp.Provider.Name() }

func (mp *MeteredProvider) FetchSeries(ctx context.Context, symbol string, start, end time.Time, interval m.Interval) (*m.PriceSeries, error) {
	started := time.Now()
	series, err := mp.Provider.FetchSeries(ctx, symbol, start, end, interval)

	outcome := "ok"
	switch {
	case errors.Is(err, api.ErrSymbolNotFound):
		outcome = "not_found"
	case errors.Is(err, api.ErrNoDataInRange):
		outcome = "no_data"
	case err != nil:
		outcome = "error"
	}
	providerFetchDuration.WithLabelValues(mp.Provider.Name(), outcome).Observe(time.Since(started).Seconds())

	return series, err
}
