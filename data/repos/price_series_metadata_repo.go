package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	m "beta.service/data/models"
	q "beta.service/data/queries"
)

func keyArgs(key m.PriceSeriesKey) pgx.NamedArgs {
	return pgx.NamedArgs{
		"provider":   key.Provider,
		"symbol":     key.Symbol,
		"interval":   key.Interval.Name(),
		"start_date": key.Start,
		"end_date":   key.End,
	}
}

// GetPriceSeriesMetadata returns nil if the key has never been cached
func (pg *Postgres) GetPriceSeriesMetadata(ctx context.Context, key m.PriceSeriesKey) (*m.PriceSeriesMetadata, error) {
	query := q.Get(q.QueryHelper.Select.PriceSeriesMetadataByKey)

	res, err := QuerySingle[m.PriceSeriesMetadata](ctx, pg, query, keyArgs(key))
	if err != nil {
		return nil, fmt.Errorf("unable to query metadata for %s %s (%s): %w", key.Provider, key.Symbol, key.Interval, err)
	}

	return res, nil
}

func (pg *Postgres) InsertPriceSeriesMetadata(ctx context.Context, metadata *m.PriceSeriesMetadata, tx *pgx.Tx) error {
	query := q.Get(q.QueryHelper.Insert.PriceSeriesMetadata)

	args := pgx.NamedArgs{
		"provider":       metadata.Provider,
		"symbol":         metadata.Symbol,
		"interval":       metadata.Interval,
		"start_date":     metadata.StartDate,
		"end_date":       metadata.EndDate,
		"last_refreshed": metadata.LastRefreshed,
	}

	var err error
	if tx == nil {
		err = pg.db.QueryRow(ctx, query, args).Scan(&metadata.Id)
	} else {
		err = (*tx).QueryRow(ctx, query, args).Scan(&metadata.Id)
	}

	if err != nil {
		return fmt.Errorf("error inserting new metadata: %w", err)
	}

	return nil
}

func (pg *Postgres) UpdateLastRefreshedDate(ctx context.Context, id int32, lastRefreshed time.Time, tx *pgx.Tx) error {
	args := pgx.NamedArgs{
		"last_refreshed": lastRefreshed,
		"id":             id,
	}

	if _, err := pg.exec(ctx, q.Get(q.QueryHelper.Update.LastRefreshedDate), args, tx); err != nil {
		return fmt.Errorf("error updating last refreshed date for %d: %w", id, err)
	}
	return nil
}

// DeleteExpiredPriceSeries drops every cached series refreshed before cutoff, bars cascade
func (pg *Postgres) DeleteExpiredPriceSeries(ctx context.Context, cutoff time.Time) (int64, error) {
	args := pgx.NamedArgs{"cutoff": cutoff}

	ra, err := pg.exec(ctx, q.Get(q.QueryHelper.Delete.ExpiredPriceSeries), args, nil)
	if err != nil {
		return 0, fmt.Errorf("error deleting price series refreshed before %s: %w", cutoff.Format(time.DateOnly), err)
	}
	return ra, nil
}
