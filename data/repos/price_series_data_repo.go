package repos

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	m "beta.service/data/models"
	q "beta.service/data/queries"
)

const priceSeriesDataTable = "price_series_data"

func (pg *Postgres) GetPriceBars(ctx context.Context, sourceId int32) ([]m.PriceBar, error) {
	args := pgx.NamedArgs{
		"source_id": sourceId,
	}

	res, err := Query[m.PriceBar](ctx, pg, q.Get(q.QueryHelper.Select.PriceSeriesData), args)
	if err != nil {
		return nil, fmt.Errorf("unable to query price bars for source %d: %w", sourceId, err)
	}

	bars := make([]m.PriceBar, len(res))
	for i, b := range res {
		bars[i] = *b
	}
	return bars, nil
}

func (pg *Postgres) InsertPriceBars(ctx context.Context, sourceId int32, bars []m.PriceBar, tx *pgx.Tx) (int64, error) {
	columns := []string{
		"source_id", "timestamp", "open", "high", "low",
		"close", "adjusted_close", "volume",
	}

	entries := make([][]any, len(bars))
	for i, b := range bars {
		entries[i] = []any{
			sourceId, b.Timestamp, b.Open, b.High, b.Low,
			b.Close, b.AdjustedClose, b.Volume,
		}
	}

	return pg.BulkInsert(ctx, priceSeriesDataTable, columns, entries, tx)
}

func (pg *Postgres) DeletePriceBars(ctx context.Context, sourceId int32, tx *pgx.Tx) error {
	args := pgx.NamedArgs{"source_id": sourceId}

	if _, err := pg.exec(ctx, q.Get(q.QueryHelper.Delete.PriceSeriesDataBySourceId), args, tx); err != nil {
		return fmt.Errorf("error deleting price bars for source %d: %w", sourceId, err)
	}
	return nil
}
