package queries

import (
	"embed"
	"fmt"
)

//go:embed create/*.sql delete/*.sql insert/*.sql select/*.sql update/*.sql
var Files embed.FS

// ^^^ the go:embed directive is used to embed the files in the queries package
// meaning on compile time it will convert the files to binary data and embed it in the queries package

type CreateQueries struct {
	PriceCacheTables string
}

type DeleteQueries struct {
	ExpiredPriceSeries        string
	PriceSeriesDataBySourceId string
}

type InsertQueries struct {
	PriceSeriesMetadata string
}

type SelectQueries struct {
	PriceSeriesData          string
	PriceSeriesMetadataByKey string
}

type UpdateQueries struct {
	LastRefreshedDate string
}

type QueryHelperStruct struct {
	Create CreateQueries
	Delete DeleteQueries
	Insert InsertQueries
	Select SelectQueries
	Update UpdateQueries
}

var QueryHelper = QueryHelperStruct{
	Create: CreateQueries{
		PriceCacheTables: "create/price_cache_tables.sql",
	},
	Delete: DeleteQueries{
		ExpiredPriceSeries:        "delete/expired_price_series.sql",
		PriceSeriesDataBySourceId: "delete/price_series_data_by_source_id.sql",
	},
	Insert: InsertQueries{
		PriceSeriesMetadata: "insert/price_series_metadata.sql",
	},
	Select: SelectQueries{
		PriceSeriesData:          "select/price_series_data.sql",
		PriceSeriesMetadataByKey: "select/price_series_metadata_by_key.sql",
	},
	Update: UpdateQueries{
		LastRefreshedDate: "update/last_refreshed_date.sql",
	},
}

func Get(path string) string {
	content, err := Files.ReadFile(path)
	if err != nil {
		panic(fmt.Errorf("error reading query file: %w", err))
	}

	return string(content)
}
