package models

import "time"

// PriceSeriesMetadata identifies one cached fetch, the bars hang off of Id
type PriceSeriesMetadata struct {
	Id            int32     `db:"id"`
	Provider      string    `db:"provider"`
	Symbol        string    `db:"symbol"`
	Interval      string    `db:"interval"`
	StartDate     time.Time `db:"start_date"`
	EndDate       time.Time `db:"end_date"`
	LastRefreshed time.Time `db:"last_refreshed"`
}

// PriceSeriesKey is everything that makes two fetches identical
type PriceSeriesKey struct {
	Provider string
	Symbol   string
	Interval Interval
	Start    time.Time
	End      time.Time
}
