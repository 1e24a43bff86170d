package model

import "time"

// Bar is one normalized OHLCV observation for a symbol on an
// exchange-local trading day.
type Bar struct {
	Symbol   string    `json:"symbol"`
	Date     time.Time `json:"date"`
	Open     *float64  `json:"open"`
	High     *float64  `json:"high"`
	Low      *float64  `json:"low"`
	Close    *float64  `json:"close"`
	AdjClose *float64  `json:"adj_close"`
	Volume   *int64    `json:"volume"`
	Source   string    `json:"source"`
}

// Day truncates t to its calendar day, re-anchored at midnight UTC.
// The year/month/day are taken from t's own location, so a value already
// converted into an exchange zone keeps that zone's calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthStart collapses t to the first day of its month at midnight UTC.
// This is the idempotency key for monthly records.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}
