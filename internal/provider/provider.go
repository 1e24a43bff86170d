package provider

import (
	"context"
	"time"
)

// Interval selects bar granularity.
type Interval string

const (
	IntervalDaily   Interval = "1d"
	IntervalMonthly Interval = "1mo"
)

// Source tags identify which backend produced a bar.
const (
	SourceYahoo = "yahoo"
	SourceStooq = "stooq"
)

// RawBar is one provider-native row. Column names, value types and
// timestamp shapes vary by backend.
type RawBar map[string]any

// Quote is a current-price snapshot. Timezone carries the exchange's IANA
// zone name when the backend reports one, empty otherwise.
type Quote struct {
	Symbol   string  `json:"symbol"`
	Last     float64 `json:"last"`
	Currency string  `json:"currency"`
	Exchange string  `json:"exchange"`
	Timezone string  `json:"timezone,omitempty"`
}

// Provider fetches historical bars and current quotes for a symbol.
//
// FetchRange treats the end date as inclusive of that calendar day for the
// daily interval. Monthly callers pass month-granularity ranges and no
// adjustment is applied.
type Provider interface {
	Name() string
	FetchRange(ctx context.Context, symbol string, start, end time.Time, interval Interval) ([]RawBar, error)
	FetchPeriod(ctx context.Context, symbol, period string, interval Interval) ([]RawBar, error)
	FetchQuote(ctx context.Context, symbol string) (Quote, error)
}

// NaiveUTC reports whether naive timestamps from the named source should
// be read as UTC instants. Stooq dates carry no zone and are UTC; every
// other source's naive values are already exchange-local.
func NaiveUTC(source string) bool {
	return source == SourceStooq
}
