package provider

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const stooqBaseURL = "https://stooq.com"

// Stooq is the secondary quote backend. It serves CSV with naive dates;
// downstream normalization treats those as UTC (see NaiveUTC).
type Stooq struct {
	rc     *resty.Client
	logger *slog.Logger
}

// NewStooq creates a Stooq-backed provider.
func NewStooq(opts ...Option) *Stooq {
	o := defaultOptions(stooqBaseURL)
	for _, opt := range opts {
		opt(&o)
	}
	return &Stooq{
		rc:     newRestClient(o),
		logger: o.logger,
	}
}

func (s *Stooq) Name() string { return SourceStooq }

// FetchRange downloads daily or monthly bars. Stooq's d2 bound is already
// inclusive, so the end date passes through unchanged for both intervals.
func (s *Stooq) FetchRange(ctx context.Context, symbol string, start, end time.Time, interval Interval) ([]RawBar, error) {
	freq := "d"
	if interval == IntervalMonthly {
		freq = "m"
	}

	resp, err := s.rc.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"s":  strings.ToLower(symbol),
			"d1": start.Format("20060102"),
			"d2": end.Format("20060102"),
			"i":  freq,
		}).
		Get("/q/d/l/")
	if err != nil {
		return nil, fmt.Errorf("stooq download %s: %w", symbol, err)
	}
	if resp.IsError() {
		return nil, &APIError{Provider: SourceStooq, StatusCode: resp.StatusCode(), Body: resp.Status()}
	}

	rows, err := parseCSVRows(resp.String())
	if err != nil {
		return nil, fmt.Errorf("stooq download %s: %w", symbol, err)
	}

	s.logger.Debug("fetched stooq bars", "symbol", symbol, "rows", len(rows))
	return rows, nil
}

// FetchPeriod translates a named lookback period into an explicit range
// ending today. Unknown periods fetch the full available history.
func (s *Stooq) FetchPeriod(ctx context.Context, symbol, period string, interval Interval) ([]RawBar, error) {
	end := time.Now().UTC()
	return s.FetchRange(ctx, symbol, periodStart(end, period), end, interval)
}

// FetchQuote returns the latest close. Stooq reports no currency or
// exchange metadata, so those fields stay empty.
func (s *Stooq) FetchQuote(ctx context.Context, symbol string) (Quote, error) {
	resp, err := s.rc.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"s": strings.ToLower(symbol),
			"f": "sd2t2ohlcv",
			"h": "",
			"e": "csv",
		}).
		Get("/q/l/")
	if err != nil {
		return Quote{}, fmt.Errorf("stooq quote %s: %w", symbol, err)
	}
	if resp.IsError() {
		return Quote{}, &APIError{Provider: SourceStooq, StatusCode: resp.StatusCode(), Body: resp.Status()}
	}

	rows, err := parseCSVRows(resp.String())
	if err != nil || len(rows) == 0 {
		return Quote{}, fmt.Errorf("stooq quote %s: no data", symbol)
	}

	last, ok := rows[0]["Close"].(string)
	if !ok {
		return Quote{}, fmt.Errorf("stooq quote %s: missing close", symbol)
	}
	price, err := strconv.ParseFloat(last, 64)
	if err != nil {
		return Quote{}, fmt.Errorf("stooq quote %s: parse close: %w", symbol, err)
	}

	return Quote{Symbol: symbol, Last: price}, nil
}

// parseCSVRows turns a header-prefixed CSV document into raw rows keyed by
// the header names.
func parseCSVRows(body string) ([]RawBar, error) {
	body = strings.TrimSpace(body)
	if body == "" || strings.HasPrefix(body, "No data") {
		return nil, nil
	}

	r := csv.NewReader(strings.NewReader(body))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	header := records[0]
	rows := make([]RawBar, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(RawBar, len(header))
		for j, field := range rec {
			if j < len(header) && field != "" {
				row[header[j]] = field
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func periodStart(end time.Time, period string) time.Time {
	switch period {
	case "5d":
		return end.AddDate(0, 0, -5)
	case "1mo":
		return end.AddDate(0, -1, 0)
	case "3mo":
		return end.AddDate(0, -3, 0)
	case "6mo":
		return end.AddDate(0, -6, 0)
	case "1y":
		return end.AddDate(-1, 0, 0)
	case "2y":
		return end.AddDate(-2, 0, 0)
	case "5y":
		return end.AddDate(-5, 0, 0)
	case "10y":
		return end.AddDate(-10, 0, 0)
	default: // "max" and anything unrecognized
		return time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	}
}
