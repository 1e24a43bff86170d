// Package timeseries drives the fetch → normalize → upsert pipeline and
// plans incremental catch-up ranges.
package timeseries

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/quantfeed/marketsync/internal/model"
	"github.com/quantfeed/marketsync/internal/normalize"
	"github.com/quantfeed/marketsync/internal/provider"
	"github.com/quantfeed/marketsync/internal/store"
)

// Locator resolves the exchange zone a symbol's bars belong to.
type Locator interface {
	Location(ctx context.Context, symbol string) *time.Location
}

// Service owns historical upserts for one configured provider.
type Service struct {
	provider provider.Provider
	locator  Locator
	repo     store.Repository
	floor    time.Time
	logger   *slog.Logger

	now func() time.Time
}

// New creates a Service. floor is the earliest supported date, used when a
// symbol has no stored history yet.
func New(p provider.Provider, locator Locator, repo store.Repository, floor time.Time, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider: p,
		locator:  locator,
		repo:     repo,
		floor:    floor,
		logger:   logger,
		now:      time.Now,
	}
}

// UpsertHistory fetches bars for the range, normalizes them onto
// exchange-local trading days, and upserts them in one batch. For the
// monthly interval every date collapses to the first of its month before
// keying, so re-running the same range overwrites rather than duplicates.
// The returned count is rows processed (inserted + updated).
func (s *Service) UpsertHistory(ctx context.Context, symbol string, start, end time.Time, interval provider.Interval) (int, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	raw, err := s.provider.FetchRange(ctx, symbol, start, end, interval)
	if err != nil {
		return 0, err
	}

	loc := s.locator.Location(ctx, symbol)
	bars := normalize.Bars(symbol, raw, loc, s.provider.Name())

	if interval == provider.IntervalMonthly {
		for i := range bars {
			bars[i].Date = model.MonthStart(bars[i].Date)
		}
	}

	if err := s.repo.UpsertBars(ctx, bars); err != nil {
		return 0, err
	}

	s.logger.Info("upserted history",
		"symbol", symbol,
		"interval", interval,
		"rows", len(bars),
	)
	return len(bars), nil
}

// SyncIncremental catches a symbol up to today. The start is overlapMonths
// months before the most recent stored month, so late provider revisions
// to recent months are re-absorbed; with no stored history it starts at
// the historical floor.
func (s *Service) SyncIncremental(ctx context.Context, symbol string, overlapMonths int, interval provider.Interval) (int, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	last, ok, err := s.repo.LatestDate(ctx, symbol)
	if err != nil {
		return 0, err
	}

	start := s.floor
	if ok {
		start = ResyncStart(last, overlapMonths)
	}

	return s.UpsertHistory(ctx, symbol, start, model.Day(s.now().UTC()), interval)
}

// History reads back stored bars, optionally bounded.
func (s *Service) History(ctx context.Context, symbol string, from, to *time.Time) ([]model.Bar, error) {
	return s.repo.History(ctx, strings.ToUpper(strings.TrimSpace(symbol)), from, to)
}

// ResyncStart computes the incremental start date: overlapMonths months
// before last's month start. AddDate wraps year boundaries.
func ResyncStart(last time.Time, overlapMonths int) time.Time {
	return model.MonthStart(last).AddDate(0, -overlapMonths, 0)
}
