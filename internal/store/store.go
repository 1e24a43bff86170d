package store

import (
	"context"
	"time"

	"github.com/quantfeed/marketsync/internal/model"
)

// Repository persists normalized bars keyed by (symbol, date).
type Repository interface {
	// UpsertBars inserts or overwrites the given bars as one unit.
	UpsertBars(ctx context.Context, bars []model.Bar) error

	// LatestDate returns the most recent stored date for symbol. The bool
	// is false when no record exists.
	LatestDate(ctx context.Context, symbol string) (time.Time, bool, error)

	// History returns stored bars for symbol ordered by date, optionally
	// bounded on either side.
	History(ctx context.Context, symbol string, from, to *time.Time) ([]model.Bar, error)

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error
}
