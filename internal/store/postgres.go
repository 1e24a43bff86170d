package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfeed/marketsync/internal/model"
)

const createBarsTable = `
CREATE TABLE IF NOT EXISTS bars (
	symbol    TEXT NOT NULL,
	date      DATE NOT NULL,
	open      DOUBLE PRECISION,
	high      DOUBLE PRECISION,
	low       DOUBLE PRECISION,
	close     DOUBLE PRECISION,
	adj_close DOUBLE PRECISION,
	volume    BIGINT,
	source    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (symbol, date)
)`

const upsertBar = `
INSERT INTO bars (symbol, date, open, high, low, close, adj_close, volume, source)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (symbol, date) DO UPDATE SET
	open = EXCLUDED.open,
	high = EXCLUDED.high,
	low = EXCLUDED.low,
	close = EXCLUDED.close,
	adj_close = EXCLUDED.adj_close,
	volume = EXCLUDED.volume,
	source = EXCLUDED.source`

// Postgres is the production Repository backed by a pgx pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres creates a Postgres repository.
func NewPostgres(pool *pgxpool.Pool, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{pool: pool, logger: logger}
}

// EnsureSchema creates the bars table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, createBarsTable); err != nil {
		return fmt.Errorf("create bars table: %w", err)
	}
	return nil
}

// UpsertBars writes all bars inside one transaction using a queued batch.
// Either every row commits or none do.
func (p *Postgres) UpsertBars(ctx context.Context, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(upsertBar,
			b.Symbol, b.Date, b.Open, b.High, b.Low, b.Close, b.AdjClose, b.Volume, b.Source)
	}

	results := tx.SendBatch(ctx, batch)
	for range bars {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("upsert bar: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}

	p.logger.Debug("upserted bars", "count", len(bars), "symbol", bars[0].Symbol)
	return nil
}

// LatestDate returns the most recent stored date for symbol.
func (p *Postgres) LatestDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	var latest *time.Time
	err := p.pool.QueryRow(ctx,
		`SELECT max(date) FROM bars WHERE symbol = $1`, strings.ToUpper(symbol),
	).Scan(&latest)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest date for %s: %w", symbol, err)
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return model.Day(*latest), true, nil
}

// History returns stored bars for symbol within the optional bounds.
func (p *Postgres) History(ctx context.Context, symbol string, from, to *time.Time) ([]model.Bar, error) {
	query := `SELECT symbol, date, open, high, low, close, adj_close, volume, source
		FROM bars WHERE symbol = $1`
	args := []any{strings.ToUpper(symbol)}

	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND date <= $%d", len(args))
	}
	query += " ORDER BY date"

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history for %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		if err := rows.Scan(&b.Symbol, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.AdjClose, &b.Volume, &b.Source); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Date = model.Day(b.Date)
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read history for %s: %w", symbol, err)
	}
	return bars, nil
}

// Ping verifies the pool is healthy.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
