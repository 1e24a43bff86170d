package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/quantfeed/marketsync/internal/model"
)

// Memory is an in-process Repository. It backs the "memory" database
// driver and the test suites; semantics match the Postgres implementation.
type Memory struct {
	mu   sync.RWMutex
	rows map[string]model.Bar // key: symbol|date
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{rows: make(map[string]model.Bar)}
}

func key(symbol string, date time.Time) string {
	return strings.ToUpper(symbol) + "|" + date.Format("2006-01-02")
}

func (m *Memory) UpsertBars(ctx context.Context, bars []model.Bar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range bars {
		b.Symbol = strings.ToUpper(b.Symbol)
		b.Date = model.Day(b.Date)
		m.rows[key(b.Symbol, b.Date)] = b
	}
	return nil
}

func (m *Memory) LatestDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sym := strings.ToUpper(symbol)
	var latest time.Time
	found := false
	for _, b := range m.rows {
		if b.Symbol != sym {
			continue
		}
		if !found || b.Date.After(latest) {
			latest = b.Date
			found = true
		}
	}
	return latest, found, nil
}

func (m *Memory) History(ctx context.Context, symbol string, from, to *time.Time) ([]model.Bar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sym := strings.ToUpper(symbol)
	var bars []model.Bar
	for _, b := range m.rows {
		if b.Symbol != sym {
			continue
		}
		if from != nil && b.Date.Before(model.Day(*from)) {
			continue
		}
		if to != nil && b.Date.After(model.Day(*to)) {
			continue
		}
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

// Len reports the number of stored rows. Test helper.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}
