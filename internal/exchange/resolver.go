// Package exchange resolves the IANA time zone whose trading day a
// symbol's bars should be bucketed into.
package exchange

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/quantfeed/marketsync/internal/provider"
)

// DefaultZone is the fallback when no override or provider metadata answers.
const DefaultZone = "America/New_York"

// overrides pins known futures and index symbols to their exchange zones.
// These never hit the providers.
var overrides = map[string]string{
	"ES=F":   "America/Chicago",
	"NQ=F":   "America/Chicago",
	"YM=F":   "America/Chicago",
	"ZN=F":   "America/Chicago",
	"GC=F":   "America/New_York",
	"SI=F":   "America/New_York",
	"CL=F":   "America/New_York",
	"^GSPC":  "America/New_York",
	"^DJI":   "America/New_York",
	"^IXIC":  "America/New_York",
	"^FTSE":  "Europe/London",
	"^GDAXI": "Europe/Berlin",
	"^FCHI":  "Europe/Paris",
	"^N225":  "Asia/Tokyo",
	"^HSI":   "Asia/Hong_Kong",
	"^AXJO":  "Australia/Sydney",
}

// Resolver resolves and memoizes exchange time zones per symbol.
//
// Precedence: static override table, process cache, each provider's quote
// metadata in order, then DefaultZone. Resolution never fails: provider
// errors and invalid zone names fall through to the next source.
type Resolver struct {
	providers []provider.Provider
	fallback  string
	logger    *slog.Logger

	mu    sync.RWMutex
	cache map[string]string
}

// New creates a Resolver consulting the given providers in order.
func New(providers []provider.Provider, fallback string, logger *slog.Logger) *Resolver {
	if fallback == "" {
		fallback = DefaultZone
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		providers: providers,
		fallback:  fallback,
		logger:    logger,
		cache:     make(map[string]string),
	}
}

// Timezone returns the IANA zone name for symbol. It always succeeds.
func (r *Resolver) Timezone(ctx context.Context, symbol string) string {
	sym := strings.ToUpper(strings.TrimSpace(symbol))

	if zone, ok := overrides[sym]; ok {
		return zone
	}

	r.mu.RLock()
	zone, ok := r.cache[sym]
	r.mu.RUnlock()
	if ok {
		return zone
	}

	zone = r.lookup(ctx, sym)

	r.mu.Lock()
	r.cache[sym] = zone
	r.mu.Unlock()
	return zone
}

// Location resolves the zone name to a *time.Location, degrading to the
// fallback zone and finally UTC.
func (r *Resolver) Location(ctx context.Context, symbol string) *time.Location {
	if loc, err := time.LoadLocation(r.Timezone(ctx, symbol)); err == nil {
		return loc
	}
	if loc, err := time.LoadLocation(r.fallback); err == nil {
		return loc
	}
	return time.UTC
}

func (r *Resolver) lookup(ctx context.Context, sym string) string {
	for _, p := range r.providers {
		q, err := p.FetchQuote(ctx, sym)
		if err != nil {
			// A resolution miss, not a failure: fall through.
			r.logger.Debug("timezone lookup failed", "symbol", sym, "provider", p.Name(), "err", err)
			continue
		}
		if q.Timezone == "" {
			continue
		}
		if _, err := time.LoadLocation(q.Timezone); err != nil {
			r.logger.Debug("provider reported invalid zone", "symbol", sym, "zone", q.Timezone)
			continue
		}
		return q.Timezone
	}
	return r.fallback
}
