// Package orchestrator owns the single-flight sync run state machine.
//
// At most one run is ever in flight: concurrent triggers observe the
// running state and are dropped, never queued. Symbols within a run are
// processed sequentially, and a failure for one symbol never stops the
// rest.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantfeed/marketsync/internal/provider"
)

// Syncer performs one symbol's incremental catch-up.
type Syncer interface {
	SyncIncremental(ctx context.Context, symbol string, overlapMonths int, interval provider.Interval) (int, error)
}

// Config holds orchestrator defaults.
type Config struct {
	Symbols       []string          // default symbol set when a trigger names none
	OverlapMonths int               // catch-up overlap (default: 2)
	Interval      provider.Interval // bar granularity (default: 1mo)
}

// Status is a point-in-time snapshot of the run state.
type Status struct {
	Running        bool           `json:"running"`
	LastStartedAt  *time.Time     `json:"last_started_at"`
	LastFinishedAt *time.Time     `json:"last_finished_at"`
	LastResult     map[string]int `json:"last_result"`
	LastError      *string        `json:"last_error"`
	LastRunID      string         `json:"last_run_id,omitempty"`
}

// Orchestrator serializes sync runs and reports their status.
type Orchestrator struct {
	cfg    Config
	syncer Syncer
	logger *slog.Logger

	mu           sync.Mutex
	running      bool
	lastStarted  *time.Time
	lastFinished *time.Time
	lastResult   map[string]int
	lastError    *string
	lastRunID    string
}

// New creates an Orchestrator.
func New(cfg Config, syncer Syncer, logger *slog.Logger) *Orchestrator {
	if cfg.OverlapMonths <= 0 {
		cfg.OverlapMonths = 2
	}
	if cfg.Interval == "" {
		cfg.Interval = provider.IntervalMonthly
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:    cfg,
		syncer: syncer,
		logger: logger,
	}
}

// TriggerAsync requests a run in the background. The symbol set resolves
// immediately (explicit argument, else configured defaults); the run
// itself starts after delay. The returned channel reports whether the run
// actually executed, so callers and tests can wait deterministically; the
// HTTP layer ignores it and always answers "requested".
func (o *Orchestrator) TriggerAsync(ctx context.Context, symbols []string, delay time.Duration) <-chan bool {
	resolved := o.resolveSymbols(symbols)

	done := make(chan bool, 1)
	go func() {
		if delay > 0 {
			select {
			case <-ctx.Done():
				done <- false
				return
			case <-time.After(delay):
			}
		}
		done <- o.RunOnce(ctx, resolved)
	}()
	return done
}

// RunOnce executes one sync run synchronously. It returns false without
// doing anything when another run is already in flight.
func (o *Orchestrator) RunOnce(ctx context.Context, symbols []string) bool {
	symbols = o.resolveSymbols(symbols)

	runID, ok := o.begin()
	if !ok {
		o.logger.Info("sync already running, trigger dropped")
		return false
	}
	defer o.finish(runID)

	o.logger.Info("sync run started", "run_id", runID, "symbols", len(symbols))

	for _, sym := range symbols {
		n, err := o.syncer.SyncIncremental(ctx, sym, o.cfg.OverlapMonths, o.cfg.Interval)
		if err != nil {
			// Per-symbol isolation: record and keep going.
			o.logger.Error("symbol sync failed", "run_id", runID, "symbol", sym, "err", err)
			o.recordError(fmt.Sprintf("%s: %v", sym, err))
			continue
		}
		o.recordResult(sym, n)
	}
	return true
}

// Status returns a copy of the current run state. Non-blocking beyond the
// state mutex; safe to call during a run.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	result := make(map[string]int, len(o.lastResult))
	for k, v := range o.lastResult {
		result[k] = v
	}
	return Status{
		Running:        o.running,
		LastStartedAt:  o.lastStarted,
		LastFinishedAt: o.lastFinished,
		LastResult:     result,
		LastError:      o.lastError,
		LastRunID:      o.lastRunID,
	}
}

func (o *Orchestrator) resolveSymbols(symbols []string) []string {
	if len(symbols) == 0 {
		symbols = o.cfg.Symbols
	}
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// begin attempts the idle → running transition. Entry clears the previous
// run's result and error.
func (o *Orchestrator) begin() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return "", false
	}

	now := time.Now().UTC()
	o.running = true
	o.lastStarted = &now
	o.lastFinished = nil
	o.lastResult = make(map[string]int)
	o.lastError = nil
	o.lastRunID = uuid.NewString()
	return o.lastRunID, true
}

// finish transitions back to idle unconditionally.
func (o *Orchestrator) finish(runID string) {
	o.mu.Lock()
	now := time.Now().UTC()
	o.running = false
	o.lastFinished = &now
	o.mu.Unlock()

	o.logger.Info("sync run finished", "run_id", runID)
}

func (o *Orchestrator) recordResult(symbol string, count int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastResult[symbol] = count
}

func (o *Orchestrator) recordError(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastError = &msg
}
