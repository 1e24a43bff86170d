package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/quantfeed/marketsync/internal/provider"
)

// fakeSyncer counts rows per symbol and can fail or block on demand.
type fakeSyncer struct {
	mu      sync.Mutex
	counts  map[string]int
	failOn  map[string]error
	block   chan struct{} // when set, SyncIncremental waits until closed
	calls   []string
	overlap int
}

func newFakeSyncer() *fakeSyncer {
	return &fakeSyncer{counts: map[string]int{}, failOn: map[string]error{}}
}

func (f *fakeSyncer) SyncIncremental(ctx context.Context, symbol string, overlapMonths int, interval provider.Interval) (int, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, symbol)
	f.overlap = overlapMonths
	if err, ok := f.failOn[symbol]; ok {
		return 0, err
	}
	f.counts[symbol]++
	return 7, nil
}

func TestRunOnce_RecordsResult(t *testing.T) {
	syncer := newFakeSyncer()
	o := New(Config{Symbols: []string{"aapl", "msft"}, OverlapMonths: 3}, syncer, nil)

	if !o.RunOnce(context.Background(), nil) {
		t.Fatal("RunOnce = false, want true")
	}

	st := o.Status()
	if st.Running {
		t.Error("Running = true after completion, want false")
	}
	if st.LastStartedAt == nil || st.LastFinishedAt == nil {
		t.Fatal("timestamps not recorded")
	}
	if st.LastError != nil {
		t.Errorf("LastError = %q, want nil", *st.LastError)
	}
	if st.LastResult["AAPL"] != 7 || st.LastResult["MSFT"] != 7 {
		t.Errorf("LastResult = %v, want 7 per symbol (uppercased)", st.LastResult)
	}
	if st.LastRunID == "" {
		t.Error("LastRunID empty, want uuid")
	}
	if syncer.overlap != 3 {
		t.Errorf("overlap = %d, want 3", syncer.overlap)
	}
}

func TestRunOnce_SingleFlight(t *testing.T) {
	syncer := newFakeSyncer()
	syncer.block = make(chan struct{})
	o := New(Config{Symbols: []string{"AAPL"}}, syncer, nil)

	started := make(chan bool)
	go func() {
		started <- o.RunOnce(context.Background(), nil)
	}()

	// Wait for the first run to enter the running state.
	deadline := time.After(2 * time.Second)
	for !o.Status().Running {
		select {
		case <-deadline:
			t.Fatal("first run never entered running state")
		case <-time.After(time.Millisecond):
		}
	}

	firstStarted := o.Status().LastStartedAt

	// Second attempt must be rejected and must not disturb the first run.
	if o.RunOnce(context.Background(), nil) {
		t.Error("second RunOnce = true while running, want false")
	}
	if got := o.Status().LastStartedAt; got != firstStarted {
		t.Errorf("LastStartedAt changed by rejected run: %v -> %v", firstStarted, got)
	}
	if !o.Status().Running {
		t.Error("first run state disturbed by rejected trigger")
	}

	close(syncer.block)
	if !<-started {
		t.Error("first run = false, want true")
	}
	if o.Status().Running {
		t.Error("Running = true after finish, want false")
	}
}

func TestRunOnce_PartialFailureIsolation(t *testing.T) {
	syncer := newFakeSyncer()
	syncer.failOn["B"] = errors.New("fetch failed")
	o := New(Config{}, syncer, nil)

	if !o.RunOnce(context.Background(), []string{"A", "B", "C"}) {
		t.Fatal("RunOnce = false, want true")
	}

	st := o.Status()
	if st.Running {
		t.Error("run did not return to idle")
	}
	if _, ok := st.LastResult["A"]; !ok {
		t.Error("LastResult missing A (symbols before the failure must run)")
	}
	if _, ok := st.LastResult["C"]; !ok {
		t.Error("LastResult missing C (symbols after the failure must run)")
	}
	if _, ok := st.LastResult["B"]; ok {
		t.Error("LastResult contains failed symbol B")
	}
	if st.LastError == nil {
		t.Fatal("LastError = nil, want recorded failure")
	}
	if want := "B: fetch failed"; *st.LastError != want {
		t.Errorf("LastError = %q, want %q", *st.LastError, want)
	}
}

func TestRunOnce_ClearsPreviousRunState(t *testing.T) {
	syncer := newFakeSyncer()
	syncer.failOn["A"] = errors.New("boom")
	o := New(Config{}, syncer, nil)

	o.RunOnce(context.Background(), []string{"A"})
	if o.Status().LastError == nil {
		t.Fatal("first run should record an error")
	}

	delete(syncer.failOn, "A")
	o.RunOnce(context.Background(), []string{"A"})

	st := o.Status()
	if st.LastError != nil {
		t.Errorf("LastError = %q after clean run, want nil", *st.LastError)
	}
	if st.LastResult["A"] != 7 {
		t.Errorf("LastResult = %v, want A:7", st.LastResult)
	}
}

func TestTriggerAsync(t *testing.T) {
	syncer := newFakeSyncer()
	o := New(Config{Symbols: []string{"AAPL"}}, syncer, nil)

	ran := <-o.TriggerAsync(context.Background(), nil, 0)
	if !ran {
		t.Fatal("TriggerAsync run = false, want true")
	}
	if o.Status().LastResult["AAPL"] != 7 {
		t.Errorf("LastResult = %v, want AAPL:7", o.Status().LastResult)
	}
}

func TestTriggerAsync_CancelledDuringDelay(t *testing.T) {
	syncer := newFakeSyncer()
	o := New(Config{Symbols: []string{"AAPL"}}, syncer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := o.TriggerAsync(ctx, nil, time.Hour)
	cancel()

	if ran := <-done; ran {
		t.Error("run executed despite cancellation during delay")
	}
	if len(syncer.calls) != 0 {
		t.Errorf("syncer called %d times, want 0", len(syncer.calls))
	}
}

func TestStatus_SnapshotIsolation(t *testing.T) {
	syncer := newFakeSyncer()
	o := New(Config{}, syncer, nil)
	o.RunOnce(context.Background(), []string{"A"})

	st := o.Status()
	st.LastResult["A"] = 999

	if o.Status().LastResult["A"] == 999 {
		t.Error("mutating a snapshot leaked into orchestrator state")
	}
}
