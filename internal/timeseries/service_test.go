package timeseries

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quantfeed/marketsync/internal/model"
	"github.com/quantfeed/marketsync/internal/provider"
	"github.com/quantfeed/marketsync/internal/store"
)

// fakeProvider replays fixed raw bars and records the requested range.
type fakeProvider struct {
	name      string
	rows      []provider.RawBar
	err       error
	gotStart  time.Time
	gotEnd    time.Time
	gotIntvl  provider.Interval
	fetchCnt  int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) FetchRange(ctx context.Context, symbol string, start, end time.Time, interval provider.Interval) ([]provider.RawBar, error) {
	f.fetchCnt++
	f.gotStart, f.gotEnd, f.gotIntvl = start, end, interval
	return f.rows, f.err
}

func (f *fakeProvider) FetchPeriod(ctx context.Context, symbol, period string, interval provider.Interval) ([]provider.RawBar, error) {
	return f.rows, f.err
}

func (f *fakeProvider) FetchQuote(ctx context.Context, symbol string) (provider.Quote, error) {
	return provider.Quote{}, errors.New("not implemented")
}

// utcLocator pins every symbol to UTC so fixtures stay simple.
type utcLocator struct{}

func (utcLocator) Location(ctx context.Context, symbol string) *time.Location { return time.UTC }

func newService(p *fakeProvider, repo store.Repository) *Service {
	floor := time.Date(1985, 1, 1, 0, 0, 0, 0, time.UTC)
	return New(p, utcLocator{}, repo, floor, nil)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestUpsertHistory_MonthBucketing(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{name: "yahoo", rows: []provider.RawBar{
		{"Date": "2024-06-03", "Close": 101.0},
		{"Date": "2024-06-28", "Close": 104.0}, // same month, same key
		{"Date": "2024-07-15", "Close": 99.0},
	}}
	repo := store.NewMemory()
	svc := newService(p, repo)

	n, err := svc.UpsertHistory(ctx, "aapl", day(2024, 6, 1), day(2024, 8, 1), provider.IntervalMonthly)
	if err != nil {
		t.Fatalf("UpsertHistory: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3 (processed, not net-new)", n)
	}

	bars, err := repo.History(ctx, "AAPL", nil, nil)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("stored rows = %d, want 2 (June collapses to one key)", len(bars))
	}
	if !bars[0].Date.Equal(day(2024, 6, 1)) || !bars[1].Date.Equal(day(2024, 7, 1)) {
		t.Errorf("dates = %v, %v, want month starts 2024-06-01, 2024-07-01", bars[0].Date, bars[1].Date)
	}
	// The later June bar wins within the batch.
	if *bars[0].Close != 104.0 {
		t.Errorf("June close = %v, want 104.0", *bars[0].Close)
	}
}

func TestUpsertHistory_Idempotent(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{name: "yahoo", rows: []provider.RawBar{
		{"Date": "2024-06-03", "Close": 101.0, "Volume": int64(1000)},
		{"Date": "2024-07-01", "Close": 99.0},
	}}
	repo := store.NewMemory()
	svc := newService(p, repo)

	run := func() (int, []model.Bar) {
		n, err := svc.UpsertHistory(ctx, "AAPL", day(2024, 6, 1), day(2024, 8, 1), provider.IntervalMonthly)
		if err != nil {
			t.Fatalf("UpsertHistory: %v", err)
		}
		bars, err := repo.History(ctx, "AAPL", nil, nil)
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		return n, bars
	}

	n1, first := run()
	n2, second := run()

	if n1 != n2 {
		t.Errorf("counts differ: %d vs %d (idempotent, not skip-if-unchanged)", n1, n2)
	}
	if len(first) != len(second) {
		t.Fatalf("row counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Date.Equal(second[i].Date) || *first[i].Close != *second[i].Close {
			t.Errorf("row %d differs after replay: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestSyncIncremental_OverlapStart(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{name: "yahoo"}
	repo := store.NewMemory()
	if err := repo.UpsertBars(ctx, []model.Bar{{Symbol: "AAPL", Date: day(2024, 6, 1)}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := newService(p, repo)
	svc.now = func() time.Time { return day(2024, 8, 15) }

	if _, err := svc.SyncIncremental(ctx, "AAPL", 2, provider.IntervalMonthly); err != nil {
		t.Fatalf("SyncIncremental: %v", err)
	}

	if want := day(2024, 4, 1); !p.gotStart.Equal(want) {
		t.Errorf("start = %v, want %v (last month minus 2)", p.gotStart, want)
	}
	if want := day(2024, 8, 15); !p.gotEnd.Equal(want) {
		t.Errorf("end = %v, want today %v", p.gotEnd, want)
	}
}

func TestSyncIncremental_FloorWhenEmpty(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{name: "yahoo"}
	svc := newService(p, store.NewMemory())

	if _, err := svc.SyncIncremental(ctx, "NEW", 2, provider.IntervalMonthly); err != nil {
		t.Fatalf("SyncIncremental: %v", err)
	}
	if want := day(1985, 1, 1); !p.gotStart.Equal(want) {
		t.Errorf("start = %v, want floor %v", p.gotStart, want)
	}
}

func TestSyncIncremental_ProviderErrorPropagates(t *testing.T) {
	p := &fakeProvider{name: "yahoo", err: errors.New("rate limited")}
	svc := newService(p, store.NewMemory())

	if _, err := svc.SyncIncremental(context.Background(), "AAPL", 2, provider.IntervalMonthly); err == nil {
		t.Fatal("expected provider error to propagate")
	}
}

func TestResyncStart(t *testing.T) {
	tests := []struct {
		name    string
		last    time.Time
		overlap int
		want    time.Time
	}{
		{"spec fixture", day(2024, 6, 1), 2, day(2024, 4, 1)},
		{"mid-month collapses first", day(2024, 6, 17), 2, day(2024, 4, 1)},
		{"wraps year boundary", day(2024, 1, 1), 3, day(2023, 10, 1)},
		{"zero overlap", day(2024, 6, 1), 0, day(2024, 6, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResyncStart(tt.last, tt.overlap); !got.Equal(tt.want) {
				t.Errorf("ResyncStart(%v, %d) = %v, want %v", tt.last, tt.overlap, got, tt.want)
			}
		})
	}
}
