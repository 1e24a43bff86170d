package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

const chartFixture = `{
  "chart": {
    "result": [{
      "meta": {
        "currency": "USD",
        "exchangeName": "NMS",
        "exchangeTimezoneName": "America/New_York",
        "regularMarketPrice": 190.5
      },
      "timestamp": [1704153600, 1704240000],
      "indicators": {
        "quote": [{
          "open": [187.1, null],
          "high": [188.4, 189.0],
          "low": [186.0, 187.2],
          "close": [187.9, 188.5],
          "volume": [52000000, null]
        }],
        "adjclose": [{"adjclose": [187.4, 188.0]}]
      }
    }],
    "error": null
  }
}`

func newChartServer(t *testing.T, capture *map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			q := map[string]string{}
			for k := range r.URL.Query() {
				q[k] = r.URL.Query().Get(k)
			}
			*capture = q
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chartFixture))
	}))
}

func TestYahoo_FetchRange(t *testing.T) {
	var query map[string]string
	server := newChartServer(t, &query)
	defer server.Close()

	y := NewYahoo(WithBaseURL(server.URL), WithTimeout(5*time.Second))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	rows, err := y.FetchRange(context.Background(), "AAPL", start, end, IntervalDaily)
	if err != nil {
		t.Fatalf("FetchRange: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}

	// Daily end bound is inclusive: period2 must be one day past the end.
	wantP2 := end.AddDate(0, 0, 1).Unix()
	if got := query["period2"]; got != timestampString(wantP2) {
		t.Errorf("period2 = %s, want %d", got, wantP2)
	}

	first := rows[0]
	if d, ok := first["Date"].(time.Time); !ok || d.Unix() != 1704153600 {
		t.Errorf("Date = %v, want epoch 1704153600", first["Date"])
	}
	if v, ok := first["Open"].(float64); !ok || v != 187.1 {
		t.Errorf("Open = %v, want 187.1", first["Open"])
	}
	if v, ok := first["Adj Close"].(float64); !ok || v != 187.4 {
		t.Errorf("Adj Close = %v, want 187.4", first["Adj Close"])
	}
	if v, ok := first["Volume"].(int64); !ok || v != 52000000 {
		t.Errorf("Volume = %v, want 52000000", first["Volume"])
	}

	// Null entries in the payload must not appear as keys at all.
	second := rows[1]
	if _, ok := second["Open"]; ok {
		t.Error("second row Open present, want absent for null value")
	}
	if _, ok := second["Volume"]; ok {
		t.Error("second row Volume present, want absent for null value")
	}
}

func TestYahoo_FetchRange_MonthlyEndUnadjusted(t *testing.T) {
	var query map[string]string
	server := newChartServer(t, &query)
	defer server.Close()

	y := NewYahoo(WithBaseURL(server.URL))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	if _, err := y.FetchRange(context.Background(), "AAPL", start, end, IntervalMonthly); err != nil {
		t.Fatalf("FetchRange: %v", err)
	}
	if got := query["period2"]; got != timestampString(end.Unix()) {
		t.Errorf("period2 = %s, want %d (monthly range passes through)", got, end.Unix())
	}
	if got := query["interval"]; got != "1mo" {
		t.Errorf("interval = %s, want 1mo", got)
	}
}

func TestYahoo_FetchQuote(t *testing.T) {
	server := newChartServer(t, nil)
	defer server.Close()

	y := NewYahoo(WithBaseURL(server.URL))

	q, err := y.FetchQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("FetchQuote: %v", err)
	}
	if q.Last != 190.5 {
		t.Errorf("Last = %v, want 190.5", q.Last)
	}
	if q.Currency != "USD" {
		t.Errorf("Currency = %q, want USD", q.Currency)
	}
	if q.Timezone != "America/New_York" {
		t.Errorf("Timezone = %q, want America/New_York", q.Timezone)
	}
}

func TestYahoo_FetchRange_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	y := NewYahoo(WithBaseURL(server.URL), WithRetries(0, time.Millisecond))

	_, err := y.FetchRange(context.Background(), "NOPE", time.Now(), time.Now(), IntervalDaily)
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", apiErr.StatusCode)
	}
	if apiErr.IsRetryable() {
		t.Error("404 reported retryable, want terminal")
	}
}

func timestampString(ts int64) string {
	return strconv.FormatInt(ts, 10)
}
