package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/quantfeed/marketsync/internal/model"
	"github.com/quantfeed/marketsync/internal/provider"
)

// dateKeys are the column names checked, in order, for a row's timestamp.
var dateKeys = []string{"date", "datetime", "timestamp", "time", "index"}

var (
	openKeys     = []string{"open"}
	highKeys     = []string{"high"}
	lowKeys      = []string{"low"}
	closeKeys    = []string{"close"}
	adjCloseKeys = []string{"adj close", "adj_close", "adjclose", "adjusted close", "adjusted_close"}
	volumeKeys   = []string{"volume", "vol"}
)

// Bars converts raw provider rows into canonical bars for symbol, bucketing
// every timestamp onto the exchange-local calendar day in loc. Rows whose
// date cannot be recovered even by truncation are skipped; rows with
// missing or malformed values keep nil fields and are never dropped.
func Bars(symbol string, rows []provider.RawBar, loc *time.Location, source string) []model.Bar {
	naiveUTC := provider.NaiveUTC(source)

	bars := make([]model.Bar, 0, len(rows))
	for i, row := range rows {
		fields := lowerKeys(row)

		raw, ok := dateValue(fields)
		if !ok {
			// No date column at all: the row's position is all we have.
			raw = strconv.Itoa(i)
		}
		day, ok := tradingDay(raw, loc, naiveUTC)
		if !ok {
			continue
		}

		bars = append(bars, model.Bar{
			Symbol:   symbol,
			Date:     day,
			Open:     floatField(fields, openKeys),
			High:     floatField(fields, highKeys),
			Low:      floatField(fields, lowKeys),
			Close:    floatField(fields, closeKeys),
			AdjClose: floatField(fields, adjCloseKeys),
			Volume:   intField(fields, volumeKeys),
			Source:   source,
		})
	}
	return bars
}

func lowerKeys(row provider.RawBar) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

func dateValue(fields map[string]any) (any, bool) {
	for _, k := range dateKeys {
		if v, ok := fields[k]; ok {
			return v, true
		}
	}
	return nil, false
}

const naiveDateTimeLayout = "2006-01-02 15:04:05"

// tradingDay resolves a raw timestamp value to its exchange-local calendar
// day. Aware values convert into loc; naive values are read in UTC when
// naiveUTC is set, otherwise directly in loc.
func tradingDay(v any, loc *time.Location, naiveUTC bool) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return model.Day(t.In(loc)), true
	case int64:
		return epochDay(t, loc)
	case int:
		return epochDay(int64(t), loc)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return time.Time{}, false
		}
		return epochDay(int64(t), loc)
	case string:
		return stringDay(t, loc, naiveUTC)
	default:
		return stringDay(fmt.Sprint(v), loc, naiveUTC)
	}
}

// epochDay treats n as epoch seconds (milliseconds when implausibly large).
// Small numbers are not dates.
func epochDay(n int64, loc *time.Location) (time.Time, bool) {
	if n < 1e8 {
		return time.Time{}, false
	}
	if n > 1e12 {
		n /= 1000
	}
	return model.Day(time.Unix(n, 0).In(loc)), true
}

func stringDay(s string, loc *time.Location, naiveUTC bool) (time.Time, bool) {
	s = strings.TrimSpace(s)

	// Zone-aware forms convert into the exchange zone.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return model.Day(t.In(loc)), true
	}

	if t, ok := parseNaive(s, loc, naiveUTC); ok {
		return t, true
	}

	// Best-effort literal truncation: a date-shaped prefix is better than
	// losing the row.
	if len(s) > 10 {
		if t, ok := parseNaive(s[:10], loc, naiveUTC); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseNaive(s string, loc *time.Location, naiveUTC bool) (time.Time, bool) {
	for _, layout := range []string{naiveDateTimeLayout, "2006-01-02"} {
		parseLoc := loc
		if naiveUTC {
			parseLoc = time.UTC
		}
		t, err := time.ParseInLocation(layout, s, parseLoc)
		if err != nil {
			continue
		}
		return model.Day(t.In(loc)), true
	}
	return time.Time{}, false
}

func floatField(fields map[string]any, keys []string) *float64 {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			if f, ok := toFloat(v); ok {
				return &f
			}
		}
	}
	return nil
}

func intField(fields map[string]any, keys []string) *int64 {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			if f, ok := toFloat(v); ok {
				n := int64(f)
				return &n
			}
		}
	}
	return nil
}

// toFloat coerces a provider value to a float. NaN, infinities and
// non-numeric strings are "no value", never errors.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
