package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// Yahoo is the primary quote backend, built on the v8 chart API.
type Yahoo struct {
	rc     *resty.Client
	logger *slog.Logger
}

// NewYahoo creates a Yahoo-backed provider.
func NewYahoo(opts ...Option) *Yahoo {
	o := defaultOptions(yahooBaseURL)
	for _, opt := range opts {
		opt(&o)
	}
	return &Yahoo{
		rc:     newRestClient(o),
		logger: o.logger,
	}
}

func (y *Yahoo) Name() string { return SourceYahoo }

// chartResult mirrors the subset of a chart API result we consume.
type chartResult struct {
	Meta struct {
		Currency             string  `json:"currency"`
		ExchangeName         string  `json:"exchangeName"`
		ExchangeTimezoneName string  `json:"exchangeTimezoneName"`
		RegularMarketPrice   float64 `json:"regularMarketPrice"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchRange fetches bars between start and end. For the daily interval
// the end day itself is included, so the upper bound sent to the backend
// is advanced by one day (period2 is exclusive on the chart API).
func (y *Yahoo) FetchRange(ctx context.Context, symbol string, start, end time.Time, interval Interval) ([]RawBar, error) {
	upper := end
	if interval == IntervalDaily {
		upper = end.AddDate(0, 0, 1)
	}
	return y.chart(ctx, symbol, map[string]string{
		"period1":  strconv.FormatInt(start.Unix(), 10),
		"period2":  strconv.FormatInt(upper.Unix(), 10),
		"interval": string(interval),
	})
}

// FetchPeriod fetches bars over a named lookback period such as "1y" or "max".
func (y *Yahoo) FetchPeriod(ctx context.Context, symbol, period string, interval Interval) ([]RawBar, error) {
	return y.chart(ctx, symbol, map[string]string{
		"range":    period,
		"interval": string(interval),
	})
}

// FetchQuote returns the current quote with exchange metadata.
func (y *Yahoo) FetchQuote(ctx context.Context, symbol string) (Quote, error) {
	res, err := y.fetch(ctx, symbol, map[string]string{
		"range":    "1d",
		"interval": "1d",
	})
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		Symbol:   symbol,
		Last:     res.Meta.RegularMarketPrice,
		Currency: res.Meta.Currency,
		Exchange: res.Meta.ExchangeName,
		Timezone: res.Meta.ExchangeTimezoneName,
	}, nil
}

func (y *Yahoo) chart(ctx context.Context, symbol string, query map[string]string) ([]RawBar, error) {
	res, err := y.fetch(ctx, symbol, query)
	if err != nil {
		return nil, err
	}

	if len(res.Indicators.Quote) == 0 {
		return nil, nil
	}
	q := res.Indicators.Quote[0]

	var adj []*float64
	if len(res.Indicators.AdjClose) > 0 {
		adj = res.Indicators.AdjClose[0].AdjClose
	}

	rows := make([]RawBar, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		row := RawBar{"Date": time.Unix(ts, 0).UTC()}
		putFloat(row, "Open", q.Open, i)
		putFloat(row, "High", q.High, i)
		putFloat(row, "Low", q.Low, i)
		putFloat(row, "Close", q.Close, i)
		putFloat(row, "Adj Close", adj, i)
		if i < len(q.Volume) && q.Volume[i] != nil {
			row["Volume"] = *q.Volume[i]
		}
		rows = append(rows, row)
	}

	y.logger.Debug("fetched yahoo bars", "symbol", symbol, "rows", len(rows))
	return rows, nil
}

func (y *Yahoo) fetch(ctx context.Context, symbol string, query map[string]string) (*chartResult, error) {
	var out chartResponse
	resp, err := y.rc.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetResult(&out).
		Get("/v8/finance/chart/" + url.PathEscape(symbol))
	if err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}
	if resp.IsError() {
		return nil, &APIError{Provider: SourceYahoo, StatusCode: resp.StatusCode(), Body: resp.Status()}
	}
	if out.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart %s: %s: %s", symbol, out.Chart.Error.Code, out.Chart.Error.Description)
	}
	if len(out.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo chart %s: empty result", symbol)
	}
	return &out.Chart.Result[0], nil
}

func putFloat(row RawBar, key string, vals []*float64, i int) {
	if i < len(vals) && vals[i] != nil {
		row[key] = *vals[i]
	}
}
