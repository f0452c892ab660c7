// Package market is the market-data collaborator: plain REST snapshot
// fetches with retry, normalized into candle series for archival. It sits
// outside the news confirmation core.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const marketMaxResponseBytes = 1 << 20 // 1MB

var granularityMinutes = map[string]int{
	"1m": 1, "5m": 5, "15m": 15, "1h": 60, "4h": 240, "1d": 1440,
}

// Granularities lists the accepted timeframe labels.
func Granularities() []string {
	return []string{"1m", "5m", "15m", "1h", "4h", "1d"}
}

var bybitIntervals = map[string]string{
	"1m": "1", "5m": "5", "15m": "15", "1h": "60", "4h": "240", "1d": "1440",
}

type Candle struct {
	OpenTime  time.Time `json:"open_time"`
	CloseTime time.Time `json:"close_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

type Snapshot struct {
	SchemaVersion int       `json:"schema_version"`
	Source        string    `json:"source"`
	Symbol        string    `json:"symbol"`
	Timeframe     string    `json:"timeframe"`
	FetchedAt     time.Time `json:"fetched_at"`
	Candles       []Candle  `json:"candles"`
	LastPrice     float64   `json:"last_price"`
	Change24h     float64   `json:"change_24h"`
	Volume24h     float64   `json:"volume_24h"`
}

// Client fetches spot snapshots from the public Binance and Bybit APIs.
// Base URLs are fields so tests can point at a local server.
type Client struct {
	HTTP           *http.Client
	UserAgent      string
	BinanceBaseURL string
	BybitBaseURL   string
}

func NewClient(httpClient *http.Client, userAgent string) *Client {
	return &Client{
		HTTP:           httpClient,
		UserAgent:      userAgent,
		BinanceBaseURL: "https://api.binance.com",
		BybitBaseURL:   "https://api.bybit.com",
	}
}

// FetchBinance returns one snapshot per symbol: klines plus the 24h ticker.
func (c *Client) FetchBinance(ctx context.Context, symbols []string, granularity string, limit int) ([]Snapshot, error) {
	if _, ok := granularityMinutes[granularity]; !ok {
		return nil, fmt.Errorf("binance: invalid granularity %q", granularity)
	}
	fetchedAt := time.Now().UTC()

	snapshots := make([]Snapshot, 0, len(symbols))
	for _, symbol := range symbols {
		var klines [][]any
		q := url.Values{"symbol": {symbol}, "interval": {granularity}, "limit": {strconv.Itoa(min(limit, 1000))}}
		if err := c.getJSON(ctx, c.BinanceBaseURL+"/api/v3/klines?"+q.Encode(), &klines); err != nil {
			return nil, fmt.Errorf("binance klines %s: %w", symbol, err)
		}

		candles := make([]Candle, 0, len(klines))
		for _, entry := range klines {
			if len(entry) < 7 {
				continue
			}
			candles = append(candles, Candle{
				OpenTime:  time.UnixMilli(int64(toFloat(entry[0]))).UTC(),
				CloseTime: time.UnixMilli(int64(toFloat(entry[6]))).UTC(),
				Open:      toFloat(entry[1]),
				High:      toFloat(entry[2]),
				Low:       toFloat(entry[3]),
				Close:     toFloat(entry[4]),
				Volume:    toFloat(entry[5]),
			})
		}

		var ticker struct {
			LastPrice          string `json:"lastPrice"`
			PriceChangePercent string `json:"priceChangePercent"`
			Volume             string `json:"volume"`
		}
		if err := c.getJSON(ctx, c.BinanceBaseURL+"/api/v3/ticker/24hr?symbol="+url.QueryEscape(symbol), &ticker); err != nil {
			return nil, fmt.Errorf("binance ticker %s: %w", symbol, err)
		}

		snapshots = append(snapshots, Snapshot{
			SchemaVersion: 1,
			Source:        "binance",
			Symbol:        symbol,
			Timeframe:     granularity,
			FetchedAt:     fetchedAt,
			Candles:       candles,
			LastPrice:     parseFloat(ticker.LastPrice),
			Change24h:     parseFloat(ticker.PriceChangePercent),
			Volume24h:     parseFloat(ticker.Volume),
		})
	}
	return snapshots, nil
}

// FetchBybit mirrors FetchBinance against the Bybit v5 linear API. Bybit
// klines omit close time, so it is derived from the timeframe.
func (c *Client) FetchBybit(ctx context.Context, symbols []string, granularity string, limit int) ([]Snapshot, error) {
	interval, ok := bybitIntervals[granularity]
	if !ok {
		return nil, fmt.Errorf("bybit: invalid granularity %q", granularity)
	}
	fetchedAt := time.Now().UTC()
	span := time.Duration(granularityMinutes[granularity]) * time.Minute

	snapshots := make([]Snapshot, 0, len(symbols))
	for _, symbol := range symbols {
		var payload struct {
			Result struct {
				List [][]string `json:"list"`
			} `json:"result"`
		}
		q := url.Values{"category": {"linear"}, "symbol": {symbol}, "interval": {interval}, "limit": {strconv.Itoa(min(limit, 1000))}}
		if err := c.getJSON(ctx, c.BybitBaseURL+"/v5/market/kline?"+q.Encode(), &payload); err != nil {
			return nil, fmt.Errorf("bybit kline %s: %w", symbol, err)
		}

		candles := make([]Candle, 0, len(payload.Result.List))
		for _, entry := range payload.Result.List {
			if len(entry) < 6 {
				continue
			}
			openMillis, err := strconv.ParseInt(entry[0], 10, 64)
			if err != nil {
				continue
			}
			openTime := time.UnixMilli(openMillis).UTC()
			candles = append(candles, Candle{
				OpenTime:  openTime,
				CloseTime: openTime.Add(span),
				Open:      parseFloat(entry[1]),
				High:      parseFloat(entry[2]),
				Low:       parseFloat(entry[3]),
				Close:     parseFloat(entry[4]),
				Volume:    parseFloat(entry[5]),
			})
		}

		var ticker struct {
			Result struct {
				List []struct {
					LastPrice    string `json:"lastPrice"`
					Price24hPcnt string `json:"price24hPcnt"`
					Turnover24h  string `json:"turnover24h"`
				} `json:"list"`
			} `json:"result"`
		}
		if err := c.getJSON(ctx, c.BybitBaseURL+"/v5/market/tickers?category=linear&symbol="+url.QueryEscape(symbol), &ticker); err != nil {
			return nil, fmt.Errorf("bybit ticker %s: %w", symbol, err)
		}

		snap := Snapshot{
			SchemaVersion: 1,
			Source:        "bybit",
			Symbol:        symbol,
			Timeframe:     granularity,
			FetchedAt:     fetchedAt,
			Candles:       candles,
		}
		if len(ticker.Result.List) > 0 {
			info := ticker.Result.List[0]
			snap.LastPrice = parseFloat(info.LastPrice)
			snap.Change24h = parseFloat(info.Price24hPcnt)
			snap.Volume24h = parseFloat(info.Turnover24h)
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", c.UserAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.HTTP.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("status %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, marketMaxResponseBytes))
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode %s: %w", rawURL, err))
		}
		return nil
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx))
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		return parseFloat(x)
	default:
		return 0
	}
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
