// Package stooq fetches end-of-day bars from the Stooq CSV endpoints.
package stooq

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/wonny/trendhealth/internal/contracts"
	"github.com/wonny/trendhealth/internal/timeseries"
	"github.com/wonny/trendhealth/pkg/config"
	"github.com/wonny/trendhealth/pkg/httputil"
	"github.com/wonny/trendhealth/pkg/logger"
)

// ProviderName is the cache namespace of this provider
const ProviderName = "stooq"

// Client handles communication with Stooq
// ⭐ SSOT: Stooq 다운로드는 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new Stooq client
func NewClient(httpClient *httputil.Client, cfg config.StooqConfig, log *logger.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://stooq.com"
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.Module("stooq"),
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Name implements contracts.PriceProvider
func (c *Client) Name() string {
	return ProviderName
}

// FetchSeries downloads the daily CSV of symbol within the range
func (c *Client) FetchSeries(ctx context.Context, symbol string, r contracts.FetchRange) ([]contracts.Bar, error) {
	params := url.Values{}
	params.Set("s", strings.ToLower(symbol))
	params.Set("i", "d")
	if r.StartDate != "" {
		params.Set("d1", compactDate(r.StartDate))
	}
	if r.EndDate != "" {
		params.Set("d2", compactDate(r.EndDate))
	}

	body, err := c.fetchCSV(ctx, symbol, "/q/d/l/", params)
	if err != nil {
		return nil, err
	}

	bars, err := parseDailyCSV(body)
	if err != nil {
		return nil, contracts.NewFetchError(contracts.ErrKindValidation, symbol, "parse csv", err)
	}

	bars = timeseries.MergeBars(nil, bars)
	if r.Limit > 0 && len(bars) > r.Limit {
		bars = bars[len(bars)-r.Limit:]
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"bars":   len(bars),
	}).Debug("Fetched daily CSV")

	return bars, nil
}

// FetchLatestBatch downloads the latest quote of many symbols in one request
func (c *Client) FetchLatestBatch(ctx context.Context, symbols []string) (map[string]contracts.Bar, error) {
	out := make(map[string]contracts.Bar, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}

	// 응답 심볼(대문자) → 요청 심볼
	requested := make(map[string]string, len(symbols))
	lower := make([]string, len(symbols))
	for i, s := range symbols {
		requested[strings.ToUpper(s)] = s
		lower[i] = strings.ToLower(s)
	}

	params := url.Values{}
	params.Set("s", strings.Join(lower, " "))
	params.Set("f", "sd2c")
	params.Set("h", "")
	params.Set("e", "csv")

	body, err := c.fetchCSV(ctx, "", "/q/l/", params)
	if err != nil {
		return nil, err
	}

	rows, err := readCSV(body)
	if err != nil {
		return nil, contracts.NewFetchError(contracts.ErrKindValidation, "", "parse latest csv", err)
	}

	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		symbol, ok := requested[strings.ToUpper(strings.TrimSpace(row[0]))]
		if !ok {
			continue
		}
		bar, ok := parseBar(row[1], row[2])
		if !ok {
			continue // N/D
		}
		out[symbol] = bar
	}
	return out, nil
}

func (c *Client) fetchCSV(ctx context.Context, symbol, path string, params url.Values) ([]byte, error) {
	// s=aapl.us+msft.us (공백 구분)
	fullURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	body, status, err := c.httpClient.GetBody(ctx, fullURL)
	if err != nil {
		return nil, contracts.NewFetchError(contracts.ErrKindRetryable, symbol, "transport", err)
	}

	switch {
	case status == http.StatusOK:
	case httputil.IsRetryableStatus(status):
		return nil, contracts.NewFetchError(contracts.ErrKindRetryable, symbol, fmt.Sprintf("status %d", status), nil)
	case status == http.StatusNotFound:
		return nil, contracts.NewFetchError(contracts.ErrKindNotFound, symbol, "status 404", nil)
	default:
		return nil, contracts.NewFetchError(contracts.ErrKindValidation, symbol, fmt.Sprintf("status %d", status), nil)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.EqualFold(trimmed, []byte("No data")) {
		return nil, nil
	}
	if bytes.Contains(bytes.ToLower(trimmed[:min(len(trimmed), 200)]), []byte("exceeded the daily hits limit")) {
		return nil, contracts.NewFetchError(contracts.ErrKindRetryable, symbol, "daily hits limit", nil)
	}
	return trimmed, nil
}

// parseDailyCSV parses Date,Open,High,Low,Close[,Volume]
func parseDailyCSV(body []byte) ([]contracts.Bar, error) {
	bars := make([]contracts.Bar, 0)
	if len(body) == 0 {
		return bars, nil
	}

	rows, err := readCSV(body)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return bars, nil
	}

	dateIdx, closeIdx := -1, -1
	for i, h := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date":
			dateIdx = i
		case "close":
			closeIdx = i
		}
	}
	if dateIdx < 0 || closeIdx < 0 {
		return nil, fmt.Errorf("missing date/close columns in header %v", rows[0])
	}

	for _, row := range rows[1:] {
		if len(row) <= closeIdx || len(row) <= dateIdx {
			continue
		}
		if bar, ok := parseBar(row[dateIdx], row[closeIdx]); ok {
			bars = append(bars, bar)
		}
	}
	return bars, nil
}

func readCSV(body []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseBar(date, closeStr string) (contracts.Bar, bool) {
	date = strings.TrimSpace(date)
	if _, err := contracts.ParseDate(date); err != nil {
		return contracts.Bar{}, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(closeStr), 64)
	if err != nil || v <= 0 {
		return contracts.Bar{}, false
	}
	return contracts.Bar{Date: date, Close: v}, true
}

// compactDate converts 2024-01-02 to 20240102
func compactDate(date string) string {
	return strings.ReplaceAll(date, "-", "")
}
