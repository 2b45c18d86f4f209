package marketstack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/wonny/trendhealth/internal/contracts"
	"github.com/wonny/trendhealth/internal/timeseries"
)

// pagination is the offset paging block of list responses
type pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
	Total  int `json:"total"`
}

// eodRow is one end-of-day record
type eodRow struct {
	Date     string   `json:"date"` // 2024-01-02T00:00:00+0000
	Symbol   string   `json:"symbol"`
	Close    *float64 `json:"close"`
	AdjClose *float64 `json:"adj_close"`
}

type eodResponse struct {
	Pagination pagination `json:"pagination"`
	Data       []eodRow   `json:"data"`
}

// FetchSeries fetches EOD bars for symbol, following offset pagination.
// An empty data array is an empty series, not an error.
func (c *Client) FetchSeries(ctx context.Context, symbol string, r contracts.FetchRange) ([]contracts.Bar, error) {
	bars := make([]contracts.Bar, 0)
	offset := 0

	for {
		params := url.Values{}
		params.Set("symbols", symbol)
		params.Set("sort", "ASC")
		params.Set("limit", strconv.Itoa(c.pageSize))
		params.Set("offset", strconv.Itoa(offset))
		if r.StartDate != "" {
			params.Set("date_from", r.StartDate)
		}
		if r.EndDate != "" {
			params.Set("date_to", r.EndDate)
		}

		body, err := c.get(ctx, symbol, "/eod", params)
		if err != nil {
			return nil, err
		}

		page, err := parseEOD(body)
		if err != nil {
			return nil, contracts.NewFetchError(contracts.ErrKindValidation, symbol, "parse eod", err)
		}
		bars = append(bars, page.bars...)

		offset += page.pagination.Count
		if page.pagination.Count == 0 || offset >= page.pagination.Total {
			break
		}
		if r.Limit > 0 && len(bars) >= r.Limit {
			break
		}
	}

	bars = timeseries.MergeBars(nil, bars)
	if r.Limit > 0 && len(bars) > r.Limit {
		bars = bars[len(bars)-r.Limit:]
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"from":   r.StartDate,
		"to":     r.EndDate,
		"bars":   len(bars),
	}).Debug("Fetched EOD series")

	return bars, nil
}

// FetchLatestBatch fetches the latest EOD bar of each symbol in one request
func (c *Client) FetchLatestBatch(ctx context.Context, symbols []string) (map[string]contracts.Bar, error) {
	out := make(map[string]contracts.Bar, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}

	params := url.Values{}
	params.Set("symbols", strings.Join(symbols, ","))
	params.Set("limit", strconv.Itoa(len(symbols)))

	body, err := c.get(ctx, "", "/eod/latest", params)
	if err != nil {
		return nil, err
	}

	var resp eodResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, contracts.NewFetchError(contracts.ErrKindValidation, "", "parse eod/latest", err)
	}

	for _, row := range resp.Data {
		bar, ok := row.bar()
		if !ok {
			continue
		}
		if prev, exists := out[row.Symbol]; exists && prev.Date >= bar.Date {
			continue
		}
		out[row.Symbol] = bar
	}

	c.logger.WithFields(map[string]interface{}{
		"requested": len(symbols),
		"returned":  len(out),
	}).Debug("Fetched latest EOD batch")

	return out, nil
}

type eodPage struct {
	pagination pagination
	bars       []contracts.Bar
}

func parseEOD(body []byte) (eodPage, error) {
	var resp eodResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return eodPage{}, fmt.Errorf("unmarshal: %w", err)
	}

	page := eodPage{pagination: resp.Pagination, bars: make([]contracts.Bar, 0, len(resp.Data))}
	for _, row := range resp.Data {
		if bar, ok := row.bar(); ok {
			page.bars = append(page.bars, bar)
		}
	}
	// pagination 블록이 없는 응답 대비
	if page.pagination.Count == 0 && page.pagination.Total == 0 {
		page.pagination.Count = len(resp.Data)
		page.pagination.Total = len(resp.Data)
	}
	return page, nil
}

// bar converts a row, preferring the split/dividend adjusted close
func (r eodRow) bar() (contracts.Bar, bool) {
	if len(r.Date) < len(contracts.DateLayout) {
		return contracts.Bar{}, false
	}
	date := r.Date[:len(contracts.DateLayout)]
	if _, err := contracts.ParseDate(date); err != nil {
		return contracts.Bar{}, false
	}

	switch {
	case r.AdjClose != nil && *r.AdjClose > 0:
		return contracts.Bar{Date: date, Close: *r.AdjClose}, true
	case r.Close != nil && *r.Close > 0:
		return contracts.Bar{Date: date, Close: *r.Close}, true
	default:
		return contracts.Bar{}, false
	}
}
