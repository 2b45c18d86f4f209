package marketstack

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trendhealth/internal/contracts"
	"github.com/wonny/trendhealth/pkg/config"
	"github.com/wonny/trendhealth/pkg/httputil"
	"github.com/wonny/trendhealth/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	httpClient := httputil.New(&config.Config{}, logger.Nop()).WithRetry(3, time.Millisecond)
	return NewClient(httpClient, config.MarketstackConfig{APIKey: "test-key", BaseURL: server.URL}, logger.Nop())
}

func TestFetchSeries_Pagination(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/eod", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("access_key"))
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbols"))
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("date_from"))

		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		switch offset {
		case 0:
			fmt.Fprint(w, `{"pagination":{"limit":2,"offset":0,"count":2,"total":3},"data":[
				{"date":"2024-01-02T00:00:00+0000","symbol":"AAPL","close":185.64,"adj_close":185.1},
				{"date":"2024-01-03T00:00:00+0000","symbol":"AAPL","close":184.25}]}`)
		case 2:
			fmt.Fprint(w, `{"pagination":{"limit":2,"offset":2,"count":1,"total":3},"data":[
				{"date":"2024-01-04T00:00:00+0000","symbol":"AAPL","close":181.91}]}`)
		default:
			t.Errorf("unexpected offset %d", offset)
		}
	})
	client.pageSize = 2

	bars, err := client.FetchSeries(context.Background(), "AAPL", contracts.FetchRange{StartDate: "2024-01-01", EndDate: "2024-01-31"})

	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, contracts.Bar{Date: "2024-01-02", Close: 185.1}, bars[0], "adjusted close preferred")
	assert.Equal(t, contracts.Bar{Date: "2024-01-04", Close: 181.91}, bars[2])
}

func TestFetchSeries_EmptyRange(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"pagination":{"limit":1000,"offset":0,"count":0,"total":0},"data":[]}`)
	})

	bars, err := client.FetchSeries(context.Background(), "NEWCO", contracts.FetchRange{StartDate: "2020-01-01", EndDate: "2020-12-31"})

	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestFetchSeries_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   contracts.ErrorKind
	}{
		{"server error", http.StatusServiceUnavailable, ``, contracts.ErrKindRetryable},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"code":"rate_limit_reached","message":"slow down"}}`, contracts.ErrKindRetryable},
		{"unknown symbol", http.StatusUnprocessableEntity, `{"error":{"code":"no_valid_symbols_provided","message":"none"}}`, contracts.ErrKindNotFound},
		{"bad key", http.StatusUnauthorized, `{"error":{"code":"invalid_access_key","message":"bad key"}}`, contracts.ErrKindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			_, err := client.FetchSeries(context.Background(), "AAPL", contracts.FetchRange{StartDate: "2024-01-01"})

			require.Error(t, err)
			assert.Equal(t, tt.want, contracts.KindOf(err))
			assert.NotContains(t, err.Error(), "test-key")
		})
	}
}

func TestFetchSeries_MalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>maintenance</html>`)
	})

	_, err := client.FetchSeries(context.Background(), "AAPL", contracts.FetchRange{})

	assert.Equal(t, contracts.ErrKindValidation, contracts.KindOf(err))
}

func TestFetchLatestBatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/eod/latest", r.URL.Path)
		assert.Equal(t, "AAPL,MSFT,ZZZZ", r.URL.Query().Get("symbols"))
		fmt.Fprint(w, `{"pagination":{"limit":3,"offset":0,"count":2,"total":2},"data":[
			{"date":"2024-06-14T00:00:00+0000","symbol":"AAPL","close":212.49},
			{"date":"2024-06-14T00:00:00+0000","symbol":"MSFT","close":442.57}]}`)
	})

	got, err := client.FetchLatestBatch(context.Background(), []string{"AAPL", "MSFT", "ZZZZ"})

	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, contracts.Bar{Date: "2024-06-14", Close: 212.49}, got["AAPL"])
	_, ok := got["ZZZZ"]
	assert.False(t, ok, "absent symbols are omitted")

	empty, err := client.FetchLatestBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestEODRow_Bar(t *testing.T) {
	zero := 0.0
	price := 10.5

	_, ok := eodRow{Date: "2024-01-02T00:00:00+0000", Close: &zero}.bar()
	assert.False(t, ok)

	_, ok = eodRow{Date: "bad", Close: &price}.bar()
	assert.False(t, ok)

	bar, ok := eodRow{Date: "2024-01-02T00:00:00+0000", Close: &price, AdjClose: &zero}.bar()
	assert.True(t, ok)
	assert.Equal(t, 10.5, bar.Close)
}
