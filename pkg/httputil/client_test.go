package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trendhealth/pkg/config"
	"github.com/wonny/trendhealth/pkg/logger"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	cfg := &config.Config{
		Env:      "test",
		LogLevel: "error",
		Provider: config.ProviderConfig{HTTPTimeout: 2 * time.Second},
	}
	return New(cfg, logger.Nop()).WithRetry(3, time.Millisecond, 2*time.Millisecond, 4*time.Millisecond)
}

func TestNew(t *testing.T) {
	cfg := &config.Config{
		Env:      "test",
		LogLevel: "error",
		Provider: config.ProviderConfig{HTTPTimeout: 5 * time.Second, RatePerSecond: 2.5},
	}

	client := New(cfg, logger.Nop())

	require.NotNil(t, client)
	assert.Equal(t, 5*time.Second, client.httpClient.Timeout)
	assert.Equal(t, 3, client.retryConfig.MaxAttempts)
	assert.Equal(t, DefaultBackoff, client.retryConfig.Backoff)
	require.NotNil(t, client.limiter)
	assert.Equal(t, 3, client.limiter.Burst())
}

func TestNew_Defaults(t *testing.T) {
	client := New(&config.Config{}, logger.Nop())
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
	assert.Nil(t, client.limiter, "no rate limit without PROVIDER_RATE_PER_SEC")
}

func TestGet_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	body, status, err := testClient(t).GetBody(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, status, err := testClient(t).GetBody(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGet_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, status, err := testClient(t).GetBody(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, status, "last retryable status is surfaced")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGet_NoRetryOnClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, status, err := testClient(t).GetBody(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGet_TransportErrorIsReturned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	_, _, err := testClient(t).GetBody(context.Background(), addr)

	assert.Error(t, err)
}

func TestGet_TimeoutIsRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			time.Sleep(200 * time.Millisecond)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := testClient(t)
	client.httpClient.Timeout = 50 * time.Millisecond

	_, status, err := client.GetBody(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}

func TestGet_SingleAttempt(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, status, err := testClient(t).WithRetry(1).GetBody(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGet_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := testClient(t).GetBody(ctx, server.URL)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryableStatus(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{200, false},
		{400, false},
		{404, false},
		{422, false},
		{429, true},
		{500, true},
		{503, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRetryableStatus(tt.status), "status %d", tt.status)
	}
}

func TestBackoffSchedule(t *testing.T) {
	client := New(&config.Config{}, logger.Nop())

	assert.Equal(t, 1*time.Second, client.backoff(1))
	assert.Equal(t, 2*time.Second, client.backoff(2))
	assert.Equal(t, 4*time.Second, client.backoff(3))
	assert.Equal(t, 4*time.Second, client.backoff(9))
}

func TestRedactURL(t *testing.T) {
	u, err := url.Parse("https://api.marketstack.com/v1/eod?access_key=secret&symbols=AAPL")
	require.NoError(t, err)

	got := redactURL(u)

	assert.NotContains(t, got, "secret")
	assert.Contains(t, got, "symbols=AAPL")
}
