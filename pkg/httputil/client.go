package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/trendhealth/pkg/config"
	"github.com/wonny/trendhealth/pkg/logger"
)

// DefaultBackoff is the fixed delay schedule between attempts
var DefaultBackoff = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// Client is an HTTP client wrapper with retry, rate limiting and logging
// ⭐ SSOT: 모든 외부 시세 요청은 이 클라이언트를 통해서만 수행
type Client struct {
	httpClient  *http.Client
	logger      *logger.Logger
	retryConfig RetryConfig
	limiter     *rate.Limiter
}

// RetryConfig holds retry configuration
// Delay before attempt n+1 is Backoff[n-1] (last entry repeats).
type RetryConfig struct {
	MaxAttempts int
	Backoff     []time.Duration
}

// New creates a new HTTP client from config
// ⭐ SSOT: http.Client 인스턴스는 여기서만 생성
func New(cfg *config.Config, log *logger.Logger) *Client {
	timeout := cfg.Provider.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.Module("httputil"),
		retryConfig: RetryConfig{
			MaxAttempts: 3,
			Backoff:     DefaultBackoff,
		},
	}

	if cfg.Provider.RatePerSecond > 0 {
		c.WithRateLimit(cfg.Provider.RatePerSecond)
	}
	return c
}

// WithRetry configures retry behavior (maxAttempts 1 = no retry)
func (c *Client) WithRetry(maxAttempts int, backoff ...time.Duration) *Client {
	c.retryConfig.MaxAttempts = maxAttempts
	if len(backoff) > 0 {
		c.retryConfig.Backoff = backoff
	}
	return c
}

// WithRateLimit caps outbound requests per second (burst = ceil(perSecond))
func (c *Client) WithRateLimit(perSecond float64) *Client {
	burst := int(perSecond)
	if float64(burst) < perSecond {
		burst++
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	return c
}

// Get performs a GET request.
// A non-nil response may still carry a retryable status once attempts are
// exhausted; callers map status codes to their own error kinds.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}

	return c.do(req)
}

// GetBody performs a GET and reads the whole body
func (c *Client) GetBody(ctx context.Context, rawURL string) ([]byte, int, error) {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// do executes the request with retry logic and logging
func (c *Client) do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	startTime := time.Now()
	target := redactURL(req.URL)
	method := req.Method

	// Log request
	c.logger.WithFields(map[string]interface{}{
		"method": method,
		"url":    target,
	}).Debug("HTTP request started")

	// Execute with retry
	resp, err = c.doWithRetry(req)

	duration := time.Since(startTime)

	if err != nil {
		c.logger.WithFields(map[string]interface{}{
			"method":   method,
			"url":      target,
			"duration": duration,
			"error":    err.Error(),
		}).Error("HTTP request failed")
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"method":      method,
		"url":         target,
		"status_code": resp.StatusCode,
		"duration":    duration,
	}).Debug("HTTP request completed")

	return resp, nil
}

// send waits for the rate limiter and performs a single attempt
func (c *Client) send(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limit wait failed: %w", err)
		}
	}
	resp, err := c.httpClient.Do(req)
	if uerr, ok := err.(*url.Error); ok {
		uerr.URL = redactURL(req.URL)
	}
	return resp, err
}

// doWithRetry executes the request with the fixed backoff schedule
func (c *Client) doWithRetry(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	attempts := c.retryConfig.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err = c.send(req)

		// Success or non-retryable status
		if err == nil && !IsRetryableStatus(resp.StatusCode) {
			return resp, nil
		}

		// 컨텍스트 취소는 재시도하지 않음
		if ctxErr := req.Context().Err(); ctxErr != nil {
			if resp != nil {
				resp.Body.Close()
			}
			return nil, ctxErr
		}

		if attempt == attempts {
			break
		}

		delay := c.backoff(attempt)
		fields := map[string]interface{}{
			"attempt": attempt,
			"delay":   delay,
			"url":     redactURL(req.URL),
		}
		if err != nil {
			fields["error"] = err.Error()
		} else {
			fields["status_code"] = resp.StatusCode
			drain(resp)
		}
		c.logger.WithFields(fields).Warn("Retrying HTTP request")

		if err := sleep(req.Context(), delay); err != nil {
			return nil, err
		}
	}

	return resp, err
}

func (c *Client) backoff(attempt int) time.Duration {
	b := c.retryConfig.Backoff
	if len(b) == 0 {
		return 0
	}
	if attempt-1 < len(b) {
		return b[attempt-1]
	}
	return b[len(b)-1]
}

// IsRetryableStatus reports whether a status code should be retried
// 5xx 서버 에러와 429 Too Many Requests 만 재시도
func IsRetryableStatus(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// redactURL hides credentials passed as query parameters
func redactURL(u *url.URL) string {
	q := u.Query()
	redacted := false
	for _, key := range []string{"access_key", "apikey", "api_key", "token"} {
		if q.Has(key) {
			q.Set(key, "REDACTED")
			redacted = true
		}
	}
	if !redacted {
		return u.String()
	}
	c := *u
	c.RawQuery = q.Encode()
	return c.String()
}
