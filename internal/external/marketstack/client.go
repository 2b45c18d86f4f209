package marketstack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/wonny/trendhealth/internal/contracts"
	"github.com/wonny/trendhealth/pkg/config"
	"github.com/wonny/trendhealth/pkg/httputil"
	"github.com/wonny/trendhealth/pkg/logger"
)

// ProviderName is the cache namespace of this provider
const ProviderName = "marketstack"

// Client handles communication with the Marketstack EOD API
// ⭐ SSOT: Marketstack API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	apiKey     string
	pageSize   int
}

// NewClient creates a new Marketstack client
func NewClient(httpClient *httputil.Client, cfg config.MarketstackConfig, log *logger.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.marketstack.com/v1"
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.Module("marketstack"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		pageSize:   1000,
	}
}

// Name implements contracts.PriceProvider
func (c *Client) Name() string {
	return ProviderName
}

// apiError is the error envelope returned by Marketstack
type apiError struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// get performs a GET on path and returns the body of a 200 response.
// Non-200 statuses are mapped to contracts.FetchError kinds.
func (c *Client) get(ctx context.Context, symbol, path string, params url.Values) ([]byte, error) {
	params.Set("access_key", c.apiKey)
	fullURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	body, status, err := c.httpClient.GetBody(ctx, fullURL)
	if err != nil {
		return nil, contracts.NewFetchError(contracts.ErrKindRetryable, symbol, "transport", err)
	}

	if status == http.StatusOK {
		return body, nil
	}

	reason := fmt.Sprintf("status %d", status)
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != nil {
		reason = fmt.Sprintf("%s: %s (%s)", reason, apiErr.Error.Message, apiErr.Error.Code)
	}

	return nil, contracts.NewFetchError(classifyStatus(status), symbol, reason, nil)
}

// classifyStatus maps an HTTP status to an error kind
func classifyStatus(status int) contracts.ErrorKind {
	switch {
	case httputil.IsRetryableStatus(status):
		return contracts.ErrKindRetryable
	case status == http.StatusNotFound || status == http.StatusUnprocessableEntity:
		return contracts.ErrKindNotFound
	default:
		return contracts.ErrKindValidation
	}
}
