// Package quotecache memoizes latest-bar lookups of a price provider in Redis.
package quotecache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wonny/trendhealth/internal/contracts"
	"github.com/wonny/trendhealth/pkg/logger"
	"github.com/wonny/trendhealth/pkg/redis"
)

// Memo is the subset of redis.Cache used by the decorator
type Memo interface {
	Enabled() bool
	GetMany(ctx context.Context, keys []string, decode func(key string, data []byte) error) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Provider wraps a PriceProvider and caches FetchLatestBatch results per symbol.
// FetchSeries is passed through.
type Provider struct {
	inner  contracts.PriceProvider
	memo   Memo
	ttl    time.Duration
	logger *logger.Logger
}

// New creates the decorator; a disabled memo makes it a pass-through
func New(inner contracts.PriceProvider, memo Memo, ttl time.Duration, log *logger.Logger) *Provider {
	if ttl <= 0 {
		ttl = redis.TTLLong
	}
	return &Provider{
		inner:  inner,
		memo:   memo,
		ttl:    ttl,
		logger: log.Module("quotecache"),
	}
}

// Name returns the wrapped provider name (cache paths stay per provider)
func (p *Provider) Name() string {
	return p.inner.Name()
}

// FetchSeries implements contracts.PriceProvider
func (p *Provider) FetchSeries(ctx context.Context, symbol string, r contracts.FetchRange) ([]contracts.Bar, error) {
	return p.inner.FetchSeries(ctx, symbol, r)
}

// FetchLatestBatch serves cached symbols from Redis and fetches the rest
func (p *Provider) FetchLatestBatch(ctx context.Context, symbols []string) (map[string]contracts.Bar, error) {
	if !p.memo.Enabled() || len(symbols) == 0 {
		return p.inner.FetchLatestBatch(ctx, symbols)
	}

	out := make(map[string]contracts.Bar, len(symbols))
	keys := make([]string, len(symbols))
	bySymbolKey := make(map[string]string, len(symbols))
	for i, s := range symbols {
		keys[i] = redis.LatestBarKey(s)
		bySymbolKey[keys[i]] = s
	}

	err := p.memo.GetMany(ctx, keys, func(key string, data []byte) error {
		var bar contracts.Bar
		if err := json.Unmarshal(data, &bar); err != nil {
			return err
		}
		out[bySymbolKey[key]] = bar
		return nil
	})
	if err != nil {
		// 캐시 장애는 무시하고 원본 조회
		p.logger.WithError(err).Warn("Latest-bar memo read failed")
		out = make(map[string]contracts.Bar, len(symbols))
	}

	misses := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := out[s]; !ok {
			misses = append(misses, s)
		}
	}

	p.logger.WithFields(map[string]interface{}{
		"hits":   len(out),
		"misses": len(misses),
	}).Debug("Latest-bar memo lookup")

	if len(misses) == 0 {
		return out, nil
	}

	fetched, err := p.inner.FetchLatestBatch(ctx, misses)
	if err != nil {
		return nil, err
	}

	for symbol, bar := range fetched {
		out[symbol] = bar
		if err := p.memo.Set(ctx, redis.LatestBarKey(symbol), bar, p.ttl); err != nil {
			p.logger.WithError(err).WithField("symbol", symbol).Warn("Latest-bar memo write failed")
		}
	}
	return out, nil
}
