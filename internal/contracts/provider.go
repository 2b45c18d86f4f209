package contracts

import (
	"context"
	"errors"
	"fmt"
)

// FetchRange bounds a series request
// EndDate 가 비어 있으면 오늘까지
type FetchRange struct {
	StartDate string
	EndDate   string
	Limit     int
}

// PriceProvider is the upstream end-of-day price source
// ⭐ SSOT: 외부 시세 제공자 계약 (Marketstack, Stooq 등)
type PriceProvider interface {
	// Name identifies the provider in logs and cache paths
	Name() string

	// FetchSeries returns bars for symbol within the range, sorted ascending.
	// A range without data is an empty slice and a nil error.
	FetchSeries(ctx context.Context, symbol string, r FetchRange) ([]Bar, error)

	// FetchLatestBatch returns the latest bar per symbol; absent symbols are omitted
	FetchLatestBatch(ctx context.Context, symbols []string) (map[string]Bar, error)
}

// ErrorKind classifies provider failures
type ErrorKind string

const (
	// ErrKindRetryable covers 5xx, rate limiting and transport failures
	ErrKindRetryable ErrorKind = "retryable"
	// ErrKindNotFound means the provider has no data for the request
	ErrKindNotFound ErrorKind = "not_found"
	// ErrKindValidation covers rejected requests and unparseable payloads
	ErrKindValidation ErrorKind = "validation"
)

// FetchError is the typed failure returned by providers
type FetchError struct {
	Kind   ErrorKind
	Symbol string
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	if e.Symbol != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Symbol)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError builds a FetchError
func NewFetchError(kind ErrorKind, symbol, reason string, err error) *FetchError {
	return &FetchError{Kind: kind, Symbol: symbol, Reason: reason, Err: err}
}

// KindOf returns the ErrorKind of err, or ErrKindRetryable for untyped errors
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ErrKindRetryable
}

// IsNotFound reports whether err means "provider has no data"
func IsNotFound(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == ErrKindNotFound
}
