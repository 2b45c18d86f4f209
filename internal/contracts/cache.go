package contracts

import "time"

// CacheMetadata records that a provider has no data before OldestCachedDate
// Created the first time a backward extension returns zero bars.
type CacheMetadata struct {
	Symbol           string    `json:"symbol"`
	InceptionLimited bool      `json:"inceptionLimited"`
	OldestCachedDate string    `json:"oldestCachedDate"`
	CheckedAt        time.Time `json:"checkedAt"`
}
