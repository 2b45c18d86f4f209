package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/trendhealth/internal/barcache"
	"github.com/wonny/trendhealth/pkg/logger"
)

// CacheHandler exposes per-symbol cache status
type CacheHandler struct {
	store    *barcache.Store
	meta     *barcache.MetadataStore
	provider string
	logger   *logger.Logger
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(store *barcache.Store, meta *barcache.MetadataStore, provider string, log *logger.Logger) *CacheHandler {
	return &CacheHandler{
		store:    store,
		meta:     meta,
		provider: provider,
		logger:   log.Module("api.cache"),
	}
}

// GetStatus returns bar count, date range and inception metadata of a symbol
// GET /api/cache/{symbol}
func (h *CacheHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	status, err := barcache.Inspect(h.store, h.meta, symbol)
	if err != nil {
		h.logger.WithError(err).WithField("symbol", symbol).Error("Failed to inspect cache")
		respondError(w, http.StatusInternalServerError, "Failed to inspect cache")
		return
	}
	if !status.Exists {
		respondError(w, http.StatusNotFound, "Symbol not cached")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"provider": h.provider,
		"status":   status,
	})
}
