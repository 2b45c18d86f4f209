package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/trendhealth/internal/contracts"
	"github.com/wonny/trendhealth/internal/history"
	"github.com/wonny/trendhealth/internal/universe"
	"github.com/wonny/trendhealth/pkg/logger"
)

// HistoryHandler serves universes and their health-history artifacts
// ⭐ SSOT: health-history 조회 API 는 이 구조체에서만
type HistoryHandler struct {
	registry *universe.Registry
	store    *history.Store
	logger   *logger.Logger
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(registry *universe.Registry, store *history.Store, log *logger.Logger) *HistoryHandler {
	return &HistoryHandler{
		registry: registry,
		store:    store,
		logger:   log.Module("api.history"),
	}
}

// UniverseSummary is the list view of a universe
type UniverseSummary struct {
	ID              string                    `json:"id"`
	Name            string                    `json:"name"`
	DenominatorMode contracts.DenominatorMode `json:"denominatorMode"`
	Size            int                       `json:"size"`
	Groups          []string                  `json:"groups"`
	GroupHistory    bool                      `json:"groupHistory"`
}

// HistoryResponse is one artifact
type HistoryResponse struct {
	Universe string                         `json:"universe"`
	Group    string                         `json:"group,omitempty"`
	Key      string                         `json:"key"`
	Points   []contracts.HealthHistoryPoint `json:"points"`
}

// ListUniverses returns every configured universe
// GET /api/universes
func (h *HistoryHandler) ListUniverses(w http.ResponseWriter, r *http.Request) {
	all := h.registry.All()
	out := make([]UniverseSummary, 0, len(all))
	for _, u := range all {
		out = append(out, UniverseSummary{
			ID:              u.ID,
			Name:            u.Name,
			DenominatorMode: u.DenominatorMode,
			Size:            u.Size(),
			Groups:          u.Groups(),
			GroupHistory:    u.GroupHistory,
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"configHash": h.registry.Hash(),
		"universes":  out,
	})
}

// GetHistory returns the full artifact of a universe (or group variant)
// GET /api/history/{universe}?group=
func (h *HistoryHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	resp, ok := h.load(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetLatest returns the newest point of a universe (or group variant)
// GET /api/history/{universe}/latest?group=
func (h *HistoryHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	resp, ok := h.load(w, r)
	if !ok {
		return
	}
	if len(resp.Points) == 0 {
		respondError(w, http.StatusNotFound, "No history yet")
		return
	}
	respondJSON(w, http.StatusOK, resp.Points[len(resp.Points)-1])
}

func (h *HistoryHandler) load(w http.ResponseWriter, r *http.Request) (*HistoryResponse, bool) {
	id := mux.Vars(r)["universe"]
	group := r.URL.Query().Get("group")

	u, ok := h.registry.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "Unknown universe")
		return nil, false
	}
	if group != "" && (!u.GroupHistory || !hasGroup(u, group)) {
		respondError(w, http.StatusNotFound, "Unknown group")
		return nil, false
	}

	key := history.Key(id, group)
	points, err := h.store.Load(key)
	if err != nil {
		h.logger.WithError(err).WithField("key", key).Error("Failed to load history")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve history")
		return nil, false
	}

	return &HistoryResponse{Universe: id, Group: group, Key: key, Points: points}, true
}

func hasGroup(u *contracts.Universe, group string) bool {
	for _, g := range u.Groups() {
		if g == group {
			return true
		}
	}
	return false
}
