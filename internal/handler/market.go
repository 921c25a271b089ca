package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/buscoapp/busco/internal/model"
	"github.com/buscoapp/busco/internal/store"
	"github.com/buscoapp/busco/internal/websocket"
)

type MarketHandler struct {
	markets *store.MarketStore
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewMarketHandler(markets *store.MarketStore, hub *websocket.Hub, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, hub: hub, logger: logger}
}

// List handles GET /api/markets. Deactivated markets are hidden unless
// ?include_inactive=true is set by an admin frontend.
func (h *MarketHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("include_inactive") != "true"

	markets, err := h.markets.List(activeOnly)
	if err != nil {
		h.logger.Error("list markets", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}
	if markets == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, markets)
}

// Get handles GET /api/markets/{id}
func (h *MarketHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	market, err := h.markets.GetByID(id)
	if err != nil {
		h.logger.Error("get market", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}
	if market == nil {
		writeError(w, http.StatusNotFound, "market not found")
		return
	}
	writeJSON(w, http.StatusOK, market)
}

// Create handles POST /api/markets (admin).
func (h *MarketHandler) Create(w http.ResponseWriter, r *http.Request) {
	var market model.Market
	if err := json.NewDecoder(r.Body).Decode(&market); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(market.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	created, err := h.markets.Create(&market)
	if err != nil {
		h.logger.Error("create market", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create market")
		return
	}

	h.hub.Broadcast(websocket.Event{Type: websocket.EventMarketCreated, ID: created.ID, Payload: created})
	writeJSON(w, http.StatusCreated, created)
}

// Update handles PUT /api/markets/{id} (admin).
func (h *MarketHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.markets.GetByID(id)
	if err != nil {
		h.logger.Error("get market", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update market")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "market not found")
		return
	}

	market := *existing
	if err := json.NewDecoder(r.Body).Decode(&market); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	updated, err := h.markets.Update(id, &market)
	if err != nil {
		h.logger.Error("update market", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update market")
		return
	}

	h.hub.Broadcast(websocket.Event{Type: websocket.EventMarketUpdated, ID: id, Payload: updated})
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/markets/{id} (admin). Markets are deactivated,
// not removed, so historical prices and snapshots keep resolving.
func (h *MarketHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	market, err := h.markets.GetByID(id)
	if err != nil {
		h.logger.Error("get market", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to deactivate market")
		return
	}
	if market == nil {
		writeError(w, http.StatusNotFound, "market not found")
		return
	}

	if _, err := h.markets.Deactivate(id); err != nil {
		h.logger.Error("deactivate market", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to deactivate market")
		return
	}

	h.hub.Broadcast(websocket.Event{Type: websocket.EventMarketRemoved, ID: id})
	w.WriteHeader(http.StatusNoContent)
}
