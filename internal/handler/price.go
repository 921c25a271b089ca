package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/buscoapp/busco/internal/auth"
	"github.com/buscoapp/busco/internal/compare"
	"github.com/buscoapp/busco/internal/push"
	"github.com/buscoapp/busco/internal/store"
	"github.com/buscoapp/busco/internal/websocket"

	"github.com/shopspring/decimal"
)

type PriceHandler struct {
	prices   *store.PriceStore
	products *store.ProductStore
	markets  *store.MarketStore
	hub      *websocket.Hub
	notifier *push.Notifier
	logger   *slog.Logger
}

func NewPriceHandler(prices *store.PriceStore, products *store.ProductStore, markets *store.MarketStore, hub *websocket.Hub, notifier *push.Notifier, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{
		prices:   prices,
		products: products,
		markets:  markets,
		hub:      hub,
		notifier: notifier,
		logger:   logger,
	}
}

type upsertPriceRequest struct {
	ProductID        int64           `json:"product_id"`
	MarketID         int64           `json:"market_id"`
	Price            decimal.Decimal `json:"price"`
	IsPromotion      bool            `json:"is_promotion"`
	PromotionEndDate *time.Time      `json:"promotion_end_date"`
}

// Upsert handles POST /api/prices (admin). One row per product/market pair:
// a second report for the same pair overwrites the first.
func (h *PriceHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ProductID == 0 || req.MarketID == 0 {
		writeError(w, http.StatusBadRequest, "product_id and market_id are required")
		return
	}
	if req.Price.IsNegative() || req.Price.IsZero() {
		writeError(w, http.StatusBadRequest, "price must be positive")
		return
	}

	product, err := h.products.GetByID(req.ProductID)
	if err != nil {
		h.logger.Error("get product", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record price")
		return
	}
	if product == nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	market, err := h.markets.GetByID(req.MarketID)
	if err != nil {
		h.logger.Error("get market", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record price")
		return
	}
	if market == nil {
		writeError(w, http.StatusNotFound, "market not found")
		return
	}

	userID := auth.UserID(r.Context())
	entry, created, err := h.prices.Upsert(req.ProductID, req.MarketID, req.Price, req.IsPromotion, req.PromotionEndDate, &userID)
	if err != nil {
		h.logger.Error("upsert price", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record price")
		return
	}

	h.hub.Broadcast(websocket.Event{Type: websocket.EventPriceUpdated, ID: entry.ID, Payload: entry})
	if req.IsPromotion {
		go h.notifier.PromotionAlert(product, market, req.Price)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, entry)
}

// ListByProduct handles GET /api/prices/product/{id}, cheapest first.
func (h *PriceHandler) ListByProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	entries, err := h.prices.ListByProduct(id)
	if err != nil {
		h.logger.Error("list prices by product", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list prices")
		return
	}
	if entries == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// ListByMarket handles GET /api/prices/market/{id}
func (h *PriceHandler) ListByMarket(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	entries, err := h.prices.ListByMarket(id)
	if err != nil {
		h.logger.Error("list prices by market", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list prices")
		return
	}
	if entries == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type compareRequest struct {
	Products []int64 `json:"products"`
}

// Compare handles POST /api/prices/compare. The response groups each
// requested product's prices across markets, cheapest first.
func (h *PriceHandler) Compare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	entries, err := h.prices.ListForProducts(req.Products)
	if err != nil {
		h.logger.Error("list prices for comparison", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compare prices")
		return
	}

	comparison, err := compare.Compare(req.Products, entries)
	if errors.Is(err, compare.ErrNoProducts) {
		writeError(w, http.StatusBadRequest, "products is required")
		return
	}
	if err != nil {
		h.logger.Error("compare prices", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compare prices")
		return
	}

	writeJSON(w, http.StatusOK, comparison)
}
