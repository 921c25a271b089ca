package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/buscoapp/busco/internal/auth"
	"github.com/buscoapp/busco/internal/compare"
	"github.com/buscoapp/busco/internal/model"
	"github.com/buscoapp/busco/internal/store"
)

type ShoppingListHandler struct {
	lists    *store.ShoppingListStore
	products *store.ProductStore
	prices   *store.PriceStore
	logger   *slog.Logger
}

func NewShoppingListHandler(lists *store.ShoppingListStore, products *store.ProductStore, prices *store.PriceStore, logger *slog.Logger) *ShoppingListHandler {
	return &ShoppingListHandler{
		lists:    lists,
		products: products,
		prices:   prices,
		logger:   logger,
	}
}

type listRequest struct {
	Name  string           `json:"name"`
	Items []model.ListItem `json:"items"`
}

// Create handles POST /api/shopping-lists
func (h *ShoppingListHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req listRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !h.validateItems(w, req.Items) {
		return
	}

	list, err := h.lists.Create(auth.UserID(r.Context()), req.Name, req.Items)
	if err != nil {
		h.logger.Error("create shopping list", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create list")
		return
	}
	writeJSON(w, http.StatusCreated, list)
}

// List handles GET /api/shopping-lists
func (h *ShoppingListHandler) List(w http.ResponseWriter, r *http.Request) {
	lists, err := h.lists.ListByUser(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list shopping lists", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list shopping lists")
		return
	}
	if lists == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, lists)
}

// Get handles GET /api/shopping-lists/{id}
func (h *ShoppingListHandler) Get(w http.ResponseWriter, r *http.Request) {
	list, ok := h.loadList(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Update handles PUT /api/shopping-lists/{id}. Renames always work; item
// replacement is rejected once the list is finalized.
func (h *ShoppingListHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req listRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Items != nil && !h.validateItems(w, req.Items) {
		return
	}

	list, err := h.lists.Update(id, auth.UserID(r.Context()), req.Name, req.Items)
	if errors.Is(err, store.ErrListFinalized) {
		writeError(w, http.StatusConflict, "list is finalized")
		return
	}
	if err != nil {
		h.logger.Error("update shopping list", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update list")
		return
	}
	if list == nil {
		writeError(w, http.StatusNotFound, "list not found")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Delete handles DELETE /api/shopping-lists/{id}
func (h *ShoppingListHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.lists.Delete(id, auth.UserID(r.Context())); err != nil {
		h.logger.Error("delete shopping list", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete list")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// AddItem handles POST /api/shopping-lists/{id}/items. Adding a product
// already on the list increases its quantity.
func (h *ShoppingListHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !h.validateItems(w, []model.ListItem{{ProductID: req.ProductID}}) {
		return
	}

	list, err := h.lists.AddItem(id, auth.UserID(r.Context()), req.ProductID, req.Quantity)
	if errors.Is(err, store.ErrListFinalized) {
		writeError(w, http.StatusConflict, "list is finalized")
		return
	}
	if err != nil {
		h.logger.Error("add list item", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add item")
		return
	}
	if list == nil {
		writeError(w, http.StatusNotFound, "list not found")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type updateItemRequest struct {
	Quantity int64 `json:"quantity"`
}

// UpdateItem handles PUT /api/shopping-lists/{id}/items/{productId}
func (h *ShoppingListHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	productID, err := parsePathInt(r, "productId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	list, err := h.lists.UpdateItemQuantity(id, auth.UserID(r.Context()), productID, req.Quantity)
	if errors.Is(err, store.ErrListFinalized) {
		writeError(w, http.StatusConflict, "list is finalized")
		return
	}
	if err != nil {
		h.logger.Error("update list item", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update item")
		return
	}
	if list == nil {
		writeError(w, http.StatusNotFound, "list not found")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// RemoveItem handles DELETE /api/shopping-lists/{id}/items/{productId}
func (h *ShoppingListHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	productID, err := parsePathInt(r, "productId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	list, err := h.lists.RemoveItem(id, auth.UserID(r.Context()), productID)
	if errors.Is(err, store.ErrListFinalized) {
		writeError(w, http.StatusConflict, "list is finalized")
		return
	}
	if err != nil {
		h.logger.Error("remove list item", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to remove item")
		return
	}
	if list == nil {
		writeError(w, http.StatusNotFound, "list not found")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type finalizeRequest struct {
	FinalizeOption string `json:"finalizeOption"`
}

// Finalize handles PUT /api/shopping-lists/{id}/finalize. It freezes the
// list and stores a comparison snapshot built from current prices: "single"
// ranks whole markets by basket total, "best" additionally picks the
// cheapest market per product.
func (h *ShoppingListHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !model.ValidFinalizeOption(req.FinalizeOption) {
		writeError(w, http.StatusConflict, `finalizeOption must be "single" or "best"`)
		return
	}

	userID := auth.UserID(r.Context())
	list, err := h.lists.GetByID(id, userID)
	if err != nil {
		h.logger.Error("get shopping list", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to finalize list")
		return
	}
	if list == nil {
		writeError(w, http.StatusNotFound, "list not found")
		return
	}
	if list.Finalized {
		writeError(w, http.StatusConflict, "list is already finalized")
		return
	}
	if len(list.Items) == 0 {
		writeError(w, http.StatusBadRequest, "cannot finalize an empty list")
		return
	}

	productIDs := make([]int64, len(list.Items))
	for i, item := range list.Items {
		productIDs[i] = item.ProductID
	}
	entries, err := h.prices.ListForProducts(productIDs)
	if err != nil {
		h.logger.Error("list prices for finalize", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to finalize list")
		return
	}
	comparison, err := compare.Compare(productIDs, entries)
	if err != nil {
		h.logger.Error("compare prices for finalize", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to finalize list")
		return
	}
	snapshot := compare.Snapshot(req.FinalizeOption, list.Items, comparison)

	final, err := h.lists.Finalize(id, userID, req.FinalizeOption, snapshot)
	if errors.Is(err, store.ErrListFinalized) {
		writeError(w, http.StatusConflict, "list is already finalized")
		return
	}
	if err != nil {
		h.logger.Error("finalize shopping list", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to finalize list")
		return
	}
	writeJSON(w, http.StatusOK, final)
}

type checkedItemsRequest struct {
	CheckedItems map[string]bool `json:"checkedItems"`
}

// SetCheckedItems handles PUT /api/shopping-lists/{id}/checked-items. The
// mapping replaces the stored checklist wholesale.
func (h *ShoppingListHandler) SetCheckedItems(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req checkedItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	list, err := h.lists.SetCheckedItems(id, auth.UserID(r.Context()), req.CheckedItems)
	if errors.Is(err, store.ErrListNotFinalized) {
		writeError(w, http.StatusConflict, "list is not finalized")
		return
	}
	if err != nil {
		h.logger.Error("set checked items", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update checklist")
		return
	}
	if list == nil {
		writeError(w, http.StatusNotFound, "list not found")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// loadList resolves {id} to the caller's list, writing 404 on miss.
func (h *ShoppingListHandler) loadList(w http.ResponseWriter, r *http.Request) (*model.ShoppingList, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}

	list, err := h.lists.GetByID(id, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get shopping list", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get list")
		return nil, false
	}
	if list == nil {
		writeError(w, http.StatusNotFound, "list not found")
		return nil, false
	}
	return list, true
}

// validateItems rejects references to products that do not exist.
func (h *ShoppingListHandler) validateItems(w http.ResponseWriter, items []model.ListItem) bool {
	for _, item := range items {
		exists, err := h.products.Exists(item.ProductID)
		if err != nil {
			h.logger.Error("validate list item", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to validate items")
			return false
		}
		if !exists {
			writeError(w, http.StatusBadRequest, "unknown product in items")
			return false
		}
	}
	return true
}
