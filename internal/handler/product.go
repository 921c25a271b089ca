package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/buscoapp/busco/internal/auth"
	"github.com/buscoapp/busco/internal/imagestore"
	"github.com/buscoapp/busco/internal/imaging"
	"github.com/buscoapp/busco/internal/model"
	"github.com/buscoapp/busco/internal/store"
	"github.com/buscoapp/busco/internal/websocket"
)

// maxImageUpload caps product photo uploads at 5 MB.
const maxImageUpload = 5 << 20

type ProductHandler struct {
	products *store.ProductStore
	images   *imagestore.Store
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewProductHandler(products *store.ProductStore, images *imagestore.Store, hub *websocket.Hub, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{products: products, images: images, hub: hub, logger: logger}
}

// List handles GET /api/products with optional ?category= and ?search=.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	search := r.URL.Query().Get("search")

	products, err := h.products.List(category, search)
	if err != nil {
		h.logger.Error("list products", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	if products == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// Get handles GET /api/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	product, err := h.products.GetByID(id)
	if err != nil {
		h.logger.Error("get product", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get product")
		return
	}
	if product == nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// Create handles POST /api/products (admin). Accepts JSON or multipart form
// data with an optional image file.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	product, ok := h.decodeProduct(w, r, nil)
	if !ok {
		return
	}
	if product.Name == "" || product.Category == "" {
		writeError(w, http.StatusBadRequest, "name and category are required")
		return
	}
	if product.Unit == "" {
		product.Unit = model.UnitPiece
	}
	if !model.ValidUnit(product.Unit) {
		writeError(w, http.StatusBadRequest, "invalid unit")
		return
	}

	userID := auth.UserID(r.Context())
	product.CreatedBy = &userID

	created, err := h.products.Create(product)
	if err != nil {
		h.logger.Error("create product", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create product")
		return
	}

	h.hub.Broadcast(websocket.Event{Type: websocket.EventProductCreated, ID: created.ID, Payload: created})
	writeJSON(w, http.StatusCreated, created)
}

// Update handles PUT /api/products/{id} (admin). A new image replaces and
// deletes the old one.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.products.GetByID(id)
	if err != nil {
		h.logger.Error("get product", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update product")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}

	oldImage := existing.Image
	product, ok := h.decodeProduct(w, r, existing)
	if !ok {
		return
	}
	if !model.ValidUnit(product.Unit) {
		writeError(w, http.StatusBadRequest, "invalid unit")
		return
	}

	updated, err := h.products.Update(id, product)
	if err != nil {
		h.logger.Error("update product", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update product")
		return
	}

	if oldImage != "" && updated.Image != oldImage {
		if err := h.images.DeleteByURL(r.Context(), oldImage); err != nil {
			h.logger.Warn("delete replaced image", "error", err)
		}
	}

	h.hub.Broadcast(websocket.Event{Type: websocket.EventProductUpdated, ID: id, Payload: updated})
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/products/{id} (admin).
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	product, err := h.products.GetByID(id)
	if err != nil {
		h.logger.Error("get product", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete product")
		return
	}
	if product == nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}

	if err := h.products.Delete(id); err != nil {
		h.logger.Error("delete product", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete product")
		return
	}
	if product.Image != "" {
		if err := h.images.DeleteByURL(r.Context(), product.Image); err != nil {
			h.logger.Warn("delete product image", "error", err)
		}
	}

	h.hub.Broadcast(websocket.Event{Type: websocket.EventProductDeleted, ID: id})
	w.WriteHeader(http.StatusNoContent)
}

// decodeProduct reads a product from a JSON body or a multipart form. When
// base is non-nil its fields are the defaults, so multipart updates may send
// only the image. Reports errors itself and returns ok=false.
func (h *ProductHandler) decodeProduct(w http.ResponseWriter, r *http.Request, base *model.Product) (*model.Product, bool) {
	var product model.Product
	if base != nil {
		product = *base
	}

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return nil, false
		}
		return &product, true
	}

	if err := r.ParseMultipartForm(maxImageUpload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data or file too large")
		return nil, false
	}

	setIf := func(field string, dst *string) {
		if v, ok := r.MultipartForm.Value[field]; ok && len(v) > 0 {
			*dst = strings.TrimSpace(v[0])
		}
	}
	setIf("name", &product.Name)
	setIf("brand", &product.Brand)
	setIf("category", &product.Category)
	setIf("sub_category", &product.SubCategory)
	setIf("unit", &product.Unit)
	setIf("barcode", &product.Barcode)
	if v := r.FormValue("unit_size"); v != "" {
		size, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid unit_size")
			return nil, false
		}
		product.UnitSize = size
	}

	file, header, err := r.FormFile("image")
	if err == http.ErrMissingFile {
		return &product, true
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid image upload")
		return nil, false
	}
	defer file.Close()

	if header.Size > maxImageUpload {
		writeError(w, http.StatusBadRequest, "image exceeds 5 MB limit")
		return nil, false
	}
	if !h.images.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "image storage not configured")
		return nil, false
	}

	processed, err := imaging.Process(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	photoURL, _, err := h.images.SaveProductPhoto(r.Context(), processed)
	if err != nil {
		h.logger.Error("save product photo", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store image")
		return nil, false
	}
	product.Image = photoURL

	return &product, true
}
