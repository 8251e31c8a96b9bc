package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/product"
)

const maxListLimit = 50

func (h *Handler) Trending(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, product.DefaultTrendingLimit)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.catalog.Trending(r.Context(), limit))
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok := h.catalog.ByID(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) ProductsByCategory(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, product.DefaultCategoryLimit)
	if !ok {
		return
	}
	categoryID := chi.URLParam(r, "categoryId")
	writeJSON(w, http.StatusOK, h.catalog.ByCategory(r.Context(), categoryID, limit))
}

func parseLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxListLimit {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 50")
		return 0, false
	}
	return n, true
}
