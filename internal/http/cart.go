package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/pricing"
)

const (
	headerCartPersisted = "X-Cart-Persisted"
	warnNotPersisted    = "Your cart could not be saved and may be lost if you leave."
	warnUnavailable     = "Your cart is temporarily unavailable. Please try again."
)

type cartResponse struct {
	cart.State
	Warning string `json:"warning,omitempty"`
}

type cartSummaryResponse struct {
	pricing.Summary
	ItemCount int `json:"itemCount"`
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, cartResponse{State: h.session(r.Context()).Cart.Snapshot()})
}

func (h *Handler) GetCartSummary(w http.ResponseWriter, r *http.Request) {
	st := h.session(r.Context()).Cart.Snapshot()
	count := 0
	for _, it := range st.Items {
		count += it.Quantity
	}
	writeJSON(w, http.StatusOK, cartSummaryResponse{Summary: st.Summary().Rounded(), ItemCount: count})
}

// AddCartItem resolves the product and adds it at its current effective price.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProductID string `json:"productId"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.ProductID == "" {
		writeError(w, http.StatusBadRequest, "missing productId")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storageTimeout)
	defer cancel()

	p, ok := h.catalog.ByID(ctx, body.ProductID)
	if !ok {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if p.Stock <= 0 {
		writeError(w, http.StatusConflict, p.Status)
		return
	}

	st, err := h.session(ctx).Cart.Add(ctx, cart.Item{
		ID:    p.ID,
		Name:  p.Name,
		Price: p.EffectivePrice(),
		Image: p.PrimaryImage(),
	})
	h.writeCart(w, st, err)
}

func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Quantity *int `json:"quantity"`
	}
	if err := decodeJSON(r, &body); err != nil || body.Quantity == nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storageTimeout)
	defer cancel()

	st, err := h.session(ctx).Cart.UpdateQuantity(ctx, chi.URLParam(r, "productId"), *body.Quantity)
	h.writeCart(w, st, err)
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), storageTimeout)
	defer cancel()

	st, err := h.session(ctx).Cart.Remove(ctx, chi.URLParam(r, "productId"))
	h.writeCart(w, st, err)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), storageTimeout)
	defer cancel()

	st, err := h.session(ctx).Cart.Clear(ctx)
	h.writeCart(w, st, err)
}

func (h *Handler) writeCart(w http.ResponseWriter, st cart.State, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, cartResponse{State: st})
	case errors.Is(err, cart.ErrNotPersisted):
		h.logger.Warn("cart not persisted", zap.Error(err))
		w.Header().Set(headerCartPersisted, "false")
		writeJSON(w, http.StatusOK, cartResponse{State: st, Warning: warnNotPersisted})
	case errors.Is(err, cart.ErrInvalidQuantity):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, cart.ErrInvalidItem):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, cart.ErrHeld):
		writeError(w, http.StatusConflict, cart.ErrHeld.Error())
	case errors.Is(err, cart.ErrUnavailable):
		h.logger.Warn("cart unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, warnUnavailable)
	default:
		h.logger.Error("cart operation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update cart")
	}
}
