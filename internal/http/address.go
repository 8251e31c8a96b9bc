package httpapi

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/address"
)

func (h *Handler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session(r.Context()).Addresses.List())
}

// CreateAddress saves an address. The first address of a session is also
// selected for delivery.
func (h *Handler) CreateAddress(w http.ResponseWriter, r *http.Request) {
	var body address.Address
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storageTimeout)
	defer cancel()

	s := h.session(ctx)
	saved, err := s.Addresses.Add(body)
	if err != nil {
		var vErr *address.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusUnprocessableEntity, vErr.Message)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to save address")
		return
	}

	if saved.IsDefault {
		if err := s.Selection.Select(ctx, saved); err != nil {
			h.logger.Warn("auto-select first address", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *Handler) GetSelectedAddress(w http.ResponseWriter, r *http.Request) {
	a, ok := h.session(r.Context()).Selection.Get()
	if !ok {
		writeError(w, http.StatusNotFound, "no address selected")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) SelectAddress(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(r, &body); err != nil || body.ID == "" {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storageTimeout)
	defer cancel()

	s := h.session(ctx)
	a, ok := s.Addresses.Get(body.ID)
	if !ok {
		writeError(w, http.StatusNotFound, address.ErrNotFound.Error())
		return
	}
	if err := s.Selection.Select(ctx, a); err != nil {
		h.logger.Warn("persist address selection", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, a)
}
