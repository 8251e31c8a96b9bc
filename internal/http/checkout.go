package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/checkout"
)

func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session(r.Context()).Checkout.Status())
}

func (h *Handler) SelectPaymentMethod(w http.ResponseWriter, r *http.Request) {
	var body checkout.PaymentSelection
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	orch := h.session(r.Context()).Checkout
	if err := orch.SelectPayment(r.Context(), body); err != nil {
		writeCheckoutError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orch.Status())
}

// Pay opens a gateway order and returns the widget configuration.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.gatewayTimeout)
	defer cancel()

	client := checkout.ClientFromUserAgent(r.UserAgent())
	cfg, err := h.session(ctx).Checkout.Begin(ctx, client)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) PaymentSucceeded(w http.ResponseWriter, r *http.Request) {
	var body checkout.SuccessCallback
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storageTimeout)
	defer cancel()

	nav, err := h.session(ctx).Checkout.Succeed(ctx, body)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nav)
}

func (h *Handler) PaymentFailed(w http.ResponseWriter, r *http.Request) {
	var body checkout.FailureCallback
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	nav, err := h.session(r.Context()).Checkout.Fail(r.Context(), body)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nav)
}

// PaymentErrored handles a widget error. The shopper stays on checkout.
func (h *Handler) PaymentErrored(w http.ResponseWriter, r *http.Request) {
	var body checkout.ErrorCallback
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	notice, err := h.session(r.Context()).Checkout.Error(r.Context(), body)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notice)
}

// DismissPayment returns a session to idle. A reloaded page that finds
// processing set in GET /api/checkout calls this to recover.
func (h *Handler) DismissPayment(w http.ResponseWriter, r *http.Request) {
	notice, err := h.session(r.Context()).Checkout.Dismiss(r.Context())
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notice)
}

func (h *Handler) GetConfirmation(w http.ResponseWriter, r *http.Request) {
	conf, ok := h.session(r.Context()).Checkout.Confirmation()
	if !ok {
		writeError(w, http.StatusNotFound, "no payment to show")
		return
	}
	writeJSON(w, http.StatusOK, conf)
}

func writeCheckoutError(w http.ResponseWriter, err error) {
	if v, ok := checkout.IsValidation(err); ok {
		status := http.StatusUnprocessableEntity
		if v.Code == checkout.CodeFailedPrecondition {
			status = http.StatusConflict
		}
		writeError(w, status, v.Message)
		return
	}

	switch {
	case errors.Is(err, checkout.ErrAlreadyProcessing),
		errors.Is(err, checkout.ErrNotProcessing),
		errors.Is(err, checkout.ErrOrderMismatch),
		errors.Is(err, cart.ErrHeld):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, cart.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, warnUnavailable)
	case errors.Is(err, checkout.ErrGateway), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusBadGateway, checkout.MsgGatewayError)
	default:
		writeError(w, http.StatusInternalServerError, checkout.MsgGatewayError)
	}
}
