package checkout

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/pasar-checkout/internal/cart"
	"github.com/noah-isme/pasar-checkout/internal/common"
	"github.com/noah-isme/pasar-checkout/internal/session"
	"github.com/noah-isme/pasar-checkout/internal/shipping"
)

// Handler wires the checkout service to HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate

	// SubmitMiddleware wraps the submit endpoint only; the caller supplies
	// idempotency and rate-limit middleware here.
	SubmitMiddleware []func(http.Handler) http.Handler
}

func (h *Handler) validate(v any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(v)
}

// Routes registers the checkout endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/sessions", h.Start)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/lines/{lineId}", h.SetQuantity)
		r.Delete("/lines/{lineId}", h.RemoveLine)
		r.Post("/shipping", h.SelectShipping)
		r.Get("/shipping-options", h.ShippingOptions)
		r.Post("/apply-voucher", h.ApplyVoucher)
		r.Delete("/voucher", h.RemoveVoucher)
		r.Post("/quote", h.Quote)
		r.With(h.SubmitMiddleware...).Post("/submit", h.Submit)
	})
}

// Start opens a checkout session from a cart.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CartID      string `json:"cartId" validate:"required"`
		Destination string `json:"destination" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "cartId and destination are required", nil)
		return
	}
	sess, err := h.Svc.StartSession(r.Context(), strings.TrimSpace(payload.CartID), strings.TrimSpace(payload.Destination))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, sess)
}

// Get returns the session as it stands.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Svc.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, sess)
}

// SetQuantity changes a line's quantity.
func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Qty int `json:"qty" validate:"required,min=1"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "qty must be at least 1", nil)
		return
	}
	sess, err := h.Svc.SetQuantity(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "lineId"), payload.Qty)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, sess)
}

// RemoveLine deletes a line from the session snapshot.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Svc.RemoveLine(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "lineId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, sess)
}

// SelectShipping records a courier choice for one store group.
func (h *Handler) SelectShipping(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		StoreID  string `json:"storeId" validate:"required"`
		OptionID string `json:"optionId" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "storeId and optionId are required", nil)
		return
	}
	sess, err := h.Svc.SelectShipping(r.Context(), chi.URLParam(r, "id"), payload.StoreID, payload.OptionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, sess)
}

// ShippingOptions lists the rates offered to each store group.
func (h *Handler) ShippingOptions(w http.ResponseWriter, r *http.Request) {
	options, err := h.Svc.ShippingOptions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, options)
}

// ApplyVoucher fills the session's voucher slot.
func (h *Handler) ApplyVoucher(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Code string `json:"code" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	sess, err := h.Svc.ApplyVoucher(r.Context(), chi.URLParam(r, "id"), payload.Code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, sess)
}

// RemoveVoucher clears the voucher slot.
func (h *Handler) RemoveVoucher(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Svc.RemoveVoucher(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, sess)
}

// Quote prices the session and returns it with the quote attached.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Svc.Quote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, sess)
}

// Submit hands the session over to the order collaborator.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	sess, orderID, err := h.Svc.Submit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, map[string]any{
		"orderId": orderID,
		"session": sess,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "session not found", nil)
	case errors.Is(err, ErrCartNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	case errors.Is(err, cart.ErrLineNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "line not found", nil)
	case errors.Is(err, session.ErrAlreadySubmitted):
		common.JSONError(w, http.StatusConflict, "ALREADY_SUBMITTED", "session already submitted", nil)
	case errors.Is(err, session.ErrNotReady):
		common.JSONError(w, http.StatusConflict, "NOT_READY", "quote has blocking errors", nil)
	case errors.Is(err, cart.ErrQuantityInvalid), errors.Is(err, cart.ErrStockExceeded), errors.Is(err, cart.ErrEmptySnapshot):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_EDIT", err.Error(), nil)
	case errors.Is(err, shipping.ErrUnknownShippingOption):
		common.JSONError(w, http.StatusUnprocessableEntity, "UNKNOWN_SHIPPING_OPTION", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unexpected error", nil)
	}
}
