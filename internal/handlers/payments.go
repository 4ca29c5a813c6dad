package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tech-e/apiserver/internal/services"
)

type PaymentHandler struct {
	payments  *services.PaymentService
	responder *Responder
}

func NewPaymentHandler(payments *services.PaymentService, responder *Responder) *PaymentHandler {
	return &PaymentHandler{payments: payments, responder: responder}
}

// PaymentRouter registers payment routes. authenticated guards intent
// creation and lookup; admin guards the full listing.
func PaymentRouter(r chi.Router, h *PaymentHandler, authenticated func(http.Handler) http.Handler, admin ...func(http.Handler) http.Handler) {
	r.With(authenticated).Post("/payment-intent", h.CreateIntent)
	r.With(authenticated).Get("/payment-intent/{id}", h.Get)
	r.With(admin...).Get("/payment-intents", h.List)
}

type PaymentIntentRequest struct {
	Amount json.Number `json:"amount"`
}

type PaymentIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req PaymentIntentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.Error(w, r, services.ErrInvalidAmount)
		return
	}
	amount, err := req.Amount.Int64()
	if err != nil {
		h.responder.Error(w, r, services.ErrInvalidAmount)
		return
	}

	payment, err := h.payments.CreateIntent(r.Context(), amount)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PaymentIntentResponse{ClientSecret: payment.ClientSecret})
}

func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	payment, err := h.payments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.payments.List(r.Context())
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
