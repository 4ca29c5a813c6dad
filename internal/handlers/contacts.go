package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tech-e/apiserver/internal/services"
)

type ContactHandler struct {
	contacts  *services.ContactService
	responder *Responder
}

func NewContactHandler(contacts *services.ContactService, responder *Responder) *ContactHandler {
	return &ContactHandler{contacts: contacts, responder: responder}
}

// ContactRouter registers contact routes. Submitting is public; reading is
// wrapped in admin.
func ContactRouter(r chi.Router, h *ContactHandler, admin ...func(http.Handler) http.Handler) {
	r.Post("/", h.Submit)
	r.With(admin...).Get("/", h.List)
	r.With(admin...).Get("/{id}", h.Get)
}

func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req services.ContactInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.Error(w, r, err)
		return
	}
	if _, err := h.contacts.Submit(r.Context(), req); err != nil {
		h.responder.Error(w, r, err)
		return
	}
	writeMessage(w, http.StatusCreated, "Contact message submitted successfully!")
}

func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.contacts.List(r.Context())
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *ContactHandler) Get(w http.ResponseWriter, r *http.Request) {
	contact, err := h.contacts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}
