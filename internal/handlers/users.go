package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tech-e/apiserver/internal/services"
)

// UserHandler serves the administrative user endpoints.
type UserHandler struct {
	users     *services.UserService
	responder *Responder
}

func NewUserHandler(users *services.UserService, responder *Responder) *UserHandler {
	return &UserHandler{users: users, responder: responder}
}

// UserRouter registers user routes. Every route is wrapped in admin, which
// must run both gate stages.
func UserRouter(r chi.Router, h *UserHandler, admin ...func(http.Handler) http.Handler) {
	r.With(admin...).Get("/", h.List)
	r.With(admin...).Get("/{id}", h.Get)
	r.With(admin...).Patch("/{id}/block", h.ToggleBlock)
}

type BlockResponse struct {
	Message string `json:"message"`
	Blocked bool   `json:"blocked"`
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) ToggleBlock(w http.ResponseWriter, r *http.Request) {
	blocked, err := h.users.ToggleBlock(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	message := "User unblocked successfully!"
	if blocked {
		message = "User blocked successfully!"
	}
	writeJSON(w, http.StatusOK, BlockResponse{Message: message, Blocked: blocked})
}
