package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tech-e/apiserver/internal/auth"
	"github.com/tech-e/apiserver/internal/services"
	"github.com/tech-e/apiserver/types"
)

// AuthHandler serves registration, login, logout and the caller's profile.
type AuthHandler struct {
	users     *services.UserService
	sessions  *auth.SessionTransport
	responder *Responder
}

func NewAuthHandler(users *services.UserService, sessions *auth.SessionTransport, responder *Responder) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions, responder: responder}
}

// AuthRouter registers auth routes. requireAuth guards /me.
func AuthRouter(r chi.Router, h *AuthHandler, requireAuth func(http.Handler) http.Handler) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.With(requireAuth).Get("/me", h.Me)
}

type LoginResponse struct {
	Message string     `json:"message"`
	Token   string     `json:"token"`
	UserID  string     `json:"userId"`
	Role    types.Role `json:"role"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.Error(w, r, err)
		return
	}

	if _, err := h.users.Register(r.Context(), req); err != nil {
		h.responder.Error(w, r, err)
		return
	}
	registrationsTotal.Inc()
	writeMessage(w, http.StatusCreated, "User registered successfully!")
}

// Login sets the session cookie and also returns the token in the body for
// clients that send it as a bearer header.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.responder.Error(w, r, err)
		return
	}

	res, err := h.users.Login(r.Context(), req)
	observeLogin(err)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}

	h.sessions.Attach(w, res.Token, res.ExpiresAt)
	writeJSON(w, http.StatusOK, LoginResponse{
		Message: "Login successful!",
		Token:   res.Token,
		UserID:  res.User.ID,
		Role:    res.User.Role,
	})
}

// Logout only clears the cookie. Issued tokens stay valid until they expire.
func (h *AuthHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.sessions.Clear(w)
	writeMessage(w, http.StatusOK, "Logout successful!")
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.responder.Error(w, r, auth.ErrAuthenticationRequired)
		return
	}
	user, err := h.users.Get(r.Context(), principal.UserID)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
