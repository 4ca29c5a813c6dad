package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// CookieName is the cookie carrying the session token.
const CookieName = "token"

// ErrNoToken means the request carried no token at all.
var ErrNoToken = errors.New("missing token")

// SessionTransport moves tokens between the server and the client.
// Logout is stateless: Clear only nulls the client's copy.
type SessionTransport struct {
	secure bool
}

// NewSessionTransport returns a transport; secure marks cookies TLS-only.
func NewSessionTransport(secure bool) *SessionTransport {
	return &SessionTransport{secure: secure}
}

// Attach sets the token cookie on the response.
func (s *SessionTransport) Attach(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear replaces the token cookie with an empty, already expired one.
func (s *SessionTransport) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Extract reads the token from the session cookie, falling back to an
// "Authorization: Bearer" header.
func (s *SessionTransport) Extract(r *http.Request) (string, error) {
	tokens, err := s.Tokens(r)
	if err != nil {
		return "", err
	}
	return tokens[0], nil
}

// Tokens returns every token the request presents, cookie first. A bearer
// header is still returned when a cookie is present, so a stale cookie does
// not mask a valid header.
func (s *SessionTransport) Tokens(r *http.Request) ([]string, error) {
	var tokens []string
	if cookie, err := r.Cookie(CookieName); err == nil {
		if value := strings.TrimSpace(cookie.Value); value != "" {
			tokens = append(tokens, value)
		}
	}
	bearer, err := bearerToken(r)
	if err == nil && (len(tokens) == 0 || tokens[0] != bearer) {
		tokens = append(tokens, bearer)
	}
	if len(tokens) == 0 {
		return nil, err
	}
	return tokens, nil
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", ErrNoToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrInvalidToken
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}
