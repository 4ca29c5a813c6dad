package server

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/tech-e/apiserver/internal/apperr"
)

var errRouteNotFound = apperr.New(apperr.KindNotFound, "Route not found.")

var baseSecurityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "SAMEORIGIN"},
	{"X-DNS-Prefetch-Control", "off"},
	{"Referrer-Policy", "no-referrer"},
	{"Cross-Origin-Opener-Policy", "same-origin"},
	{"Content-Security-Policy", "default-src 'self'; frame-ancestors 'self'; object-src 'none'"},
}

// securityHeaders sets the hardening headers on every response. HSTS is
// only sent in production where TLS terminates in front of the server.
func securityHeaders(production bool) func(http.Handler) http.Handler {
	headers := baseSecurityHeaders
	if production {
		headers = append(headers[:len(headers):len(headers)], [2]string{"Strict-Transport-Security", "max-age=15552000; includeSubDomains"})
	}
	return func(next http.Handler) http.Handler {
		for i := len(headers) - 1; i >= 0; i-- {
			next = middleware.SetHeader(headers[i][0], headers[i][1])(next)
		}
		return next
	}
}
