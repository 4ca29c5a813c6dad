package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/tech-e/apiserver/internal/apperr"
	"github.com/tech-e/apiserver/types"
)

var (
	ErrAuthenticationRequired = apperr.New(apperr.KindUnauthenticated, "Authentication required.")
	ErrTokenRejected          = apperr.New(apperr.KindUnauthenticated, "Invalid or expired token.")
	ErrInsufficientRole       = apperr.New(apperr.KindForbidden, "Access denied.")
)

type contextKey string

const principalContextKey contextKey = "principal"

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext returns the principal set by the authenticate stage.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(Principal)
	return p, ok
}

// Decision is the outcome of a gate stage: either proceed with a principal
// or reject with a classified error.
type Decision struct {
	principal Principal
	err       error
}

// Proceed allows the request to continue as p.
func Proceed(p Principal) Decision {
	return Decision{principal: p}
}

// Reject stops the request with err.
func Reject(err error) Decision {
	return Decision{err: err}
}

// Allowed reports whether the guarded operation may run.
func (d Decision) Allowed() bool {
	return d.err == nil
}

// Principal returns the resolved identity of an allowed decision.
func (d Decision) Principal() Principal {
	return d.principal
}

// Err returns the rejection reason, nil when allowed.
func (d Decision) Err() error {
	return d.err
}

// TokenVerifier validates a token and returns the principal it asserts.
type TokenVerifier interface {
	Verify(token string) (Principal, error)
}

// RejectFunc writes a rejection to the client.
type RejectFunc func(w http.ResponseWriter, r *http.Request, err error)

// Gate guards protected operations. It never mutates state.
type Gate struct {
	transport *SessionTransport
	verifier  TokenVerifier
	onReject  RejectFunc
	onVerify  func(success bool)
}

// NewGate constructs a gate. onReject renders rejections; onVerify, when not
// nil, observes every token verification outcome.
func NewGate(transport *SessionTransport, verifier TokenVerifier, onReject RejectFunc, onVerify func(success bool)) *Gate {
	return &Gate{
		transport: transport,
		verifier:  verifier,
		onReject:  onReject,
		onVerify:  onVerify,
	}
}

// Authenticate is stage A: extract the presented tokens and accept the
// first one that verifies.
func (g *Gate) Authenticate(r *http.Request) Decision {
	tokens, err := g.transport.Tokens(r)
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			return Reject(ErrAuthenticationRequired)
		}
		g.observe(false)
		return Reject(ErrTokenRejected)
	}
	for _, token := range tokens {
		principal, err := g.verifier.Verify(token)
		if err == nil {
			g.observe(true)
			return Proceed(principal)
		}
	}
	g.observe(false)
	return Reject(ErrTokenRejected)
}

// AuthorizeRole is stage B: check that p meets the required role.
func AuthorizeRole(p Principal, required types.Role) Decision {
	if !p.Role.Satisfies(required) {
		return Reject(ErrInsufficientRole)
	}
	return Proceed(p)
}

// RequireAuth runs stage A and stores the principal in the request context.
func (g *Gate) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := g.Authenticate(r)
		if !decision.Allowed() {
			g.onReject(w, r, decision.Err())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), decision.Principal())))
	})
}

// RequireRole runs stage B. It must be mounted after RequireAuth.
func (g *Gate) RequireRole(required types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				g.onReject(w, r, ErrAuthenticationRequired)
				return
			}
			decision := AuthorizeRole(principal, required)
			if !decision.Allowed() {
				g.onReject(w, r, decision.Err())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g *Gate) observe(success bool) {
	if g.onVerify != nil {
		g.onVerify(success)
	}
}
