package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ticketdesk/auth-service/internal/http/response"
	"github.com/ticketdesk/auth-service/internal/observability"
	"github.com/ticketdesk/auth-service/internal/security"
)

type contextKey string

const ClaimsContextKey contextKey = "claims"

// AccessVerifier validates a bearer access token.
type AccessVerifier interface {
	VerifyAccess(raw string) (*security.Claims, error)
}

// AuthMiddleware requires a valid Bearer access token and stores its claims
// in the request context.
func AuthMiddleware(verifier AccessVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				observability.RecordAccessTokenValidation(r.Context(), "missing", "none")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing access token", nil)
				return
			}
			raw := strings.TrimSpace(auth[7:])
			claims, err := verifier.VerifyAccess(raw)
			if err != nil {
				observability.RecordAccessTokenValidation(r.Context(), "invalid", "bearer")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid access token", nil)
				return
			}
			observability.RecordAccessTokenValidation(r.Context(), "valid", "bearer")
			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	c, ok := ctx.Value(ClaimsContextKey).(*security.Claims)
	return c, ok
}
