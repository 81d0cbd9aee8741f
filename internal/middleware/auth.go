package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/contesthub/contesthub-gobackend/internal/apperr"
	"github.com/contesthub/contesthub-gobackend/internal/httputil"
	"github.com/contesthub/contesthub-gobackend/internal/identity"
	"github.com/contesthub/contesthub-gobackend/internal/logging"
	"github.com/contesthub/contesthub-gobackend/internal/models"
)

// RoleLookup resolves the stored role of a user.
type RoleLookup interface {
	Role(ctx context.Context, email string) (models.Role, error)
}

// RequireAuth verifies the bearer token and stores the principal in the
// request context.
func RequireAuth(verifier identity.Verifier) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				httputil.WriteError(w, r, apperr.New(apperr.CodeUnauthorized, "missing or invalid authorization header"))
				return
			}

			principal, err := verifier.Verify(r.Context(), token)
			if err != nil {
				logging.FromContext(r.Context()).WarnContext(r.Context(), "unauthorized access - invalid token", "error", err)
				httputil.WriteError(w, r, apperr.New(apperr.CodeUnauthorized, "invalid or expired token"))
				return
			}

			ctx := identity.WithPrincipal(r.Context(), principal)
			ctx = logging.WithLogger(ctx, logging.FromContext(ctx).With("principal", principal.Email))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole lets the request through when the principal's stored role is
// one of roles. It must run after RequireAuth.
func RequireRole(lookup RoleLookup, roles ...models.Role) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := identity.FromContext(r.Context())
			if !ok {
				httputil.WriteError(w, r, apperr.New(apperr.CodeUnauthorized, "authentication required"))
				return
			}
			role, err := lookup.Role(r.Context(), principal.Email)
			if err != nil {
				httputil.WriteError(w, r, err)
				return
			}
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			httputil.WriteError(w, r, apperr.New(apperr.CodeForbidden, "forbidden access"))
		})
	}
}

// RequireSelf rejects requests whose email query parameter names someone
// other than the principal.
func RequireSelf(param string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := identity.FromContext(r.Context())
			if !ok {
				httputil.WriteError(w, r, apperr.New(apperr.CodeUnauthorized, "authentication required"))
				return
			}
			email := strings.TrimSpace(r.URL.Query().Get(param))
			if email == "" {
				email = mux.Vars(r)[param]
			}
			if email == "" {
				httputil.WriteError(w, r, apperr.New(apperr.CodeValidation, param+" is required"))
				return
			}
			if !strings.EqualFold(email, principal.Email) {
				httputil.WriteError(w, r, apperr.New(apperr.CodeForbidden, "forbidden access"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Chain wraps h with mws, the first one outermost.
func Chain(h http.Handler, mws ...mux.MiddlewareFunc) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
