package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/skarpovich/url-management/internal/database"
	"github.com/skarpovich/url-management/internal/models"
	"github.com/skarpovich/url-management/internal/token"
)

type contextKey int

const principalKey contextKey = 0

// PrincipalFromContext returns the authenticated user attached to the request
// context by the Authenticator middleware, if any.
func PrincipalFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(principalKey).(*models.User)
	return user, ok
}

// authError is the compact error contract used by the authentication gateway.
type authError struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

func renderAuthError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, authError{Error: msg, Status: status})
}

func kindMessage(kind token.Kind) string {
	switch kind {
	case token.KindExpired:
		return "JWT token has expired"
	case token.KindMalformed:
		return "JWT token is malformed"
	case token.KindUnsupportedAlgorithm:
		return "JWT token is unsupported"
	case token.KindBadSignature:
		return "JWT signature validation failed"
	case token.KindEmpty:
		return "JWT claims string is empty"
	default:
		return "Invalid or expired token"
	}
}

// Authenticator resolves a Bearer token into a request principal.
//
// Requests without an Authorization header pass through unauthenticated;
// whether that is enough is decided per route by RequireAuth. A present but
// invalid token short-circuits with the gateway error contract. The token is
// checked once per request: a context that already carries a principal is
// left alone.
func Authenticator(tokens *token.Manager, users UserService) func(http.Handler) http.Handler {
	const op = "api.http.Authenticator"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := PrincipalFromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				next.ServeHTTP(w, r)
				return
			}

			tokenStr := strings.TrimPrefix(header, "Bearer ")

			subject, kind := tokens.ExtractSubject(tokenStr)
			if kind != token.KindValid {
				renderAuthError(w, r, http.StatusUnauthorized, kindMessage(kind))
				return
			}

			user, err := users.UserByUsername(r.Context(), subject)
			if err != nil {
				if errors.Is(err, database.ErrUserNotFound) {
					renderAuthError(w, r, http.StatusUnauthorized, "User not found")
					return
				}

				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				renderAuthError(w, r, http.StatusInternalServerError, "Internal server error")
				return
			}

			if res := tokens.Verify(tokenStr, user.Username); !res.Valid {
				renderAuthError(w, r, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests that reached the handler without a principal.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			renderAuthError(w, r, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
