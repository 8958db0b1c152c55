package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/vedran77/v3kn/internal/service"
)

type contextKey string

const npidKey contextKey = "npid"

// TokenResolver is the slice of AuthService the auth middleware needs,
// kept as an interface so middleware doesn't depend on the concrete
// service wiring beyond the one call it makes.
type TokenResolver interface {
	ResolveToken(token string) (string, error)
}

// Auth implements get_valid_npid as HTTP middleware: it extracts
// `Authorization: Bearer <token>`, resolves it against the token cache,
// and writes the exact ERR:<Kind> wire response on failure instead of
// calling next.
func Auth(auth TokenResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

			npid, err := auth.ResolveToken(token)
			if err != nil {
				w.Header().Set("Content-Type", "text/plain")
				if errors.Is(err, service.ErrMissingToken) {
					w.Write([]byte("ERR:MissingToken"))
				} else {
					w.Write([]byte("ERR:InvalidToken"))
				}
				return
			}

			ctx := context.WithValue(r.Context(), npidKey, npid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NPID extracts the authenticated requester's NPID from context.
// Handlers only call it behind Auth, mirroring the teacher's GetUserID.
func NPID(ctx context.Context) string {
	return ctx.Value(npidKey).(string)
}
