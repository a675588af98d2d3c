package middleware

import (
	"net/http"
	"strings"

	"github.com/pkolev/warrantyhub/pkg/auth"
	"github.com/pkolev/warrantyhub/pkg/contextkeys"
	"github.com/pkolev/warrantyhub/pkg/httputil"
)

// Identity resolves the Bearer session token to a user id and stores it in
// the request context. Requests without a valid session get a 401.
type Identity struct {
	sessions auth.SessionManager
	optional bool
}

// NewIdentity creates identity middleware. When optional is true requests
// without a token pass through unauthenticated.
func NewIdentity(sessions auth.SessionManager, optional bool) *Identity {
	return &Identity{sessions: sessions, optional: optional}
}

// Handler wraps an HTTP handler with session resolution
func (m *Identity) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		userID, err := m.sessions.Resolve(r.Context(), parts[1])
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired session")
			return
		}

		ctx := contextkeys.WithUserID(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
