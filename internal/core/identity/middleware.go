package identity

import (
	"log/slog"
	"net/http"
	"strings"
)

// BearerToken extracts the credentials of r from the Authorization header,
// falling back to the access_token query parameter used by browser
// EventSource and WebSocket clients that cannot set headers.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

// Middleware authenticates each request and stores the identity in its
// context. Requests without valid credentials continue anonymously; handlers
// that need an identity reject them with Unauthenticated.
func Middleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			id, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				slog.Debug("Rejected credentials", "path", r.URL.Path, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
