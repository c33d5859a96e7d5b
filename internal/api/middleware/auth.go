package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Harshitk-cp/factgraph/internal/domain"
)

type contextKey string

const clientContextKey contextKey = "client"

// AdminTokenHeader carries the bootstrap token for client registration.
const AdminTokenHeader = "X-Admin-Token"

func ClientFromContext(ctx context.Context) *domain.Client {
	c, _ := ctx.Value(clientContextKey).(*domain.Client)
	return c
}

// WithClient stores c in ctx. Handlers read it back with ClientFromContext.
func WithClient(ctx context.Context, c *domain.Client) context.Context {
	return context.WithValue(ctx, clientContextKey, c)
}

// APIKeyAuth resolves the bearer key to the client it was issued to.
func APIKeyAuth(clients domain.ClientStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			client, err := clients.GetByAPIKeyHash(r.Context(), domain.HashAPIKey(parts[1]))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			if info, ok := r.Context().Value(requestInfoKey).(*requestInfo); ok {
				info.sourceID = client.SourceID
			}
			next.ServeHTTP(w, r.WithContext(WithClient(r.Context(), client)))
		})
	}
}

// AdminAuth guards bootstrap endpoints with a static token. An empty token
// disables them.
func AdminAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				writeError(w, http.StatusForbidden, "admin endpoints are disabled")
				return
			}
			got := r.Header.Get(AdminTokenHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid admin token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
