package identity

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/descanso-app/descanso/internal/platform/httpx"
	"github.com/descanso-app/descanso/internal/shared"
)

// Middleware resolves bearer tokens and enforces role requirements.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireIdentity authenticates the request and stores the identity in
// context. Requests without a valid token get 401.
func (m Middleware) RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
			return
		}
		id, err := m.Service.Authenticate(r.Context(), token)
		if err != nil {
			if m.Logger != nil && !isCredentialError(err) {
				m.Logger.Error("authenticate", slog.Any("error", err))
			}
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), id)))
	})
}

// RequireManager passes only manager-role identities. The check uses the
// role attribute exclusively, never display-name content.
func (m Middleware) RequireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := shared.IdentityFromContext(r.Context())
		if !ok || !id.IsManager() {
			httpx.RespondError(w, shared.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	// Allow the token in a query parameter for EventSource clients, which
	// cannot set request headers.
	return r.URL.Query().Get("access_token")
}

func isCredentialError(err error) bool {
	return errors.Is(err, shared.ErrInvalidCredentials)
}
