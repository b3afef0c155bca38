package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/dtroode/heirkeeper-server/internal/api/http/response"
	"github.com/dtroode/heirkeeper-server/internal/logger"
	"github.com/dtroode/heirkeeper-server/internal/model"
)

// Authenticate validates bearer tokens and injects the principal into the request context.
type Authenticate struct {
	tokenManager   model.TokenManager
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(tokenManager model.TokenManager, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{tokenManager: tokenManager, contextManager: contextManager, logger: logger}
}

// Require returns middleware that admits only principals with one of roles.
// A missing or invalid token yields 401, a wrong role 403.
func (m *Authenticate) Require(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				response.Error(w, http.StatusUnauthorized, "unauthenticated", "missing authorization token")
				return
			}

			principal, err := m.tokenManager.ParseAccessToken(tokenString)
			if err != nil {
				m.logger.Debug("Authenticate middleware: invalid token", "path", r.URL.Path, "error", err)
				response.Error(w, http.StatusUnauthorized, "unauthenticated", "invalid authorization token")
				return
			}

			if !slices.Contains(roles, principal.Role) {
				m.logger.Warn("Authenticate middleware: role not allowed",
					"path", r.URL.Path,
					"principal_id", principal.ID,
					"role", principal.Role)
				response.Error(w, http.StatusForbidden, "forbidden", "role not allowed")
				return
			}

			ctx := m.contextManager.SetPrincipalToContext(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
