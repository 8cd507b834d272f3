// internal/middleware/auth_middleware.go
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	xerrors "saot-service/internal/pkg/errors"
	"saot-service/internal/pkg/response"
	"saot-service/internal/pkg/session"
	"saot-service/internal/service/auth"
)

type AuthMiddleware struct {
	authService *auth.AuthService
}

func NewAuthMiddleware(authService *auth.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
	}
}

// Auth validates the bearer token, then the device session behind it. A
// valid token with a dead session is still a 401: tokens only identify,
// sessions authorize.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization token", nil)
			return
		}

		claims, err := m.authService.VerifyToken(token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
			return
		}

		if err := m.authService.ValidateSession(claims.AccountID, claims.DeviceID); err != nil {
			response.Error(c, http.StatusUnauthorized, sessionErrorMessage(err), err)
			return
		}

		c.Set("account_id", claims.AccountID)
		c.Set("device_id", string(claims.DeviceID))
		c.Set("role", claims.Role)
		c.Set("jti", claims.ID)

		c.Next()
	}
}

// RequireRole requires the account to hold one of the given roles.
// MUST be used after Auth().
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetRole(c)
		if role == "" {
			response.Error(c, http.StatusForbidden, "authentication required", nil)
			return
		}
		for _, required := range roles {
			if role == required {
				c.Next()
				return
			}
		}
		response.Error(c, http.StatusForbidden, "insufficient permissions", nil)
	}
}

func sessionErrorMessage(err error) string {
	switch {
	case xerrors.Is(err, session.ErrSessionExpired):
		return "session expired after inactivity, please sign in again"
	default:
		return "session is no longer active, please sign in again"
	}
}

// extractToken extracts Bearer token from Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	// Fallback for websocket upgrades, which cannot set headers.
	if token := c.Query("token"); token != "" {
		return token
	}

	return ""
}
