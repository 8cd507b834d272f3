// internal/handlers/auth/auth_handler.go
package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"saot-service/internal/domain/account"
	"saot-service/internal/middleware"
	xerrors "saot-service/internal/pkg/errors"
	"saot-service/internal/pkg/fingerprint"
	"saot-service/internal/pkg/response"
	"saot-service/internal/pkg/session"
	authUsecase "saot-service/internal/service/auth"
)

type AuthHandler struct {
	authService *authUsecase.AuthService
	logger      *zap.Logger
}

func NewAuthHandler(authService *authUsecase.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

func fillDeviceInfo(c *gin.Context, userAgent, platform, ip *string) {
	*ip = c.ClientIP()
	*userAgent = c.GetHeader("User-Agent")
	*platform = c.GetHeader("X-Platform")
	if *platform == "" {
		*platform = "unknown"
	}
}

// ========== Registration ==========

// Register handles user registration (public endpoint)
func (h *AuthHandler) Register(c *gin.Context) {
	var req account.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}
	fillDeviceInfo(c, &req.UserAgent, &req.Platform, &req.IPAddress)

	loginResp, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrDuplicateAccount) {
			response.Error(c, http.StatusConflict, "account already exists", err)
			return
		}
		h.logger.Error("registration failed",
			zap.String("telegram_username", req.TelegramUsername),
			zap.Error(err),
		)
		response.Error(c, http.StatusBadRequest, "registration failed", err)
		return
	}

	response.Success(c, http.StatusCreated, "registration successful", loginResp)
}

// ========== Login ==========

// Login handles user login. A device-cap rejection is not a failure: the
// client gets the competing sessions back and decides whether to evict them
// via the resolve-limit endpoint.
func (h *AuthHandler) Login(c *gin.Context) {
	var req account.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}
	fillDeviceInfo(c, &req.UserAgent, &req.Platform, &req.IPAddress)

	loginResp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		if limitErr, ok := session.AsDeviceLimit(err); ok {
			response.Error(c, http.StatusConflict, "device limit reached", err, gin.H{
				"active_sessions": limitErr.Active,
				"limit":           limitErr.Limit,
			})
			return
		}
		if xerrors.Is(err, xerrors.ErrRateLimited) {
			response.Error(c, http.StatusTooManyRequests, "too many login attempts, please try again in 15 minutes", err)
			return
		}
		h.logger.Warn("login failed",
			zap.String("telegram_username", req.TelegramUsername),
			zap.String("ip", req.IPAddress),
			zap.Error(err),
		)
		response.Error(c, http.StatusUnauthorized, "invalid credentials", err)
		return
	}

	h.logger.Info("user logged in",
		zap.String("account_id", loginResp.Account.ID),
		zap.String("device_id", loginResp.DeviceID),
	)
	response.Success(c, http.StatusOK, "login successful", loginResp)
}

// ResolveLimit re-runs a cap-rejected login after the user confirmed
// evicting the other devices.
func (h *AuthHandler) ResolveLimit(c *gin.Context) {
	var req struct {
		account.LoginRequest
		EvictOthers bool `json:"evict_others"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}
	fillDeviceInfo(c, &req.UserAgent, &req.Platform, &req.IPAddress)

	loginResp, err := h.authService.ResolveLimit(c.Request.Context(), &req.LoginRequest, req.EvictOthers)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrForbidden) {
			response.Error(c, http.StatusForbidden, "eviction not confirmed", err)
			return
		}
		if limitErr, ok := session.AsDeviceLimit(err); ok {
			response.Error(c, http.StatusConflict, "device limit still reached", err, gin.H{
				"active_sessions": limitErr.Active,
				"limit":           limitErr.Limit,
			})
			return
		}
		response.Error(c, http.StatusUnauthorized, "invalid credentials", err)
		return
	}

	response.Success(c, http.StatusOK, "login successful", loginResp)
}

// ========== Logout ==========

func (h *AuthHandler) Logout(c *gin.Context) {
	accountID := middleware.MustGetAccountID(c)
	deviceID := middleware.MustGetDeviceID(c)

	if err := h.authService.Logout(c.Request.Context(), accountID, deviceID); err != nil {
		response.Error(c, http.StatusInternalServerError, "logout failed", err)
		return
	}
	response.Success(c, http.StatusOK, "logged out", nil)
}

// ========== Profile ==========

func (h *AuthHandler) Me(c *gin.Context) {
	accountID := middleware.MustGetAccountID(c)

	acc, err := h.authService.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "account not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to load account", err)
		return
	}
	response.Success(c, http.StatusOK, "ok", acc)
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	accountID := middleware.MustGetAccountID(c)

	var req account.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	acc, err := h.authService.UpdateProfile(c.Request.Context(), accountID, &req)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "account not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to update profile", err)
		return
	}
	response.Success(c, http.StatusOK, "profile updated", acc)
}

// ========== Sessions ==========

func (h *AuthHandler) ActiveSessions(c *gin.Context) {
	accountID := middleware.MustGetAccountID(c)
	deviceID := middleware.MustGetDeviceID(c)

	sessions := h.authService.GetActiveSessions(accountID)
	response.Success(c, http.StatusOK, "ok", gin.H{
		"sessions":          sessions,
		"current_device_id": string(deviceID),
	})
}

func (h *AuthHandler) TerminateOthers(c *gin.Context) {
	accountID := middleware.MustGetAccountID(c)
	deviceID := middleware.MustGetDeviceID(c)

	terminated := h.authService.TerminateOtherDevices(c.Request.Context(), accountID, deviceID)
	response.Success(c, http.StatusOK, "other devices terminated", gin.H{
		"terminated": terminated,
		"sessions":   h.authService.GetActiveSessions(accountID),
	})
}

// RestoreSession lets a device resume from its server-side snapshot after a
// restart. The client persists its token alongside the device id, so the
// bearer token names the caller; the fingerprint in the path is a correlation
// hint only and must match that token's device claim.
func (h *AuthHandler) RestoreSession(c *gin.Context) {
	accountID := middleware.MustGetAccountID(c)
	tokenDevice := middleware.MustGetDeviceID(c)

	deviceID := fingerprint.ID(c.Param("deviceId"))
	if deviceID == "" {
		response.Error(c, http.StatusBadRequest, "missing device id", nil)
		return
	}
	if deviceID != tokenDevice {
		response.Error(c, http.StatusForbidden, "device id does not match the session token", nil)
		return
	}

	state, err := h.authService.RestoreSession(c.Request.Context(), accountID, deviceID)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, sessionMessage(err), err)
		return
	}
	response.Success(c, http.StatusOK, "session restored", state)
}

// ========== Course access ==========

func (h *AuthHandler) CourseAccess(c *gin.Context) {
	accountID := middleware.MustGetAccountID(c)
	courseID := c.Param("id")

	ok, err := h.authService.HasAccessToCourse(c.Request.Context(), accountID, courseID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to check access", err)
		return
	}
	response.Success(c, http.StatusOK, "ok", gin.H{
		"course_id":  courseID,
		"has_access": ok,
	})
}

// ========== Admin ==========

func (h *AuthHandler) SessionStats(c *gin.Context) {
	response.Success(c, http.StatusOK, "ok", h.authService.SessionStats())
}

func sessionMessage(err error) string {
	switch {
	case xerrors.Is(err, session.ErrSessionExpired):
		return "session expired after inactivity, please sign in again"
	default:
		return "no restorable session for this device"
	}
}
