// internal/app/router.go
package app

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authHandler "saot-service/internal/handlers/auth"
	paymentHandler "saot-service/internal/handlers/payment"
	telegramHandler "saot-service/internal/handlers/telegram"
	wsHandler "saot-service/internal/handlers/websocket"
	"saot-service/internal/domain/account"
	"saot-service/internal/middleware"
)

type Handlers struct {
	AuthHandler     *authHandler.AuthHandler
	PaymentHandler  *paymentHandler.PaymentHandler
	TelegramHandler *telegramHandler.TelegramHandler
	WSHandler       *wsHandler.WebSocketHandler
	AuthMiddleware  *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health & Metrics ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ==================== WebSocket ====================
	ws := r.Group("/ws")
	ws.Use(h.AuthMiddleware.Auth())
	{
		ws.GET("", h.WSHandler.Connect)
	}

	// ==================== Public Auth Routes ====================
	authPublic := api.Group("/auth")
	{
		authPublic.POST("/register", h.AuthHandler.Register)
		authPublic.POST("/login", h.AuthHandler.Login)
		authPublic.POST("/resolve-limit", h.AuthHandler.ResolveLimit)
	}

	// ==================== Authenticated Auth Routes ====================
	authProtected := api.Group("/auth")
	authProtected.Use(h.AuthMiddleware.Auth())
	{
		authProtected.POST("/logout", h.AuthHandler.Logout)
		authProtected.GET("/restore/:deviceId", h.AuthHandler.RestoreSession)
		authProtected.GET("/me", h.AuthHandler.Me)
		authProtected.PUT("/profile", h.AuthHandler.UpdateProfile)
		authProtected.GET("/sessions", h.AuthHandler.ActiveSessions)
		authProtected.POST("/sessions/terminate-others", h.AuthHandler.TerminateOthers)
	}

	// ==================== Courses ====================
	courses := api.Group("/courses")
	courses.Use(h.AuthMiddleware.Auth())
	{
		courses.GET("/:id/access", h.AuthHandler.CourseAccess)
	}

	// ==================== Payments ====================
	payments := api.Group("/payments")
	payments.Use(h.AuthMiddleware.Auth())
	{
		payments.POST("/initiate", h.PaymentHandler.Initiate)
	}

	// ==================== Telegram Webhook ====================
	api.POST("/telegram/webhook", h.TelegramHandler.Webhook)

	// ==================== Admin ====================
	admin := api.Group("/admin")
	admin.Use(h.AuthMiddleware.Auth(), h.AuthMiddleware.RequireRole(account.RoleAdmin))
	{
		admin.GET("/sessions/stats", h.AuthHandler.SessionStats)
	}
}
