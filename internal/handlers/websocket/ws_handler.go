// internal/handlers/websocket/ws_handler.go
package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"saot-service/internal/middleware"
	ws "saot-service/internal/websocket"
)

var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS already handled at the middleware layer.
		return true
	},
}

type WebSocketHandler struct {
	hub    *ws.Hub
	logger *zap.Logger
}

func NewWebSocketHandler(hub *ws.Hub, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		logger: logger,
	}
}

// Connect upgrades an authenticated request and attaches the device to the
// hub so it can receive force-logout pushes.
func (h *WebSocketHandler) Connect(c *gin.Context) {
	accountID := middleware.MustGetAccountID(c)
	deviceID := middleware.MustGetDeviceID(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, accountID, deviceID)
	client.Register()

	go client.WritePump()
	go client.ReadPump()
}
