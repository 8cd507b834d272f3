// internal/handlers/telegram/telegram_handler.go
package telegram

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	telegramUsecase "saot-service/internal/service/telegram"
)

type TelegramHandler struct {
	botService *telegramUsecase.Service
	logger     *zap.Logger
}

func NewTelegramHandler(botService *telegramUsecase.Service, logger *zap.Logger) *TelegramHandler {
	return &TelegramHandler{
		botService: botService,
		logger:     logger,
	}
}

// Webhook receives Bot API updates. Always answers 200: Telegram retries
// any other status forever, and failures are already logged downstream.
func (h *TelegramHandler) Webhook(c *gin.Context) {
	var upd telegramUsecase.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		h.logger.Warn("malformed telegram update", zap.Error(err))
		c.Status(http.StatusOK)
		return
	}

	h.botService.HandleUpdate(c.Request.Context(), &upd)
	c.Status(http.StatusOK)
}
