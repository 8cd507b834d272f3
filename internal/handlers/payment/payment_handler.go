// internal/handlers/payment/payment_handler.go
package payment

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"saot-service/internal/middleware"
	xerrors "saot-service/internal/pkg/errors"
	"saot-service/internal/pkg/response"
	paymentUsecase "saot-service/internal/service/payment"
)

type PaymentHandler struct {
	paymentService *paymentUsecase.Service
	logger         *zap.Logger
}

func NewPaymentHandler(paymentService *paymentUsecase.Service, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// Initiate starts a purchase and returns the redirect for the client to
// follow. The course fields pass through verbatim.
func (h *PaymentHandler) Initiate(c *gin.Context) {
	var req paymentUsecase.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}
	req.AccountID = middleware.MustGetAccountID(c)

	res, err := h.paymentService.Initiate(c.Request.Context(), c.Query("provider"), &req)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrInvalidInput) {
			response.Error(c, http.StatusBadRequest, "unknown payment provider", err)
			return
		}
		h.logger.Error("payment initiation failed",
			zap.String("course_id", req.CourseID),
			zap.Error(err),
		)
		response.Error(c, http.StatusBadGateway, "failed to initiate payment", err)
		return
	}

	response.Success(c, http.StatusOK, "payment initiated", res)
}
