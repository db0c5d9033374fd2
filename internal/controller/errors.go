package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-checkout-service/internal/dto"
	"storefront-checkout-service/internal/logging"
	"storefront-checkout-service/internal/service"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrEmptyCart):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrOutOfStock),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrDuplicateRequest):
		return http.StatusConflict
	case errors.Is(err, service.ErrAmountMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrPaymentDeclined):
		return http.StatusPaymentRequired
	case errors.Is(err, service.ErrGatewayUnavailable), errors.Is(err, service.ErrCatalogUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError mapea un error del servicio a su status HTTP. orderID se devuelve
// cuando queda una orden que el cliente puede retomar.
func writeError(c *gin.Context, err error, orderID string) {
	status := statusFor(err)
	_ = c.Error(err)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		logging.From(c).Error("request failed", "error", err)
		msg = "internal error"
	}
	c.JSON(status, dto.ErrorResponse{Error: msg, OrderID: orderID})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
}
