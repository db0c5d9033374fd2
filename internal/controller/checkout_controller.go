package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-checkout-service/internal/dto"
	"storefront-checkout-service/internal/middleware"
	"storefront-checkout-service/internal/model"
	"storefront-checkout-service/internal/service"
)

const idempotencyHeader = "X-Idempotency-Key"

type CheckoutController struct {
	Checkout *service.CheckoutService
	Capture  *service.CaptureService
}

func NewCheckoutController(checkout *service.CheckoutService, capture *service.CaptureService) *CheckoutController {
	return &CheckoutController{Checkout: checkout, Capture: capture}
}

// POST /checkout/orders
func (ctl *CheckoutController) CreateOrder(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := ctl.Checkout.CheckoutCart(c.Request.Context(), service.CreateOrderInput{
		UserID:         c.GetString(middleware.CtxUserID),
		Address:        req.Address.ToModel(),
		PaymentMethod:  model.PaymentMethod(req.PaymentMethod),
		ExpectedTotal:  req.ExpectedTotal,
		IdempotencyKey: c.GetHeader(idempotencyHeader),
	})
	if err != nil {
		writeError(c, err, orderIDOf(res))
		return
	}
	c.JSON(http.StatusCreated, res)
}

// POST /checkout/orders/:orderId/payment-intent
func (ctl *CheckoutController) RetryPayment(c *gin.Context) {
	orderID := c.Param("orderId")
	res, err := ctl.Checkout.RetryPayment(c.Request.Context(), c.GetString(middleware.CtxUserID), orderID)
	if err != nil {
		writeError(c, err, orderIDOf(res))
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /checkout/orders/:orderId/capture
func (ctl *CheckoutController) CaptureOrder(c *gin.Context) {
	var req dto.CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	orderID := c.Param("orderId")
	res, err := ctl.Capture.Capture(c.Request.Context(), service.CaptureInput{
		OrderID:          orderID,
		PaymentReference: req.PaymentReference,
		PayerReference:   req.PayerReference,
		UserID:           c.GetString(middleware.CtxUserID),
	})
	if err != nil {
		writeError(c, err, orderID)
		return
	}
	c.JSON(http.StatusOK, res)
}

func orderIDOf(res *service.CheckoutResult) string {
	if res == nil || res.Order == nil {
		return ""
	}
	return res.Order.ID
}
