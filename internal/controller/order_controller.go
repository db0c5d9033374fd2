package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-checkout-service/internal/dto"
	"storefront-checkout-service/internal/middleware"
	"storefront-checkout-service/internal/model"
	"storefront-checkout-service/internal/service"
)

type OrderController struct {
	Ledger *service.OrderLedger
}

func NewOrderController(l *service.OrderLedger) *OrderController {
	return &OrderController{Ledger: l}
}

// GET /orders/mine
func (ctl *OrderController) GetMyOrders(c *gin.Context) {
	orders, err := ctl.Ledger.ListByUser(c.Request.Context(), c.GetString(middleware.CtxUserID))
	if err != nil {
		writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, orders)
}

// GET /orders/:orderId - dueño o admin
func (ctl *OrderController) GetOrder(c *gin.Context) {
	o, err := ctl.Ledger.Get(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		writeError(c, err, "")
		return
	}

	if !middleware.IsAdmin(c) && o.UserID != c.GetString(middleware.CtxUserID) {
		c.JSON(http.StatusForbidden, dto.ErrorResponse{Error: "you cannot view another user's order"})
		return
	}
	c.JSON(http.StatusOK, o)
}

// GET /admin/orders?status= - solo admin
func (ctl *OrderController) GetAllOrders(c *gin.Context) {
	orders, err := ctl.Ledger.ListAll(c.Request.Context(), model.OrderStatus(c.Query("status")))
	if err != nil {
		writeError(c, err, "")
		return
	}

	out := make([]dto.OrderSummary, 0, len(orders))
	for _, o := range orders {
		out = append(out, dto.NewOrderSummary(o))
	}
	c.JSON(http.StatusOK, out)
}

// PATCH /admin/orders/:orderId/status - solo admin
func (ctl *OrderController) UpdateStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	o, err := ctl.Ledger.UpdateStatus(
		c.Request.Context(),
		c.Param("orderId"),
		model.OrderStatus(req.Status),
		req.Reason,
		c.GetString(middleware.CtxUserID),
	)
	if err != nil {
		writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, o)
}
