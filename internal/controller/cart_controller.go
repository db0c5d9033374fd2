package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-checkout-service/internal/dto"
	"storefront-checkout-service/internal/logging"
	"storefront-checkout-service/internal/middleware"
	"storefront-checkout-service/internal/service"
)

type CartController struct {
	Service *service.CartService
}

func NewCartController(s *service.CartService) *CartController {
	return &CartController{Service: s}
}

// GET /cart
func (ctl *CartController) GetCart(c *gin.Context) {
	view, err := ctl.Service.GetCart(c.Request.Context(), c.GetString(middleware.CtxUserID))
	if err != nil {
		writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, view)
}

// POST /cart/items
func (ctl *CartController) AddItem(c *gin.Context) {
	var req dto.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	userID := c.GetString(middleware.CtxUserID)
	if err := ctl.Service.AddItem(c.Request.Context(), userID, req.ProductID, req.Quantity); err != nil {
		writeError(c, err, "")
		return
	}
	ctl.respondWithCart(c, userID)
}

// PATCH /cart/items/:productId
func (ctl *CartController) UpdateQuantity(c *gin.Context) {
	var req dto.UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	userID := c.GetString(middleware.CtxUserID)
	if err := ctl.Service.UpdateQuantity(c.Request.Context(), userID, c.Param("productId"), req.Quantity); err != nil {
		writeError(c, err, "")
		return
	}
	ctl.respondWithCart(c, userID)
}

// DELETE /cart/items/:productId
func (ctl *CartController) RemoveItem(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserID)
	if err := ctl.Service.RemoveItem(c.Request.Context(), userID, c.Param("productId")); err != nil {
		writeError(c, err, "")
		return
	}
	ctl.respondWithCart(c, userID)
}

// respondWithCart responde una modificación exitosa. La escritura ya se hizo,
// así que una lectura fallida no se informa como error.
func (ctl *CartController) respondWithCart(c *gin.Context, userID string) {
	view, err := ctl.Service.GetCart(c.Request.Context(), userID)
	if err != nil {
		logging.From(c).Warn("cart updated but not readable", "error", err)
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, view)
}
