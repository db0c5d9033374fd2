// dto.go
package dto

import (
	"strings"

	"storefront-checkout-service/internal/model"
)

type AddItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

// UpdateQuantityRequest reemplaza la cantidad; cero se rechaza, para quitar se
// usa DELETE.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

// AddressDTO para la dirección de envío, se congela en la orden
type AddressDTO struct {
	AddressLine string `json:"addressLine" binding:"required"`
	City        string `json:"city" binding:"required"`
	PostalCode  string `json:"postalCode" binding:"required"`
	Phone       string `json:"phone" binding:"required"`
	Notes       string `json:"notes"`
}

func (a AddressDTO) ToModel() model.Address {
	return model.Address{
		AddressLine: strings.TrimSpace(a.AddressLine),
		City:        strings.TrimSpace(a.City),
		PostalCode:  strings.TrimSpace(a.PostalCode),
		Phone:       strings.TrimSpace(a.Phone),
		Notes:       strings.TrimSpace(a.Notes),
	}
}

// CreateOrderRequest usado por el checkout del carrito. ExpectedTotal, si
// viene, tiene que coincidir con el total calculado.
type CreateOrderRequest struct {
	Address       AddressDTO `json:"address" binding:"required"`
	PaymentMethod string     `json:"paymentMethod" binding:"required,oneof=paypal"`
	ExpectedTotal *int64     `json:"expectedTotal" binding:"omitempty,gte=0"`
}

type CaptureRequest struct {
	PaymentReference string `json:"paymentReference" binding:"required"`
	PayerReference   string `json:"payerReference" binding:"required"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	OrderID string `json:"orderId,omitempty"`
}

// OrderSummary es la fila del listado admin.
type OrderSummary struct {
	OrderID       string              `json:"orderId"`
	UserID        string              `json:"userId"`
	OrderStatus   model.OrderStatus   `json:"orderStatus"`
	PaymentStatus model.PaymentStatus `json:"paymentStatus"`
	TotalAmount   int64               `json:"totalAmount"`
	Address       model.Address       `json:"address"`
	NextStatuses  []model.OrderStatus `json:"nextStatuses"`
}

func NewOrderSummary(o *model.Order) OrderSummary {
	next := model.NextStatuses(o.OrderStatus)
	if next == nil {
		next = []model.OrderStatus{}
	}
	return OrderSummary{
		OrderID:       o.ID,
		UserID:        o.UserID,
		OrderStatus:   o.OrderStatus,
		PaymentStatus: o.PaymentStatus,
		TotalAmount:   o.TotalAmount,
		Address:       o.Address,
		NextStatuses:  next,
	}
}
