package service

import (
	"context"
	"time"

	"storefront-checkout-service/internal/model"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderConfirmed     = "order.confirmed"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent se publica después de aplicar la escritura que describe.
type OrderEvent struct {
	Type          string              `json:"type"`
	OrderID       string              `json:"orderId"`
	UserID        string              `json:"userId"`
	OrderStatus   model.OrderStatus   `json:"orderStatus"`
	PaymentStatus model.PaymentStatus `json:"paymentStatus"`
	TotalAmount   int64               `json:"totalAmount"`
	Reason        string              `json:"reason,omitempty"`
	OccurredAt    time.Time           `json:"occurredAt"`
}

func newOrderEvent(typ string, o *model.Order, reason string) OrderEvent {
	return OrderEvent{
		Type:          typ,
		OrderID:       o.ID,
		UserID:        o.UserID,
		OrderStatus:   o.OrderStatus,
		PaymentStatus: o.PaymentStatus,
		TotalAmount:   o.TotalAmount,
		Reason:        reason,
		OccurredAt:    time.Now().UTC(),
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, OrderEvent) error { return nil }
