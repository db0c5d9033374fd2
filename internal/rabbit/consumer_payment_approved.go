package rabbit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"storefront-checkout-service/internal/logging"
	"storefront-checkout-service/internal/service"
)

// Capturer lo implementa service.CaptureService.
type Capturer interface {
	Capture(ctx context.Context, in service.CaptureInput) (*service.CaptureResult, error)
}

var ErrMalformedMessage = errors.New("malformed message")

// PaymentApprovedConsumer corre la misma captura idempotente que el endpoint
// HTTP para las aprobaciones que nos publica el lado de pagos.
type PaymentApprovedConsumer struct {
	capture Capturer
	log     *slog.Logger
}

func NewPaymentApprovedConsumer(c Capturer, log *slog.Logger) *PaymentApprovedConsumer {
	if log == nil {
		log = logging.Base()
	}
	return &PaymentApprovedConsumer{capture: c, log: log}
}

type PaymentApprovedMessage struct {
	CorrelationID string `json:"correlation_id"`
	Exchange      string `json:"exchange"`
	RoutingKey    string `json:"routing_key"`
	Message       struct {
		OrderID          string `json:"orderId"`
		PaymentReference string `json:"paymentReference"`
		PayerReference   string `json:"payerReference"`
	} `json:"message"`
}

// Handle devuelve nil cuando el mensaje ya no necesita otra entrega. Un error
// se clasifica con Requeue.
func (c *PaymentApprovedConsumer) Handle(ctx context.Context, body []byte) error {
	var msg PaymentApprovedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msg.Message.OrderID == "" || msg.Message.PaymentReference == "" {
		return fmt.Errorf("%w: orderId and paymentReference required", ErrMalformedMessage)
	}

	log := c.log.With("correlation_id", msg.CorrelationID, "order_id", msg.Message.OrderID)
	ctx = logging.WithCtx(ctx, log)
	log.Info("payment.approved received")

	res, err := c.capture.Capture(ctx, service.CaptureInput{
		OrderID:          msg.Message.OrderID,
		PaymentReference: msg.Message.PaymentReference,
		PayerReference:   msg.Message.PayerReference,
	})
	if err != nil {
		return err
	}
	log.Info("payment.approved processed",
		"already_captured", res.AlreadyCaptured, "order_status", res.Order.OrderStatus)
	return nil
}

// Requeue indica si una entrega fallida puede funcionar más tarde. Los rechazos
// de negocio son definitivos; caídas del gateway o del storage no.
func Requeue(err error) bool {
	for _, final := range []error{
		ErrMalformedMessage,
		service.ErrValidation,
		service.ErrNotFound,
		service.ErrForbidden,
		service.ErrInvalidTransition,
		service.ErrPaymentDeclined,
		service.ErrAmountMismatch,
	} {
		if errors.Is(err, final) {
			return false
		}
	}
	return true
}
