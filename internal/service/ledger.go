package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-checkout-service/internal/logging"
	"storefront-checkout-service/internal/metrics"
	"storefront-checkout-service/internal/model"
	"storefront-checkout-service/internal/repository"
)

const (
	captureActor = "payment-gateway"
	// cartClearLease acota cuánto bloquea la limpieza un proceso que murió a mitad.
	cartClearLease = 2 * time.Minute
)

// OrderLedger hace todas las escrituras de órdenes. Los cambios de estado pasan
// por model.CanTransition y por un update condicionado al estado actual, así
// ninguna orden se mueve por fuera de la tabla de transiciones.
type OrderLedger struct {
	repo   OrderRepository
	events EventPublisher
}

func NewOrderLedger(r OrderRepository, events EventPublisher) *OrderLedger {
	if events == nil {
		events = nopPublisher{}
	}
	return &OrderLedger{repo: r, events: events}
}

// Create guarda una orden nueva en pending/pending.
func (l *OrderLedger) Create(ctx context.Context, o *model.Order) error {
	if o.OrderStatus != model.OrderPending || o.PaymentStatus != model.PaymentPending {
		return fmt.Errorf("%w: new orders start pending/pending", ErrInvalidTransition)
	}
	if err := l.repo.Save(ctx, o); err != nil {
		return err
	}
	metrics.OrdersCreated.Inc()
	l.publish(ctx, newOrderEvent(EventOrderCreated, o, ""))
	return nil
}

func (l *OrderLedger) Get(ctx context.Context, orderID string) (*model.Order, error) {
	o, err := l.repo.FindByOrderID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (l *OrderLedger) ListByUser(ctx context.Context, userID string) ([]*model.Order, error) {
	return l.repo.FindByUserID(ctx, userID)
}

// ListAll devuelve todas las órdenes, o solo las de status si viene.
func (l *OrderLedger) ListAll(ctx context.Context, status model.OrderStatus) ([]*model.Order, error) {
	if status == "" {
		return l.repo.FindAll(ctx)
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown order status %q", ErrValidation, status)
	}
	return l.repo.FindByStatus(ctx, status)
}

// Confirm registra una captura verificada. Es la única arista pending ->
// confirmed y la resguarda el filtro de MarkPaid. Devuelve false cuando otro
// escritor llegó antes; el llamador vuelve a leer la orden.
func (l *OrderLedger) Confirm(ctx context.Context, orderID, paymentRef, payerRef string) (*model.Order, bool, error) {
	record := model.StatusRecord{
		Status:    model.OrderConfirmed,
		Reason:    "payment captured",
		ActorID:   captureActor,
		Timestamp: time.Now().UTC(),
	}
	ok, err := l.repo.MarkPaid(ctx, orderID, paymentRef, payerRef, record)
	if err != nil || !ok {
		return nil, ok, err
	}

	metrics.StatusTransitions.WithLabelValues(string(model.OrderConfirmed)).Inc()
	o, err := l.Get(ctx, orderID)
	if err != nil {
		return nil, true, err
	}
	l.publish(ctx, newOrderEvent(EventOrderConfirmed, o, record.Reason))
	return o, true, nil
}

// FailPayment marca el pago como fallido. Una orden pagada no se toca.
func (l *OrderLedger) FailPayment(ctx context.Context, orderID string) (bool, error) {
	return l.repo.MarkPaymentFailed(ctx, orderID)
}

// UpdateStatus aplica una transición administrativa. Acá nunca se escriben
// los campos del pago.
func (l *OrderLedger) UpdateStatus(ctx context.Context, orderID string, to model.OrderStatus, reason, actorID string) (*model.Order, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown order status %q", ErrValidation, to)
	}
	o, err := l.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	from := o.OrderStatus
	if !model.CanTransition(from, to, model.ActorAdmin) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	record := model.StatusRecord{
		Status:    to,
		Reason:    reason,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
	}
	ok, err := l.repo.UpdateStatus(ctx, orderID, from, to, record)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: order %s left %s before the update", ErrConflict, orderID, from)
	}

	metrics.StatusTransitions.WithLabelValues(string(to)).Inc()
	updated, err := l.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if to == model.OrderRejected && updated.PaymentStatus == model.PaymentPaid {
		logging.FromCtx(ctx).Warn("paid order rejected, refund required",
			"order_id", orderID, "payment_reference", updated.PaymentReference)
	}
	l.publish(ctx, newOrderEvent(EventOrderStatusChanged, updated, reason))
	return updated, nil
}

// ClaimCartClear reporta true a un solo llamador por orden pagada mientras
// dure el lease.
func (l *OrderLedger) ClaimCartClear(ctx context.Context, orderID string) (bool, error) {
	return l.repo.ClaimCartClear(ctx, orderID, cartClearLease)
}

func (l *OrderLedger) MarkCartLineCleared(ctx context.Context, orderID, productID string) error {
	return l.repo.MarkCartLineCleared(ctx, orderID, productID)
}

// FinishCartClear marca la limpieza completa; ningún reintento vuelve a tocar el carrito.
func (l *OrderLedger) FinishCartClear(ctx context.Context, orderID string) error {
	return l.repo.FinishCartClear(ctx, orderID)
}

func (l *OrderLedger) ReleaseCartClear(ctx context.Context, orderID string) error {
	return l.repo.ReleaseCartClear(ctx, orderID)
}

func (l *OrderLedger) publish(ctx context.Context, ev OrderEvent) {
	if err := l.events.Publish(ctx, ev); err != nil {
		logging.FromCtx(ctx).Warn("order event not published",
			"type", ev.Type, "order_id", ev.OrderID, "error", err)
	}
}
