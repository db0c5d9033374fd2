package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"storefront-checkout-service/internal/logging"
	"storefront-checkout-service/internal/metrics"
	"storefront-checkout-service/internal/model"
	"storefront-checkout-service/internal/payment"
)

type CaptureInput struct {
	OrderID          string
	PaymentReference string
	PayerReference   string
	// UserID es el cliente que pide la captura. Vacío para los avisos
	// confiables que llegan por el exchange de pagos.
	UserID string
}

type CaptureResult struct {
	Order           *model.Order `json:"order"`
	AlreadyCaptured bool         `json:"alreadyCaptured"`
}

// CaptureService cierra un pago aprobado. Repetir la captura no hace nada y
// responde ok: la orden se escribe una vez y el carrito se limpia una vez.
type CaptureService struct {
	ledger  *OrderLedger
	carts   *CartService
	gateway payment.Gateway
	timeout time.Duration
}

func NewCaptureService(ledger *OrderLedger, carts *CartService, gw payment.Gateway, timeout time.Duration) *CaptureService {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &CaptureService{ledger: ledger, carts: carts, gateway: gw, timeout: timeout}
}

func (s *CaptureService) Capture(ctx context.Context, in CaptureInput) (*CaptureResult, error) {
	if strings.TrimSpace(in.OrderID) == "" || strings.TrimSpace(in.PaymentReference) == "" {
		return nil, fmt.Errorf("%w: order id and payment reference required", ErrValidation)
	}
	log := logging.FromCtx(ctx).With("order_id", in.OrderID)

	order, err := s.ledger.Get(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if in.UserID != "" && order.UserID != in.UserID {
		return nil, ErrForbidden
	}
	if order.PaymentStatus == model.PaymentPaid {
		return s.alreadyCaptured(ctx, log, order), nil
	}
	if order.OrderStatus != model.OrderPending {
		return nil, fmt.Errorf("%w: order is %s", ErrInvalidTransition, order.OrderStatus)
	}

	captured, err := s.captureIntent(ctx, in)
	switch {
	case errors.Is(err, payment.ErrDeclined):
		return s.fail(ctx, log, order, fmt.Errorf("%w: %v", ErrPaymentDeclined, err))
	case err != nil:
		metrics.Captures.WithLabelValues("unavailable").Inc()
		log.Warn("capture outcome unknown, order left unpaid", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	case captured.OrderID != "" && captured.OrderID != order.ID:
		log.Warn("payment reference belongs to another order", "reference_order_id", captured.OrderID)
		return nil, fmt.Errorf("%w: payment reference does not belong to this order", ErrValidation)
	case captured.Amount != order.TotalAmount:
		log.Error("captured amount differs from order total",
			"captured", captured.Amount, "total", order.TotalAmount, "capture_id", captured.CaptureID)
		return s.fail(ctx, log, order, fmt.Errorf("%w: captured %d, order total %d",
			ErrAmountMismatch, captured.Amount, order.TotalAmount))
	}

	confirmed, won, err := s.ledger.Confirm(ctx, order.ID, in.PaymentReference, in.PayerReference)
	if err != nil {
		// la captura del gateway es idempotente por referencia, un reintento completa esto
		log.Error("payment captured but order not updated", "capture_id", captured.CaptureID, "error", err)
		return nil, err
	}
	if !won {
		current, err := s.ledger.Get(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		if current.PaymentStatus == model.PaymentPaid {
			return s.alreadyCaptured(ctx, log, current), nil
		}
		log.Error("payment captured for an order that left pending, refund required",
			"order_status", current.OrderStatus, "capture_id", captured.CaptureID)
		return nil, fmt.Errorf("%w: order is %s", ErrInvalidTransition, current.OrderStatus)
	}

	metrics.Captures.WithLabelValues("paid").Inc()
	metrics.CapturedAmount.Add(float64(confirmed.TotalAmount))
	log.Info("payment captured", "capture_id", captured.CaptureID, "total", confirmed.TotalAmount)

	s.clearCart(ctx, log, confirmed)
	return &CaptureResult{Order: confirmed}, nil
}

func (s *CaptureService) captureIntent(ctx context.Context, in CaptureInput) (*payment.Capture, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	c, err := s.gateway.CaptureIntent(ctx, in.PaymentReference, in.PayerReference)
	metrics.GatewayDuration.WithLabelValues("capture").Observe(time.Since(start).Seconds())
	return c, err
}

// fail marca el pago fallido salvo que otra captura ya lo haya pagado.
func (s *CaptureService) fail(ctx context.Context, log *slog.Logger, order *model.Order, cause error) (*CaptureResult, error) {
	ok, err := s.ledger.FailPayment(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.ledger.Get(ctx, order.ID)
		if err == nil && current.PaymentStatus == model.PaymentPaid {
			return s.alreadyCaptured(ctx, log, current), nil
		}
	}
	metrics.Captures.WithLabelValues("failed").Inc()
	log.Info("payment verification failed", "error", cause)
	return nil, cause
}

func (s *CaptureService) alreadyCaptured(ctx context.Context, log *slog.Logger, order *model.Order) *CaptureResult {
	metrics.Captures.WithLabelValues("already_captured").Inc()
	// completa una limpieza que otra captura dejó sin terminar
	s.clearCart(ctx, log, order)
	return &CaptureResult{Order: order, AlreadyCaptured: true}
}

// clearCart descuenta cada línea ordenada una sola vez. Lo resguarda un lease
// del ledger; las líneas descontadas quedan registradas en la orden, así que
// una limpieza que falló a mitad la completa el próximo reintento de captura.
func (s *CaptureService) clearCart(ctx context.Context, log *slog.Logger, order *model.Order) {
	if order.CartCleared {
		return
	}
	ctx = context.WithoutCancel(ctx)
	claimed, err := s.ledger.ClaimCartClear(ctx, order.ID)
	if err != nil {
		log.Error("cart clear claim failed", "error", err)
		return
	}
	if !claimed {
		return
	}

	// releída bajo el lease: trae las líneas que ya descontó un intento anterior
	current, err := s.ledger.Get(ctx, order.ID)
	if err == nil {
		err = s.carts.RemoveOrdered(ctx, current.UserID, current.PendingCartLines(), func(productID string) error {
			return s.ledger.MarkCartLineCleared(ctx, order.ID, productID)
		})
	}
	if err != nil {
		log.Error("cart clear incomplete, retry capture to finish", "user_id", order.UserID, "error", err)
		if rerr := s.ledger.ReleaseCartClear(ctx, order.ID); rerr != nil {
			log.Error("cart clear lease not released", "error", rerr)
		}
		return
	}
	if err := s.ledger.FinishCartClear(ctx, order.ID); err != nil {
		log.Error("cart clear not recorded", "error", err)
	}
}
