package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"storefront-checkout-service/internal/logging"
	"storefront-checkout-service/internal/metrics"
	"storefront-checkout-service/internal/model"
	"storefront-checkout-service/internal/payment"
)

type CheckoutOptions struct {
	GatewayTimeout time.Duration
	ReturnURL      string
	CancelURL      string
}

type CreateOrderInput struct {
	UserID        string
	Items         []model.CartItem
	Address       model.Address
	PaymentMethod model.PaymentMethod
	// ExpectedTotal es lo que mostró el cliente; se compara, nunca se usa.
	ExpectedTotal  *int64
	IdempotencyKey string
}

// CheckoutResult lleva la referencia de aprobación al lado de la orden, no
// adentro: un intent no prueba el pago.
type CheckoutResult struct {
	Order  *model.Order    `json:"order"`
	Intent *payment.Intent `json:"payment,omitempty"`
}

type CheckoutService struct {
	ledger  *OrderLedger
	carts   *CartService
	stock   *StockValidator
	gateway payment.Gateway
	idem    IdempotencyStore
	opts    CheckoutOptions
}

// NewCheckoutService acepta store nil; entonces las claves se ignoran.
func NewCheckoutService(ledger *OrderLedger, carts *CartService, pc ProductCatalog, gw payment.Gateway, idem IdempotencyStore, opts CheckoutOptions) *CheckoutService {
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = 8 * time.Second
	}
	return &CheckoutService{
		ledger:  ledger,
		carts:   carts,
		stock:   NewStockValidator(pc),
		gateway: gw,
		idem:    idem,
		opts:    opts,
	}
}

// CheckoutCart toma una foto del carrito y crea la orden. El carrito no se
// consume; solo una captura exitosa lo limpia.
func (s *CheckoutService) CheckoutCart(ctx context.Context, in CreateOrderInput) (*CheckoutResult, error) {
	items, err := s.carts.Items(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	in.Items = items
	return s.CreateOrder(ctx, in)
}

// CreateOrder guarda una orden pendiente y pide un intent de pago. Si falla el
// gateway igual devuelve la orden, junto con un error que envuelve
// ErrGatewayUnavailable, para que el cliente pueda retomar.
func (s *CheckoutService) CreateOrder(ctx context.Context, in CreateOrderInput) (*CheckoutResult, error) {
	items, err := validateCheckout(in)
	if err != nil {
		return nil, err
	}
	log := logging.FromCtx(ctx).With("user_id", in.UserID)

	if in.IdempotencyKey != "" && s.idem != nil {
		if res, done, err := s.replay(ctx, in); done {
			return res, err
		}
		locked, err := s.idem.TryLock(ctx, in.UserID, in.IdempotencyKey)
		if err != nil {
			// sin store el checkout sigue andando; puede haber duplicados
			log.Warn("idempotency store unavailable", "error", err)
			in.IdempotencyKey = ""
		} else if !locked {
			return nil, ErrDuplicateRequest
		}
	}

	order, err := s.buildOrder(ctx, in, items)
	if err == nil {
		err = s.ledger.Create(ctx, order)
	}
	if err != nil {
		s.releaseKey(ctx, in)
		return nil, err
	}
	log = log.With("order_id", order.ID)
	log.Info("order created", "total", order.TotalAmount, "lines", len(order.Lines))

	if in.IdempotencyKey != "" && s.idem != nil {
		if err := s.idem.Remember(ctx, in.UserID, in.IdempotencyKey, order.ID); err != nil {
			log.Warn("idempotency key not stored", "error", err)
		}
	}

	intent, err := s.requestIntent(ctx, order)
	if err != nil {
		log.Warn("payment intent not created, order left pending", "error", err)
		return &CheckoutResult{Order: order}, err
	}
	return &CheckoutResult{Order: order, Intent: intent}, nil
}

// RetryPayment pide un intent nuevo para una orden pendiente sin pagar.
func (s *CheckoutService) RetryPayment(ctx context.Context, userID, orderID string) (*CheckoutResult, error) {
	o, err := s.ledger.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrForbidden
	}
	if o.OrderStatus != model.OrderPending || o.PaymentStatus == model.PaymentPaid {
		return nil, fmt.Errorf("%w: order is %s/%s", ErrInvalidTransition, o.OrderStatus, o.PaymentStatus)
	}

	intent, err := s.requestIntent(ctx, o)
	if err != nil {
		return &CheckoutResult{Order: o}, err
	}
	return &CheckoutResult{Order: o, Intent: intent}, nil
}

// replay responde una clave repetida con la orden que ya generó.
func (s *CheckoutService) replay(ctx context.Context, in CreateOrderInput) (*CheckoutResult, bool, error) {
	orderID, ok, err := s.idem.Recall(ctx, in.UserID, in.IdempotencyKey)
	if err != nil || !ok {
		return nil, false, nil
	}
	o, err := s.ledger.Get(ctx, orderID)
	if err != nil {
		return nil, true, err
	}
	if o.OrderStatus != model.OrderPending || o.PaymentStatus == model.PaymentPaid {
		return &CheckoutResult{Order: o}, true, nil
	}
	res, err := s.RetryPayment(ctx, in.UserID, orderID)
	return res, true, err
}

func (s *CheckoutService) buildOrder(ctx context.Context, in CreateOrderInput, items []model.CartItem) (*model.Order, error) {
	lines, err := s.snapshotLines(ctx, items)
	if err != nil {
		return nil, err
	}

	total := model.Total(lines)
	if in.ExpectedTotal != nil && *in.ExpectedTotal != total {
		return nil, fmt.Errorf("%w: client total %d, computed %d", ErrAmountMismatch, *in.ExpectedTotal, total)
	}

	now := time.Now().UTC()
	return &model.Order{
		ID:            uuid.NewString(),
		UserID:        in.UserID,
		Lines:         lines,
		Address:       in.Address,
		OrderStatus:   model.OrderPending,
		PaymentStatus: model.PaymentPending,
		PaymentMethod: in.PaymentMethod,
		TotalAmount:   total,
		History: []model.StatusRecord{{
			Status:    model.OrderPending,
			Reason:    "order created",
			ActorID:   in.UserID,
			Timestamp: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// snapshotLines vuelve a controlar el stock y congela los datos del catálogo
// con los que se cobra la orden.
func (s *CheckoutService) snapshotLines(ctx context.Context, items []model.CartItem) ([]model.OrderLine, error) {
	lines := make([]model.OrderLine, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for i, it := range items {
		g.Go(func() error {
			p, err := s.stock.Validate(gctx, it.ProductID, it.Quantity)
			if err != nil {
				return err
			}
			lines[i] = model.OrderLine{
				ProductID: it.ProductID,
				Title:     p.Title,
				Image:     p.Image,
				UnitPrice: p.UnitPrice(),
				Quantity:  it.Quantity,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *CheckoutService) requestIntent(ctx context.Context, o *model.Order) (*payment.Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	defer cancel()

	start := time.Now()
	intent, err := s.gateway.CreateIntent(ctx, o.TotalAmount, payment.ReturnContext{
		OrderID:   o.ID,
		ReturnURL: s.opts.ReturnURL,
		CancelURL: s.opts.CancelURL,
	})
	metrics.GatewayDuration.WithLabelValues("create_intent").Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, payment.ErrDeclined):
		return nil, fmt.Errorf("%w: %v", ErrPaymentDeclined, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return intent, nil
}

func (s *CheckoutService) releaseKey(ctx context.Context, in CreateOrderInput) {
	if in.IdempotencyKey == "" || s.idem == nil {
		return
	}
	if err := s.idem.Release(ctx, in.UserID, in.IdempotencyKey); err != nil {
		logging.FromCtx(ctx).Warn("idempotency key not released", "error", err)
	}
}

// validateCheckout valida el request y junta productos repetidos.
func validateCheckout(in CreateOrderInput) ([]model.CartItem, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, fmt.Errorf("%w: user id required", ErrValidation)
	}
	if len(in.Items) == 0 {
		return nil, ErrEmptyCart
	}
	if !in.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: unsupported payment method %q", ErrValidation, in.PaymentMethod)
	}
	a := in.Address
	for field, v := range map[string]string{
		"addressLine": a.AddressLine,
		"city":        a.City,
		"postalCode":  a.PostalCode,
		"phone":       a.Phone,
	} {
		if strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("%w: address %s required", ErrValidation, field)
		}
	}

	merged := make([]model.CartItem, 0, len(in.Items))
	index := make(map[string]int, len(in.Items))
	for _, it := range in.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return nil, fmt.Errorf("%w: product id required", ErrValidation)
		}
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity of %s must be positive", ErrValidation, it.ProductID)
		}
		if i, ok := index[it.ProductID]; ok {
			merged[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(merged)
		merged = append(merged, model.CartItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return merged, nil
}
