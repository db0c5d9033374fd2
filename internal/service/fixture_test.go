package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"storefront-checkout-service/internal/catalog"
	"storefront-checkout-service/internal/model"
	"storefront-checkout-service/internal/payment"
)

func ptr[T any](v T) *T { return &v }

var testAddress = model.Address{
	AddressLine: "Av San Martin 1234",
	City:        "Mendoza",
	PostalCode:  "5500",
	Phone:       "+54 261 555 0000",
}

type fixture struct {
	carts    *memCartRepo
	orders   *memOrderRepo
	catalog  *fakeCatalog
	gateway  *payment.MockGateway
	events   *recordingPublisher
	idem     *memIdempotency
	cart     *CartService
	ledger   *OrderLedger
	checkout *CheckoutService
	capture  *CaptureService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		carts:  newMemCartRepo(),
		orders: newMemOrderRepo(),
		catalog: newFakeCatalog(
			catalog.Product{ID: "A", Title: "Mug", Image: "mug.png", Price: 50, Stock: 10},
			catalog.Product{ID: "B", Title: "Plate", Price: 1000, Stock: 3},
			catalog.Product{ID: "S", Title: "Bowl", Price: 900, SalePrice: ptr(int64(700)), Stock: 5},
			catalog.Product{ID: "C", Title: "Spoon", Price: 200, Stock: 50},
		),
		gateway: payment.NewMockGateway(0),
		events:  &recordingPublisher{},
		idem:    newMemIdempotency(),
	}
	f.cart = NewCartService(f.carts, nil, f.catalog)
	f.ledger = NewOrderLedger(f.orders, f.events)
	f.checkout = NewCheckoutService(f.ledger, f.cart, f.catalog, f.gateway, f.idem, CheckoutOptions{GatewayTimeout: time.Second})
	f.capture = NewCaptureService(f.ledger, f.cart, f.gateway, time.Second)
	return f
}

func (f *fixture) checkoutInput(userID string) CreateOrderInput {
	return CreateOrderInput{
		UserID:        userID,
		Address:       testAddress,
		PaymentMethod: model.PaymentMethodPayPal,
	}
}

// placeOrder adds items and checks the cart out, returning the result.
func (f *fixture) placeOrder(t *testing.T, userID string, items map[string]int) *CheckoutResult {
	t.Helper()
	ctx := context.Background()
	for id, q := range items {
		require.NoError(t, f.cart.AddItem(ctx, userID, id, q))
	}
	res, err := f.checkout.CheckoutCart(ctx, f.checkoutInput(userID))
	require.NoError(t, err)
	require.NotNil(t, res.Intent)
	return res
}

func (f *fixture) cartItems(t *testing.T, userID string) map[string]int {
	t.Helper()
	items, err := f.cart.Items(context.Background(), userID)
	require.NoError(t, err)
	out := map[string]int{}
	for _, it := range items {
		out[it.ProductID] = it.Quantity
	}
	return out
}
