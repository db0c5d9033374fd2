package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-checkout-service/internal/model"
)

func TestUpdateStatus_PendingToDeliveredIsInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.placeOrder(t, "u1", map[string]int{"A": 1})

	_, err := f.ledger.UpdateStatus(ctx, res.Order.ID, model.OrderDelivered, "", "admin-1")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	o, err := f.ledger.Get(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderPending, o.OrderStatus)
	assert.Len(t, o.History, 1)
}

func TestUpdateStatus_AdminCannotConfirm(t *testing.T) {
	f := newFixture(t)
	res := f.placeOrder(t, "u1", map[string]int{"A": 1})

	_, err := f.ledger.UpdateStatus(context.Background(), res.Order.ID, model.OrderConfirmed, "", "admin-1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdateStatus_FulfilmentPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.placeOrder(t, "u1", map[string]int{"A": 1})
	_, err := f.capture.Capture(ctx, captureInput(res))
	require.NoError(t, err)

	for _, to := range []model.OrderStatus{model.OrderInProcess, model.OrderInShipping, model.OrderDelivered} {
		o, err := f.ledger.UpdateStatus(ctx, res.Order.ID, to, "next step", "admin-1")
		require.NoError(t, err, "to %s", to)
		assert.Equal(t, to, o.OrderStatus)
		assert.Equal(t, model.PaymentPaid, o.PaymentStatus)
	}

	_, err = f.ledger.UpdateStatus(ctx, res.Order.ID, model.OrderRejected, "", "admin-1")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	o, err := f.ledger.Get(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderDelivered, o.OrderStatus)
	require.Len(t, o.History, 5)
	assert.Equal(t, "admin-1", o.History[4].ActorID)
	assert.Equal(t, 3, f.events.count(EventOrderStatusChanged))
}

func TestUpdateStatus_NoSkippingOrGoingBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.placeOrder(t, "u1", map[string]int{"A": 1})
	_, err := f.capture.Capture(ctx, captureInput(res))
	require.NoError(t, err)

	for _, to := range []model.OrderStatus{model.OrderInShipping, model.OrderDelivered, model.OrderPending, model.OrderConfirmed} {
		_, err := f.ledger.UpdateStatus(ctx, res.Order.ID, to, "", "admin-1")
		assert.ErrorIs(t, err, ErrInvalidTransition, "confirmed -> %s", to)
	}

	_, err = f.ledger.UpdateStatus(ctx, res.Order.ID, "shipped", "", "admin-1")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.ledger.UpdateStatus(ctx, "missing", model.OrderRejected, "", "admin-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatus_RejectedIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.placeOrder(t, "u1", map[string]int{"A": 1})

	o, err := f.ledger.UpdateStatus(ctx, res.Order.ID, model.OrderRejected, "no stock in warehouse", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, o.PaymentStatus)

	for _, to := range []model.OrderStatus{model.OrderPending, model.OrderConfirmed, model.OrderInProcess, model.OrderRejected} {
		_, err := f.ledger.UpdateStatus(ctx, res.Order.ID, to, "", "admin-1")
		assert.ErrorIs(t, err, ErrInvalidTransition)
	}
}

func TestListAll_FiltersByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	paid := f.placeOrder(t, "u1", map[string]int{"A": 1})
	f.placeOrder(t, "u2", map[string]int{"C": 1})
	_, err := f.capture.Capture(ctx, captureInput(paid))
	require.NoError(t, err)

	all, err := f.ledger.ListAll(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	confirmed, err := f.ledger.ListAll(ctx, model.OrderConfirmed)
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, paid.Order.ID, confirmed[0].ID)

	_, err = f.ledger.ListAll(ctx, "bogus")
	assert.ErrorIs(t, err, ErrValidation)

	mine, err := f.ledger.ListByUser(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestCreate_RequiresPendingPending(t *testing.T) {
	f := newFixture(t)
	err := f.ledger.Create(context.Background(), &model.Order{
		ID:            "o1",
		OrderStatus:   model.OrderConfirmed,
		PaymentStatus: model.PaymentPaid,
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestConfirm_OnlyFromUnpaidPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.placeOrder(t, "u1", map[string]int{"A": 1})
	rejected := f.placeOrder(t, "u2", map[string]int{"C": 1})

	o, won, err := f.ledger.Confirm(ctx, res.Order.ID, "PAY-1", "payer")
	require.NoError(t, err)
	assert.True(t, won)
	assert.Equal(t, model.OrderConfirmed, o.OrderStatus)

	_, won, err = f.ledger.Confirm(ctx, res.Order.ID, "PAY-1", "payer")
	require.NoError(t, err)
	assert.False(t, won)

	_, err = f.ledger.UpdateStatus(ctx, rejected.Order.ID, model.OrderRejected, "", "admin-1")
	require.NoError(t, err)
	_, won, err = f.ledger.Confirm(ctx, rejected.Order.ID, "PAY-2", "payer")
	require.NoError(t, err)
	assert.False(t, won)

	got, err := f.ledger.Get(ctx, rejected.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderRejected, got.OrderStatus)
	assert.Equal(t, 1, f.events.count(EventOrderConfirmed))
}
