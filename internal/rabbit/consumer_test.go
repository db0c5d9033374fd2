package rabbit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront-checkout-service/internal/model"
	"storefront-checkout-service/internal/service"
)

type mockCapturer struct {
	mock.Mock
}

func (m *mockCapturer) Capture(ctx context.Context, in service.CaptureInput) (*service.CaptureResult, error) {
	args := m.Called(ctx, in)
	res, _ := args.Get(0).(*service.CaptureResult)
	return res, args.Error(1)
}

type fakeAck struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *fakeAck) Ack(bool) error { a.acked++; return nil }

func (a *fakeAck) Nack(_, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

const approvedBody = `{"correlation_id":"c-1","exchange":"payment_events","routing_key":"payment.approved",
"message":{"orderId":"o1","paymentReference":"PAY-1","payerReference":"payer-1"}}`

func TestHandle_RunsCaptureWithoutCaller(t *testing.T) {
	m := &mockCapturer{}
	want := service.CaptureInput{OrderID: "o1", PaymentReference: "PAY-1", PayerReference: "payer-1"}
	m.On("Capture", mock.Anything, want).
		Return(&service.CaptureResult{Order: &model.Order{ID: "o1", OrderStatus: model.OrderConfirmed}}, nil).
		Once()

	c := NewPaymentApprovedConsumer(m, quiet)
	require.NoError(t, c.Handle(context.Background(), []byte(approvedBody)))
	m.AssertExpectations(t)
}

func TestHandle_MalformedMessages(t *testing.T) {
	m := &mockCapturer{}
	c := NewPaymentApprovedConsumer(m, quiet)

	err := c.Handle(context.Background(), []byte("{"))
	assert.ErrorIs(t, err, ErrMalformedMessage)

	err = c.Handle(context.Background(), []byte(`{"message":{"orderId":"o1"}}`))
	assert.ErrorIs(t, err, ErrMalformedMessage)
	m.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything)
}

func TestRequeue(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrMalformedMessage, false},
		{service.ErrOrderNotFound, false},
		{service.ErrPaymentDeclined, false},
		{service.ErrAmountMismatch, false},
		{service.ErrInvalidTransition, false},
		{service.ErrGatewayUnavailable, true},
		{errors.New("mongo: server selection timeout"), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Requeue(tt.err), tt.err.Error())
	}
}

func TestDispatch_AckAndNack(t *testing.T) {
	m := &mockCapturer{}
	m.On("Capture", mock.Anything, mock.Anything).
		Return(nil, service.ErrGatewayUnavailable).Times(4)
	m.On("Capture", mock.Anything, mock.Anything).
		Return(&service.CaptureResult{Order: &model.Order{ID: "o1"}, AlreadyCaptured: true}, nil)
	c := NewPaymentApprovedConsumer(m, quiet)

	unavailable := &fakeAck{}
	dispatch([]byte(approvedBody), false, unavailable, c, quiet)
	assert.Equal(t, 1, unavailable.nacked)
	assert.True(t, unavailable.requeue)

	// a redelivered message that still fails goes to the dead-letter queue
	for i := 0; i < 3; i++ {
		again := &fakeAck{}
		dispatch([]byte(approvedBody), true, again, c, quiet)
		assert.Equal(t, 1, again.nacked)
		assert.False(t, again.requeue, "attempt %d", i)
	}

	ok := &fakeAck{}
	dispatch([]byte(approvedBody), true, ok, c, quiet)
	assert.Equal(t, 1, ok.acked)
	assert.Zero(t, ok.nacked)

	poison := &fakeAck{}
	dispatch([]byte("not json"), false, poison, c, quiet)
	assert.Equal(t, 1, poison.nacked)
	assert.False(t, poison.requeue)
}

func TestConsumerConfig_DeadLetterNames(t *testing.T) {
	cfg := ConsumerConfig{Exchange: "payment_events", Queue: "captures"}
	assert.Equal(t, "captures.dlx", cfg.DeadLetterExchange())
	assert.Equal(t, "captures.dead", cfg.DeadLetterQueue())
}
