package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type intentState struct {
	amount   int64
	orderID  string
	declined bool
	capture  *Capture
}

// MockGateway guarda los intents en memoria. Las capturas son idempotentes por
// referencia, igual que en un gateway real.
type MockGateway struct {
	mu           sync.RWMutex
	intents      map[string]*intentState
	latency      time.Duration
	unavailable  error
	captureCalls int
}

func NewMockGateway(latency time.Duration) *MockGateway {
	return &MockGateway{
		intents: make(map[string]*intentState),
		latency: latency,
	}
}

func (g *MockGateway) CreateIntent(ctx context.Context, amount int64, rc ReturnContext) (*Intent, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrDeclined)
	}

	ref := uuid.NewString()
	g.mu.Lock()
	g.intents[ref] = &intentState{amount: amount, orderID: rc.OrderID}
	g.mu.Unlock()

	return &Intent{
		ApprovalReference: ref,
		ApprovalURL:       "https://mock-gateway.local/approve/" + ref,
	}, nil
}

func (g *MockGateway) CaptureIntent(ctx context.Context, paymentReference, payerReference string) (*Capture, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.captureCalls++

	st, ok := g.intents[paymentReference]
	if !ok {
		return nil, fmt.Errorf("%w: unknown payment reference", ErrDeclined)
	}
	if st.capture != nil {
		c := *st.capture
		return &c, nil
	}
	if st.declined || payerReference == "" {
		return nil, fmt.Errorf("%w: payer did not approve", ErrDeclined)
	}

	st.capture = &Capture{CaptureID: uuid.NewString(), Amount: st.amount, OrderID: st.orderID}
	c := *st.capture
	return &c, nil
}

// Decline hace fallar toda captura futura de ref.
func (g *MockGateway) Decline(ref string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if st, ok := g.intents[ref]; ok {
		st.declined = true
	}
}

// SetUnavailable hace fallar toda llamada con err hasta que se pase nil.
func (g *MockGateway) SetUnavailable(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unavailable = err
}

// OverrideAmount cambia el monto que informa una captura de ref.
func (g *MockGateway) OverrideAmount(ref string, amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if st, ok := g.intents[ref]; ok {
		st.amount = amount
	}
}

func (g *MockGateway) CaptureCalls() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.captureCalls
}

func (g *MockGateway) wait(ctx context.Context) error {
	g.mu.RLock()
	unavailable := g.unavailable
	g.mu.RUnlock()
	if unavailable != nil {
		return unavailable
	}

	if g.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(g.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
