package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"storefront-checkout-service/internal/catalog"
	"storefront-checkout-service/internal/model"
	"storefront-checkout-service/internal/repository"
)

// memCartRepo mirrors the per-line conditional semantics of the Mongo repository.
type memCartRepo struct {
	mu      sync.Mutex
	carts   map[string]*model.Cart
	deducts int
	// failDeductAt makes the n-th DeductItem call (1-based) fail once.
	failDeductAt int
}

func newMemCartRepo() *memCartRepo {
	return &memCartRepo{carts: map[string]*model.Cart{}}
}

func (r *memCartRepo) GetCart(_ context.Context, userID string) (*model.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	cp := *c
	cp.Items = append([]model.CartItem(nil), c.Items...)
	return &cp, nil
}

func (r *memCartRepo) IncrementItem(_ context.Context, userID, productID string, delta, limit int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[userID]
	if !ok {
		return false, nil
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID && c.Items[i].Quantity <= limit-delta {
			c.Items[i].Quantity += delta
			return true, nil
		}
	}
	return false, nil
}

func (r *memCartRepo) InsertItem(_ context.Context, userID string, item model.CartItem) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[userID]
	if !ok {
		c = &model.Cart{UserID: userID, CreatedAt: time.Now()}
		r.carts[userID] = c
	}
	if _, exists := c.Item(item.ProductID); exists {
		return false, nil
	}
	c.Items = append(c.Items, item)
	return true, nil
}

func (r *memCartRepo) SetItemQuantity(_ context.Context, userID, productID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.carts[userID]; ok {
		for i := range c.Items {
			if c.Items[i].ProductID == productID {
				c.Items[i].Quantity = quantity
				return nil
			}
		}
	}
	return repository.ErrItemNotFound
}

func (r *memCartRepo) RemoveItem(_ context.Context, userID, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.carts[userID]; ok {
		c.Items = removeLine(c.Items, productID)
	}
	return nil
}

func (r *memCartRepo) DeductItem(_ context.Context, userID, productID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deducts++
	if r.deducts == r.failDeductAt {
		return errors.New("mongo: connection reset by peer")
	}
	c, ok := r.carts[userID]
	if !ok {
		return nil
	}
	for i := range c.Items {
		if c.Items[i].ProductID != productID {
			continue
		}
		if c.Items[i].Quantity <= quantity {
			c.Items = removeLine(c.Items, productID)
		} else {
			c.Items[i].Quantity -= quantity
		}
		return nil
	}
	return nil
}

func (r *memCartRepo) failDeduct(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failDeductAt = r.deducts + n
}

func (r *memCartRepo) deductCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deducts
}

func removeLine(items []model.CartItem, productID string) []model.CartItem {
	out := items[:0]
	for _, it := range items {
		if it.ProductID != productID {
			out = append(out, it)
		}
	}
	return out
}

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*model.Order
	seq    []string
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: map[string]*model.Order{}}
}

func cloneOrder(o *model.Order) *model.Order {
	cp := *o
	cp.Lines = append([]model.OrderLine(nil), o.Lines...)
	cp.History = append([]model.StatusRecord(nil), o.History...)
	cp.CartClearedLines = append([]string(nil), o.CartClearedLines...)
	return &cp
}

func (r *memOrderRepo) Save(_ context.Context, o *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; ok {
		return errors.New("duplicate order id")
	}
	r.orders[o.ID] = cloneOrder(o)
	r.seq = append(r.seq, o.ID)
	return nil
}

func (r *memOrderRepo) FindByOrderID(_ context.Context, id string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *memOrderRepo) filter(keep func(*model.Order) bool) []*model.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Order{}
	for i := len(r.seq) - 1; i >= 0; i-- {
		if o := r.orders[r.seq[i]]; keep(o) {
			out = append(out, cloneOrder(o))
		}
	}
	return out
}

func (r *memOrderRepo) FindAll(context.Context) ([]*model.Order, error) {
	return r.filter(func(*model.Order) bool { return true }), nil
}

func (r *memOrderRepo) FindByStatus(_ context.Context, s model.OrderStatus) ([]*model.Order, error) {
	return r.filter(func(o *model.Order) bool { return o.OrderStatus == s }), nil
}

func (r *memOrderRepo) FindByUserID(_ context.Context, userID string) ([]*model.Order, error) {
	return r.filter(func(o *model.Order) bool { return o.UserID == userID }), nil
}

func (r *memOrderRepo) MarkPaid(_ context.Context, id, paymentRef, payerRef string, rec model.StatusRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.OrderStatus != model.OrderPending || o.PaymentStatus == model.PaymentPaid || o.PaymentReference != "" {
		return false, nil
	}
	o.PaymentStatus = model.PaymentPaid
	o.OrderStatus = model.OrderConfirmed
	o.PaymentReference = paymentRef
	o.PayerReference = payerRef
	o.History = append(o.History, rec)
	return true, nil
}

func (r *memOrderRepo) MarkPaymentFailed(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.OrderStatus != model.OrderPending || o.PaymentStatus == model.PaymentPaid {
		return false, nil
	}
	o.PaymentStatus = model.PaymentFailed
	return true, nil
}

func (r *memOrderRepo) UpdateStatus(_ context.Context, id string, from, to model.OrderStatus, rec model.StatusRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.OrderStatus != from {
		return false, nil
	}
	o.OrderStatus = to
	o.History = append(o.History, rec)
	return true, nil
}

func (r *memOrderRepo) ClaimCartClear(_ context.Context, id string, lease time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	now := time.Now()
	if !ok || o.PaymentStatus != model.PaymentPaid || o.CartCleared {
		return false, nil
	}
	if o.CartClearLease != nil && o.CartClearLease.After(now) {
		return false, nil
	}
	until := now.Add(lease)
	o.CartClearLease = &until
	return true, nil
}

func (r *memOrderRepo) MarkCartLineCleared(_ context.Context, id, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok && !slices.Contains(o.CartClearedLines, productID) {
		o.CartClearedLines = append(o.CartClearedLines, productID)
	}
	return nil
}

func (r *memOrderRepo) FinishCartClear(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		o.CartCleared = true
		o.CartClearLease = nil
	}
	return nil
}

func (r *memOrderRepo) ReleaseCartClear(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		o.CartClearLease = nil
	}
	return nil
}

type fakeCatalog struct {
	mu       sync.Mutex
	products map[string]catalog.Product
	err      error
}

func newFakeCatalog(products ...catalog.Product) *fakeCatalog {
	c := &fakeCatalog{products: map[string]catalog.Product{}}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *fakeCatalog) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	p, ok := c.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (c *fakeCatalog) setPrice(id string, price int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.products[id]
	p.Price = price
	c.products[id] = p
}

func (c *fakeCatalog) setStock(id string, stock int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.products[id]
	p.Stock = stock
	c.products[id] = p
}

type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{keys: map[string]string{}}
}

func (m *memIdempotency) TryLock(_ context.Context, userID, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[userID+key]; ok {
		return false, nil
	}
	m.keys[userID+key] = ""
	return true, nil
}

func (m *memIdempotency) Remember(_ context.Context, userID, key, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[userID+key] = orderID
	return nil
}

func (m *memIdempotency) Release(_ context.Context, userID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, userID+key)
	return nil
}

func (m *memIdempotency) Recall(_ context.Context, userID, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.keys[userID+key]
	return v, v != "", nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) count(typ string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}
