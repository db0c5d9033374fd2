package service

import (
	"context"
	"time"

	"storefront-checkout-service/internal/catalog"
	"storefront-checkout-service/internal/model"
)

// Interfaz que implementa repository.MongoCartRepository
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*model.Cart, error)
	IncrementItem(ctx context.Context, userID, productID string, delta, limit int) (bool, error)
	InsertItem(ctx context.Context, userID string, item model.CartItem) (bool, error)
	SetItemQuantity(ctx context.Context, userID, productID string, quantity int) error
	RemoveItem(ctx context.Context, userID, productID string) error
	DeductItem(ctx context.Context, userID, productID string, quantity int) error
}

// Interfaz que implementa repository.MongoOrderRepository
type OrderRepository interface {
	Save(ctx context.Context, o *model.Order) error
	FindByOrderID(ctx context.Context, orderID string) (*model.Order, error)
	FindAll(ctx context.Context) ([]*model.Order, error)
	FindByStatus(ctx context.Context, status model.OrderStatus) ([]*model.Order, error)
	FindByUserID(ctx context.Context, userID string) ([]*model.Order, error)
	MarkPaid(ctx context.Context, orderID, paymentRef, payerRef string, record model.StatusRecord) (bool, error)
	MarkPaymentFailed(ctx context.Context, orderID string) (bool, error)
	UpdateStatus(ctx context.Context, orderID string, from, to model.OrderStatus, record model.StatusRecord) (bool, error)
	ClaimCartClear(ctx context.Context, orderID string, lease time.Duration) (bool, error)
	MarkCartLineCleared(ctx context.Context, orderID, productID string) error
	FinishCartClear(ctx context.Context, orderID string) error
	ReleaseCartClear(ctx context.Context, orderID string) error
}

// ProductCatalog devuelve nil, nil para productos desconocidos.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
}

type CartCache interface {
	Get(ctx context.Context, userID string) (*model.Cart, error)
	Set(ctx context.Context, userID string, cart *model.Cart) error
	Delete(ctx context.Context, userID string) error
}

type IdempotencyStore interface {
	TryLock(ctx context.Context, userID, key string) (bool, error)
	Remember(ctx context.Context, userID, key, orderID string) error
	Release(ctx context.Context, userID, key string) error
	Recall(ctx context.Context, userID, key string) (string, bool, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, ev OrderEvent) error
}
