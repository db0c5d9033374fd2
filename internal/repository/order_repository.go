package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront-checkout-service/internal/model"
)

var ErrNotFound = errors.New("order not found")

// MongoOrderRepository es el registro durable de órdenes. Cada cambio de
// estado es un único UpdateOne condicionado al estado actual: se aplica entero
// o no se aplica, y una carrera perdida se informa como false.
type MongoOrderRepository struct {
	col *mongo.Collection
}

func NewMongoOrderRepository(db *mongo.Database) *MongoOrderRepository {
	return &MongoOrderRepository{col: db.Collection("orders")}
}

func (m *MongoOrderRepository) Save(ctx context.Context, o *model.Order) error {
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	// history tiene que ser un array para los $push posteriores
	if o.History == nil {
		o.History = []model.StatusRecord{}
	}

	if _, err := m.col.InsertOne(ctx, o); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (m *MongoOrderRepository) FindByOrderID(ctx context.Context, orderID string) (*model.Order, error) {
	var res model.Order
	err := m.col.FindOne(ctx, bson.M{"_id": orderID}).Decode(&res)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &res, nil
}

func (m *MongoOrderRepository) FindAll(ctx context.Context) ([]*model.Order, error) {
	return m.find(ctx, bson.M{})
}

func (m *MongoOrderRepository) FindByStatus(ctx context.Context, status model.OrderStatus) ([]*model.Order, error) {
	return m.find(ctx, bson.M{"order_status": status})
}

func (m *MongoOrderRepository) FindByUserID(ctx context.Context, userID string) ([]*model.Order, error) {
	return m.find(ctx, bson.M{"user_id": userID})
}

func (m *MongoOrderRepository) find(ctx context.Context, filter bson.M) ([]*model.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := m.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*model.Order{}
	for cur.Next(ctx) {
		var v model.Order
		if err := cur.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, cur.Err()
}

// MarkPaid pasa una orden pendiente sin pagar a paid/confirmed y guarda las
// referencias del pago. Devuelve false si la orden ya no califica.
func (m *MongoOrderRepository) MarkPaid(ctx context.Context, orderID, paymentRef, payerRef string, record model.StatusRecord) (bool, error) {
	filter := bson.M{
		"_id":               orderID,
		"order_status":      model.OrderPending,
		"payment_status":    bson.M{"$in": []model.PaymentStatus{model.PaymentPending, model.PaymentFailed}},
		"payment_reference": bson.M{"$exists": false},
	}
	update := bson.M{
		"$set": bson.M{
			"payment_status":    model.PaymentPaid,
			"order_status":      model.OrderConfirmed,
			"payment_reference": paymentRef,
			"payer_reference":   payerRef,
			"updated_at":        time.Now().UTC(),
		},
		"$push": bson.M{"history": record},
	}

	res, err := m.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to mark order paid: %w", err)
	}
	return res.MatchedCount > 0, nil
}

// MarkPaymentFailed nunca toca una orden pagada.
func (m *MongoOrderRepository) MarkPaymentFailed(ctx context.Context, orderID string) (bool, error) {
	filter := bson.M{
		"_id":            orderID,
		"order_status":   model.OrderPending,
		"payment_status": bson.M{"$in": []model.PaymentStatus{model.PaymentPending, model.PaymentFailed}},
	}
	update := bson.M{
		"$set": bson.M{
			"payment_status": model.PaymentFailed,
			"updated_at":     time.Now().UTC(),
		},
	}

	res, err := m.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment failed: %w", err)
	}
	return res.MatchedCount > 0, nil
}

// UpdateStatus escribe orderStatus solo si todavía vale from.
func (m *MongoOrderRepository) UpdateStatus(ctx context.Context, orderID string, from, to model.OrderStatus, record model.StatusRecord) (bool, error) {
	filter := bson.M{
		"_id":          orderID,
		"order_status": from,
	}
	update := bson.M{
		"$set": bson.M{
			"order_status": to,
			"updated_at":   time.Now().UTC(),
		},
		"$push": bson.M{"history": record},
	}

	res, err := m.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to update status: %w", err)
	}
	return res.MatchedCount > 0, nil
}

// ClaimCartClear toma un lease sobre la limpieza del carrito de una orden
// pagada. Solo quien recibe true toca el carrito; un lease vencido se puede
// volver a tomar.
func (m *MongoOrderRepository) ClaimCartClear(ctx context.Context, orderID string, lease time.Duration) (bool, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"_id":            orderID,
		"payment_status": model.PaymentPaid,
		"cart_cleared":   false,
		"$or": bson.A{
			bson.M{"cart_clear_lease": nil},
			bson.M{"cart_clear_lease": bson.M{"$lt": now}},
		},
	}
	update := bson.M{"$set": bson.M{"cart_clear_lease": now.Add(lease)}}

	res, err := m.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to claim cart clear: %w", err)
	}
	return res.MatchedCount > 0, nil
}

// MarkCartLineCleared registra un producto ya descontado, para que un
// reintento no lo descuente dos veces.
func (m *MongoOrderRepository) MarkCartLineCleared(ctx context.Context, orderID, productID string) error {
	update := bson.M{"$addToSet": bson.M{"cart_cleared_lines": productID}}
	if _, err := m.col.UpdateOne(ctx, bson.M{"_id": orderID}, update); err != nil {
		return fmt.Errorf("failed to record cleared line: %w", err)
	}
	return nil
}

func (m *MongoOrderRepository) FinishCartClear(ctx context.Context, orderID string) error {
	update := bson.M{
		"$set":   bson.M{"cart_cleared": true},
		"$unset": bson.M{"cart_clear_lease": ""},
	}
	if _, err := m.col.UpdateOne(ctx, bson.M{"_id": orderID}, update); err != nil {
		return fmt.Errorf("failed to finish cart clear: %w", err)
	}
	return nil
}

// ReleaseCartClear suelta el lease para que el próximo reintento continúe.
func (m *MongoOrderRepository) ReleaseCartClear(ctx context.Context, orderID string) error {
	update := bson.M{"$unset": bson.M{"cart_clear_lease": ""}}
	if _, err := m.col.UpdateOne(ctx, bson.M{"_id": orderID}, update); err != nil {
		return fmt.Errorf("failed to release cart clear: %w", err)
	}
	return nil
}

func (m *MongoOrderRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "order_status", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	if _, err := m.col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create order indexes: %w", err)
	}
	return nil
}
