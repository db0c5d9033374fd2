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

var (
	ErrCartNotFound   = errors.New("cart not found")
	ErrItemNotFound   = errors.New("item not found in cart")
	ErrCartContention = errors.New("cart line kept changing during update")
)

const maxDeductAttempts = 5

// MongoCartRepository guarda un documento por usuario. Cada escritura toca una
// sola línea con un filtro condicional, así no se pierden pedidos concurrentes
// sobre otras líneas del mismo carrito.
type MongoCartRepository struct {
	col *mongo.Collection
}

func NewMongoCartRepository(db *mongo.Database) *MongoCartRepository {
	return &MongoCartRepository{col: db.Collection("carts")}
}

func (m *MongoCartRepository) GetCart(ctx context.Context, userID string) (*model.Cart, error) {
	var cart model.Cart
	err := m.col.FindOne(ctx, bson.M{"user_id": userID}).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return &cart, nil
}

// IncrementItem suma delta a una línea existente solo si el resultado no pasa
// limit. Devuelve false si la línea no está o se rompería el límite.
func (m *MongoCartRepository) IncrementItem(ctx context.Context, userID, productID string, delta, limit int) (bool, error) {
	filter := bson.M{
		"user_id": userID,
		"items": bson.M{"$elemMatch": bson.M{
			"product_id": productID,
			"quantity":   bson.M{"$lte": limit - delta},
		}},
	}
	update := bson.M{
		"$inc": bson.M{"items.$.quantity": delta},
		"$set": bson.M{"updated_at": time.Now()},
	}

	res, err := m.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to increment item: %w", err)
	}
	return res.MatchedCount > 0, nil
}

// InsertItem agrega una línea nueva y crea el carrito en el primer uso.
// Devuelve false si la línea ya existe.
func (m *MongoCartRepository) InsertItem(ctx context.Context, userID string, item model.CartItem) (bool, error) {
	now := time.Now()
	if item.AddedAt.IsZero() {
		item.AddedAt = now
	}

	filter := bson.M{
		"user_id":          userID,
		"items.product_id": bson.M{"$ne": item.ProductID},
	}
	update := bson.M{
		"$push":        bson.M{"items": item},
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"created_at": now},
	}

	res, err := m.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		// el carrito ya tiene la línea, así que el upsert chocó con el índice
		// único de user_id
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to add new item: %w", err)
	}
	return res.MatchedCount > 0 || res.UpsertedCount > 0, nil
}

func (m *MongoCartRepository) SetItemQuantity(ctx context.Context, userID, productID string, quantity int) error {
	filter := bson.M{
		"user_id":          userID,
		"items.product_id": productID,
	}
	update := bson.M{
		"$set": bson.M{
			"items.$.quantity": quantity,
			"updated_at":       time.Now(),
		},
	}

	res, err := m.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update item quantity: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrItemNotFound
	}
	return nil
}

// RemoveItem no hace nada si no existe el carrito o la línea.
func (m *MongoCartRepository) RemoveItem(ctx context.Context, userID, productID string) error {
	filter := bson.M{"user_id": userID, "items.product_id": productID}
	update := bson.M{
		"$pull": bson.M{"items": bson.M{"product_id": productID}},
		"$set":  bson.M{"updated_at": time.Now()},
	}

	if _, err := m.col.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}
	return nil
}

// DeductItem saca hasta quantity unidades de productID: la línea se quita si
// tiene quantity o menos, si no se decrementa. Una línea ausente no es error.
func (m *MongoCartRepository) DeductItem(ctx context.Context, userID, productID string, quantity int) error {
	now := time.Now()
	for attempt := 0; attempt < maxDeductAttempts; attempt++ {
		pull, err := m.col.UpdateOne(ctx,
			bson.M{
				"user_id": userID,
				"items": bson.M{"$elemMatch": bson.M{
					"product_id": productID,
					"quantity":   bson.M{"$lte": quantity},
				}},
			},
			bson.M{
				"$pull": bson.M{"items": bson.M{"product_id": productID}},
				"$set":  bson.M{"updated_at": now},
			},
		)
		if err != nil {
			return fmt.Errorf("failed to pull item: %w", err)
		}
		if pull.MatchedCount > 0 {
			return nil
		}

		dec, err := m.col.UpdateOne(ctx,
			bson.M{
				"user_id": userID,
				"items": bson.M{"$elemMatch": bson.M{
					"product_id": productID,
					"quantity":   bson.M{"$gt": quantity},
				}},
			},
			bson.M{
				"$inc": bson.M{"items.$.quantity": -quantity},
				"$set": bson.M{"updated_at": now},
			},
		)
		if err != nil {
			return fmt.Errorf("failed to decrement item: %w", err)
		}
		if dec.MatchedCount > 0 {
			return nil
		}

		n, err := m.col.CountDocuments(ctx, bson.M{"user_id": userID, "items.product_id": productID})
		if err != nil {
			return fmt.Errorf("failed to check item: %w", err)
		}
		if n == 0 {
			return nil
		}
	}
	return ErrCartContention
}

func (m *MongoCartRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := m.col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create cart indexes: %w", err)
	}
	return nil
}
