package service

import (
	"context"
	"fmt"

	"storefront-checkout-service/internal/catalog"
)

// CheckStock acota quantity por el stock disponible del producto.
func CheckStock(p *catalog.Product, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be a positive integer", ErrValidation)
	}
	if p == nil {
		return ErrProductNotFound
	}
	if quantity > p.Stock {
		return fmt.Errorf("%w: requested %d of %s, available %d", ErrOutOfStock, quantity, p.ID, p.Stock)
	}
	return nil
}

// StockValidator lee el stock del catálogo antes de tocar el carrito o hacer
// checkout.
type StockValidator struct {
	catalog ProductCatalog
}

func NewStockValidator(c ProductCatalog) *StockValidator {
	return &StockValidator{catalog: c}
}

// Validate devuelve el producto contra el que se hizo el control.
func (v *StockValidator) Validate(ctx context.Context, productID string, quantity int) (*catalog.Product, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be a positive integer", ErrValidation)
	}
	p, err := v.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if err := CheckStock(p, quantity); err != nil {
		return nil, err
	}
	return p, nil
}
