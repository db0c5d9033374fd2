package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"storefront-checkout-service/internal/cache"
	"storefront-checkout-service/internal/logging"
	"storefront-checkout-service/internal/model"
	"storefront-checkout-service/internal/repository"
)

const (
	maxAddAttempts    = 5
	enrichConcurrency = 8
)

// CartLine es un item del carrito con los datos del catálogo al momento de leer.
type CartLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Title     string `json:"title"`
	Image     string `json:"image"`
	UnitPrice int64  `json:"unitPrice"`
	Subtotal  int64  `json:"subtotal"`
	Stock     int    `json:"stock"`
	// Available es false si el producto ya no existe o el stock no alcanza.
	Available bool `json:"available"`
}

type CartView struct {
	UserID string     `json:"userId"`
	Items  []CartLine `json:"items"`
	Total  int64      `json:"total"`
}

type CartService struct {
	repo    CartRepository
	cache   CartCache
	catalog ProductCatalog
	stock   *StockValidator
	loads   singleflight.Group
}

// NewCartService acepta cache nil; entonces cada lectura va al repositorio.
func NewCartService(repo CartRepository, c CartCache, pc ProductCatalog) *CartService {
	return &CartService{
		repo:    repo,
		cache:   c,
		catalog: pc,
		stock:   NewStockValidator(pc),
	}
}

// AddItem suma quantity a la línea de productID. El total queda acotado por el
// stock actual; si no alcanza el carrito no cambia.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) error {
	if err := validateIDs(userID, productID); err != nil {
		return err
	}
	p, err := s.stock.Validate(ctx, productID, quantity)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < maxAddAttempts; attempt++ {
		ok, err := s.repo.IncrementItem(ctx, userID, productID, quantity, p.Stock)
		if err != nil {
			return err
		}
		if ok {
			s.invalidate(ctx, userID)
			return nil
		}

		ok, err = s.repo.InsertItem(ctx, userID, model.CartItem{ProductID: productID, Quantity: quantity})
		if err != nil {
			return err
		}
		if ok {
			s.invalidate(ctx, userID)
			return nil
		}

		// ninguno aplicó: la línea existe y la suma pasa el límite, u otro
		// pedido cambió la línea en el medio
		cart, err := s.repo.GetCart(ctx, userID)
		if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
			return err
		}
		if it, found := cart.Item(productID); found && it.Quantity+quantity > p.Stock {
			return fmt.Errorf("%w: cart holds %d of %s, adding %d exceeds available %d",
				ErrOutOfStock, it.Quantity, productID, quantity, p.Stock)
		}
	}
	return fmt.Errorf("%w: cart line %s kept changing", ErrConflict, productID)
}

// UpdateQuantity reemplaza la cantidad. Cero se rechaza; quitar es otra
// operación.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if err := validateIDs(userID, productID); err != nil {
		return err
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be a positive integer, use remove to drop a line", ErrValidation)
	}
	if _, err := s.stock.Validate(ctx, productID, quantity); err != nil {
		return err
	}

	err := s.repo.SetItemQuantity(ctx, userID, productID, quantity)
	if errors.Is(err, repository.ErrItemNotFound) {
		return fmt.Errorf("%w: %s", ErrCartItemNotFound, productID)
	}
	if err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) error {
	if err := validateIDs(userID, productID); err != nil {
		return err
	}
	if err := s.repo.RemoveItem(ctx, userID, productID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// Items devuelve las líneas guardadas sin datos del catálogo.
func (s *CartService) Items(ctx context.Context, userID string) ([]model.CartItem, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cart.Items, nil
}

func (s *CartService) GetCart(ctx context.Context, userID string) (*CartView, error) {
	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	lines := make([]CartLine, len(cart.Items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for i, it := range cart.Items {
		g.Go(func() error {
			p, err := s.catalog.GetProduct(gctx, it.ProductID)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
			}
			line := CartLine{ProductID: it.ProductID, Quantity: it.Quantity}
			if p != nil {
				line.Title = p.Title
				line.Image = p.Image
				line.UnitPrice = p.UnitPrice()
				line.Subtotal = line.UnitPrice * int64(it.Quantity)
				line.Stock = p.Stock
				line.Available = p.Stock >= it.Quantity
			}
			lines[i] = line
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view := &CartView{UserID: userID, Items: lines}
	for _, l := range lines {
		view.Total += l.Subtotal
	}
	return view, nil
}

// RemoveOrdered descuenta del carrito las cantidades ordenadas. Las líneas
// agregadas después del checkout no se tocan. done se llama después de cada
// línea descontada, para que un reintento pueda saltearla.
func (s *CartService) RemoveOrdered(ctx context.Context, userID string, lines []model.OrderLine, done func(productID string) error) error {
	var errs []error
	for _, l := range lines {
		if err := s.repo.DeductItem(ctx, userID, l.ProductID, l.Quantity); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", l.ProductID, err))
			continue
		}
		if done != nil {
			if err := done(l.ProductID); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", l.ProductID, err))
			}
		}
	}
	s.invalidate(ctx, userID)
	return errors.Join(errs...)
}

// load junta lecturas concurrentes del mismo carrito en una sola consulta.
func (s *CartService) load(ctx context.Context, userID string) (*model.Cart, error) {
	v, err, _ := s.loads.Do(userID, func() (any, error) {
		log := logging.FromCtx(ctx)
		if s.cache != nil {
			cart, err := s.cache.Get(ctx, userID)
			if err == nil {
				return cart, nil
			}
			if !errors.Is(err, cache.ErrCacheMiss) {
				log.Warn("cart cache read failed", "user_id", userID, "error", err)
			}
		}

		cart, err := s.repo.GetCart(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			return &model.Cart{UserID: userID, Items: []model.CartItem{}}, nil
		}
		if err != nil {
			return nil, err
		}

		if s.cache != nil {
			if err := s.cache.Set(ctx, userID, cart); err != nil {
				log.Warn("cart cache write failed", "user_id", userID, "error", err)
			}
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Cart), nil
}

func (s *CartService) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, userID); err != nil {
		logging.FromCtx(ctx).Warn("cart cache invalidation failed", "user_id", userID, "error", err)
	}
}

func validateIDs(userID, productID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id required", ErrValidation)
	}
	if strings.TrimSpace(productID) == "" {
		return fmt.Errorf("%w: product id required", ErrValidation)
	}
	return nil
}
