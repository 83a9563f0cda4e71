package cart

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ariefcatur/go-shop-checkout/internal/apperr"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/ariefcatur/go-shop-checkout/internal/store"
)

type Service struct {
	Store store.Store
	Log   *slog.Logger
}

// Get returns the user's cart. A user without one sees an empty, unsaved cart.
func (s *Service) Get(ctx context.Context, userID string) (orders.Cart, error) {
	var out orders.Cart
	err := s.Store.InTx(ctx, func(tx store.Tx) error {
		c, err := tx.Carts().GetByUser(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			out = orders.Cart{UserID: userID, Items: []orders.CartItem{}}
			return nil
		}
		if err != nil {
			return apperr.Wrap("load cart", err)
		}
		out = c
		return nil
	})
	return out, err
}

// Add puts qty units of a product in the cart, creating the cart on first use.
// Adding a product already present increases its quantity.
func (s *Service) Add(ctx context.Context, userID, productID string, qty int) (orders.Cart, error) {
	if qty < 1 {
		return orders.Cart{}, apperr.Validation("quantity must be at least 1")
	}
	var out orders.Cart
	err := s.Store.InTx(ctx, func(tx store.Tx) error {
		p, err := tx.Products().Get(ctx, productID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound(apperr.CodeProductNotFound, "product not found").With("product_id", productID)
		}
		if err != nil {
			return apperr.Wrap("load product", err)
		}
		if !p.Active {
			return apperr.BusinessRule(apperr.CodeProductUnavailable, "product "+p.Name+" is not available").
				With("product_id", productID)
		}

		c, err := tx.Carts().GetByUser(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			c, err = tx.Carts().Create(ctx, userID)
		}
		if err != nil {
			return apperr.Wrap("load cart", err)
		}

		next := qty
		if it, ok := findItem(c, productID); ok {
			next += it.Quantity
		}
		if err := tx.Carts().SetItem(ctx, c.ID, productID, next); err != nil {
			return apperr.Wrap("save cart item", err)
		}
		out, err = tx.Carts().Get(ctx, c.ID)
		return apperr.Wrap("reload cart", err)
	})
	if err == nil {
		s.Log.Info("cart item added", "user_id", userID, "product_id", productID, "quantity", qty)
	}
	return out, err
}

// SetQuantity overwrites the quantity of an item already in the cart.
func (s *Service) SetQuantity(ctx context.Context, userID, productID string, qty int) (orders.Cart, error) {
	if qty < 1 {
		return orders.Cart{}, apperr.Validation("quantity must be at least 1")
	}
	return s.mutateItem(ctx, userID, productID, func(tx store.Tx, cartID string) error {
		return tx.Carts().SetItem(ctx, cartID, productID, qty)
	})
}

// Remove drops an item from the cart.
func (s *Service) Remove(ctx context.Context, userID, productID string) (orders.Cart, error) {
	return s.mutateItem(ctx, userID, productID, func(tx store.Tx, cartID string) error {
		return tx.Carts().RemoveItem(ctx, cartID, productID)
	})
}

func (s *Service) mutateItem(ctx context.Context, userID, productID string, fn func(tx store.Tx, cartID string) error) (orders.Cart, error) {
	var out orders.Cart
	err := s.Store.InTx(ctx, func(tx store.Tx) error {
		c, err := tx.Carts().GetByUser(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound(apperr.CodeCartNotFound, "cart not found")
		}
		if err != nil {
			return apperr.Wrap("load cart", err)
		}
		if _, ok := findItem(c, productID); !ok {
			return apperr.NotFound(apperr.CodeCartItemNotFound, "item not found in cart").With("product_id", productID)
		}
		if err := fn(tx, c.ID); err != nil {
			return apperr.Wrap("update cart item", err)
		}
		out, err = tx.Carts().Get(ctx, c.ID)
		return apperr.Wrap("reload cart", err)
	})
	return out, err
}

func findItem(c orders.Cart, productID string) (orders.CartItem, bool) {
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return orders.CartItem{}, false
}
