// Package history reads a user's own orders with their payments attached.
package history

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-shop-checkout/internal/apperr"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/ariefcatur/go-shop-checkout/internal/store"
)

type Service struct {
	Store store.Store
}

// List returns the user's orders, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]orders.Order, error) {
	out := []orders.Order{}
	err := s.Store.InTx(ctx, func(tx store.Tx) error {
		list, err := tx.Orders().ListByUser(ctx, userID)
		if err != nil {
			return apperr.Wrap("list orders", err)
		}
		for _, o := range list {
			if err := attachPayment(ctx, tx, &o); err != nil {
				return err
			}
			out = append(out, o)
		}
		return nil
	})
	return out, err
}

// Get returns one order. Orders of other users are reported as missing.
func (s *Service) Get(ctx context.Context, userID, orderID string) (orders.Order, error) {
	var out orders.Order
	err := s.Store.InTx(ctx, func(tx store.Tx) error {
		o, err := tx.Orders().Get(ctx, orderID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && o.UserID != userID) {
			return apperr.NotFound(apperr.CodeOrderNotFound, "order not found").With("order_id", orderID)
		}
		if err != nil {
			return apperr.Wrap("load order", err)
		}
		if err := attachPayment(ctx, tx, &o); err != nil {
			return err
		}
		out = o
		return nil
	})
	return out, err
}

func attachPayment(ctx context.Context, tx store.Tx, o *orders.Order) error {
	p, err := tx.Payments().GetByOrder(ctx, o.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperr.Wrap("load payment", err)
	}
	o.Payment = &p
	return nil
}
