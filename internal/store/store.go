// Package store defines the persistence contracts used by the order and
// payment services. Every mutation runs inside Store.InTx: the callback either
// returns nil and everything it wrote is committed, or returns an error and
// nothing it wrote survives.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-shop-checkout/internal/orders"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
	// ErrConstraint reports a row rejected by a check constraint.
	ErrConstraint = errors.New("constraint violated")
)

type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

type Tx interface {
	Products() Products
	Carts() Carts
	Orders() Orders
	Payments() Payments
}

type Products interface {
	List(ctx context.Context) ([]orders.Product, error)
	Get(ctx context.Context, id string) (orders.Product, error)
	// Decrement lowers stock by qty only when the product is active and holds
	// at least qty units. It reports false when the guard did not match.
	Decrement(ctx context.Context, id string, qty int) (bool, error)
	Increment(ctx context.Context, id string, qty int) error
}

type Carts interface {
	// GetByUser and Get return ErrNotFound when no cart exists. Items carry
	// the current product row.
	GetByUser(ctx context.Context, userID string) (orders.Cart, error)
	Get(ctx context.Context, cartID string) (orders.Cart, error)
	Create(ctx context.Context, userID string) (orders.Cart, error)
	SetItem(ctx context.Context, cartID, productID string, qty int) error
	RemoveItem(ctx context.Context, cartID, productID string) error
	Delete(ctx context.Context, cartID string) error
}

type Orders interface {
	// Create persists the order and its items.
	Create(ctx context.Context, o *orders.Order) error
	Get(ctx context.Context, id string) (orders.Order, error)
	// Lock is Get plus a row lock held until the transaction ends.
	Lock(ctx context.Context, id string) (orders.Order, error)
	ListByUser(ctx context.Context, userID string) ([]orders.Order, error)
	ListIDsByStatusBefore(ctx context.Context, status orders.Status, before time.Time) ([]string, error)
	SetStatus(ctx context.Context, id string, status orders.Status) error
}

type Payments interface {
	Create(ctx context.Context, p *orders.Payment) error
	// Lookups do not lock. Writers must hold the owning order's lock
	// (Orders.Lock) and re-read the payment under it.
	GetByOrder(ctx context.Context, orderID string) (orders.Payment, error)
	GetBySession(ctx context.Context, sessionID string) (orders.Payment, error)
	GetByIntent(ctx context.Context, intentID string) (orders.Payment, error)
	Update(ctx context.Context, p *orders.Payment) error
}
