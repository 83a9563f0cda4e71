// Package inventory owns the stock counters. Every call runs inside the
// caller's transaction, so a reservation rolled back with its order never
// leaves stock decremented.
package inventory

import (
	"context"
	"errors"
	"sort"
	"strconv"

	"github.com/ariefcatur/go-shop-checkout/internal/apperr"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/ariefcatur/go-shop-checkout/internal/store"
)

// Line is one (product, quantity) pair to reserve or release.
type Line struct {
	ProductID string
	Quantity  int
}

// LinesOf returns the order's items as ledger lines.
func LinesOf(items []orders.OrderItem) []Line {
	out := make([]Line, 0, len(items))
	for _, it := range items {
		out = append(out, Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

// Reserve decrements stock for one product. It fails with product_unavailable
// when the product is missing or inactive and insufficient_stock when fewer
// than qty units remain; stock is left untouched in both cases.
func Reserve(ctx context.Context, tx store.Tx, productID string, qty int) error {
	if qty <= 0 {
		return apperr.Validation("quantity must be at least 1").With("product_id", productID)
	}
	ok, err := tx.Products().Decrement(ctx, productID, qty)
	if err != nil {
		return apperr.Wrap("reserve stock", err)
	}
	if ok {
		return nil
	}

	// Guard did not match: read the row to say why.
	p, err := tx.Products().Get(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.BusinessRule(apperr.CodeProductUnavailable, "product is not available").
			With("product_id", productID)
	}
	if err != nil {
		return apperr.Wrap("reserve stock", err)
	}
	if !p.Active {
		return apperr.BusinessRule(apperr.CodeProductUnavailable, "product "+p.Name+" is not available").
			With("product_id", productID)
	}
	return apperr.BusinessRule(apperr.CodeInsufficientStock, "insufficient stock for "+p.Name).
		With("product_id", productID).
		With("requested", strconv.Itoa(qty)).
		With("available", strconv.Itoa(p.Stock))
}

// Release increments stock for one product. There is no upper bound.
func Release(ctx context.Context, tx store.Tx, productID string, qty int) error {
	if qty <= 0 {
		return nil
	}
	if err := tx.Products().Increment(ctx, productID, qty); err != nil {
		return apperr.Wrap("release stock", err)
	}
	return nil
}

// ReserveAll reserves every line in product-id order so two transactions
// never wait on each other's rows in opposite order. The first failure aborts
// and is returned; the caller's rollback undoes earlier lines.
func ReserveAll(ctx context.Context, tx store.Tx, lines []Line) error {
	for _, l := range sorted(lines) {
		if err := Reserve(ctx, tx, l.ProductID, l.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseAll releases every line and returns the number of units restored.
func ReleaseAll(ctx context.Context, tx store.Tx, lines []Line) (int, error) {
	units := 0
	for _, l := range sorted(lines) {
		if err := Release(ctx, tx, l.ProductID, l.Quantity); err != nil {
			return units, err
		}
		units += l.Quantity
	}
	return units, nil
}

func sorted(lines []Line) []Line {
	out := append([]Line(nil), lines...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}
