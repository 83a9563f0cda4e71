// Package catalog serves product reads and the demo seed data.
package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-shop-checkout/internal/apperr"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/ariefcatur/go-shop-checkout/internal/store"
)

type Service struct {
	Store store.Store
}

func (s *Service) List(ctx context.Context) ([]orders.Product, error) {
	var out []orders.Product
	err := s.Store.InTx(ctx, func(tx store.Tx) error {
		ps, err := tx.Products().List(ctx)
		if err != nil {
			return apperr.Wrap("list products", err)
		}
		out = ps
		return nil
	})
	if out == nil {
		out = []orders.Product{}
	}
	return out, err
}

func (s *Service) Get(ctx context.Context, id string) (orders.Product, error) {
	var out orders.Product
	err := s.Store.InTx(ctx, func(tx store.Tx) error {
		p, err := tx.Products().Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound(apperr.CodeProductNotFound, "product not found").With("product_id", id)
		}
		if err != nil {
			return apperr.Wrap("load product", err)
		}
		out = p
		return nil
	})
	return out, err
}

// Demo is the catalog loaded in memory mode and by `orderctl seed`.
func Demo() []orders.Product {
	return []orders.Product{
		{ID: "prod-tshirt", SKU: "TSHIRT-01", Name: "Cotton T-Shirt", Price: decimal.RequireFromString("19.99"), Stock: 100, Active: true},
		{ID: "prod-mug", SKU: "MUG-01", Name: "Ceramic Mug", Price: decimal.RequireFromString("9.50"), Stock: 50, Active: true},
		{ID: "prod-hoodie", SKU: "HOODIE-01", Name: "Zip Hoodie", Price: decimal.RequireFromString("45.00"), Stock: 20, Active: true},
		{ID: "prod-poster", SKU: "POSTER-01", Name: "Limited Poster", Price: decimal.RequireFromString("12.00"), Stock: 3, Active: true},
		{ID: "prod-cap", SKU: "CAP-01", Name: "Retired Cap", Price: decimal.RequireFromString("15.00"), Stock: 10, Active: false},
	}
}
