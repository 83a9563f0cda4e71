package cart

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-shop-checkout/internal/apperr"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/ariefcatur/go-shop-checkout/internal/store/memstore"
)

func newService(t *testing.T) (*Service, *memstore.Store) {
	t.Helper()
	ms := memstore.New()
	ms.PutProduct(orders.Product{ID: "p-mug", SKU: "MUG", Name: "Mug", Price: decimal.NewFromInt(10), Stock: 5, Active: true})
	ms.PutProduct(orders.Product{ID: "p-old", SKU: "OLD", Name: "Old", Price: decimal.NewFromInt(3), Stock: 5, Active: false})
	return &Service{Store: ms, Log: slog.New(slog.NewTextHandler(io.Discard, nil))}, ms
}

func TestGetWithoutCartIsEmpty(t *testing.T) {
	svc, _ := newService(t)
	c, err := svc.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !c.Empty() || c.ID != "" {
		t.Fatalf("expected empty unsaved cart, got %+v", c)
	}
}

func TestAddCreatesCartAndIncrements(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Add(ctx, "u1", "p-mug", 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	c, err := svc.Add(ctx, "u1", "p-mug", 1)
	if err != nil {
		t.Fatalf("add again: %v", err)
	}
	if len(c.Items) != 1 || c.Items[0].Quantity != 3 {
		t.Fatalf("expected one item with qty 3, got %+v", c.Items)
	}
	if c.Items[0].Product.Name != "Mug" {
		t.Fatalf("expected product snapshot, got %+v", c.Items[0].Product)
	}
}

func TestAddRejectsUnknownAndInactive(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Add(ctx, "u1", "nope", 1); !apperr.HasCode(err, apperr.CodeProductNotFound) {
		t.Fatalf("expected product_not_found, got %v", err)
	}
	if _, err := svc.Add(ctx, "u1", "p-old", 1); !apperr.HasCode(err, apperr.CodeProductUnavailable) {
		t.Fatalf("expected product_unavailable, got %v", err)
	}
	if _, err := svc.Add(ctx, "u1", "p-mug", 0); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation failure, got %v", err)
	}
}

func TestSetQuantityAndRemove(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.SetQuantity(ctx, "u1", "p-mug", 4); !apperr.HasCode(err, apperr.CodeCartNotFound) {
		t.Fatalf("expected cart_not_found, got %v", err)
	}
	if _, err := svc.Add(ctx, "u1", "p-mug", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	c, err := svc.SetQuantity(ctx, "u1", "p-mug", 4)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if c.Items[0].Quantity != 4 {
		t.Fatalf("expected qty 4, got %d", c.Items[0].Quantity)
	}

	if _, err := svc.Remove(ctx, "u1", "p-old"); !apperr.HasCode(err, apperr.CodeCartItemNotFound) {
		t.Fatalf("expected cart_item_not_found, got %v", err)
	}
	c, err = svc.Remove(ctx, "u1", "p-mug")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !c.Empty() {
		t.Fatalf("expected empty cart, got %+v", c.Items)
	}
}
