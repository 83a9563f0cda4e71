package catalog

import (
	"context"
	"testing"

	"github.com/ariefcatur/go-shop-checkout/internal/apperr"
	"github.com/ariefcatur/go-shop-checkout/internal/store/memstore"
)

func TestListAndGet(t *testing.T) {
	st := memstore.New()
	for _, p := range Demo() {
		st.PutProduct(p)
	}
	svc := &Service{Store: st}
	ctx := context.Background()

	ps, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ps) != len(Demo()) {
		t.Fatalf("expected %d products, got %d", len(Demo()), len(ps))
	}
	for i := 1; i < len(ps); i++ {
		if ps[i-1].SKU > ps[i].SKU {
			t.Fatalf("products not ordered by sku: %s before %s", ps[i-1].SKU, ps[i].SKU)
		}
	}

	p, err := svc.Get(ctx, "prod-mug")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.SKU != "MUG-01" || p.Stock != 50 {
		t.Fatalf("unexpected product %+v", p)
	}

	if _, err := svc.Get(ctx, "nope"); !apperr.HasCode(err, apperr.CodeProductNotFound) {
		t.Fatalf("expected product_not_found, got %v", err)
	}
}

func TestListEmptyCatalog(t *testing.T) {
	ps, err := (&Service{Store: memstore.New()}).List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if ps == nil || len(ps) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", ps)
	}
}
