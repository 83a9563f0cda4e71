package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-shop-checkout/internal/apperr"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/ariefcatur/go-shop-checkout/internal/store"
	"github.com/ariefcatur/go-shop-checkout/internal/store/memstore"
)

func newStore() *memstore.Store {
	ms := memstore.New()
	ms.PutProduct(orders.Product{ID: "a", SKU: "A", Name: "Alpha", Price: decimal.NewFromInt(1), Stock: 5, Active: true})
	ms.PutProduct(orders.Product{ID: "b", SKU: "B", Name: "Bravo", Price: decimal.NewFromInt(1), Stock: 1, Active: true})
	ms.PutProduct(orders.Product{ID: "off", SKU: "OFF", Name: "Off", Price: decimal.NewFromInt(1), Stock: 9, Active: false})
	return ms
}

func reserve(ms *memstore.Store, id string, qty int) error {
	return ms.InTx(context.Background(), func(tx store.Tx) error {
		return Reserve(context.Background(), tx, id, qty)
	})
}

func TestReserve(t *testing.T) {
	ms := newStore()
	if err := reserve(ms, "a", 3); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if ms.Stock("a") != 2 {
		t.Fatalf("expected 2 left, got %d", ms.Stock("a"))
	}

	err := reserve(ms, "a", 3)
	if !apperr.HasCode(err, apperr.CodeInsufficientStock) {
		t.Fatalf("expected insufficient_stock, got %v", err)
	}
	if e := apperr.As(err); e.Details["requested"] != "3" || e.Details["available"] != "2" {
		t.Fatalf("unexpected details %v", e.Details)
	}
	if ms.Stock("a") != 2 {
		t.Fatalf("failed reserve must not touch stock, got %d", ms.Stock("a"))
	}

	if err := reserve(ms, "off", 1); !apperr.HasCode(err, apperr.CodeProductUnavailable) {
		t.Fatalf("expected product_unavailable for inactive product, got %v", err)
	}
	if err := reserve(ms, "ghost", 1); !apperr.HasCode(err, apperr.CodeProductUnavailable) {
		t.Fatalf("expected product_unavailable for missing product, got %v", err)
	}
	if err := reserve(ms, "a", 0); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for zero quantity, got %v", err)
	}
}

func TestReserveAllIsAllOrNothing(t *testing.T) {
	ms := newStore()
	err := ms.InTx(context.Background(), func(tx store.Tx) error {
		return ReserveAll(context.Background(), tx, []Line{{"a", 2}, {"b", 2}})
	})
	if !apperr.HasCode(err, apperr.CodeInsufficientStock) {
		t.Fatalf("expected insufficient_stock, got %v", err)
	}
	if ms.Stock("a") != 5 || ms.Stock("b") != 1 {
		t.Fatalf("rollback should restore stock, got a=%d b=%d", ms.Stock("a"), ms.Stock("b"))
	}
}

func TestReleaseAll(t *testing.T) {
	ms := newStore()
	var units int
	err := ms.InTx(context.Background(), func(tx store.Tx) error {
		var err error
		units, err = ReleaseAll(context.Background(), tx, []Line{{"b", 2}, {"a", 3}, {"a", 0}})
		return err
	})
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if units != 5 || ms.Stock("a") != 8 || ms.Stock("b") != 3 {
		t.Fatalf("unexpected result units=%d a=%d b=%d", units, ms.Stock("a"), ms.Stock("b"))
	}
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	ms := newStore()
	const buyers = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := reserve(ms, "a", 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case apperr.HasCode(err, apperr.CodeInsufficientStock):
				fail++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if ok != 5 || fail != buyers-5 {
		t.Fatalf("expected 5 successes and %d failures, got %d and %d", buyers-5, ok, fail)
	}
	if ms.Stock("a") != 0 {
		t.Fatalf("expected stock 0, got %d", ms.Stock("a"))
	}
}

func TestLinesOf(t *testing.T) {
	lines := LinesOf([]orders.OrderItem{{ProductID: "x", Quantity: 2}, {ProductID: "y", Quantity: 1}})
	if len(lines) != 2 || lines[0] != (Line{"x", 2}) || lines[1] != (Line{"y", 1}) {
		t.Fatalf("unexpected lines %+v", lines)
	}
}
