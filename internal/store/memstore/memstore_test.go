package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/ariefcatur/go-shop-checkout/internal/store"
)

func TestFailedTxLeavesNoTrace(t *testing.T) {
	ms := New()
	ms.PutProduct(orders.Product{ID: "p", SKU: "P", Price: decimal.NewFromInt(3), Stock: 4, Active: true})
	boom := errors.New("boom")

	err := ms.InTx(context.Background(), func(tx store.Tx) error {
		ctx := context.Background()
		if ok, err := tx.Products().Decrement(ctx, "p", 4); err != nil || !ok {
			t.Fatalf("decrement: %v %v", ok, err)
		}
		c, err := tx.Carts().Create(ctx, "u1")
		if err != nil {
			return err
		}
		if err := tx.Carts().SetItem(ctx, c.ID, "p", 1); err != nil {
			return err
		}
		if err := tx.Orders().Create(ctx, &orders.Order{UserID: "u1", Status: orders.StatusPending}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if ms.Stock("p") != 4 {
		t.Fatalf("stock should be untouched, got %d", ms.Stock("p"))
	}
	if o, p := ms.Counts(); o != 0 || p != 0 {
		t.Fatalf("expected no orders or payments, got %d %d", o, p)
	}
	err = ms.InTx(context.Background(), func(tx store.Tx) error {
		_, err := tx.Carts().GetByUser(context.Background(), "u1")
		return err
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cart should not exist, got %v", err)
	}
}

func TestDecrementGuard(t *testing.T) {
	ms := New()
	ms.PutProduct(orders.Product{ID: "p", SKU: "P", Stock: 2, Active: true})
	ms.PutProduct(orders.Product{ID: "off", SKU: "OFF", Stock: 2, Active: false})
	_ = ms.InTx(context.Background(), func(tx store.Tx) error {
		ctx := context.Background()
		for _, c := range []struct {
			id   string
			qty  int
			want bool
		}{{"p", 3, false}, {"off", 1, false}, {"missing", 1, false}, {"p", 2, true}, {"p", 1, false}} {
			if got, _ := tx.Products().Decrement(ctx, c.id, c.qty); got != c.want {
				t.Fatalf("Decrement(%s, %d) = %v, want %v", c.id, c.qty, got, c.want)
			}
		}
		return nil
	})
	if ms.Stock("p") != 0 {
		t.Fatalf("expected stock 0, got %d", ms.Stock("p"))
	}
	if ms.Stock("missing") != -1 {
		t.Fatalf("unknown product should report -1")
	}
}

func TestCartKeepsInsertionOrderAndJoinsProducts(t *testing.T) {
	ms := New()
	ms.PutProduct(orders.Product{ID: "z", SKU: "Z", Name: "Zed", Price: decimal.NewFromInt(1), Stock: 1, Active: true})
	ms.PutProduct(orders.Product{ID: "a", SKU: "A", Name: "Ay", Price: decimal.NewFromInt(2), Stock: 1, Active: true})

	var c orders.Cart
	err := ms.InTx(context.Background(), func(tx store.Tx) error {
		ctx := context.Background()
		var err error
		if c, err = tx.Carts().Create(ctx, "u1"); err != nil {
			return err
		}
		for _, pid := range []string{"z", "a"} {
			if err := tx.Carts().SetItem(ctx, c.ID, pid, 1); err != nil {
				return err
			}
		}
		if err := tx.Carts().SetItem(ctx, c.ID, "z", 3); err != nil {
			return err
		}
		if err := tx.Carts().SetItem(ctx, c.ID, "ghost", 1); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("unknown product should be rejected, got %v", err)
		}
		c, err = tx.Carts().Get(ctx, c.ID)
		return err
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	if len(c.Items) != 2 || c.Items[0].ProductID != "z" || c.Items[0].Quantity != 3 || c.Items[1].Product.Name != "Ay" {
		t.Fatalf("unexpected cart %+v", c.Items)
	}
}

func TestOnePaymentPerOrder(t *testing.T) {
	ms := New()
	err := ms.InTx(context.Background(), func(tx store.Tx) error {
		ctx := context.Background()
		o := &orders.Order{UserID: "u1", Status: orders.StatusPending}
		if err := tx.Orders().Create(ctx, o); err != nil {
			return err
		}
		if err := tx.Payments().Create(ctx, &orders.Payment{OrderID: o.ID, Status: orders.PaymentPending}); err != nil {
			return err
		}
		if err := tx.Payments().Create(ctx, &orders.Payment{OrderID: o.ID}); !errors.Is(err, store.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
		if err := tx.Payments().Create(ctx, &orders.Payment{OrderID: "nope"}); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for missing order, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	if o, p := ms.Counts(); o != 1 || p != 1 {
		t.Fatalf("expected 1 order and 1 payment, got %d %d", o, p)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := New().InTx(ctx, func(store.Tx) error { called = true; return nil })
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("expected context.Canceled without running fn, got %v called=%v", err, called)
	}
}
