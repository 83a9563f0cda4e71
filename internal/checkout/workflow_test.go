package checkout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-shop-checkout/internal/apperr"
	"github.com/ariefcatur/go-shop-checkout/internal/notify"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/ariefcatur/go-shop-checkout/internal/payments/paymenttest"
	"github.com/ariefcatur/go-shop-checkout/internal/store"
	"github.com/ariefcatur/go-shop-checkout/internal/store/memstore"
)

type fixture struct {
	ms   *memstore.Store
	rec  *notify.Recorder
	proc *paymenttest.Processor
	wf   *Workflow
}

func newFixture(t *testing.T, mode Mode) *fixture {
	t.Helper()
	ms := memstore.New()
	ms.PutProduct(orders.Product{ID: "p-a", SKU: "A", Name: "Alpha", Price: decimal.NewFromInt(10), Stock: 10, Active: true})
	ms.PutProduct(orders.Product{ID: "p-b", SKU: "B", Name: "Bravo", Price: decimal.NewFromInt(5), Stock: 10, Active: true})
	ms.PutProduct(orders.Product{ID: "p-c", SKU: "C", Name: "Charlie", Price: decimal.NewFromInt(7), Stock: 0, Active: true})
	ms.PutProduct(orders.Product{ID: "p-d", SKU: "D", Name: "Delta", Price: decimal.NewFromInt(1), Stock: 10, Active: false})

	f := &fixture{ms: ms, rec: &notify.Recorder{}, proc: paymenttest.New("whsec_test")}
	f.wf = &Workflow{
		Store:    ms,
		Mode:     mode,
		Notifier: f.rec,
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if mode == ModeRedirect {
		f.wf.Processor = f.proc
	}
	return f
}

// fill creates userID's cart holding the given product quantities.
func (f *fixture) fill(t *testing.T, userID string, items map[string]int) string {
	t.Helper()
	var cartID string
	err := f.ms.InTx(context.Background(), func(tx store.Tx) error {
		c, err := tx.Carts().Create(context.Background(), userID)
		if err != nil {
			return err
		}
		cartID = c.ID
		for pid, q := range items {
			if err := tx.Carts().SetItem(context.Background(), c.ID, pid, q); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("fill cart: %v", err)
	}
	return cartID
}

func (f *fixture) cartExists(userID string) bool {
	err := f.ms.InTx(context.Background(), func(tx store.Tx) error {
		_, err := tx.Carts().GetByUser(context.Background(), userID)
		return err
	})
	return err == nil
}

func TestCheckoutOfflineScenario(t *testing.T) {
	f := newFixture(t, ModeOffline)
	f.fill(t, "u1", map[string]int{"p-a": 2, "p-b": 1})

	res, err := f.wf.Checkout(context.Background(), "u1", Input{Notes: "leave at door"})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !res.Order.Total.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("expected total 25, got %s", res.Order.Total)
	}
	if res.Order.Status != orders.StatusPending || len(res.Order.Items) != 2 {
		t.Fatalf("unexpected order %+v", res.Order)
	}
	for _, it := range res.Order.Items {
		want := map[string]int64{"p-a": 10, "p-b": 5}[it.ProductID]
		if !it.UnitPrice.Equal(decimal.NewFromInt(want)) {
			t.Fatalf("item %s: expected snapshot price %d, got %s", it.ProductID, want, it.UnitPrice)
		}
	}
	if res.Payment.Status != orders.PaymentPending || res.Payment.Method != orders.MethodOffline {
		t.Fatalf("unexpected payment %+v", res.Payment)
	}
	if !res.Payment.Amount.Equal(res.Order.Total) || res.PaymentURL != "" {
		t.Fatalf("unexpected payment amount/url %+v %q", res.Payment, res.PaymentURL)
	}
	if f.ms.Stock("p-a") != 8 || f.ms.Stock("p-b") != 9 {
		t.Fatalf("unexpected stock a=%d b=%d", f.ms.Stock("p-a"), f.ms.Stock("p-b"))
	}
	if f.cartExists("u1") {
		t.Fatalf("expected cart to be deleted")
	}
	if f.rec.Count(orders.EventOrderPlaced) != 1 {
		t.Fatalf("expected one placed notification")
	}
}

func TestCheckoutSnapshotsPrice(t *testing.T) {
	f := newFixture(t, ModeOffline)
	f.fill(t, "u1", map[string]int{"p-a": 1})

	res, err := f.wf.Checkout(context.Background(), "u1", Input{})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	f.ms.PutProduct(orders.Product{ID: "p-a", SKU: "A", Name: "Alpha", Price: decimal.NewFromInt(99), Stock: 9, Active: true})

	err = f.ms.InTx(context.Background(), func(tx store.Tx) error {
		o, err := tx.Orders().Get(context.Background(), res.Order.ID)
		if err != nil {
			return err
		}
		if !o.Items[0].UnitPrice.Equal(decimal.NewFromInt(10)) || !o.Total.Equal(decimal.NewFromInt(10)) {
			t.Fatalf("order repriced: %+v", o)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
}

func TestCheckoutInsufficientStock(t *testing.T) {
	f := newFixture(t, ModeOffline)
	f.fill(t, "u1", map[string]int{"p-c": 1})

	_, err := f.wf.Checkout(context.Background(), "u1", Input{})
	if !apperr.HasCode(err, apperr.CodeInsufficientStock) {
		t.Fatalf("expected insufficient_stock, got %v", err)
	}
	if e := apperr.As(err); e.Details["product_id"] != "p-c" {
		t.Fatalf("expected offending product in details, got %+v", e.Details)
	}
	if n, _ := f.ms.Counts(); n != 0 {
		t.Fatalf("expected no orders, got %d", n)
	}
	if f.ms.Stock("p-c") != 0 {
		t.Fatalf("stock changed")
	}
	if !f.cartExists("u1") {
		t.Fatalf("cart must survive a failed checkout")
	}
}

func TestCheckoutInactiveProduct(t *testing.T) {
	f := newFixture(t, ModeOffline)
	f.fill(t, "u1", map[string]int{"p-a": 1, "p-d": 1})

	_, err := f.wf.Checkout(context.Background(), "u1", Input{})
	if !apperr.HasCode(err, apperr.CodeProductUnavailable) {
		t.Fatalf("expected product_unavailable, got %v", err)
	}
	if f.ms.Stock("p-a") != 10 {
		t.Fatalf("stock changed")
	}
}

func TestCheckoutCartErrors(t *testing.T) {
	f := newFixture(t, ModeOffline)
	ctx := context.Background()

	if _, err := f.wf.Checkout(ctx, "u1", Input{}); !apperr.HasCode(err, apperr.CodeCartNotFound) {
		t.Fatalf("expected cart_not_found, got %v", err)
	}

	empty := f.fill(t, "u1", nil)
	if _, err := f.wf.Checkout(ctx, "u1", Input{CartID: empty}); !apperr.HasCode(err, apperr.CodeCartEmpty) {
		t.Fatalf("expected cart_empty, got %v", err)
	}

	other := f.fill(t, "u2", map[string]int{"p-a": 1})
	_, err := f.wf.Checkout(ctx, "u1", Input{CartID: other})
	if apperr.KindOf(err) != apperr.KindUnauthorized || apperr.HTTPStatus(err) != 403 {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if f.ms.Stock("p-a") != 10 {
		t.Fatalf("stock changed")
	}
}

// Decrement on the named product reports an unmatched guard, as if a
// concurrent checkout took the last units after the availability check.
type raceStore struct {
	inner  store.Store
	failOn string
}

func (r raceStore) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return r.inner.InTx(ctx, func(tx store.Tx) error { return fn(raceTx{Tx: tx, failOn: r.failOn}) })
}

type raceTx struct {
	store.Tx
	failOn string
}

func (t raceTx) Products() store.Products {
	return raceProducts{Products: t.Tx.Products(), failOn: t.failOn}
}

type raceProducts struct {
	store.Products
	failOn string
}

func (p raceProducts) Decrement(ctx context.Context, id string, qty int) (bool, error) {
	if id == p.failOn {
		return false, nil
	}
	return p.Products.Decrement(ctx, id, qty)
}

func TestCheckoutRollsBackWhenThirdReservationFails(t *testing.T) {
	f := newFixture(t, ModeOffline)
	f.ms.PutProduct(orders.Product{ID: "p-c", SKU: "C", Name: "Charlie", Price: decimal.NewFromInt(7), Stock: 5, Active: true})
	f.fill(t, "u1", map[string]int{"p-a": 1, "p-b": 1, "p-c": 1})
	f.wf.Store = raceStore{inner: f.ms, failOn: "p-c"}

	_, err := f.wf.Checkout(context.Background(), "u1", Input{})
	if !apperr.HasCode(err, apperr.CodeInsufficientStock) {
		t.Fatalf("expected insufficient_stock, got %v", err)
	}
	if n, p := f.ms.Counts(); n != 0 || p != 0 {
		t.Fatalf("expected no orders or payments, got %d/%d", n, p)
	}
	if f.ms.Stock("p-a") != 10 || f.ms.Stock("p-b") != 10 || f.ms.Stock("p-c") != 5 {
		t.Fatalf("stock changed: a=%d b=%d c=%d", f.ms.Stock("p-a"), f.ms.Stock("p-b"), f.ms.Stock("p-c"))
	}
	if f.rec.Count(orders.EventOrderPlaced) != 0 {
		t.Fatalf("no notification expected for a failed checkout")
	}
}

func TestCheckoutRedirect(t *testing.T) {
	f := newFixture(t, ModeRedirect)
	f.fill(t, "u1", map[string]int{"p-a": 2, "p-b": 1})

	res, err := f.wf.Checkout(context.Background(), "u1", Input{})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if res.PaymentURL == "" || res.Payment.CheckoutSessionID == nil || *res.Payment.CheckoutURL != res.PaymentURL {
		t.Fatalf("expected session on payment, got %+v", res.Payment)
	}
	if res.Payment.Method != orders.MethodStripe || res.Order.Status != orders.StatusPending {
		t.Fatalf("unexpected state %+v %+v", res.Order, res.Payment)
	}
	if md := f.proc.Metadata(*res.Payment.CheckoutSessionID); md["order_id"] != res.Order.ID {
		t.Fatalf("expected order id in session metadata, got %v", md)
	}
}

func TestCheckoutProcessorFailureRollsBack(t *testing.T) {
	f := newFixture(t, ModeRedirect)
	f.fill(t, "u1", map[string]int{"p-a": 2})
	f.proc.CreateErr = errors.New("card declined")

	_, err := f.wf.Checkout(context.Background(), "u1", Input{})
	if apperr.KindOf(err) != apperr.KindExternal || apperr.HTTPStatus(err) != 500 {
		t.Fatalf("expected external failure, got %v", err)
	}
	if n, p := f.ms.Counts(); n != 0 || p != 0 {
		t.Fatalf("expected nothing persisted, got %d/%d", n, p)
	}
	if f.ms.Stock("p-a") != 10 || !f.cartExists("u1") {
		t.Fatalf("expected stock and cart untouched")
	}
}

func TestSummary(t *testing.T) {
	f := newFixture(t, ModeOffline)
	cartID := f.fill(t, "u1", map[string]int{"p-a": 2, "p-b": 1, "p-c": 1})

	s, err := f.wf.Summary(context.Background(), "u1", cartID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !s.Subtotal.Equal(decimal.NewFromInt(32)) || !s.Tax.Equal(decimal.RequireFromString("3.2")) {
		t.Fatalf("unexpected subtotal/tax %s/%s", s.Subtotal, s.Tax)
	}
	if !s.Total.Equal(decimal.RequireFromString("35.2")) {
		t.Fatalf("unexpected total %s", s.Total)
	}
	for _, l := range s.Items {
		if l.ProductID == "p-c" && l.InStock {
			t.Fatalf("p-c should be reported out of stock")
		}
	}
	if _, err := f.wf.Summary(context.Background(), "u2", cartID); apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
