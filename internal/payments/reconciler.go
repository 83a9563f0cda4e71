// Package payments reconciles processor notifications and operator actions
// with order, payment and stock state. Every transition runs in one
// transaction that first locks the order row; stock goes back at most once,
// on the transaction that moves the order into cancelled.
package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ariefcatur/go-shop-checkout/internal/apperr"
	"github.com/ariefcatur/go-shop-checkout/internal/inventory"
	"github.com/ariefcatur/go-shop-checkout/internal/metrics"
	"github.com/ariefcatur/go-shop-checkout/internal/notify"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/ariefcatur/go-shop-checkout/internal/store"
)

const (
	ReasonAdminCancel = "Order cancelled by administrator"
	ReasonRefund      = "Payment refunded"
	ReasonExpired     = "Checkout session expired"
	ReasonFailed      = "Payment failed"
)

// Outcome of one reconciliation call.
const (
	OutcomeApplied   = "applied"
	OutcomeSkipped   = "skipped"   // already applied or precondition not met
	OutcomeIgnored   = "ignored"   // unknown event type or unknown payment
	OutcomeDuplicate = "duplicate" // event id seen before
)

type Result struct {
	EventID string `json:"event_id,omitempty"`
	Type    string `json:"type,omitempty"`
	OrderID string `json:"order_id,omitempty"`
	Outcome string `json:"outcome"`
}

// Deduper is satisfied by *redisx.Dedup.
type Deduper interface {
	Seen(ctx context.Context, scope, id string) (bool, error)
	Mark(ctx context.Context, scope, id string) error
}

type Reconciler struct {
	Store     store.Store
	Processor Processor // nil when the deployment takes offline payments only
	Notifier  notify.Notifier
	Dedup     Deduper // optional
	Metrics   *metrics.Metrics
	Log       *slog.Logger
	Now       func() time.Time
}

// change is what a transition produced inside its transaction; side effects
// outside the database are applied from it after commit.
type change struct {
	order    orders.Order
	applied  bool
	released int
	msgs     []notify.Message
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Reconciler) commit(ctx context.Context, c *change) {
	r.Metrics.Released(c.released)
	notify.Send(ctx, r.Notifier, r.Log, c.msgs...)
}

// cancelOrder moves o to cancelled and releases its stock. An order that is
// already cancelled is left alone, so its stock is never returned twice.
func cancelOrder(ctx context.Context, tx store.Tx, o *orders.Order) (int, error) {
	if o.Status == orders.StatusCancelled {
		return 0, nil
	}
	units, err := inventory.ReleaseAll(ctx, tx, inventory.LinesOf(o.Items))
	if err != nil {
		return 0, err
	}
	if err := tx.Orders().SetStatus(ctx, o.ID, orders.StatusCancelled); err != nil {
		return 0, apperr.Wrap("cancel order", err)
	}
	o.Status = orders.StatusCancelled
	return units, nil
}

func setOrderStatus(ctx context.Context, tx store.Tx, o *orders.Order, s orders.Status) error {
	if o.Status == s {
		return nil
	}
	if !orders.CanTransition(o.Status, s) {
		return apperr.BusinessRule(apperr.CodeInvalidTransition,
			fmt.Sprintf("order cannot move from %s to %s", o.Status, s))
	}
	if err := tx.Orders().SetStatus(ctx, o.ID, s); err != nil {
		return apperr.Wrap("update order status", err)
	}
	o.Status = s
	return nil
}

func lockOrder(ctx context.Context, tx store.Tx, orderID string) (orders.Order, error) {
	o, err := tx.Orders().Lock(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return o, apperr.NotFound(apperr.CodeOrderNotFound, "order not found").With("order_id", orderID)
	}
	return o, apperr.Wrap("lock order", err)
}

// paymentOf reads the order's payment under the order lock; nil when absent.
func paymentOf(ctx context.Context, tx store.Tx, orderID string) (*orders.Payment, error) {
	p, err := tx.Payments().GetByOrder(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap("load payment", err)
	}
	return &p, nil
}

func updatePayment(ctx context.Context, tx store.Tx, p *orders.Payment) error {
	return apperr.Wrap("update payment", tx.Payments().Update(ctx, p))
}

// run executes fn in a transaction and applies the after-commit effects.
func (r *Reconciler) run(ctx context.Context, fn func(tx store.Tx, c *change) error) (change, error) {
	var c change
	err := r.Store.InTx(ctx, func(tx store.Tx) error {
		c = change{}
		return fn(tx, &c)
	})
	if err != nil {
		return change{}, apperr.Wrap("reconcile", err)
	}
	r.commit(ctx, &c)
	return c, nil
}
