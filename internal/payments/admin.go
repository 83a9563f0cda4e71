package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-shop-checkout/internal/apperr"
	"github.com/ariefcatur/go-shop-checkout/internal/notify"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/ariefcatur/go-shop-checkout/internal/store"
)

// byOrder locks the order and hands it to fn with its payment (possibly nil).
func (r *Reconciler) byOrder(ctx context.Context, orderID string, fn func(tx store.Tx, o *orders.Order, p *orders.Payment, c *change) (*orders.Payment, error)) (orders.Order, error) {
	c, err := r.run(ctx, func(tx store.Tx, c *change) error {
		o, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		p, err := paymentOf(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		p, err = fn(tx, &o, p, c)
		if err != nil {
			return err
		}
		o.Payment = p
		c.order = o
		return nil
	})
	return c.order, err
}

// MarkPaid records a manual payment: the payment becomes completed (created
// when the order has none) and a pending or processing order becomes paid.
// Orders further along keep their status. Cancelled orders are rejected
// because their stock has already been released.
func (r *Reconciler) MarkPaid(ctx context.Context, orderID string) (orders.Order, error) {
	o, err := r.byOrder(ctx, orderID, func(tx store.Tx, o *orders.Order, p *orders.Payment, c *change) (*orders.Payment, error) {
		if o.Status == orders.StatusCancelled {
			return p, apperr.BusinessRule(apperr.CodeInvalidTransition, "cannot mark a cancelled order as paid")
		}
		if p == nil {
			p = &orders.Payment{
				OrderID: o.ID,
				Amount:  o.Total,
				Method:  orders.MethodManual,
				Status:  orders.PaymentCompleted,
			}
			if err := tx.Payments().Create(ctx, p); err != nil {
				return nil, apperr.Wrap("create payment", err)
			}
			c.applied = true
		} else if p.Status != orders.PaymentCompleted {
			p.Status = orders.PaymentCompleted
			if err := updatePayment(ctx, tx, p); err != nil {
				return p, err
			}
			c.applied = true
		}

		if o.Status == orders.StatusPending || o.Status == orders.StatusProcessing {
			if err := setOrderStatus(ctx, tx, o, orders.StatusPaid); err != nil {
				return p, err
			}
			c.applied = true
		}
		if c.applied {
			c.msgs = append(c.msgs, notify.Paid(*o))
		}
		return p, nil
	})
	if err != nil {
		return o, err
	}
	r.Log.Info("order marked paid", "order_id", o.ID, "status", o.Status)
	return o, nil
}

// MarkUnpaid reverts an order and its payment to pending.
func (r *Reconciler) MarkUnpaid(ctx context.Context, orderID string) (orders.Order, error) {
	o, err := r.byOrder(ctx, orderID, func(tx store.Tx, o *orders.Order, p *orders.Payment, c *change) (*orders.Payment, error) {
		if o.Status == orders.StatusCancelled {
			return p, apperr.BusinessRule(apperr.CodeInvalidTransition, "cannot mark a cancelled order as unpaid")
		}
		if err := setOrderStatus(ctx, tx, o, orders.StatusPending); err != nil {
			return p, err
		}
		if p != nil && p.Status != orders.PaymentPending {
			p.Status = orders.PaymentPending
			if err := updatePayment(ctx, tx, p); err != nil {
				return p, err
			}
		}
		return p, nil
	})
	if err != nil {
		return o, err
	}
	r.Log.Info("order marked unpaid", "order_id", o.ID)
	return o, nil
}

// Cancel cancels an order, cancels its payment and returns its stock.
func (r *Reconciler) Cancel(ctx context.Context, orderID, reason string) (orders.Order, error) {
	if reason == "" {
		reason = ReasonAdminCancel
	}
	o, err := r.byOrder(ctx, orderID, func(tx store.Tx, o *orders.Order, p *orders.Payment, c *change) (*orders.Payment, error) {
		if o.Status == orders.StatusCancelled {
			return p, apperr.BusinessRule(apperr.CodeAlreadyCancelled, "order is already cancelled")
		}
		if p != nil {
			p.Status = orders.PaymentCancelled
			if err := updatePayment(ctx, tx, p); err != nil {
				return p, err
			}
		}
		units, err := cancelOrder(ctx, tx, o)
		if err != nil {
			return p, err
		}
		c.applied = true
		c.released = units
		c.msgs = append(c.msgs, notify.Cancelled(*o, reason))
		return p, nil
	})
	if err != nil {
		return o, err
	}
	r.Log.Info("order cancelled", "order_id", o.ID, "reason", reason)
	return o, nil
}

// Refund refunds a completed payment and cancels the order. Stock is
// returned only if the order was not cancelled already.
func (r *Reconciler) Refund(ctx context.Context, orderID, reason string) (orders.Order, error) {
	if reason == "" {
		reason = ReasonRefund
	}
	o, err := r.byOrder(ctx, orderID, func(tx store.Tx, o *orders.Order, p *orders.Payment, c *change) (*orders.Payment, error) {
		if p == nil {
			return nil, apperr.NotFound(apperr.CodePaymentNotFound, "no payment found for this order")
		}
		if p.Status != orders.PaymentCompleted {
			return p, apperr.BusinessRule(apperr.CodeRefundNotAllowed, "only completed payments can be refunded").
				With("payment_status", string(p.Status))
		}
		p.Status = orders.PaymentRefunded
		if err := updatePayment(ctx, tx, p); err != nil {
			return p, err
		}
		wasCancelled := o.Status == orders.StatusCancelled
		units, err := cancelOrder(ctx, tx, o)
		if err != nil {
			return p, err
		}
		c.applied = true
		c.released = units
		if !wasCancelled {
			c.msgs = append(c.msgs, notify.Cancelled(*o, reason))
		}
		return p, nil
	})
	if err != nil {
		return o, err
	}
	r.Log.Info("payment refunded", "order_id", o.ID, "reason", reason)
	return o, nil
}

type StaleReport struct {
	Found     int
	Cancelled []string
	Skipped   []string
	Failed    map[string]error
}

// CancelStale cancels pending orders older than the given age, each in its
// own transaction. One failure does not stop the rest.
func (r *Reconciler) CancelStale(ctx context.Context, olderThan time.Duration) (StaleReport, error) {
	rep := StaleReport{Failed: map[string]error{}}
	cutoff := r.now().Add(-olderThan)

	var ids []string
	err := r.Store.InTx(ctx, func(tx store.Tx) error {
		var err error
		ids, err = tx.Orders().ListIDsByStatusBefore(ctx, orders.StatusPending, cutoff)
		return apperr.Wrap("list stale orders", err)
	})
	if err != nil {
		return rep, err
	}
	rep.Found = len(ids)

	days := int(olderThan.Hours() / 24)
	reason := fmt.Sprintf("Payment not completed within %d days", days)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		cancelled := false
		_, err := r.byOrder(ctx, id, func(tx store.Tx, o *orders.Order, p *orders.Payment, c *change) (*orders.Payment, error) {
			if o.Status != orders.StatusPending {
				return p, nil // paid or cancelled since listing
			}
			if p != nil && p.Status == orders.PaymentCompleted {
				return p, nil // charged, waiting for the session event
			}
			if p != nil && p.Status.Awaiting() {
				p.Status = orders.PaymentCancelled
				if err := updatePayment(ctx, tx, p); err != nil {
					return p, err
				}
			}
			units, err := cancelOrder(ctx, tx, o)
			if err != nil {
				return p, err
			}
			c.applied = true
			c.released = units
			c.msgs = append(c.msgs, notify.Cancelled(*o, reason))
			cancelled = true
			return p, nil
		})
		switch {
		case err != nil:
			rep.Failed[id] = err
			r.Log.Error("stale order not cancelled", "order_id", id, "err", err)
		case cancelled:
			rep.Cancelled = append(rep.Cancelled, id)
			r.Log.Info("stale order cancelled", "order_id", id)
		default:
			rep.Skipped = append(rep.Skipped, id)
		}
	}
	return rep, nil
}
