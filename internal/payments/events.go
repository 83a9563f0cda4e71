package payments

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-shop-checkout/internal/apperr"
	"github.com/ariefcatur/go-shop-checkout/internal/notify"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/ariefcatur/go-shop-checkout/internal/store"
)

const webhookScope = "webhook"

var errNoProcessor = apperr.New(apperr.KindValidation, apperr.CodeInvalidRequest, "no payment processor is configured")

// HandleWebhook verifies a raw notification and applies it. Rejected payloads
// return an error before anything is touched. Events that cannot apply (no
// matching payment, rule violations) are logged and reported as handled so
// the processor stops redelivering; only integrity failures are returned.
func (r *Reconciler) HandleWebhook(ctx context.Context, payload []byte, signature string) (Result, error) {
	if r.Processor == nil {
		return Result{}, errNoProcessor
	}
	ev, err := r.Processor.VerifyWebhook(payload, signature)
	if err != nil {
		r.Metrics.PaymentEvent("unverified", "rejected")
		r.Log.Warn("webhook rejected", "code", apperr.CodeOf(err), "err", err)
		return Result{}, err
	}
	res := Result{EventID: ev.ID, Type: ev.Type, OrderID: ev.OrderID}

	if r.Dedup != nil && ev.ID != "" {
		seen, err := r.Dedup.Seen(ctx, webhookScope, ev.ID)
		if err != nil {
			r.Log.Warn("webhook dedup lookup failed", "event_id", ev.ID, "err", err)
		}
		if seen {
			res.Outcome = OutcomeDuplicate
			r.Metrics.PaymentEvent(ev.Type, res.Outcome)
			return res, nil
		}
	}

	out, err := r.HandleEvent(ctx, ev)
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindIntegrity, apperr.KindExternal:
			r.Metrics.PaymentEvent(ev.Type, "error")
			r.Log.Error("webhook event failed", "event_id", ev.ID, "type", ev.Type, "err", err)
			return res, err
		}
		r.Log.Warn("webhook event not applied", "event_id", ev.ID, "type", ev.Type, "code", apperr.CodeOf(err), "err", err)
		out = Result{EventID: ev.ID, Type: ev.Type, OrderID: ev.OrderID, Outcome: OutcomeIgnored}
	}

	if r.Dedup != nil && ev.ID != "" {
		if err := r.Dedup.Mark(ctx, webhookScope, ev.ID); err != nil {
			r.Log.Warn("webhook dedup mark failed", "event_id", ev.ID, "err", err)
		}
	}
	r.Metrics.PaymentEvent(ev.Type, out.Outcome)
	return out, nil
}

// HandleEvent applies one verified processor event. Replaying an event is
// always safe: each transition checks the payment status first.
func (r *Reconciler) HandleEvent(ctx context.Context, ev Event) (Result, error) {
	res := Result{EventID: ev.ID, Type: ev.Type, OrderID: ev.OrderID}

	var (
		c   change
		err error
	)
	switch ev.Type {
	case EventSessionCompleted:
		c, err = r.locked(ctx, ev, func(tx store.Tx, o *orders.Order, p *orders.Payment, c *change) error {
			return completeSession(ctx, tx, o, p, ev.IntentID, c)
		})
	case EventSessionExpired:
		c, err = r.locked(ctx, ev, func(tx store.Tx, o *orders.Order, p *orders.Payment, c *change) error {
			if p.Status != orders.PaymentPending {
				return nil
			}
			return failPayment(ctx, tx, o, p, ReasonExpired, c)
		})
	case EventIntentSucceeded:
		c, err = r.locked(ctx, ev, func(tx store.Tx, o *orders.Order, p *orders.Payment, c *change) error {
			if p.Status == orders.PaymentCompleted {
				return nil
			}
			p.Status = orders.PaymentCompleted
			if p.PaymentIntentID == nil {
				p.PaymentIntentID = orders.StrPtr(ev.IntentID)
			}
			c.applied = true
			return updatePayment(ctx, tx, p)
		})
	case EventIntentFailed:
		c, err = r.locked(ctx, ev, func(tx store.Tx, o *orders.Order, p *orders.Payment, c *change) error {
			return failPayment(ctx, tx, o, p, ReasonFailed, c)
		})
	default:
		r.Log.Info("unhandled payment event", "event_id", ev.ID, "type", ev.Type)
		res.Outcome = OutcomeIgnored
		return res, nil
	}
	if err != nil {
		return res, err
	}

	res.OrderID = c.order.ID
	res.Outcome = OutcomeSkipped
	if c.applied {
		res.Outcome = OutcomeApplied
	}
	r.Log.Info("payment event reconciled",
		"event_id", ev.ID, "type", ev.Type, "order_id", c.order.ID,
		"status", c.order.Status, "outcome", res.Outcome, "released_units", c.released)
	return res, nil
}

// locked finds the event's payment, locks its order and re-reads the payment
// under that lock before calling fn.
func (r *Reconciler) locked(ctx context.Context, ev Event, fn func(tx store.Tx, o *orders.Order, p *orders.Payment, c *change) error) (change, error) {
	return r.run(ctx, func(tx store.Tx, c *change) error {
		orderID, err := findOrderID(ctx, tx, ev)
		if err != nil {
			return err
		}
		o, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		p, err := paymentOf(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		if p == nil {
			return apperr.NotFound(apperr.CodePaymentNotFound, "no payment found for this order").With("order_id", o.ID)
		}
		if err := fn(tx, &o, p, c); err != nil {
			return err
		}
		o.Payment = p
		c.order = o
		return nil
	})
}

func findOrderID(ctx context.Context, tx store.Tx, ev Event) (string, error) {
	var (
		p   orders.Payment
		err = store.ErrNotFound
	)
	switch {
	case ev.SessionID != "" && (ev.Type == EventSessionCompleted || ev.Type == EventSessionExpired):
		p, err = tx.Payments().GetBySession(ctx, ev.SessionID)
	case ev.IntentID != "":
		p, err = tx.Payments().GetByIntent(ctx, ev.IntentID)
	}
	if err == nil {
		return p.OrderID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", apperr.Wrap("find payment", err)
	}
	if ev.OrderID != "" {
		return ev.OrderID, nil
	}
	return "", apperr.NotFound(apperr.CodePaymentNotFound, "no payment matches the event").
		With("session_id", ev.SessionID).
		With("intent_id", ev.IntentID)
}

// completeSession marks a pending payment completed and moves a pending order
// to processing. A payment already completed by an earlier intent event still
// settles an order left pending. Anything else means the event was already
// applied.
func completeSession(ctx context.Context, tx store.Tx, o *orders.Order, p *orders.Payment, intentID string, c *change) error {
	switch {
	case p.Status == orders.PaymentPending:
		p.Status = orders.PaymentCompleted
		if intentID != "" {
			p.PaymentIntentID = orders.StrPtr(intentID)
		}
		if err := updatePayment(ctx, tx, p); err != nil {
			return err
		}
	case p.Status == orders.PaymentCompleted && o.Status == orders.StatusPending:
		if p.PaymentIntentID == nil && intentID != "" {
			p.PaymentIntentID = orders.StrPtr(intentID)
			if err := updatePayment(ctx, tx, p); err != nil {
				return err
			}
		}
	default:
		return nil
	}
	if o.Status == orders.StatusPending {
		if err := setOrderStatus(ctx, tx, o, orders.StatusProcessing); err != nil {
			return err
		}
	}
	c.applied = true
	c.msgs = append(c.msgs, notify.Paid(*o))
	return nil
}

// failPayment marks the payment failed and cancels the order.
func failPayment(ctx context.Context, tx store.Tx, o *orders.Order, p *orders.Payment, reason string, c *change) error {
	if p.Status != orders.PaymentFailed {
		p.Status = orders.PaymentFailed
		if err := updatePayment(ctx, tx, p); err != nil {
			return err
		}
		c.applied = true
	}
	wasCancelled := o.Status == orders.StatusCancelled
	units, err := cancelOrder(ctx, tx, o)
	if err != nil {
		return err
	}
	c.released += units
	if !wasCancelled {
		c.applied = true
		c.msgs = append(c.msgs, notify.Cancelled(*o, reason))
	}
	return nil
}

// Verify confirms a redirect checkout synchronously for the order's owner.
func (r *Reconciler) Verify(ctx context.Context, userID, sessionID string) (orders.Order, error) {
	if r.Processor == nil {
		return orders.Order{}, errNoProcessor
	}
	if sessionID == "" {
		return orders.Order{}, apperr.Validation("session_id is required")
	}

	// Ownership first, so strangers learn nothing from the processor.
	var orderID string
	err := r.Store.InTx(ctx, func(tx store.Tx) error {
		p, err := tx.Payments().GetBySession(ctx, sessionID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound(apperr.CodePaymentNotFound, "payment not found")
		}
		if err != nil {
			return apperr.Wrap("find payment", err)
		}
		o, err := tx.Orders().Get(ctx, p.OrderID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound(apperr.CodeOrderNotFound, "order not found")
		}
		if err != nil {
			return apperr.Wrap("load order", err)
		}
		if o.UserID != userID {
			return apperr.Unauthorized("order belongs to another user")
		}
		orderID = o.ID
		return nil
	})
	if err != nil {
		return orders.Order{}, err
	}

	st, err := r.Processor.RetrieveSession(ctx, sessionID)
	if err != nil {
		return orders.Order{}, apperr.External(apperr.CodeProcessorError, "could not retrieve checkout session", err)
	}
	if !st.Paid {
		return orders.Order{}, apperr.BusinessRule(apperr.CodePaymentNotCompleted, "payment not completed")
	}

	c, err := r.locked(ctx, Event{Type: EventSessionCompleted, SessionID: sessionID, OrderID: orderID},
		func(tx store.Tx, o *orders.Order, p *orders.Payment, c *change) error {
			return completeSession(ctx, tx, o, p, st.PaymentIntentID, c)
		})
	if err != nil {
		return orders.Order{}, err
	}
	outcome := OutcomeSkipped
	if c.applied {
		outcome = OutcomeApplied
	}
	r.Metrics.PaymentEvent("verify", outcome)
	r.Log.Info("checkout verified", "order_id", c.order.ID, "user_id", userID, "applied", c.applied)
	return c.order, nil
}
