// Package checkout turns a cart into an order with its payment. The whole
// conversion is one transaction: stock reservation, order rows, payment row,
// processor session and cart removal either all happen or none do.
package checkout

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/ariefcatur/go-shop-checkout/internal/apperr"
	"github.com/ariefcatur/go-shop-checkout/internal/inventory"
	"github.com/ariefcatur/go-shop-checkout/internal/metrics"
	"github.com/ariefcatur/go-shop-checkout/internal/notify"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/ariefcatur/go-shop-checkout/internal/payments"
	"github.com/ariefcatur/go-shop-checkout/internal/store"
)

// Mode selects how payments are taken. One mode per deployment.
type Mode string

const (
	ModeOffline  Mode = "offline"  // payment recorded pending, settled by an operator
	ModeRedirect Mode = "redirect" // payer is sent to the processor's hosted page
)

type Workflow struct {
	Store     store.Store
	Mode      Mode
	Processor payments.Processor // required in redirect mode
	Method    orders.PaymentMethod
	Notifier  notify.Notifier
	Metrics   *metrics.Metrics
	Log       *slog.Logger
}

type Input struct {
	CartID string // empty means the caller's own cart
	Notes  string
}

type Result struct {
	Order      orders.Order   `json:"order"`
	Payment    orders.Payment `json:"payment"`
	PaymentURL string         `json:"payment_url,omitempty"`
}

func (w *Workflow) Checkout(ctx context.Context, userID string, in Input) (Result, error) {
	res, err := w.checkout(ctx, userID, in)
	if err != nil {
		w.Metrics.Checkout(apperr.CodeOf(err))
		w.Log.Warn("checkout failed", "user_id", userID, "cart_id", in.CartID, "code", apperr.CodeOf(err), "err", err)
		return Result{}, err
	}
	w.Metrics.Checkout("ok")
	w.Log.Info("order placed",
		"order_id", res.Order.ID, "user_id", userID, "total", res.Order.Total.StringFixed(2),
		"payment_id", res.Payment.ID, "mode", string(w.Mode))
	notify.Send(ctx, w.Notifier, w.Log, notify.Placed(res.Order))
	return res, nil
}

func (w *Workflow) checkout(ctx context.Context, userID string, in Input) (Result, error) {
	if w.Mode == ModeRedirect && w.Processor == nil {
		return Result{}, apperr.External(apperr.CodeProcessorError, "payment processor is not configured", nil)
	}

	var res Result
	err := w.Store.InTx(ctx, func(tx store.Tx) error {
		c, err := loadCart(ctx, tx, userID, in.CartID)
		if err != nil {
			return err
		}
		if c.Empty() {
			return apperr.BusinessRule(apperr.CodeCartEmpty, "cart is empty")
		}
		if err := checkAvailability(c); err != nil {
			return err
		}

		o := orders.Order{
			UserID: userID,
			Status: orders.StatusPending,
			Notes:  in.Notes,
			Items:  make([]orders.OrderItem, 0, len(c.Items)),
		}
		for _, it := range c.Items {
			o.Items = append(o.Items, orders.OrderItem{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				UnitPrice: it.Product.Price,
			})
		}
		o.Total = orders.Total(o.Items)
		if err := tx.Orders().Create(ctx, &o); err != nil {
			return apperr.Wrap("create order", err)
		}

		if err := inventory.ReserveAll(ctx, tx, inventory.LinesOf(o.Items)); err != nil {
			return err
		}

		p := orders.Payment{
			OrderID: o.ID,
			Amount:  o.Total,
			Method:  w.method(),
			Status:  orders.PaymentPending,
		}
		if w.Mode == ModeRedirect {
			sess, err := w.Processor.CreateCheckoutSession(ctx, lineItems(c), map[string]string{
				"order_id": o.ID,
				"user_id":  userID,
			})
			if err != nil {
				return apperr.External(apperr.CodeProcessorError, "could not open checkout session", err)
			}
			p.CheckoutSessionID = orders.StrPtr(sess.ID)
			p.CheckoutURL = orders.StrPtr(sess.URL)
			res.PaymentURL = sess.URL
		}
		if err := tx.Payments().Create(ctx, &p); err != nil {
			return apperr.Wrap("create payment", err)
		}

		if err := tx.Carts().Delete(ctx, c.ID); err != nil {
			return apperr.Wrap("delete cart", err)
		}

		o.Payment = &p
		res.Order = o
		res.Payment = p
		return nil
	})
	if err != nil {
		return Result{}, apperr.Wrap("checkout", err)
	}
	return res, nil
}

func (w *Workflow) method() orders.PaymentMethod {
	if w.Method != "" {
		return w.Method
	}
	if w.Mode == ModeRedirect {
		return orders.MethodStripe
	}
	return orders.MethodOffline
}

// loadCart resolves the cart to check out and enforces ownership.
func loadCart(ctx context.Context, tx store.Tx, userID, cartID string) (orders.Cart, error) {
	var (
		c   orders.Cart
		err error
	)
	if cartID != "" {
		c, err = tx.Carts().Get(ctx, cartID)
	} else {
		c, err = tx.Carts().GetByUser(ctx, userID)
	}
	if errors.Is(err, store.ErrNotFound) {
		return c, apperr.NotFound(apperr.CodeCartNotFound, "cart not found")
	}
	if err != nil {
		return c, apperr.Wrap("load cart", err)
	}
	if c.UserID != userID {
		return c, apperr.Unauthorized("unauthorized access to cart")
	}
	return c, nil
}

// checkAvailability reports the first item that cannot be fulfilled.
func checkAvailability(c orders.Cart) error {
	for _, it := range c.Items {
		p := it.Product
		if !p.Active {
			return apperr.BusinessRule(apperr.CodeProductUnavailable, "product "+p.Name+" is no longer available").
				With("product_id", p.ID)
		}
		if p.Stock < it.Quantity {
			return apperr.BusinessRule(apperr.CodeInsufficientStock, "insufficient stock for "+p.Name).
				With("product_id", p.ID).
				With("requested", strconv.Itoa(it.Quantity)).
				With("available", strconv.Itoa(p.Stock))
		}
	}
	return nil
}

func lineItems(c orders.Cart) []payments.LineItem {
	out := make([]payments.LineItem, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, payments.LineItem{Name: it.Product.Name, UnitPrice: it.Product.Price, Quantity: it.Quantity})
	}
	return out
}
