package httpx

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-shop-checkout/internal/apperr"
	"github.com/ariefcatur/go-shop-checkout/internal/cart"
	"github.com/ariefcatur/go-shop-checkout/internal/catalog"
	"github.com/ariefcatur/go-shop-checkout/internal/checkout"
	"github.com/ariefcatur/go-shop-checkout/internal/history"
	"github.com/ariefcatur/go-shop-checkout/internal/payments"
)

// HeaderStripeSignature carries the webhook signature.
const HeaderStripeSignature = "Stripe-Signature"

type API struct {
	Catalog  *catalog.Service
	Carts    *cart.Service
	Checkout *checkout.Workflow
	Payments *payments.Reconciler
	History  *history.Service
	Log      *slog.Logger
}

func (a *API) Register(r chi.Router) {
	r.Get("/products", a.listProducts)
	r.Get("/products/{id}", a.getProduct)
	r.Post("/webhooks/stripe", a.webhook)

	r.Group(func(r chi.Router) {
		r.Use(RequireUser)

		r.Get("/cart", a.getCart)
		r.Post("/cart/items", a.addCartItem)
		r.Put("/cart/items/{productID}", a.setCartItem)
		r.Delete("/cart/items/{productID}", a.removeCartItem)

		r.Get("/checkout/summary", a.summary)
		r.Post("/checkout", a.checkout)
		r.Post("/checkout/verify", a.verify)

		r.Get("/orders", a.listOrders)
		r.Get("/orders/{id}", a.getOrder)

		r.Route("/admin/orders/{id}", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Post("/mark-paid", a.markPaid)
			r.Post("/mark-unpaid", a.markUnpaid)
			r.Post("/cancel", a.cancel)
			r.Post("/refund", a.refund)
		})
	})
}

func userID(r *http.Request) string {
	u, _ := UserFrom(r.Context())
	return u.ID
}

func (a *API) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := a.Catalog.List(r.Context())
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (a *API) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := a.Catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type addItemReq struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type setItemReq struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

func (a *API) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := a.Carts.Get(r.Context(), userID(r))
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := bind(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	c, err := a.Carts.Add(r.Context(), userID(r), req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) setCartItem(w http.ResponseWriter, r *http.Request) {
	var req setItemReq
	if err := bind(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	c, err := a.Carts.SetQuantity(r.Context(), userID(r), chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) removeCartItem(w http.ResponseWriter, r *http.Request) {
	c, err := a.Carts.Remove(r.Context(), userID(r), chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) summary(w http.ResponseWriter, r *http.Request) {
	s, err := a.Checkout.Summary(r.Context(), userID(r), r.URL.Query().Get("cart_id"))
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type checkoutReq struct {
	CartID string `json:"cart_id"`
	Notes  string `json:"notes" validate:"max=1000"`
}

func (a *API) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := bind(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	res, err := a.Checkout.Checkout(r.Context(), userID(r), checkout.Input{CartID: req.CartID, Notes: req.Notes})
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type verifyReq struct {
	SessionID string `json:"session_id" validate:"required"`
}

func (a *API) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyReq
	if err := bind(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	o, err := a.Payments.Verify(r.Context(), userID(r), req.SessionID)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *API) listOrders(w http.ResponseWriter, r *http.Request) {
	list, err := a.History.List(r.Context(), userID(r))
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := a.History.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// webhook answers 200 for every verified event, including ones that could
// not apply; only verification and integrity failures ask for a retry.
func (a *API) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, a.Log, apperr.New(apperr.KindValidation, apperr.CodeInvalidPayload, "could not read body"))
		return
	}
	res, err := a.Payments.HandleWebhook(r.Context(), payload, r.Header.Get(HeaderStripeSignature))
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"received": true, "outcome": res.Outcome})
}

type reasonReq struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (a *API) markPaid(w http.ResponseWriter, r *http.Request) {
	o, err := a.Payments.MarkPaid(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *API) markUnpaid(w http.ResponseWriter, r *http.Request) {
	o, err := a.Payments.MarkUnpaid(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *API) cancel(w http.ResponseWriter, r *http.Request) {
	var req reasonReq
	if err := bind(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	o, err := a.Payments.Cancel(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *API) refund(w http.ResponseWriter, r *http.Request) {
	var req reasonReq
	if err := bind(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	o, err := a.Payments.Refund(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
