// Package stripe adapts Stripe Checkout to payments.Processor.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/ariefcatur/go-shop-checkout/internal/apperr"
	"github.com/ariefcatur/go-shop-checkout/internal/payments"
)

type Config struct {
	SecretKey     string
	WebhookSecret string // empty disables signature checks
	Currency      string
	SuccessURL    string
	CancelURL     string
}

type Adapter struct {
	api *client.API
	cfg Config
	log *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Adapter {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	if cfg.Currency == "" {
		cfg.Currency = string(stripe.CurrencyUSD)
	}
	if cfg.WebhookSecret == "" {
		log.Warn("stripe webhook secret not set, webhook signatures will not be verified")
	}
	return &Adapter{api: api, cfg: cfg, log: log}
}

var hundred = decimal.NewFromInt(100)

// toMinorUnits converts an amount to cents.
func toMinorUnits(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

func (a *Adapter) CreateCheckoutSession(ctx context.Context, items []payments.LineItem, metadata map[string]string) (payments.Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(a.cfg.SuccessURL),
		CancelURL:  stripe.String(a.cfg.CancelURL),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	for _, it := range items {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(a.cfg.Currency),
				UnitAmount: stripe.Int64(toMinorUnits(it.UnitPrice)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(it.Name),
				},
			},
			Quantity: stripe.Int64(int64(it.Quantity)),
		})
	}

	s, err := a.api.CheckoutSessions.New(params)
	if err != nil {
		return payments.Session{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return payments.Session{ID: s.ID, URL: s.URL}, nil
}

func (a *Adapter) RetrieveSession(ctx context.Context, id string) (payments.SessionStatus, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := a.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return payments.SessionStatus{}, fmt.Errorf("stripe: retrieve checkout session: %w", err)
	}
	st := payments.SessionStatus{ID: s.ID, Paid: s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid}
	if s.PaymentIntent != nil {
		st.PaymentIntentID = s.PaymentIntent.ID
	}
	return st, nil
}

func (a *Adapter) VerifyWebhook(payload []byte, signature string) (payments.Event, error) {
	var (
		ev  stripe.Event
		err error
	)
	if a.cfg.WebhookSecret != "" {
		ev, err = webhook.ConstructEventWithOptions(payload, signature, a.cfg.WebhookSecret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	} else {
		err = json.Unmarshal(payload, &ev)
	}
	if err != nil {
		if isSignatureError(err) {
			return payments.Event{}, apperr.New(apperr.KindValidation, apperr.CodeInvalidSignature, "invalid signature")
		}
		return payments.Event{}, apperr.New(apperr.KindValidation, apperr.CodeInvalidPayload, "invalid payload")
	}
	return toEvent(ev)
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

// toEvent extracts what reconciliation needs from the event's data object.
func toEvent(ev stripe.Event) (payments.Event, error) {
	if ev.Type == "" || ev.Data == nil {
		return payments.Event{}, apperr.New(apperr.KindValidation, apperr.CodeInvalidPayload, "invalid payload")
	}
	out := payments.Event{ID: ev.ID, Type: string(ev.Type)}

	switch out.Type {
	case payments.EventSessionCompleted, payments.EventSessionExpired:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return payments.Event{}, apperr.New(apperr.KindValidation, apperr.CodeInvalidPayload, "invalid checkout session")
		}
		out.SessionID = s.ID
		out.OrderID = s.Metadata["order_id"]
		if s.PaymentIntent != nil {
			out.IntentID = s.PaymentIntent.ID
		}
	case payments.EventIntentSucceeded, payments.EventIntentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return payments.Event{}, apperr.New(apperr.KindValidation, apperr.CodeInvalidPayload, "invalid payment intent")
		}
		out.IntentID = pi.ID
		out.OrderID = pi.Metadata["order_id"]
	}
	return out, nil
}
