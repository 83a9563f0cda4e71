package payments

import (
	"context"

	"github.com/shopspring/decimal"
)

// Processor event types.
const (
	EventSessionCompleted = "checkout.session.completed"
	EventSessionExpired   = "checkout.session.expired"
	EventIntentSucceeded  = "payment_intent.succeeded"
	EventIntentFailed     = "payment_intent.payment_failed"
)

type LineItem struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

type Session struct {
	ID  string
	URL string
}

type SessionStatus struct {
	ID              string
	Paid            bool
	PaymentIntentID string
}

// Event is a verified processor notification reduced to the fields
// reconciliation needs.
type Event struct {
	ID        string
	Type      string
	SessionID string // session events
	IntentID  string // intent events, or the session's intent
	OrderID   string // from metadata, may be empty
}

// Processor is the narrow view of an external payment processor.
type Processor interface {
	CreateCheckoutSession(ctx context.Context, items []LineItem, metadata map[string]string) (Session, error)
	RetrieveSession(ctx context.Context, id string) (SessionStatus, error)
	// VerifyWebhook authenticates and decodes a notification. It returns an
	// apperr with code invalid_signature or invalid_payload on rejection.
	VerifyWebhook(payload []byte, signature string) (Event, error)
}
