package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-shop-checkout/internal/kafka"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
)

const dedupScope = "notifier"

// Deduper is satisfied by *redisx.Dedup.
type Deduper interface {
	Seen(ctx context.Context, scope, id string) (bool, error)
	Mark(ctx context.Context, scope, id string) error
}

// Mailer delivers a rendered notification to the order's owner.
type Mailer interface {
	Deliver(ctx context.Context, userID string, mail Mail) error
}

type Mail struct {
	Subject string
	Lines   []string
}

// Dispatcher is the consumer side: it turns order events into mails.
type Dispatcher struct {
	Mailer Mailer
	Dedup  Deduper // optional
	Log    *slog.Logger
}

// HandleMessage is installed as the kafka consumer handler.
func (d *Dispatcher) HandleMessage(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		d.Log.Error("dropping undecodable message", "topic", m.Topic, "offset", m.Offset, "err", err)
		return nil // poison message, commit and move on
	}

	if d.Dedup != nil {
		seen, err := d.Dedup.Seen(ctx, dedupScope, env.EventID)
		if err != nil {
			d.Log.Warn("dedup lookup failed", "event_id", env.EventID, "err", err)
		}
		if seen {
			return nil
		}
	}

	n, err := kafkax.UnwrapPayload[orders.OrderNotice](env.Payload)
	if err != nil {
		d.Log.Error("dropping bad payload", "event_id", env.EventID, "err", err)
		return nil
	}

	mail, ok := Render(env.EventType, n)
	if !ok {
		return nil // not ours
	}
	if err := d.Mailer.Deliver(ctx, n.UserID, mail); err != nil {
		return fmt.Errorf("deliver %s for order %s: %w", env.EventType, n.OrderID, err)
	}

	if d.Dedup != nil {
		if err := d.Dedup.Mark(ctx, dedupScope, env.EventID); err != nil {
			d.Log.Warn("dedup mark failed", "event_id", env.EventID, "err", err)
		}
	}
	d.Log.Info("notification delivered", "event_id", env.EventID, "event_type", env.EventType, "order_id", n.OrderID)
	return nil
}

// Render builds the mail for an order event; ok is false for unknown types.
func Render(eventType string, n orders.OrderNotice) (Mail, bool) {
	var m Mail
	switch eventType {
	case orders.EventOrderPlaced:
		m.Subject = "Order Received - Order #" + n.OrderID
		m.Lines = []string{"We have received your order and are waiting for payment."}
	case orders.EventOrderPaid:
		m.Subject = "Order Confirmation - Order #" + n.OrderID
		m.Lines = []string{"Thank you for your order! Your payment has been successfully processed."}
	case orders.EventOrderCancelled:
		m.Subject = "Order Cancelled - Order #" + n.OrderID
		m.Lines = []string{"We regret to inform you that your order has been cancelled."}
	default:
		return Mail{}, false
	}
	m.Lines = append(m.Lines, "Order Number: #"+n.OrderID, "Order Total: $"+n.Total)
	if eventType == orders.EventOrderCancelled {
		m.Lines = append(m.Lines, "Reason: "+n.Reason)
	} else {
		for _, it := range n.Items {
			m.Lines = append(m.Lines, fmt.Sprintf("- %s x %d @ $%s", it.ProductID, it.Quantity, it.UnitPrice))
		}
	}
	return m, true
}

// LogMailer writes mails to the log instead of sending them.
type LogMailer struct{ Log *slog.Logger }

func (l LogMailer) Deliver(_ context.Context, userID string, mail Mail) error {
	l.Log.Info("mail", "to", userID, "subject", mail.Subject, "body", strings.Join(mail.Lines, "\n"))
	return nil
}
