// Package notify delivers order notifications (placed, paid, cancelled).
// Delivery is fire-and-forget: callers send after their transaction commits and
// a failed send is logged, never propagated.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ariefcatur/go-shop-checkout/internal/orders"
)

type Message struct {
	Type   string // orders.EventOrder*
	Notice orders.OrderNotice
}

func Placed(o orders.Order) Message {
	return Message{Type: orders.EventOrderPlaced, Notice: orders.NoticeFor(o, "")}
}

func Paid(o orders.Order) Message {
	return Message{Type: orders.EventOrderPaid, Notice: orders.NoticeFor(o, "")}
}

func Cancelled(o orders.Order, reason string) Message {
	return Message{Type: orders.EventOrderCancelled, Notice: orders.NoticeFor(o, reason)}
}

type Notifier interface {
	Notify(ctx context.Context, m Message) error
}

// Send hands every message to n and logs failures. n may be nil.
func Send(ctx context.Context, n Notifier, log *slog.Logger, msgs ...Message) {
	if n == nil {
		return
	}
	for _, m := range msgs {
		if err := n.Notify(ctx, m); err != nil {
			log.Error("notification dropped", "event_type", m.Type, "order_id", m.Notice.OrderID, "err", err)
		}
	}
}

// LogNotifier writes notifications to the log. Used when no broker is configured.
type LogNotifier struct{ Log *slog.Logger }

func (l LogNotifier) Notify(_ context.Context, m Message) error {
	l.Log.Info("order notification",
		"event_type", m.Type,
		"order_id", m.Notice.OrderID,
		"user_id", m.Notice.UserID,
		"status", m.Notice.Status,
		"total", m.Notice.Total,
		"reason", m.Notice.Reason,
	)
	return nil
}

// Recorder keeps every message in memory.
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *Recorder) Notify(_ context.Context, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return nil
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

// Count returns how many messages of the given type were recorded.
func (r *Recorder) Count(eventType string) int {
	n := 0
	for _, m := range r.Messages() {
		if m.Type == eventType {
			n++
		}
	}
	return n
}
