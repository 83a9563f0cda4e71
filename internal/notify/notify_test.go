package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	kafkax "github.com/ariefcatur/go-shop-checkout/internal/kafka"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakePublisher struct {
	topic string
	key   []byte
	value []byte
	err   error
}

func (f *fakePublisher) Publish(topic string, key, value []byte, _ ...kafkago.Header) error {
	f.topic, f.key, f.value = topic, key, value
	return f.err
}

type memDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (m *memDedup) Seen(_ context.Context, scope, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[scope+":"+id], nil
}

func (m *memDedup) Mark(_ context.Context, scope, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	m.seen[scope+":"+id] = true
	return nil
}

type fakeMailer struct {
	mu    sync.Mutex
	mails []Mail
	err   error
}

func (f *fakeMailer) Deliver(_ context.Context, _ string, m Mail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.mails = append(f.mails, m)
	return nil
}

func sampleOrder() orders.Order {
	return orders.Order{
		ID:     "o-1",
		UserID: "u-1",
		Status: orders.StatusCancelled,
		Total:  decimal.NewFromInt(25),
		Items:  []orders.OrderItem{{ProductID: "p-a", Quantity: 2, UnitPrice: decimal.NewFromInt(10)}},
	}
}

func TestKafkaNotifierPublishesEnvelope(t *testing.T) {
	pub := &fakePublisher{}
	k := KafkaNotifier{Producer: pub, Service: "shop-api"}

	if err := k.Notify(context.Background(), Cancelled(sampleOrder(), "expired")); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if pub.topic != orders.TopicOrderCancelled || string(pub.key) != "o-1" {
		t.Fatalf("unexpected routing topic=%s key=%s", pub.topic, pub.key)
	}
	var env orders.Envelope
	if err := json.Unmarshal(pub.value, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.EventType != orders.EventOrderCancelled || env.CorrelationID != "o-1" || env.Producer != "shop-api" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestSendLogsAndSwallowsErrors(t *testing.T) {
	pub := &fakePublisher{err: kafkax.ErrInboxFull}
	Send(context.Background(), KafkaNotifier{Producer: pub}, discard(), Paid(sampleOrder()))
	Send(context.Background(), nil, discard(), Paid(sampleOrder()))
}

func envelopeMessage(t *testing.T, m Message) kafkago.Message {
	t.Helper()
	env := kafkax.NewEnvelope(m.Type, "test", m.Notice.OrderID, m.Notice)
	return kafkago.Message{Topic: orders.TopicFor(m.Type), Value: kafkax.MustMarshal(env)}
}

func TestDispatcherDeliversOnce(t *testing.T) {
	mailer := &fakeMailer{}
	d := &Dispatcher{Mailer: mailer, Dedup: &memDedup{}, Log: discard()}
	msg := envelopeMessage(t, Cancelled(sampleOrder(), "Payment refunded"))

	for i := 0; i < 2; i++ {
		if err := d.HandleMessage(context.Background(), msg); err != nil {
			t.Fatalf("handle #%d: %v", i, err)
		}
	}
	if len(mailer.mails) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(mailer.mails))
	}
	body := strings.Join(mailer.mails[0].Lines, "\n")
	if !strings.HasPrefix(mailer.mails[0].Subject, "Order Cancelled") || !strings.Contains(body, "Reason: Payment refunded") {
		t.Fatalf("unexpected mail %+v", mailer.mails[0])
	}
}

func TestDispatcherRetriesFailedDelivery(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp down")}
	dedup := &memDedup{}
	d := &Dispatcher{Mailer: mailer, Dedup: dedup, Log: discard()}
	msg := envelopeMessage(t, Paid(sampleOrder()))

	if err := d.HandleMessage(context.Background(), msg); err == nil {
		t.Fatalf("expected delivery error")
	}
	mailer.err = nil
	if err := d.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(mailer.mails) != 1 {
		t.Fatalf("expected mail after redelivery, got %d", len(mailer.mails))
	}
}

func TestDispatcherSkipsPoisonMessages(t *testing.T) {
	d := &Dispatcher{Mailer: &fakeMailer{}, Log: discard()}
	if err := d.HandleMessage(context.Background(), kafkago.Message{Value: []byte("{not json")}); err != nil {
		t.Fatalf("expected poison message to be committed, got %v", err)
	}
}

func TestRecorderCount(t *testing.T) {
	r := &Recorder{}
	Send(context.Background(), r, discard(), Placed(sampleOrder()), Paid(sampleOrder()), Paid(sampleOrder()))
	if r.Count(orders.EventOrderPaid) != 2 || r.Count(orders.EventOrderPlaced) != 1 {
		t.Fatalf("unexpected counts: %+v", r.Messages())
	}
}
