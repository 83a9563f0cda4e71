package notify

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-shop-checkout/internal/kafka"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header) error
}

// KafkaNotifier publishes each message as an envelope on its event topic,
// keyed by order id.
type KafkaNotifier struct {
	Producer Publisher
	Service  string
}

func (k KafkaNotifier) Notify(_ context.Context, m Message) error {
	env := kafkax.NewEnvelope(m.Type, k.Service, m.Notice.OrderID, m.Notice)
	return k.Producer.Publish(
		orders.TopicFor(m.Type),
		orders.PartitionKey(m.Notice.OrderID),
		kafkax.MustMarshal(env),
		kafkax.Headers(env)...,
	)
}
