package kafka

import (
	"testing"

	"github.com/ariefcatur/go-shop-checkout/internal/orders"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	n := orders.OrderNotice{OrderID: "o1", UserID: "u1", Status: orders.StatusPaid, Total: "12.00"}
	env := NewEnvelope(orders.EventOrderPaid, "shop-api", n.OrderID, n)
	if env.EventID == "" || env.EventVersion != 1 || env.CorrelationID != "o1" {
		t.Fatalf("unexpected envelope %+v", env)
	}

	got, err := DecodeEnvelope(MustMarshal(env))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.EventID != env.EventID || got.EventType != orders.EventOrderPaid {
		t.Fatalf("envelope changed: %+v", got)
	}
	p, err := UnwrapPayload[orders.OrderNotice](got.Payload)
	if err != nil {
		t.Fatalf("unwrap: %v", err)
	}
	if p.OrderID != n.OrderID || p.UserID != n.UserID || p.Status != n.Status || p.Total != n.Total {
		t.Fatalf("payload changed: %+v", p)
	}

	h := Headers(env)
	if len(h) != 2 || string(h[0].Value) != orders.EventOrderPaid || string(h[1].Value) != "1" {
		t.Fatalf("unexpected headers %+v", h)
	}
}

func TestDecodeEnvelopeRejectsGarbage(t *testing.T) {
	if _, err := DecodeEnvelope([]byte("not json")); err == nil {
		t.Fatalf("expected error")
	}
}
