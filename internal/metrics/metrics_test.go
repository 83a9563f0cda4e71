package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Checkout("ok")
	m.PaymentEvent("checkout.session.completed", "applied")
	m.Released(3)
	m.ObserveHTTP("checkout", 201, time.Now())
}

func TestCollectorsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "api")

	m.Checkout("ok")
	m.Checkout("ok")
	m.Released(3)
	m.Released(0)
	m.PaymentEvent("checkout.session.expired", "applied")

	if got := testutil.ToFloat64(m.Checkouts.WithLabelValues("ok")); got != 2 {
		t.Fatalf("expected 2 checkouts, got %v", got)
	}
	if got := testutil.ToFloat64(m.StockReleased); got != 3 {
		t.Fatalf("expected 3 released units, got %v", got)
	}

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "shop_api_payment_events_total") {
		t.Fatalf("expected payment events in exposition, got:\n%s", rec.Body.String())
	}
}
