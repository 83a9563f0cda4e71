package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced    = "OrderPlaced"
	EventOrderPaid      = "OrderPaid"
	EventOrderCancelled = "OrderCancelled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "shop-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type ItemLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

// OrderNotice is the payload of every order notification.
type OrderNotice struct {
	OrderID string     `json:"order_id"`
	UserID  string     `json:"user_id"`
	Status  Status     `json:"status"`
	Total   string     `json:"total"`
	Items   []ItemLine `json:"items,omitempty"`
	Reason  string     `json:"reason,omitempty"` // cancellations only
}

func NoticeFor(o Order, reason string) OrderNotice {
	items := make([]ItemLine, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemLine{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice.StringFixed(2)})
	}
	return OrderNotice{
		OrderID: o.ID,
		UserID:  o.UserID,
		Status:  o.Status,
		Total:   o.Total.StringFixed(2),
		Items:   items,
		Reason:  reason,
	}
}
