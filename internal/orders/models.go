package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string          `json:"id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Active    bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Cart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartItem carries the live product it points at.
type CartItem struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Product   Product `json:"product"`
}

func (c Cart) Empty() bool { return len(c.Items) == 0 }

type Order struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Status    Status          `json:"status"` // lihat status.go
	Total     decimal.Decimal `json:"total"`
	Notes     string          `json:"notes,omitempty"`
	Items     []OrderItem     `json:"items"`
	Payment   *Payment        `json:"payment,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// OrderItem snapshots the unit price at purchase time.
type OrderItem struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Payment struct {
	ID                string          `json:"id"`
	OrderID           string          `json:"order_id"`
	Amount            decimal.Decimal `json:"amount"`
	Method            PaymentMethod   `json:"payment_method"`
	Status            PaymentStatus   `json:"status"`
	CheckoutSessionID *string         `json:"checkout_session_id,omitempty"`
	PaymentIntentID   *string         `json:"payment_intent_id,omitempty"`
	CheckoutURL       *string         `json:"checkout_url,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Total sums price x quantity over items.
func Total(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
