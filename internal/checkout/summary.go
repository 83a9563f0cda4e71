package checkout

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-shop-checkout/internal/apperr"
	"github.com/ariefcatur/go-shop-checkout/internal/store"
)

// Flat, illustrative pricing rules.
var (
	TaxRate      = decimal.RequireFromString("0.10")
	ShippingFlat = decimal.Zero
)

type SummaryLine struct {
	ProductID      string          `json:"product_id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	Quantity       int             `json:"quantity"`
	Total          decimal.Decimal `json:"total"`
	InStock        bool            `json:"in_stock"`
	AvailableStock int             `json:"available_stock"`
}

type Summary struct {
	CartID   string          `json:"cart_id"`
	Items    []SummaryLine   `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// Summary prices a cart without touching stock. Tax and shipping are shown
// to the shopper only; the order total stays the item sum.
func (w *Workflow) Summary(ctx context.Context, userID, cartID string) (Summary, error) {
	var s Summary
	err := w.Store.InTx(ctx, func(tx store.Tx) error {
		c, err := loadCart(ctx, tx, userID, cartID)
		if err != nil {
			return err
		}
		s.CartID = c.ID
		s.Items = make([]SummaryLine, 0, len(c.Items))
		subtotal := decimal.Zero
		for _, it := range c.Items {
			line := it.Product.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
			subtotal = subtotal.Add(line)
			s.Items = append(s.Items, SummaryLine{
				ProductID:      it.ProductID,
				Name:           it.Product.Name,
				Price:          it.Product.Price,
				Quantity:       it.Quantity,
				Total:          line,
				InStock:        it.Product.Active && it.Product.Stock >= it.Quantity,
				AvailableStock: it.Product.Stock,
			})
		}
		s.Subtotal = subtotal.Round(2)
		s.Shipping = ShippingFlat.Round(2)
		s.Tax = subtotal.Mul(TaxRate).Round(2)
		s.Total = s.Subtotal.Add(s.Shipping).Add(s.Tax)
		return nil
	})
	if err != nil {
		return Summary{}, apperr.Wrap("checkout summary", err)
	}
	return s, nil
}
