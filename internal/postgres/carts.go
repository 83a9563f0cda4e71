package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-shop-checkout/internal/orders"
)

// CartRepo locks the cart row on every read so concurrent checkouts of the
// same cart serialize and only the first one sees its items.
type CartRepo struct{ tx pgx.Tx }

func (r *CartRepo) load(ctx context.Context, where string, arg string) (orders.Cart, error) {
	var c orders.Cart
	err := r.tx.QueryRow(ctx, `SELECT id, user_id, created_at, updated_at FROM carts WHERE `+where+` FOR UPDATE`, arg).
		Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return orders.Cart{}, mapErr(err)
	}

	rows, err := r.tx.Query(ctx, `
		SELECT ci.quantity, `+prefixed("p", productCols)+`
		FROM cart_items ci JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at, ci.product_id`, c.ID)
	if err != nil {
		return orders.Cart{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var it orders.CartItem
		p := &it.Product
		if err := rows.Scan(&it.Quantity, &p.ID, &p.SKU, &p.Name, &p.Price, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return orders.Cart{}, err
		}
		it.ProductID = p.ID
		c.Items = append(c.Items, it)
	}
	return c, rows.Err()
}

func (r *CartRepo) GetByUser(ctx context.Context, userID string) (orders.Cart, error) {
	return r.load(ctx, "user_id = $1", userID)
}

func (r *CartRepo) Get(ctx context.Context, cartID string) (orders.Cart, error) {
	return r.load(ctx, "id = $1", cartID)
}

// Create is race-safe: a concurrent create for the same user yields that cart.
func (r *CartRepo) Create(ctx context.Context, userID string) (orders.Cart, error) {
	if _, err := r.tx.Exec(ctx, `
		INSERT INTO carts(id, user_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`, uuid.NewString(), userID); err != nil {
		return orders.Cart{}, mapErr(err)
	}
	return r.GetByUser(ctx, userID)
}

func (r *CartRepo) SetItem(ctx context.Context, cartID, productID string, qty int) error {
	if _, err := r.tx.Exec(ctx, `
		INSERT INTO cart_items(cart_id, product_id, quantity) VALUES ($1,$2,$3)
		ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
		cartID, productID, qty); err != nil {
		return mapErr(err)
	}
	return r.touch(ctx, cartID)
}

func (r *CartRepo) RemoveItem(ctx context.Context, cartID, productID string) error {
	ct, err := r.tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1 AND product_id=$2`, cartID, productID)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows)
	}
	return r.touch(ctx, cartID)
}

func (r *CartRepo) Delete(ctx context.Context, cartID string) error {
	ct, err := r.tx.Exec(ctx, `DELETE FROM carts WHERE id=$1`, cartID)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows)
	}
	return nil
}

func (r *CartRepo) touch(ctx context.Context, cartID string) error {
	_, err := r.tx.Exec(ctx, `UPDATE carts SET updated_at = now() WHERE id=$1`, cartID)
	return mapErr(err)
}
