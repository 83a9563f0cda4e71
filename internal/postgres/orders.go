package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-shop-checkout/internal/orders"
)

type OrderRepo struct{ tx pgx.Tx }

const orderCols = `id, user_id, status, total, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (orders.Order, error) {
	var o orders.Order
	var status string
	err := row.Scan(&o.ID, &o.UserID, &status, &o.Total, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	o.Status = orders.Status(status)
	return o, err
}

// Create inserts the order header and its items. Prices come from the caller,
// which read them from products inside the same transaction.
func (r *OrderRepo) Create(ctx context.Context, o *orders.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	err := r.tx.QueryRow(ctx, `
		INSERT INTO orders(id, user_id, status, total, notes)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at, updated_at`,
		o.ID, o.UserID, string(o.Status), o.Total, o.Notes).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		it.OrderID = o.ID
		if _, err := r.tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, product_id, quantity, unit_price)
			VALUES ($1,$2,$3,$4,$5)`,
			it.ID, o.ID, it.ProductID, it.Quantity, it.UnitPrice); err != nil {
			return mapErr(err)
		}
	}
	return nil
}

func (r *OrderRepo) get(ctx context.Context, id string, lock bool) (orders.Order, error) {
	q := `SELECT ` + orderCols + ` FROM orders WHERE id=$1`
	if lock {
		q += ` FOR UPDATE`
	}
	o, err := scanOrder(r.tx.QueryRow(ctx, q, id))
	if err != nil {
		return orders.Order{}, mapErr(err)
	}
	items, err := r.items(ctx, []string{o.ID})
	if err != nil {
		return orders.Order{}, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (r *OrderRepo) Get(ctx context.Context, id string) (orders.Order, error) {
	return r.get(ctx, id, false)
}

func (r *OrderRepo) Lock(ctx context.Context, id string) (orders.Order, error) {
	return r.get(ctx, id, true)
}

func (r *OrderRepo) items(ctx context.Context, orderIDs []string) (map[string][]orders.OrderItem, error) {
	rows, err := r.tx.Query(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price
		FROM order_items WHERE order_id = ANY($1)
		ORDER BY order_id, product_id`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]orders.OrderItem{}
	for rows.Next() {
		var it orders.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

func (r *OrderRepo) ListByUser(ctx context.Context, userID string) ([]orders.Order, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+orderCols+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Order
	var ids []string
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func (r *OrderRepo) ListIDsByStatusBefore(ctx context.Context, status orders.Status, before time.Time) ([]string, error) {
	rows, err := r.tx.Query(ctx, `
		SELECT id FROM orders WHERE status=$1 AND created_at < $2 ORDER BY created_at`,
		string(status), before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *OrderRepo) SetStatus(ctx context.Context, id string, status orders.Status) error {
	ct, err := r.tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, id, string(status))
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() != 1 {
		return mapErr(pgx.ErrNoRows)
	}
	return nil
}
