package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-shop-checkout/internal/orders"
)

type ProductRepo struct{ tx pgx.Tx }

const productCols = `id, sku, name, price, stock, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (orders.Product, error) {
	var p orders.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *ProductRepo) List(ctx context.Context) ([]orders.Product, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+productCols+` FROM products ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ProductRepo) Get(ctx context.Context, id string) (orders.Product, error) {
	p, err := scanProduct(r.tx.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1`, id))
	return p, mapErr(err)
}

// Decrement is a guarded update: the row lock it takes serializes concurrent
// reservations of the same product, and the WHERE clause keeps stock >= 0.
func (r *ProductRepo) Decrement(ctx context.Context, id string, qty int) (bool, error) {
	ct, err := r.tx.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND is_active AND stock >= $2`, id, qty)
	if err != nil {
		return false, mapErr(err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *ProductRepo) Increment(ctx context.Context, id string, qty int) error {
	ct, err := r.tx.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`, id, qty)
	if err != nil {
		return mapErr(err)
	}
	if ct.RowsAffected() != 1 {
		return mapErr(pgx.ErrNoRows)
	}
	return nil
}

// Upsert inserts or refreshes a catalog row by SKU. Used by seeding.
func (r *ProductRepo) Upsert(ctx context.Context, p orders.Product) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO products(id, sku, name, price, stock, is_active)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (sku) DO UPDATE
		SET name = EXCLUDED.name, price = EXCLUDED.price, stock = EXCLUDED.stock,
		    is_active = EXCLUDED.is_active, updated_at = now()`,
		p.ID, p.SKU, p.Name, p.Price, p.Stock, p.Active)
	return mapErr(err)
}

// prefixed qualifies a column list with a table alias.
func prefixed(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, c := range parts {
		parts[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}
