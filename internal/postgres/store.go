package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-shop-checkout/internal/store"
)

// Store is the pgx-backed store.Store.
type Store struct{ DB *pgxpool.Pool }

func NewStore(db *pgxpool.Pool) *Store { return &Store{DB: db} }

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		return fn(&txRepos{tx: tx})
	})
}

type txRepos struct{ tx pgx.Tx }

func (t *txRepos) Products() store.Products { return &ProductRepo{tx: t.tx} }
func (t *txRepos) Carts() store.Carts       { return &CartRepo{tx: t.tx} }
func (t *txRepos) Orders() store.Orders     { return &OrderRepo{tx: t.tx} }
func (t *txRepos) Payments() store.Payments { return &PaymentRepo{tx: t.tx} }
