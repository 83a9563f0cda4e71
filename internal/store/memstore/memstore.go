// Package memstore is an in-memory store.Store. Transactions are serialized by
// a single mutex and applied copy-on-write, so a failed callback leaves no trace.
// It backs the API's memory mode and the service tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/ariefcatur/go-shop-checkout/internal/store"
)

type state struct {
	products map[string]orders.Product
	carts    map[string]cartRow
	orders   map[string]orders.Order // items included, payment detached
	payments map[string]orders.Payment
}

type cartRow struct {
	id        string
	userID    string
	items     map[string]int
	order     []string // insertion order of product ids
	createdAt time.Time
	updatedAt time.Time
}

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

func New() *Store {
	return &Store{
		st: &state{
			products: map[string]orders.Product{},
			carts:    map[string]cartRow{},
			orders:   map[string]orders.Order{},
			payments: map[string]orders.Payment{},
		},
		now: time.Now,
	}
}

// SetClock replaces the time source used for timestamps.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// PutProduct inserts or replaces a catalog row.
func (s *Store) PutProduct(p orders.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	p.UpdatedAt = s.now()
	s.st.products[p.ID] = p
}

// Stock reads the current stock counter, -1 when the product is unknown.
func (s *Store) Stock(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[productID]
	if !ok {
		return -1
	}
	return p.Stock
}

// Counts returns the number of orders and payments held.
func (s *Store) Counts() (ordersN, paymentsN int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.orders), len(s.st.payments)
}

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&tx{st: work, now: s.now}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (st *state) clone() *state {
	cp := &state{
		products: make(map[string]orders.Product, len(st.products)),
		carts:    make(map[string]cartRow, len(st.carts)),
		orders:   make(map[string]orders.Order, len(st.orders)),
		payments: make(map[string]orders.Payment, len(st.payments)),
	}
	for k, v := range st.products {
		cp.products[k] = v
	}
	for k, v := range st.carts {
		items := make(map[string]int, len(v.items))
		for pid, q := range v.items {
			items[pid] = q
		}
		v.items = items
		v.order = append([]string(nil), v.order...)
		cp.carts[k] = v
	}
	for k, v := range st.orders {
		v.Items = append([]orders.OrderItem(nil), v.Items...)
		cp.orders[k] = v
	}
	for k, v := range st.payments {
		cp.payments[k] = v
	}
	return cp
}

type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) Products() store.Products { return productRepo{t} }
func (t *tx) Carts() store.Carts       { return cartRepo{t} }
func (t *tx) Orders() store.Orders     { return orderRepo{t} }
func (t *tx) Payments() store.Payments { return paymentRepo{t} }

type productRepo struct{ t *tx }

func (r productRepo) List(ctx context.Context) ([]orders.Product, error) {
	out := make([]orders.Product, 0, len(r.t.st.products))
	for _, p := range r.t.st.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (r productRepo) Get(ctx context.Context, id string) (orders.Product, error) {
	p, ok := r.t.st.products[id]
	if !ok {
		return orders.Product{}, store.ErrNotFound
	}
	return p, nil
}

func (r productRepo) Decrement(ctx context.Context, id string, qty int) (bool, error) {
	p, ok := r.t.st.products[id]
	if !ok || !p.Active || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	p.UpdatedAt = r.t.now()
	r.t.st.products[id] = p
	return true, nil
}

func (r productRepo) Increment(ctx context.Context, id string, qty int) error {
	p, ok := r.t.st.products[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Stock += qty
	p.UpdatedAt = r.t.now()
	r.t.st.products[id] = p
	return nil
}

type cartRepo struct{ t *tx }

func (r cartRepo) view(c cartRow) orders.Cart {
	out := orders.Cart{ID: c.id, UserID: c.userID, CreatedAt: c.createdAt, UpdatedAt: c.updatedAt}
	for _, pid := range c.order {
		q, ok := c.items[pid]
		if !ok {
			continue
		}
		p, ok := r.t.st.products[pid]
		if !ok {
			continue
		}
		out.Items = append(out.Items, orders.CartItem{ProductID: pid, Quantity: q, Product: p})
	}
	return out
}

func (r cartRepo) GetByUser(ctx context.Context, userID string) (orders.Cart, error) {
	for _, c := range r.t.st.carts {
		if c.userID == userID {
			return r.view(c), nil
		}
	}
	return orders.Cart{}, store.ErrNotFound
}

func (r cartRepo) Get(ctx context.Context, cartID string) (orders.Cart, error) {
	c, ok := r.t.st.carts[cartID]
	if !ok {
		return orders.Cart{}, store.ErrNotFound
	}
	return r.view(c), nil
}

func (r cartRepo) Create(ctx context.Context, userID string) (orders.Cart, error) {
	now := r.t.now()
	c := cartRow{id: uuid.NewString(), userID: userID, items: map[string]int{}, createdAt: now, updatedAt: now}
	r.t.st.carts[c.id] = c
	return r.view(c), nil
}

func (r cartRepo) SetItem(ctx context.Context, cartID, productID string, qty int) error {
	c, ok := r.t.st.carts[cartID]
	if !ok {
		return store.ErrNotFound
	}
	if _, ok := r.t.st.products[productID]; !ok {
		return store.ErrNotFound
	}
	if _, exists := c.items[productID]; !exists {
		c.order = append(c.order, productID)
	}
	c.items[productID] = qty
	c.updatedAt = r.t.now()
	r.t.st.carts[cartID] = c
	return nil
}

func (r cartRepo) RemoveItem(ctx context.Context, cartID, productID string) error {
	c, ok := r.t.st.carts[cartID]
	if !ok {
		return store.ErrNotFound
	}
	if _, ok := c.items[productID]; !ok {
		return store.ErrNotFound
	}
	delete(c.items, productID)
	c.updatedAt = r.t.now()
	r.t.st.carts[cartID] = c
	return nil
}

func (r cartRepo) Delete(ctx context.Context, cartID string) error {
	if _, ok := r.t.st.carts[cartID]; !ok {
		return store.ErrNotFound
	}
	delete(r.t.st.carts, cartID)
	return nil
}

type orderRepo struct{ t *tx }

func (r orderRepo) Create(ctx context.Context, o *orders.Order) error {
	now := r.t.now()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.CreatedAt, o.UpdatedAt = now, now
	for i := range o.Items {
		if o.Items[i].ID == "" {
			o.Items[i].ID = uuid.NewString()
		}
		o.Items[i].OrderID = o.ID
	}
	row := *o
	row.Payment = nil
	row.Items = append([]orders.OrderItem(nil), o.Items...)
	r.t.st.orders[o.ID] = row
	return nil
}

func (r orderRepo) Get(ctx context.Context, id string) (orders.Order, error) {
	o, ok := r.t.st.orders[id]
	if !ok {
		return orders.Order{}, store.ErrNotFound
	}
	o.Items = append([]orders.OrderItem(nil), o.Items...)
	return o, nil
}

// Lock is Get: transactions are already serialized.
func (r orderRepo) Lock(ctx context.Context, id string) (orders.Order, error) {
	return r.Get(ctx, id)
}

func (r orderRepo) ListByUser(ctx context.Context, userID string) ([]orders.Order, error) {
	var out []orders.Order
	for _, o := range r.t.st.orders {
		if o.UserID == userID {
			o.Items = append([]orders.OrderItem(nil), o.Items...)
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r orderRepo) ListIDsByStatusBefore(ctx context.Context, status orders.Status, before time.Time) ([]string, error) {
	var out []string
	for _, o := range r.t.st.orders {
		if o.Status == status && o.CreatedAt.Before(before) {
			out = append(out, o.ID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r orderRepo) SetStatus(ctx context.Context, id string, status orders.Status) error {
	o, ok := r.t.st.orders[id]
	if !ok {
		return store.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = r.t.now()
	r.t.st.orders[id] = o
	return nil
}

type paymentRepo struct{ t *tx }

func (r paymentRepo) Create(ctx context.Context, p *orders.Payment) error {
	if _, ok := r.t.st.orders[p.OrderID]; !ok {
		return store.ErrNotFound
	}
	for _, existing := range r.t.st.payments {
		if existing.OrderID == p.OrderID {
			return store.ErrDuplicate
		}
	}
	now := r.t.now()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt, p.UpdatedAt = now, now
	r.t.st.payments[p.ID] = *p
	return nil
}

func (r paymentRepo) find(match func(orders.Payment) bool) (orders.Payment, error) {
	for _, p := range r.t.st.payments {
		if match(p) {
			return p, nil
		}
	}
	return orders.Payment{}, store.ErrNotFound
}

func (r paymentRepo) GetByOrder(ctx context.Context, orderID string) (orders.Payment, error) {
	return r.find(func(p orders.Payment) bool { return p.OrderID == orderID })
}

func (r paymentRepo) GetBySession(ctx context.Context, sessionID string) (orders.Payment, error) {
	return r.find(func(p orders.Payment) bool {
		return p.CheckoutSessionID != nil && *p.CheckoutSessionID == sessionID
	})
}

func (r paymentRepo) GetByIntent(ctx context.Context, intentID string) (orders.Payment, error) {
	return r.find(func(p orders.Payment) bool {
		return p.PaymentIntentID != nil && *p.PaymentIntentID == intentID
	})
}

func (r paymentRepo) Update(ctx context.Context, p *orders.Payment) error {
	if _, ok := r.t.st.payments[p.ID]; !ok {
		return store.ErrNotFound
	}
	p.UpdatedAt = r.t.now()
	r.t.st.payments[p.ID] = *p
	return nil
}
