package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/shopmesh/marketplace/internal/model"
)

// OrderRepo provides persistence for orders and their line items.  An order's
// items are written once at creation and never mutated afterwards; the only
// post-creation mutation is the status, and UpdateStatus enforces the order
// state machine inside the statement itself so no caller can force an
// invalid transition even when webhooks, the reconciler and an explicit
// cancellation race each other.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns an OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// Create persists an order and its items in one transaction.  The generated
// ID and timestamps are populated on the passed order.  Status is forced to
// PENDING regardless of what the caller set.
func (r *OrderRepo) Create(ctx context.Context, order *model.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	order.Status = model.OrderStatusPending
	const ins = `INSERT INTO orders (user_id, status, total_cents, shipping_address, payment_method)
	             VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, ins,
		order.UserID, order.Status, order.TotalCents, order.ShippingAddress, order.PaymentMethod)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	order.ID = uint64(id)

	if len(order.Items) > 0 {
		// Bulk insert all items in a single statement.
		query := `INSERT INTO order_items (order_id, product_id, quantity, price_cents) VALUES `
		args := make([]interface{}, 0, len(order.Items)*4)
		for i := range order.Items {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?)"
			order.Items[i].OrderID = order.ID
			args = append(args, order.ID, order.Items[i].ProductID, order.Items[i].Quantity, order.Items[i].PriceCents)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	// Read back timestamps and defaults.
	const sel = `SELECT created_at, updated_at FROM orders WHERE id = ?`
	if err := tx.QueryRowContext(ctx, sel, order.ID).Scan(&order.CreatedAt, &order.UpdatedAt); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// UpdateStatus moves an order to next if and only if its current status
// permits that transition.  The allowed sources are baked into the WHERE
// clause, so the check and the write are one atomic statement.  When no row
// was updated the current state is probed to distinguish ErrOrderNotFound
// from ErrInvalidTransition; an update to the status the order already has
// is reported as invalid, not silently accepted.
func (r *OrderRepo) UpdateStatus(ctx context.Context, orderID uint64, next string) error {
	sources := model.TransitionSources(next)
	if len(sources) == 0 {
		return ErrInvalidTransition
	}
	placeholders := strings.Repeat("?,", len(sources))
	placeholders = placeholders[:len(placeholders)-1]

	query := `UPDATE orders SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND status IN (` + placeholders + `)`
	args := make([]interface{}, 0, len(sources)+2)
	args = append(args, next, orderID)
	for _, s := range sources {
		args = append(args, s)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var current string
		err := r.db.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ?`, orderID).Scan(&current)
		if err == sql.ErrNoRows {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}

// SetPaymentRef records the gateway transaction reference on an order.
func (r *OrderRepo) SetPaymentRef(ctx context.Context, orderID uint64, ref string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET payment_ref = ? WHERE id = ?`, ref, orderID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// Get loads an order and its items.  Items are ordered by their insertion
// order (primary key) so the sequence matches the original checkout request.
func (r *OrderRepo) Get(ctx context.Context, orderID uint64) (*model.Order, error) {
	const q = `SELECT id, user_id, status, total_cents, shipping_address, payment_method, payment_ref, created_at, updated_at
	           FROM orders WHERE id = ?`
	var o model.Order
	var payRef sql.NullString
	err := r.db.QueryRowContext(ctx, q, orderID).Scan(
		&o.ID, &o.UserID, &o.Status, &o.TotalCents, &o.ShippingAddress, &o.PaymentMethod,
		&payRef, &o.CreatedAt, &o.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if payRef.Valid {
		ref := payRef.String
		o.PaymentRef = &ref
	}
	items, err := r.itemsFor(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

// GetForUser is Get with ownership enforcement: an order belonging to a
// different user yields ErrForbidden.
func (r *OrderRepo) GetForUser(ctx context.Context, orderID, userID uint64) (*model.Order, error) {
	o, err := r.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrForbidden
	}
	return o, nil
}

// ListByUser returns a user's orders, newest first, items included.
func (r *OrderRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Order, error) {
	const q = `SELECT id, user_id, status, total_cents, shipping_address, payment_method, payment_ref, created_at, updated_at
	           FROM orders WHERE user_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]model.Order, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		var o model.Order
		var payRef sql.NullString
		if err := rows.Scan(
			&o.ID, &o.UserID, &o.Status, &o.TotalCents, &o.ShippingAddress, &o.PaymentMethod,
			&payRef, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if payRef.Valid {
			ref := payRef.String
			o.PaymentRef = &ref
		}
		o.Items = []model.OrderItem{}
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	// Populate items for all orders in a single query.
	ids := make([]interface{}, 0, len(orders))
	placeholders := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
		placeholders = append(placeholders, "?")
	}
	itemQ := `SELECT id, order_id, product_id, quantity, price_cents
	          FROM order_items WHERE order_id IN (` + strings.Join(placeholders, ",") + `) ORDER BY id`
	irows, err := r.db.QueryContext(ctx, itemQ, ids...)
	if err != nil {
		return nil, err
	}
	defer irows.Close()
	for irows.Next() {
		var it model.OrderItem
		if err := irows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.PriceCents); err != nil {
			return nil, err
		}
		if idx, ok := index[it.OrderID]; ok {
			orders[idx].Items = append(orders[idx].Items, it)
		}
	}
	if err := irows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// ListStale returns IDs of orders that have sat in the given status since
// before the cutoff.  The reconciler uses this to find reservations whose
// payment outcome never arrived.
func (r *OrderRepo) ListStale(ctx context.Context, status string, before time.Time) ([]uint64, error) {
	const q = `SELECT id FROM orders WHERE status = ? AND updated_at < ? ORDER BY updated_at`
	rows, err := r.db.QueryContext(ctx, q, status, before.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *OrderRepo) itemsFor(ctx context.Context, orderID uint64) ([]model.OrderItem, error) {
	const q = `SELECT id, order_id, product_id, quantity, price_cents
	           FROM order_items WHERE order_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.OrderItem, 0)
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.PriceCents); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
