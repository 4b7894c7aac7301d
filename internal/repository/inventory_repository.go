package repository

import (
	"context"
	"database/sql"

	"github.com/shopmesh/marketplace/internal/model"
)

// InventoryRepo provides the atomic stock operations backing the checkout
// flow.  Every mutation is a single conditional UPDATE guarded by the
// precondition it needs, so two concurrent reservations for the same product
// serialize on the storage engine's row write path and can never jointly
// oversell.  No application-level lock is taken; throughput scales with the
// number of distinct products being bought concurrently.
type InventoryRepo struct {
	db *sql.DB
}

// NewInventoryRepo returns an InventoryRepo bound to the given database.
func NewInventoryRepo(db *sql.DB) *InventoryRepo { return &InventoryRepo{db: db} }

// Reserve moves qty units from available to reserved in one atomic step.  It
// succeeds only when available_qty >= qty; otherwise no state is mutated and
// ErrInsufficientStock (row exists) or ErrProductNotFound (no row) is
// returned.
func (r *InventoryRepo) Reserve(ctx context.Context, productID uint64, qty uint32) error {
	const q = `UPDATE inventory
	           SET available_qty = available_qty - ?, reserved_qty = reserved_qty + ?
	           WHERE product_id = ? AND available_qty >= ?`
	res, err := r.db.ExecContext(ctx, q, qty, qty, productID, qty)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return r.failureReason(ctx, productID, ErrInsufficientStock)
	}
	return nil
}

// Release reverses a prior reservation: qty units move back from reserved to
// available.  The reserved_qty >= qty guard is a defensive check against a
// double release; when it trips on an existing row, ErrInvalidRelease is
// returned and nothing is mutated.
func (r *InventoryRepo) Release(ctx context.Context, productID uint64, qty uint32) error {
	const q = `UPDATE inventory
	           SET available_qty = available_qty + ?, reserved_qty = reserved_qty - ?
	           WHERE product_id = ? AND reserved_qty >= ?`
	res, err := r.db.ExecContext(ctx, q, qty, qty, productID, qty)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return r.failureReason(ctx, productID, ErrInvalidRelease)
	}
	return nil
}

// ConfirmDeduct converts a reservation into a permanent deduction.  Only
// reserved_qty shrinks: available_qty was already decremented at reserve
// time, so the units simply leave the system.  ErrInvalidConfirm is returned
// when qty exceeds the current reservation.
func (r *InventoryRepo) ConfirmDeduct(ctx context.Context, productID uint64, qty uint32) error {
	const q = `UPDATE inventory
	           SET reserved_qty = reserved_qty - ?
	           WHERE product_id = ? AND reserved_qty >= ?`
	res, err := r.db.ExecContext(ctx, q, qty, productID, qty)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return r.failureReason(ctx, productID, ErrInvalidConfirm)
	}
	return nil
}

// Available returns the currently sellable quantity for a product.
func (r *InventoryRepo) Available(ctx context.Context, productID uint64) (uint32, error) {
	var available uint32
	err := r.db.QueryRowContext(ctx,
		`SELECT available_qty FROM inventory WHERE product_id = ?`, productID,
	).Scan(&available)
	if err == sql.ErrNoRows {
		return 0, ErrProductNotFound
	}
	if err != nil {
		return 0, err
	}
	return available, nil
}

// Get returns the full inventory record for a product.
func (r *InventoryRepo) Get(ctx context.Context, productID uint64) (*model.InventoryRecord, error) {
	var rec model.InventoryRecord
	err := r.db.QueryRowContext(ctx,
		`SELECT product_id, available_qty, reserved_qty, updated_at FROM inventory WHERE product_id = ?`,
		productID,
	).Scan(&rec.ProductID, &rec.AvailableQty, &rec.ReservedQty, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Ensure seeds an inventory row for a new product with the given initial
// stock.  Seeding an existing product is a no-op so product creation can be
// retried safely.
func (r *InventoryRepo) Ensure(ctx context.Context, productID uint64, initial uint32) error {
	const q = `INSERT INTO inventory (product_id, available_qty, reserved_qty)
	           VALUES (?, ?, 0)
	           ON DUPLICATE KEY UPDATE product_id = product_id`
	_, err := r.db.ExecContext(ctx, q, productID, initial)
	return err
}

// Adjust applies an administrative stock correction to available_qty.  This
// is the only sanctioned mutation path outside the reserve/release/confirm
// trio; it never touches reserved_qty, so in-flight checkouts are
// unaffected.  Negative deltas are bounded by the current availability.
func (r *InventoryRepo) Adjust(ctx context.Context, productID uint64, delta int32) error {
	if delta >= 0 {
		const q = `UPDATE inventory SET available_qty = available_qty + ? WHERE product_id = ?`
		if _, err := r.db.ExecContext(ctx, q, delta, productID); err != nil {
			return err
		}
		// The driver reports changed rows, not matched rows, so a zero delta
		// is indistinguishable from a missing product without a probe.
		return r.failureReason(ctx, productID, nil)
	}
	const q = `UPDATE inventory SET available_qty = available_qty - ?
	           WHERE product_id = ? AND available_qty >= ?`
	dec := uint32(-delta)
	res, err := r.db.ExecContext(ctx, q, dec, productID, dec)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return r.failureReason(ctx, productID, ErrInsufficientStock)
	}
	return nil
}

// failureReason disambiguates a zero-rows-affected conditional update: when
// the row exists the guard failed, otherwise the product is unknown.
func (r *InventoryRepo) failureReason(ctx context.Context, productID uint64, guardErr error) error {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM inventory WHERE product_id = ?`, productID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrProductNotFound
	}
	if err != nil {
		return err
	}
	return guardErr
}
