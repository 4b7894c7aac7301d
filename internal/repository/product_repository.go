package repository

import (
	"context"
	"database/sql"

	"github.com/shopmesh/marketplace/internal/model"
)

// ProductRepo provides CRUD access to the `products` table for the catalog
// service.  Price-and-stock reads join against the inventory table so the
// order service sees a single consistent answer per product.
type ProductRepo struct {
	db *sql.DB
}

// NewProductRepo returns a ProductRepo bound to the given database.
func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{db: db} }

// Create inserts a product and populates its generated ID and timestamps.
func (r *ProductRepo) Create(ctx context.Context, p *model.Product) error {
	const ins = `INSERT INTO products (name, description, price_cents, is_active) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, ins, p.Name, p.Description, p.PriceCents, p.IsActive)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	const sel = `SELECT created_at, updated_at FROM products WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, p.ID).Scan(&p.CreatedAt, &p.UpdatedAt)
}

// GetByID returns a single product or ErrProductNotFound.
func (r *ProductRepo) GetByID(ctx context.Context, id uint64) (*model.Product, error) {
	const q = `SELECT id, name, description, price_cents, is_active, created_at, updated_at
	           FROM products WHERE id = ?`
	var p model.Product
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns a page of active products ordered by ID.  Offset-based
// pagination keeps the endpoint simple; limit is clamped by the handler.
func (r *ProductRepo) List(ctx context.Context, limit, offset int) ([]model.Product, error) {
	const q = `SELECT id, name, description, price_cents, is_active, created_at, updated_at
	           FROM products WHERE is_active = TRUE ORDER BY id LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := make([]model.Product, 0)
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

// Update rewrites the mutable product fields.  Inventory counters are not
// touched here; stock corrections go through InventoryRepo.Adjust.
func (r *ProductRepo) Update(ctx context.Context, p *model.Product) error {
	const q = `UPDATE products SET name = ?, description = ?, price_cents = ?, is_active = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, p.Name, p.Description, p.PriceCents, p.IsActive, p.ID)
	if err != nil {
		return err
	}
	var one int
	if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM products WHERE id = ?`, p.ID).Scan(&one); err == sql.ErrNoRows {
		return ErrProductNotFound
	} else if err != nil {
		return err
	}
	return nil
}

// Deactivate soft-deletes a product.  The row is kept because order items
// reference it; it simply stops being sellable.
func (r *ProductRepo) Deactivate(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE products SET is_active = FALSE WHERE id = ? AND is_active = TRUE`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var one int
		if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM products WHERE id = ?`, id).Scan(&one); err == sql.ErrNoRows {
			return ErrProductNotFound
		} else if err != nil {
			return err
		}
	}
	return nil
}

// PriceAndStock returns the current unit price and available quantity for an
// active product.  Inactive or unknown products report ErrProductNotFound so
// the order service aborts the checkout before reserving anything.
func (r *ProductRepo) PriceAndStock(ctx context.Context, id uint64) (*model.PriceAndStock, error) {
	const q = `SELECT p.id, p.price_cents, i.available_qty
	           FROM products p
	           JOIN inventory i ON i.product_id = p.id
	           WHERE p.id = ? AND p.is_active = TRUE`
	var ps model.PriceAndStock
	err := r.db.QueryRowContext(ctx, q, id).Scan(&ps.ProductID, &ps.PriceCents, &ps.Available)
	if err == sql.ErrNoRows {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ps, nil
}
