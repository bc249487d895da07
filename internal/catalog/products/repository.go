package products

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/granel-pos/granel-pos/internal/platform/db"
	"github.com/granel-pos/granel-pos/internal/platform/httpx"
)

// Repository persists products in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Product, error)
	UpdateQuantity(ctx context.Context, id int64, quantityLbs float64) error
}

type txRepository struct {
	tx pgx.Tx
}

const productColumns = `id, name, quantity_lbs, price_per_lb, package_type, is_active, updated_at`

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("products repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// Get loads one product by id.
func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.QuantityLbs, &p.PricePerLb, &p.PackageType, &p.IsActive, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("product %d: %w", id, httpx.ErrNotFound)
		}
		return Product{}, err
	}
	return p, nil
}

// List returns every product ordered by name.
func (r *Repository) List(ctx context.Context) ([]Product, error) {
	return r.list(ctx, `SELECT `+productColumns+` FROM products ORDER BY name ASC`)
}

// ListActive returns only products available for sale.
func (r *Repository) ListActive(ctx context.Context) ([]Product, error) {
	return r.list(ctx, `SELECT `+productColumns+` FROM products WHERE is_active ORDER BY name ASC`)
}

func (r *Repository) list(ctx context.Context, query string) ([]Product, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.QuantityLbs, &p.PricePerLb, &p.PackageType, &p.IsActive, &p.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 FOR UPDATE`, id).
		Scan(&p.ID, &p.Name, &p.QuantityLbs, &p.PricePerLb, &p.PackageType, &p.IsActive, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("product %d: %w", id, httpx.ErrNotFound)
		}
		return Product{}, err
	}
	return p, nil
}

func (r *txRepository) UpdateQuantity(ctx context.Context, id int64, quantityLbs float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products SET quantity_lbs=$2, updated_at=$3 WHERE id=$1`, id, quantityLbs, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}
