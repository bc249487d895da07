package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/granel-pos/granel-pos/internal/catalog/combos"
	"github.com/granel-pos/granel-pos/internal/catalog/products"
	"github.com/granel-pos/granel-pos/internal/platform/db"
	"github.com/granel-pos/granel-pos/internal/platform/httpx"
)

// Repository persists sales in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the unit-of-work the coordinator and strategies run
// against. Lower layers never open their own transactions.
type TxRepository interface {
	InsertSale(ctx context.Context, sale Sale) (int64, error)
	InsertSaleLines(ctx context.Context, saleID int64, lines []SaleLine) error
	UpdateSaleTotal(ctx context.Context, saleID int64, total float64) error
	GetProductForUpdate(ctx context.Context, id int64) (products.Product, error)
	UpdateProductQuantity(ctx context.Context, id int64, quantityLbs float64) error
	GetCombo(ctx context.Context, id int64) (combos.Combo, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction. Products
// to decrement are additionally row-locked via GetProductForUpdate.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("sales repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// Get loads a sale with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (Sale, error) {
	var s Sale
	err := r.pool.QueryRow(ctx, `SELECT id, reference, client, notes, sale_type, sold_at, total_amount FROM sales WHERE id=$1`, id).
		Scan(&s.ID, &s.Reference, &s.Client, &s.Notes, &s.Type, &s.SoldAt, &s.TotalAmount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, fmt.Errorf("sale %d: %w", id, httpx.ErrNotFound)
		}
		return Sale{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, sale_id, line_type, product_id, combo_id, quantity, unit_price, subtotal FROM sale_lines WHERE sale_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return Sale{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l SaleLine
		if err := rows.Scan(&l.ID, &l.SaleID, &l.LineType, &l.ProductID, &l.ComboID, &l.Quantity, &l.UnitPrice, &l.Subtotal); err != nil {
			return Sale{}, err
		}
		s.Lines = append(s.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return Sale{}, err
	}
	return s, nil
}

// List returns sale headers matching the filter, newest first.
func (r *Repository) List(ctx context.Context, req ListSalesRequest) ([]Sale, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, reference, client, notes, sale_type, sold_at, total_amount
FROM sales
WHERE ($1 = '' OR client ILIKE '%' || $1 || '%')
  AND sold_at BETWEEN COALESCE($2, '-infinity') AND COALESCE($3, 'infinity')
ORDER BY sold_at DESC, id DESC
LIMIT $4`, req.Client, nullTime(req.From), nullTime(req.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Sale{}
	for rows.Next() {
		var s Sale
		if err := rows.Scan(&s.ID, &s.Reference, &s.Client, &s.Notes, &s.Type, &s.SoldAt, &s.TotalAmount); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *txRepository) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sales (reference, client, notes, sale_type, sold_at, total_amount)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`, sale.Reference, sale.Client, sale.Notes, string(sale.Type), sale.SoldAt, sale.TotalAmount).Scan(&id)
	return id, err
}

func (r *txRepository) InsertSaleLines(ctx context.Context, saleID int64, lines []SaleLine) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO sale_lines (sale_id, line_type, product_id, combo_id, quantity, unit_price, subtotal)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, saleID, string(line.LineType), line.ProductID, line.ComboID, line.Quantity, line.UnitPrice, line.Subtotal); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) UpdateSaleTotal(ctx context.Context, saleID int64, total float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE sales SET total_amount=$2 WHERE id=$1`, saleID, total)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sale %d: %w", saleID, httpx.ErrNotFound)
	}
	return nil
}

func (r *txRepository) GetProductForUpdate(ctx context.Context, id int64) (products.Product, error) {
	var p products.Product
	err := r.tx.QueryRow(ctx, `SELECT id, name, quantity_lbs, price_per_lb, package_type, is_active, updated_at FROM products WHERE id=$1 FOR UPDATE`, id).
		Scan(&p.ID, &p.Name, &p.QuantityLbs, &p.PricePerLb, &p.PackageType, &p.IsActive, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return products.Product{}, fmt.Errorf("product %d: %w", id, httpx.ErrNotFound)
		}
		return products.Product{}, err
	}
	return p, nil
}

func (r *txRepository) UpdateProductQuantity(ctx context.Context, id int64, quantityLbs float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products SET quantity_lbs=$2, updated_at=$3 WHERE id=$1`, id, quantityLbs, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

func (r *txRepository) GetCombo(ctx context.Context, id int64) (combos.Combo, error) {
	var c combos.Combo
	err := r.tx.QueryRow(ctx, `SELECT id, name, description, price, is_active, updated_at FROM combos WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Description, &c.Price, &c.IsActive, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return combos.Combo{}, fmt.Errorf("combo %d: %w", id, httpx.ErrNotFound)
		}
		return combos.Combo{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT product_id, quantity_lbs FROM combo_lines WHERE combo_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return combos.Combo{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l combos.ComboLine
		if err := rows.Scan(&l.ProductID, &l.QuantityLbs); err != nil {
			return combos.Combo{}, err
		}
		c.Lines = append(c.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return combos.Combo{}, err
	}
	return c, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
