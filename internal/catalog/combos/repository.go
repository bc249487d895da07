package combos

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/granel-pos/granel-pos/internal/platform/httpx"
)

// Repository persists combos in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get loads one combo together with its recipe lines.
func (r *Repository) Get(ctx context.Context, id int64) (Combo, error) {
	var c Combo
	err := r.pool.QueryRow(ctx, `SELECT id, name, description, price, is_active, updated_at FROM combos WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Description, &c.Price, &c.IsActive, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Combo{}, fmt.Errorf("combo %d: %w", id, httpx.ErrNotFound)
		}
		return Combo{}, err
	}
	lines, err := r.lines(ctx, id)
	if err != nil {
		return Combo{}, err
	}
	c.Lines = lines
	return c, nil
}

// List returns every combo with its lines.
func (r *Repository) List(ctx context.Context) ([]Combo, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, price, is_active, updated_at FROM combos ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Combo{}
	for rows.Next() {
		var c Combo
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Price, &c.IsActive, &c.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range items {
		g.Go(func() error {
			lines, err := r.lines(gctx, items[i].ID)
			if err != nil {
				return err
			}
			items[i].Lines = lines
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Repository) lines(ctx context.Context, comboID int64) ([]ComboLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_id, quantity_lbs FROM combo_lines WHERE combo_id=$1 ORDER BY id ASC`, comboID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []ComboLine{}
	for rows.Next() {
		var l ComboLine
		if err := rows.Scan(&l.ProductID, &l.QuantityLbs); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
