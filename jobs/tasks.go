package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeLowStockScan checks products touched by a sale against the
	// reorder threshold.
	TaskTypeLowStockScan = "stock:lowscan"
)

// LowStockScanPayload carries the products a committed sale decremented.
type LowStockScanPayload struct {
	SaleReference string  `json:"sale_reference"`
	ProductIDs    []int64 `json:"product_ids"`
}

// NewLowStockScanTask constructs an Asynq task.
func NewLowStockScanTask(payload LowStockScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeLowStockScan, data), nil
}

// MetricsPort counts raised alerts.
type MetricsPort interface {
	RecordLowStockAlert()
}

// LowStockScanner processes TaskTypeLowStockScan tasks.
type LowStockScanner struct {
	pool      *pgxpool.Pool
	logger    *slog.Logger
	threshold float64
	metrics   MetricsPort
}

// NewLowStockScanner builds the scanner. metrics may be nil.
func NewLowStockScanner(pool *pgxpool.Pool, logger *slog.Logger, threshold float64, metrics MetricsPort) *LowStockScanner {
	return &LowStockScanner{pool: pool, logger: logger, threshold: threshold, metrics: metrics}
}

// HandleTask logs every touched product that fell under the threshold.
func (s *LowStockScanner) HandleTask(ctx context.Context, t *asynq.Task) error {
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if len(payload.ProductIDs) == 0 {
		return nil
	}
	rows, err := s.pool.Query(ctx, `SELECT id, name, quantity_lbs FROM products WHERE id = ANY($1) AND quantity_lbs < $2`, payload.ProductIDs, s.threshold)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   int64
			name string
			qty  float64
		)
		if err := rows.Scan(&id, &name, &qty); err != nil {
			return err
		}
		s.logger.Warn("product below reorder threshold",
			slog.Int64("product_id", id),
			slog.String("name", name),
			slog.Float64("quantity_lbs", qty),
			slog.String("sale_reference", payload.SaleReference))
		if s.metrics != nil {
			s.metrics.RecordLowStockAlert()
		}
	}
	return rows.Err()
}
