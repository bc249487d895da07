package sales

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/granel-pos/granel-pos/internal/catalog"
	"github.com/granel-pos/granel-pos/internal/platform/httpx"
	"github.com/granel-pos/granel-pos/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Sale, error)
	List(ctx context.Context, req ListSalesRequest) ([]Sale, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort receives domain counters.
type MetricsPort interface {
	RecordSale()
}

// Service is the sale transaction coordinator. It owns the transaction
// boundary; strategies and repository calls run inside the unit of work it
// opens, never in transactions of their own.
type Service struct {
	logger  *slog.Logger
	repo    RepositoryPort
	audit   AuditPort
	cache   *catalog.Cache
	events  EventHandler
	metrics MetricsPort
}

// NewService builds Service. audit, cache, events and metrics may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, audit AuditPort, cache *catalog.Cache, events EventHandler, metrics MetricsPort) *Service {
	return &Service{logger: logger, repo: repo, audit: audit, cache: cache, events: events, metrics: metrics}
}

// Create builds a sale from heterogeneous line requests inside one
// all-or-nothing transaction. The header is inserted first with a zero total
// so lines can reference it; each line is processed in input order by its
// strategy; the accumulated total is written back before commit. Any failure
// rolls back everything, including stock decrements made earlier in the call.
//
// Create is deliberately not idempotent: two identical calls produce two
// sales and decrement stock twice.
func (s *Service) Create(ctx context.Context, req CreateSaleRequest) (Sale, error) {
	if len(req.Lines) == 0 {
		return Sale{}, fmt.Errorf("sale requires at least one line: %w", httpx.ErrValidation)
	}
	for _, lr := range req.Lines {
		if lr.Quantity <= 0 {
			return Sale{}, fmt.Errorf("line quantity must be positive: %w", httpx.ErrValidation)
		}
	}
	saleType := req.SaleType
	if saleType == "" {
		saleType = SaleTypeIndividual
	}

	sale := Sale{
		Reference: uuid.NewString(),
		Client:    req.Client,
		Notes:     req.Notes,
		Type:      saleType,
		SoldAt:    time.Now().UTC(),
	}

	var (
		saleID  int64
		touched []int64
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertSale(ctx, sale)
		if err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}
		saleID = id

		var (
			lines []SaleLine
			total float64
		)
		for i, lr := range req.Lines {
			strategy, err := strategyFor(lr.LineType)
			if err != nil {
				return err
			}
			line, productIDs, err := strategy.process(ctx, tx, lr)
			if err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
			line.SaleID = saleID
			lines = append(lines, line)
			total += line.Subtotal
			touched = append(touched, productIDs...)
		}

		if err := tx.InsertSaleLines(ctx, saleID, lines); err != nil {
			return fmt.Errorf("insert sale lines: %w", err)
		}
		if err := tx.UpdateSaleTotal(ctx, saleID, total); err != nil {
			return fmt.Errorf("update sale total: %w", err)
		}
		return nil
	})
	if err != nil {
		return Sale{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordSale()
	}
	// Stock changed, so cached catalog reads are stale.
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump catalog cache", slog.Any("error", err))
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    "pos",
			Action:   "sales:create",
			Entity:   "sale",
			EntityID: strconv.FormatInt(saleID, 10),
			Meta: map[string]any{
				"reference": sale.Reference,
				"client":    sale.Client,
				"lines":     len(req.Lines),
			},
		})
	}
	if s.events != nil {
		evt := SaleCommittedEvent{SaleID: saleID, Reference: sale.Reference, ProductIDs: touched}
		if err := s.events.HandleSaleCommitted(ctx, evt); err != nil {
			s.logger.Warn("sale committed event", slog.Int64("sale_id", saleID), slog.Any("error", err))
		}
	}

	return s.repo.Get(ctx, saleID)
}

// Get returns one sale with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Sale, error) {
	return s.repo.Get(ctx, id)
}

// List returns sale headers matching the filter.
func (s *Service) List(ctx context.Context, req ListSalesRequest) ([]Sale, error) {
	return s.repo.List(ctx, req)
}
