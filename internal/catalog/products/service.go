package products

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/granel-pos/granel-pos/internal/catalog"
	"github.com/granel-pos/granel-pos/internal/platform/httpx"
	"github.com/granel-pos/granel-pos/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context) ([]Product, error)
	ListActive(ctx context.Context) ([]Product, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates product reads and stock corrections.
type Service struct {
	repo  RepositoryPort
	cache *catalog.Cache
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, cache *catalog.Cache, audit AuditPort) *Service {
	return &Service{repo: repo, cache: cache, audit: audit}
}

const qtyEpsilon = 1e-9

// Get returns one product, served from cache when possible.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	key, err := s.cache.BuildKey(ctx, "products", strconv.FormatInt(id, 10))
	if err != nil {
		return s.repo.Get(ctx, id)
	}
	var p Product
	err = s.cache.FetchJSON(ctx, key, &p, func(ctx context.Context) (interface{}, error) {
		return s.repo.Get(ctx, id)
	})
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

// List returns the full catalog.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.cachedList(ctx, "all", s.repo.List)
}

// ListActive returns products available for sale.
func (s *Service) ListActive(ctx context.Context) ([]Product, error) {
	return s.cachedList(ctx, "active", s.repo.ListActive)
}

func (s *Service) cachedList(ctx context.Context, tag string, loader func(context.Context) ([]Product, error)) ([]Product, error) {
	key, err := s.cache.BuildKey(ctx, "products", tag)
	if err != nil {
		return loader(ctx)
	}
	var items []Product
	err = s.cache.FetchJSON(ctx, key, &items, func(ctx context.Context) (interface{}, error) {
		return loader(ctx)
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ValidateStock reports whether the product is active and holds at least the
// requested quantity. A missing product is an error; a short or inactive one
// is simply false. The check is read-only.
func (s *Service) ValidateStock(ctx context.Context, id int64, requestedLbs float64) (bool, error) {
	if requestedLbs <= 0 {
		return false, fmt.Errorf("requested quantity must be positive: %w", httpx.ErrValidation)
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if !p.IsActive {
		return false, nil
	}
	return p.QuantityLbs+qtyEpsilon >= requestedLbs, nil
}

// AdjustStock applies a stock correction (positive restock or negative
// shrinkage) inside its own transaction. Quantity on hand never goes negative.
func (s *Service) AdjustStock(ctx context.Context, id int64, deltaLbs float64, note string) (Product, error) {
	if math.Abs(deltaLbs) < qtyEpsilon {
		return Product{}, fmt.Errorf("stock adjustment must be non zero: %w", httpx.ErrValidation)
	}
	var updated Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		newQty := p.QuantityLbs + deltaLbs
		if newQty < -qtyEpsilon {
			return fmt.Errorf("stock for %s cannot go below zero: %w", p.Name, httpx.ErrInvalidState)
		}
		if newQty < 0 {
			newQty = 0
		}
		if err := tx.UpdateQuantity(ctx, p.ID, newQty); err != nil {
			return err
		}
		updated = p
		updated.QuantityLbs = newQty
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	// Best effort: the adjustment is committed, stale reads expire via TTL.
	_ = s.cache.Bump(ctx)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    "catalog",
			Action:   "products:adjust_stock",
			Entity:   "product",
			EntityID: strconv.FormatInt(id, 10),
			Meta: map[string]any{
				"delta_lbs": deltaLbs,
				"note":      note,
			},
		})
	}
	return updated, nil
}
