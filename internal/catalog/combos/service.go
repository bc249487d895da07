package combos

import (
	"context"
	"strconv"

	"github.com/granel-pos/granel-pos/internal/catalog"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Combo, error)
	List(ctx context.Context) ([]Combo, error)
}

// Service serves combo reads through the catalog cache.
type Service struct {
	repo  RepositoryPort
	cache *catalog.Cache
}

// NewService builds Service.
func NewService(repo RepositoryPort, cache *catalog.Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Get returns one combo with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Combo, error) {
	key, err := s.cache.BuildKey(ctx, "combos", strconv.FormatInt(id, 10))
	if err != nil {
		return s.repo.Get(ctx, id)
	}
	var c Combo
	err = s.cache.FetchJSON(ctx, key, &c, func(ctx context.Context) (interface{}, error) {
		return s.repo.Get(ctx, id)
	})
	if err != nil {
		return Combo{}, err
	}
	return c, nil
}

// List returns every combo.
func (s *Service) List(ctx context.Context) ([]Combo, error) {
	key, err := s.cache.BuildKey(ctx, "combos", "all")
	if err != nil {
		return s.repo.List(ctx)
	}
	var items []Combo
	err = s.cache.FetchJSON(ctx, key, &items, func(ctx context.Context) (interface{}, error) {
		return s.repo.List(ctx)
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}
