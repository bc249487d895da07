package sales

import (
	"context"
	"fmt"
	"sort"

	"github.com/granel-pos/granel-pos/internal/platform/httpx"
)

const qtyEpsilon = 1e-9

// lineStrategy processes one requested sale line inside the coordinator's
// transaction: validate stock, compute the subtotal, decrement stock. The
// returned product ids are the ones whose stock changed.
type lineStrategy interface {
	process(ctx context.Context, tx TxRepository, req CreateSaleLineRequest) (SaleLine, []int64, error)
}

// strategyFor dispatches on the line's type tag.
func strategyFor(t LineType) (lineStrategy, error) {
	switch t {
	case LineTypeProduct:
		return productLineStrategy{}, nil
	case LineTypeCombo:
		return comboLineStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown line type %q: %w", t, httpx.ErrInvalidOperation)
	}
}

type productLineStrategy struct{}

func (productLineStrategy) process(ctx context.Context, tx TxRepository, req CreateSaleLineRequest) (SaleLine, []int64, error) {
	if req.ProductID == nil {
		return SaleLine{}, nil, fmt.Errorf("product line requires product_id: %w", httpx.ErrValidation)
	}
	p, err := tx.GetProductForUpdate(ctx, *req.ProductID)
	if err != nil {
		return SaleLine{}, nil, err
	}
	if !p.IsActive {
		return SaleLine{}, nil, fmt.Errorf("product %s is not active: %w", p.Name, httpx.ErrInvalidState)
	}
	if p.QuantityLbs+qtyEpsilon < req.Quantity {
		return SaleLine{}, nil, &InsufficientStockError{Items: []string{p.Name}}
	}
	if err := tx.UpdateProductQuantity(ctx, p.ID, p.QuantityLbs-req.Quantity); err != nil {
		return SaleLine{}, nil, err
	}
	line := SaleLine{
		LineType:  LineTypeProduct,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		UnitPrice: p.PricePerLb,
		Subtotal:  p.PricePerLb * req.Quantity,
	}
	return line, []int64{p.ID}, nil
}

type comboLineStrategy struct{}

func (comboLineStrategy) process(ctx context.Context, tx TxRepository, req CreateSaleLineRequest) (SaleLine, []int64, error) {
	if req.ComboID == nil {
		return SaleLine{}, nil, fmt.Errorf("combo line requires combo_id: %w", httpx.ErrValidation)
	}
	combo, err := tx.GetCombo(ctx, *req.ComboID)
	if err != nil {
		return SaleLine{}, nil, err
	}
	if !combo.IsActive {
		return SaleLine{}, nil, fmt.Errorf("combo %s is not active: %w", combo.Name, httpx.ErrInvalidState)
	}
	if len(combo.Lines) == 0 {
		return SaleLine{}, nil, fmt.Errorf("combo %s has no recipe lines: %w", combo.Name, httpx.ErrInvalidState)
	}

	// A combo may reference the same product on several recipe lines, so
	// required amounts are summed per product before any check. Checking
	// line-by-line would both over-admit and over-reject repeated products.
	required := make(map[int64]float64, len(combo.Lines))
	for _, line := range combo.Lines {
		required[line.ProductID] += line.QuantityLbs * req.Quantity
	}

	// Lock products in ascending id order so two concurrent combo sales
	// cannot deadlock each other.
	ids := make([]int64, 0, len(required))
	for id := range required {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	locked := make(map[int64]float64, len(ids))
	var short []string
	for _, id := range ids {
		p, err := tx.GetProductForUpdate(ctx, id)
		if err != nil {
			return SaleLine{}, nil, err
		}
		if !p.IsActive || p.QuantityLbs+qtyEpsilon < required[id] {
			short = append(short, p.Name)
			continue
		}
		locked[id] = p.QuantityLbs
	}
	if len(short) > 0 {
		return SaleLine{}, nil, &InsufficientStockError{Items: short}
	}

	for _, id := range ids {
		if err := tx.UpdateProductQuantity(ctx, id, locked[id]-required[id]); err != nil {
			return SaleLine{}, nil, err
		}
	}

	line := SaleLine{
		LineType:  LineTypeCombo,
		ComboID:   req.ComboID,
		Quantity:  req.Quantity,
		UnitPrice: combo.Price,
		Subtotal:  combo.Price * req.Quantity,
	}
	return line, ids, nil
}
