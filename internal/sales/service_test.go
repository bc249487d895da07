package sales

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/granel-pos/granel-pos/internal/catalog/combos"
	"github.com/granel-pos/granel-pos/internal/catalog/products"
	"github.com/granel-pos/granel-pos/internal/platform/httpx"
)

type memoryRepo struct {
	products   map[int64]products.Product
	combos     map[int64]combos.Combo
	sales      map[int64]Sale
	nextSaleID int64
	nextLineID int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		products: make(map[int64]products.Product),
		combos:   make(map[int64]combos.Combo),
		sales:    make(map[int64]Sale),
	}
}

// WithTx mimics transactional semantics: on error every mutation made by the
// callback is discarded.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	productsBefore := make(map[int64]products.Product, len(r.products))
	for id, p := range r.products {
		productsBefore[id] = p
	}
	salesBefore := make(map[int64]Sale, len(r.sales))
	for id, s := range r.sales {
		salesBefore[id] = s
	}
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.products = productsBefore
		r.sales = salesBefore
		return err
	}
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Sale, error) {
	s, ok := r.sales[id]
	if !ok {
		return Sale{}, fmt.Errorf("sale %d: %w", id, httpx.ErrNotFound)
	}
	return s, nil
}

func (r *memoryRepo) List(ctx context.Context, req ListSalesRequest) ([]Sale, error) {
	out := make([]Sale, 0, len(r.sales))
	for _, s := range r.sales {
		out = append(out, s)
	}
	return out, nil
}

func (tx *memoryTx) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	tx.repo.nextSaleID++
	sale.ID = tx.repo.nextSaleID
	tx.repo.sales[sale.ID] = sale
	return sale.ID, nil
}

func (tx *memoryTx) InsertSaleLines(ctx context.Context, saleID int64, lines []SaleLine) error {
	s, ok := tx.repo.sales[saleID]
	if !ok {
		return fmt.Errorf("sale %d: %w", saleID, httpx.ErrNotFound)
	}
	for _, line := range lines {
		tx.repo.nextLineID++
		line.ID = tx.repo.nextLineID
		line.SaleID = saleID
		s.Lines = append(s.Lines, line)
	}
	tx.repo.sales[saleID] = s
	return nil
}

func (tx *memoryTx) UpdateSaleTotal(ctx context.Context, saleID int64, total float64) error {
	s, ok := tx.repo.sales[saleID]
	if !ok {
		return fmt.Errorf("sale %d: %w", saleID, httpx.ErrNotFound)
	}
	s.TotalAmount = total
	tx.repo.sales[saleID] = s
	return nil
}

func (tx *memoryTx) GetProductForUpdate(ctx context.Context, id int64) (products.Product, error) {
	p, ok := tx.repo.products[id]
	if !ok {
		return products.Product{}, fmt.Errorf("product %d: %w", id, httpx.ErrNotFound)
	}
	return p, nil
}

func (tx *memoryTx) UpdateProductQuantity(ctx context.Context, id int64, quantityLbs float64) error {
	p, ok := tx.repo.products[id]
	if !ok {
		return fmt.Errorf("product %d: %w", id, httpx.ErrNotFound)
	}
	p.QuantityLbs = quantityLbs
	tx.repo.products[id] = p
	return nil
}

func (tx *memoryTx) GetCombo(ctx context.Context, id int64) (combos.Combo, error) {
	c, ok := tx.repo.combos[id]
	if !ok {
		return combos.Combo{}, fmt.Errorf("combo %d: %w", id, httpx.ErrNotFound)
	}
	return c, nil
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(slog.New(slog.DiscardHandler), repo, nil, nil, nil, nil)
}

func ptr(v int64) *int64 { return &v }

func TestCreateSaleProductLine(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = products.Product{ID: 1, Name: "Frijol rojo", QuantityLbs: 10, PricePerLb: 5, IsActive: true}
	svc := newTestService(repo)

	sale, err := svc.Create(context.Background(), CreateSaleRequest{
		Client: "Doña Marta",
		Lines: []CreateSaleLineRequest{
			{LineType: LineTypeProduct, ProductID: ptr(1), Quantity: 4},
		},
	})
	require.NoError(t, err)
	require.Len(t, sale.Lines, 1)
	require.InDelta(t, 20.0, sale.TotalAmount, 1e-9)
	require.InDelta(t, 20.0, sale.Lines[0].Subtotal, 1e-9)
	require.InDelta(t, 5.0, sale.Lines[0].UnitPrice, 1e-9)
	require.Equal(t, SaleTypeIndividual, sale.Type)
	require.NotEmpty(t, sale.Reference)
	require.InDelta(t, 6.0, repo.products[1].QuantityLbs, 1e-9)
}

func TestCreateSaleInsufficientProductStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = products.Product{ID: 1, Name: "Frijol rojo", QuantityLbs: 6, PricePerLb: 5, IsActive: true}
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateSaleRequest{
		Client: "Doña Marta",
		Lines: []CreateSaleLineRequest{
			{LineType: LineTypeProduct, ProductID: ptr(1), Quantity: 10},
		},
	})
	require.ErrorIs(t, err, httpx.ErrInvalidState)
	require.ErrorContains(t, err, "Frijol rojo")
	require.InDelta(t, 6.0, repo.products[1].QuantityLbs, 1e-9)
	require.Empty(t, repo.sales)
}

func TestCreateSaleInactiveProduct(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = products.Product{ID: 1, Name: "Harina de trigo", QuantityLbs: 50, PricePerLb: 8, IsActive: false}
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateSaleRequest{
		Client: "Don Pedro",
		Lines: []CreateSaleLineRequest{
			{LineType: LineTypeProduct, ProductID: ptr(1), Quantity: 1},
		},
	})
	require.ErrorIs(t, err, httpx.ErrInvalidState)
	require.InDelta(t, 50.0, repo.products[1].QuantityLbs, 1e-9)
}

func TestCreateSaleProductNotFound(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateSaleRequest{
		Client: "Don Pedro",
		Lines: []CreateSaleLineRequest{
			{LineType: LineTypeProduct, ProductID: ptr(99), Quantity: 1},
		},
	})
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestCreateSaleUnknownLineType(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateSaleRequest{
		Client: "Don Pedro",
		Lines: []CreateSaleLineRequest{
			{LineType: "BUNDLE", ProductID: ptr(1), Quantity: 1},
		},
	})
	require.ErrorIs(t, err, httpx.ErrInvalidOperation)
}

func TestCreateSaleComboLine(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = products.Product{ID: 1, Name: "Frijol rojo", QuantityLbs: 20, PricePerLb: 5, IsActive: true}
	repo.products[2] = products.Product{ID: 2, Name: "Arroz blanco", QuantityLbs: 20, PricePerLb: 3, IsActive: true}
	repo.combos[7] = combos.Combo{
		ID: 7, Name: "Canasta básica", Price: 15, IsActive: true,
		Lines: []combos.ComboLine{
			{ProductID: 1, QuantityLbs: 2},
			{ProductID: 2, QuantityLbs: 1},
		},
	}
	svc := newTestService(repo)

	sale, err := svc.Create(context.Background(), CreateSaleRequest{
		Client: "Doña Marta",
		Lines: []CreateSaleLineRequest{
			{LineType: LineTypeCombo, ComboID: ptr(7), Quantity: 3},
		},
	})
	require.NoError(t, err)
	require.InDelta(t, 45.0, sale.TotalAmount, 1e-9)
	require.InDelta(t, 15.0, sale.Lines[0].UnitPrice, 1e-9)
	require.InDelta(t, 14.0, repo.products[1].QuantityLbs, 1e-9, "2 lbs x 3 combos")
	require.InDelta(t, 17.0, repo.products[2].QuantityLbs, 1e-9, "1 lb x 3 combos")
}

func TestCreateSaleComboShortProductNamedAndNothingDecremented(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = products.Product{ID: 1, Name: "Frijol rojo", QuantityLbs: 5, PricePerLb: 5, IsActive: true}
	repo.products[2] = products.Product{ID: 2, Name: "Arroz blanco", QuantityLbs: 20, PricePerLb: 3, IsActive: true}
	repo.combos[7] = combos.Combo{
		ID: 7, Name: "Canasta básica", Price: 15, IsActive: true,
		Lines: []combos.ComboLine{
			{ProductID: 1, QuantityLbs: 2},
			{ProductID: 2, QuantityLbs: 1},
		},
	}
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateSaleRequest{
		Client: "Doña Marta",
		Lines: []CreateSaleLineRequest{
			{LineType: LineTypeCombo, ComboID: ptr(7), Quantity: 3},
		},
	})
	require.ErrorIs(t, err, httpx.ErrInvalidState)
	require.ErrorContains(t, err, "Frijol rojo")
	require.NotContains(t, err.Error(), "Arroz blanco")
	require.InDelta(t, 5.0, repo.products[1].QuantityLbs, 1e-9)
	require.InDelta(t, 20.0, repo.products[2].QuantityLbs, 1e-9)
}

func TestCreateSaleComboNamesEveryShortProduct(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = products.Product{ID: 1, Name: "Frijol rojo", QuantityLbs: 1, PricePerLb: 5, IsActive: true}
	repo.products[2] = products.Product{ID: 2, Name: "Arroz blanco", QuantityLbs: 1, PricePerLb: 3, IsActive: true}
	repo.combos[7] = combos.Combo{
		ID: 7, Name: "Canasta básica", Price: 15, IsActive: true,
		Lines: []combos.ComboLine{
			{ProductID: 1, QuantityLbs: 2},
			{ProductID: 2, QuantityLbs: 2},
		},
	}
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateSaleRequest{
		Client: "Doña Marta",
		Lines: []CreateSaleLineRequest{
			{LineType: LineTypeCombo, ComboID: ptr(7), Quantity: 1},
		},
	})
	var short *InsufficientStockError
	require.ErrorAs(t, err, &short)
	require.ElementsMatch(t, []string{"Frijol rojo", "Arroz blanco"}, short.Items)
}

func TestCreateSaleComboAggregatesRepeatedProduct(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = products.Product{ID: 1, Name: "Frijol rojo", QuantityLbs: 10, PricePerLb: 5, IsActive: true}
	repo.combos[7] = combos.Combo{
		ID: 7, Name: "Doble frijol", Price: 20, IsActive: true,
		Lines: []combos.ComboLine{
			{ProductID: 1, QuantityLbs: 1},
			{ProductID: 1, QuantityLbs: 2},
		},
	}
	svc := newTestService(repo)

	sale, err := svc.Create(context.Background(), CreateSaleRequest{
		Client: "Doña Marta",
		Lines: []CreateSaleLineRequest{
			{LineType: LineTypeCombo, ComboID: ptr(7), Quantity: 2},
		},
	})
	require.NoError(t, err)
	require.InDelta(t, 40.0, sale.TotalAmount, 1e-9)
	// (1+2) lbs per combo unit, 2 units: one aggregated 6 lb decrement.
	require.InDelta(t, 4.0, repo.products[1].QuantityLbs, 1e-9)
}

func TestCreateSaleComboAggregateRejectsWhatLineByLineWouldAdmit(t *testing.T) {
	repo := newMemoryRepo()
	// 4 lbs on hand admits each 2-lb line alone but not their 6-lb sum.
	repo.products[1] = products.Product{ID: 1, Name: "Frijol rojo", QuantityLbs: 4, PricePerLb: 5, IsActive: true}
	repo.combos[7] = combos.Combo{
		ID: 7, Name: "Doble frijol", Price: 20, IsActive: true,
		Lines: []combos.ComboLine{
			{ProductID: 1, QuantityLbs: 1},
			{ProductID: 1, QuantityLbs: 2},
		},
	}
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateSaleRequest{
		Client: "Doña Marta",
		Lines: []CreateSaleLineRequest{
			{LineType: LineTypeCombo, ComboID: ptr(7), Quantity: 2},
		},
	})
	require.ErrorIs(t, err, httpx.ErrInvalidState)
	require.InDelta(t, 4.0, repo.products[1].QuantityLbs, 1e-9)
}

func TestCreateSaleComboNotFound(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateSaleRequest{
		Client: "Don Pedro",
		Lines: []CreateSaleLineRequest{
			{LineType: LineTypeCombo, ComboID: ptr(42), Quantity: 1},
		},
	})
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestCreateSaleMixedLinesTotalEqualsSumOfSubtotals(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = products.Product{ID: 1, Name: "Frijol rojo", QuantityLbs: 20, PricePerLb: 5, IsActive: true}
	repo.products[2] = products.Product{ID: 2, Name: "Arroz blanco", QuantityLbs: 20, PricePerLb: 3, IsActive: true}
	repo.combos[7] = combos.Combo{
		ID: 7, Name: "Canasta básica", Price: 15, IsActive: true,
		Lines: []combos.ComboLine{
			{ProductID: 1, QuantityLbs: 2},
			{ProductID: 2, QuantityLbs: 1},
		},
	}
	svc := newTestService(repo)

	sale, err := svc.Create(context.Background(), CreateSaleRequest{
		Client:   "Doña Marta",
		SaleType: SaleTypeWholesale,
		Lines: []CreateSaleLineRequest{
			{LineType: LineTypeProduct, ProductID: ptr(2), Quantity: 5},
			{LineType: LineTypeCombo, ComboID: ptr(7), Quantity: 1},
		},
	})
	require.NoError(t, err)
	require.Len(t, sale.Lines, 2)
	var sum float64
	for _, line := range sale.Lines {
		sum += line.Subtotal
	}
	require.InDelta(t, sum, sale.TotalAmount, 1e-9)
	require.InDelta(t, 30.0, sale.TotalAmount, 1e-9)
	require.Equal(t, SaleTypeWholesale, sale.Type)
	// Product line took 5 lbs, combo line 1 lb more of product 2.
	require.InDelta(t, 14.0, repo.products[2].QuantityLbs, 1e-9)
}

func TestCreateSaleRollsBackEverythingWhenALateLineFails(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = products.Product{ID: 1, Name: "Frijol rojo", QuantityLbs: 20, PricePerLb: 5, IsActive: true}
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateSaleRequest{
		Client: "Doña Marta",
		Lines: []CreateSaleLineRequest{
			{LineType: LineTypeProduct, ProductID: ptr(1), Quantity: 4},
			{LineType: LineTypeProduct, ProductID: ptr(99), Quantity: 1},
		},
	})
	require.ErrorIs(t, err, httpx.ErrNotFound)
	require.InDelta(t, 20.0, repo.products[1].QuantityLbs, 1e-9, "first line decrement must be rolled back")
	require.Empty(t, repo.sales)
}

func TestCreateSaleIsNotIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = products.Product{ID: 1, Name: "Frijol rojo", QuantityLbs: 10, PricePerLb: 5, IsActive: true}
	svc := newTestService(repo)

	req := CreateSaleRequest{
		Client: "Doña Marta",
		Lines: []CreateSaleLineRequest{
			{LineType: LineTypeProduct, ProductID: ptr(1), Quantity: 3},
		},
	}

	first, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	require.NotEqual(t, first.ID, second.ID)
	require.NotEqual(t, first.Reference, second.Reference)
	require.Len(t, repo.sales, 2)
	require.InDelta(t, 4.0, repo.products[1].QuantityLbs, 1e-9, "stock decremented once per call")
}

func TestCreateSaleRejectsEmptyAndNonPositiveLines(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = products.Product{ID: 1, Name: "Frijol rojo", QuantityLbs: 10, PricePerLb: 5, IsActive: true}
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateSaleRequest{Client: "Doña Marta"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(context.Background(), CreateSaleRequest{
		Client: "Doña Marta",
		Lines: []CreateSaleLineRequest{
			{LineType: LineTypeProduct, ProductID: ptr(1), Quantity: -2},
		},
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.InDelta(t, 10.0, repo.products[1].QuantityLbs, 1e-9)
}
