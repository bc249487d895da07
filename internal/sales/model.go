package sales

import (
	"fmt"
	"strings"
	"time"

	"github.com/granel-pos/granel-pos/internal/platform/httpx"
)

// SaleType distinguishes walk-in sales from wholesale ones.
type SaleType string

const (
	SaleTypeIndividual SaleType = "INDIVIDUAL"
	SaleTypeWholesale  SaleType = "MAYOREO"
)

// LineType tags what a sale line references.
type LineType string

const (
	LineTypeProduct LineType = "PRODUCT"
	LineTypeCombo   LineType = "COMBO"
)

// Sale is a committed transaction. Sales are immutable once created; there is
// no update or cancel flow.
type Sale struct {
	ID          int64      `json:"id"`
	Reference   string     `json:"reference"`
	Client      string     `json:"client"`
	Notes       string     `json:"notes,omitempty"`
	Type        SaleType   `json:"sale_type"`
	SoldAt      time.Time  `json:"sold_at"`
	TotalAmount float64    `json:"total_amount"`
	Lines       []SaleLine `json:"lines,omitempty"`
}

// SaleLine references either a product or a combo, never both. Quantity is
// pounds for product lines and combo units for combo lines.
type SaleLine struct {
	ID        int64    `json:"id"`
	SaleID    int64    `json:"sale_id"`
	LineType  LineType `json:"line_type"`
	ProductID *int64   `json:"product_id,omitempty"`
	ComboID   *int64   `json:"combo_id,omitempty"`
	Quantity  float64  `json:"quantity"`
	UnitPrice float64  `json:"unit_price"`
	Subtotal  float64  `json:"subtotal"`
}

// InsufficientStockError names every item that blocked a sale, not just the
// first one found.
type InsufficientStockError struct {
	Items []string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for: %s", strings.Join(e.Items, ", "))
}

// Is lets the HTTP layer map this to an invalid-state response.
func (e *InsufficientStockError) Is(target error) bool {
	return target == httpx.ErrInvalidState
}
