package sales

import "time"

// CreateSaleRequest is the payload for POST /api/sales.
type CreateSaleRequest struct {
	Client   string                  `json:"client" validate:"required,max=200"`
	Notes    string                  `json:"notes" validate:"max=500"`
	SaleType SaleType                `json:"sale_type" validate:"omitempty,oneof=INDIVIDUAL MAYOREO"`
	Lines    []CreateSaleLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// CreateSaleLineRequest carries one requested line. Exactly one of ProductID
// and ComboID must be set, matching LineType.
type CreateSaleLineRequest struct {
	LineType  LineType `json:"line_type" validate:"required"`
	ProductID *int64   `json:"product_id,omitempty" validate:"omitempty,gt=0"`
	ComboID   *int64   `json:"combo_id,omitempty" validate:"omitempty,gt=0"`
	Quantity  float64  `json:"quantity" validate:"required,gt=0"`
}

// ListSalesRequest filters the sales listing.
type ListSalesRequest struct {
	Client string
	From   time.Time
	To     time.Time
	Limit  int
}

// SaleResponse decorates a sale with a display-ready total.
type SaleResponse struct {
	Sale
	FormattedTotal string `json:"formatted_total"`
}
