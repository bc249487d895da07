package products

// AdjustStockRequest is the payload for PATCH /api/products/{id}/stock.
type AdjustStockRequest struct {
	DeltaLbs float64 `json:"delta_lbs" validate:"required"`
	Note     string  `json:"note" validate:"max=500"`
}

// ValidateStockResponse reports the outcome of a stock check.
type ValidateStockResponse struct {
	ProductID    int64   `json:"product_id"`
	RequestedLbs float64 `json:"requested_lbs"`
	IsValid      bool    `json:"is_valid"`
}
