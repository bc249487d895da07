package combos

import "time"

// Combo is a fixed-price bundle of products in fixed proportions.
type Combo struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       float64     `json:"price"`
	IsActive    bool        `json:"is_active"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Lines       []ComboLine `json:"lines"`
}

// ComboLine is one (product, quantity-per-combo-unit) pair in the recipe.
// The same product may appear on more than one line.
type ComboLine struct {
	ProductID   int64   `json:"product_id"`
	QuantityLbs float64 `json:"quantity_lbs"`
}
