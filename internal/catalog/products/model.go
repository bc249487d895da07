package products

import "time"

// Product is a bulk good sold by the pound.
type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	QuantityLbs float64   `json:"quantity_lbs"`
	PricePerLb  float64   `json:"price_per_lb"`
	PackageType string    `json:"package_type"`
	IsActive    bool      `json:"is_active"`
	UpdatedAt   time.Time `json:"updated_at"`
}
