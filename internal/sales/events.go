package sales

import "context"

// SaleCommittedEvent describes a sale that has been committed, for downstream
// consumers such as the low-stock scanner.
type SaleCommittedEvent struct {
	SaleID     int64
	Reference  string
	ProductIDs []int64
}

// EventHandler receives post-commit notifications. Handler failures never
// roll back the sale; the coordinator treats them as best effort.
type EventHandler interface {
	HandleSaleCommitted(ctx context.Context, evt SaleCommittedEvent) error
}
