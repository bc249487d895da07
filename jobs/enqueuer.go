package jobs

import (
	"context"

	"github.com/hibiken/asynq"

	"github.com/granel-pos/granel-pos/internal/sales"
)

// SaleEnqueuer implements sales.EventHandler by queueing a low-stock scan for
// every committed sale.
type SaleEnqueuer struct {
	client *asynq.Client
}

// NewSaleEnqueuer builds the enqueuer.
func NewSaleEnqueuer(client *asynq.Client) *SaleEnqueuer {
	return &SaleEnqueuer{client: client}
}

// HandleSaleCommitted enqueues the scan task.
func (e *SaleEnqueuer) HandleSaleCommitted(ctx context.Context, evt sales.SaleCommittedEvent) error {
	if e == nil || e.client == nil {
		return nil
	}
	task, err := NewLowStockScanTask(LowStockScanPayload{
		SaleReference: evt.Reference,
		ProductIDs:    evt.ProductIDs,
	})
	if err != nil {
		return err
	}
	_, err = e.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}
