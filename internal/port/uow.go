package port

import (
	"context"

	"github.com/stockwell-io/allocator/internal/core/domain"
)

// AllocationView is one row of the denormalized allocations read model.
type AllocationView struct {
	OrderID  string `json:"order_id"`
	Sku      string `json:"sku"`
	BatchRef string `json:"batchref"`
}

type AllocationViewStore interface {
	// Add stages a read-model row for an allocated line
	Add(ctx context.Context, view AllocationView) error

	// Remove stages deletion of the row for an order line
	Remove(ctx context.Context, orderID, sku string) error

	// ListByOrderID returns the committed rows for an order
	ListByOrderID(ctx context.Context, orderID string) ([]AllocationView, error)
}

// UnitOfWork is one atomic conversation with storage. It tracks every
// product its repository hands out and persists the changed ones
// together at Commit, each guarded by a compare-and-swap on the version
// the product had when it was loaded. domain.ErrConcurrencyConflict
// from Commit means nothing was persisted and no events were released.
type UnitOfWork interface {
	Products() ProductRepository
	Allocations() AllocationViewStore

	// Commit persists all tracked changes atomically, then drains the
	// tracked products' queued messages into NewEvents
	Commit(ctx context.Context) error

	// Rollback discards the unit; a no-op after a successful Commit
	Rollback(ctx context.Context) error

	// NewEvents returns the messages released by a successful Commit,
	// in the order the aggregates queued them
	NewEvents() []domain.Message
}

type UnitOfWorkFactory interface {
	New(ctx context.Context) (UnitOfWork, error)
}
