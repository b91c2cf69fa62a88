package service

import (
	"context"

	"github.com/stockwell-io/allocator/internal/port"
)

// Allocations answers "where did my order land" from the denormalized
// read model, without touching any aggregate.
func Allocations(ctx context.Context, uowf port.UnitOfWorkFactory, orderID string) ([]port.AllocationView, error) {
	uow, err := uowf.New(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback(ctx)
	return uow.Allocations().ListByOrderID(ctx, orderID)
}
