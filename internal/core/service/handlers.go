package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/stockwell-io/allocator/internal/core/domain"
	"github.com/stockwell-io/allocator/internal/port"
)

// Handlers is the thin coordination layer between messages and the
// Product aggregate. Each handler loads at most one aggregate, calls
// one domain method, commits, and leaves follow-up work to the
// messages that commit released.
type Handlers struct {
	publisher port.EventPublisher
	notifier  port.Notifier
	alertAddr string
	logger    *zap.Logger
}

func NewHandlers(publisher port.EventPublisher, notifier port.Notifier, alertAddr string, logger *zap.Logger) *Handlers {
	return &Handlers{
		publisher: publisher,
		notifier:  notifier,
		alertAddr: alertAddr,
		logger:    logger,
	}
}

func (h *Handlers) AddBatch(ctx context.Context, uow port.UnitOfWork, msg domain.Message) (any, error) {
	cmd, ok := msg.(domain.BatchCreated)
	if !ok {
		return nil, fmt.Errorf("AddBatch: unexpected message %T", msg)
	}

	product, err := uow.Products().Get(ctx, cmd.Sku)
	if err != nil {
		return nil, err
	}
	if product == nil {
		product = domain.NewProduct(cmd.Sku)
		if err := uow.Products().Add(ctx, product); err != nil {
			return nil, err
		}
	}
	if err := product.AddBatch(domain.NewBatch(cmd.Ref, cmd.Sku, cmd.Qty, cmd.ETA)); err != nil {
		return nil, err
	}
	return nil, uow.Commit(ctx)
}

func (h *Handlers) Allocate(ctx context.Context, uow port.UnitOfWork, msg domain.Message) (any, error) {
	cmd, ok := msg.(domain.AllocationRequired)
	if !ok {
		return nil, fmt.Errorf("Allocate: unexpected message %T", msg)
	}

	product, err := uow.Products().Get(ctx, cmd.Sku)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.InvalidSkuError{Sku: cmd.Sku}
	}

	line := domain.OrderLine{OrderID: cmd.OrderID, Sku: cmd.Sku, Qty: cmd.Qty}
	ref, allocErr := product.Allocate(line)

	// commit even when allocation failed: a failed allocation may have
	// queued an OutOfStock event, and that must still go out
	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}
	if allocErr != nil {
		return nil, allocErr
	}
	return ref, nil
}

func (h *Handlers) ChangeBatchQuantity(ctx context.Context, uow port.UnitOfWork, msg domain.Message) (any, error) {
	cmd, ok := msg.(domain.BatchQuantityChanged)
	if !ok {
		return nil, fmt.Errorf("ChangeBatchQuantity: unexpected message %T", msg)
	}

	product, err := uow.Products().GetByBatchRef(ctx, cmd.Ref)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.UnknownBatchError{Ref: cmd.Ref}
	}
	if err := product.ChangeBatchQuantity(cmd.Ref, cmd.Qty); err != nil {
		return nil, err
	}
	return nil, uow.Commit(ctx)
}

func (h *Handlers) PublishAllocated(ctx context.Context, _ port.UnitOfWork, msg domain.Message) (any, error) {
	event, ok := msg.(domain.Allocated)
	if !ok {
		return nil, fmt.Errorf("PublishAllocated: unexpected message %T", msg)
	}
	return nil, h.publisher.Publish(ctx, event)
}

func (h *Handlers) PublishDeallocated(ctx context.Context, _ port.UnitOfWork, msg domain.Message) (any, error) {
	event, ok := msg.(domain.Deallocated)
	if !ok {
		return nil, fmt.Errorf("PublishDeallocated: unexpected message %T", msg)
	}
	return nil, h.publisher.Publish(ctx, event)
}

func (h *Handlers) AddAllocationToReadModel(ctx context.Context, uow port.UnitOfWork, msg domain.Message) (any, error) {
	event, ok := msg.(domain.Allocated)
	if !ok {
		return nil, fmt.Errorf("AddAllocationToReadModel: unexpected message %T", msg)
	}
	view := port.AllocationView{OrderID: event.OrderID, Sku: event.Sku, BatchRef: event.BatchRef}
	if err := uow.Allocations().Add(ctx, view); err != nil {
		return nil, err
	}
	return nil, uow.Commit(ctx)
}

func (h *Handlers) RemoveAllocationFromReadModel(ctx context.Context, uow port.UnitOfWork, msg domain.Message) (any, error) {
	event, ok := msg.(domain.Deallocated)
	if !ok {
		return nil, fmt.Errorf("RemoveAllocationFromReadModel: unexpected message %T", msg)
	}
	if err := uow.Allocations().Remove(ctx, event.OrderID, event.Sku); err != nil {
		return nil, err
	}
	return nil, uow.Commit(ctx)
}

func (h *Handlers) SendOutOfStockNotification(ctx context.Context, _ port.UnitOfWork, msg domain.Message) (any, error) {
	event, ok := msg.(domain.OutOfStock)
	if !ok {
		return nil, fmt.Errorf("SendOutOfStockNotification: unexpected message %T", msg)
	}
	return nil, h.notifier.Send(ctx, h.alertAddr, fmt.Sprintf("Out of stock for %s", event.Sku))
}
