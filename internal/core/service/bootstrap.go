package service

import (
	"go.uber.org/zap"

	"github.com/stockwell-io/allocator/internal/core/domain"
	"github.com/stockwell-io/allocator/internal/port"
)

// New wires the routing table and returns the ready bus. Every message
// name routes here and nowhere else; the table never changes after
// this.
func New(uowf port.UnitOfWorkFactory, publisher port.EventPublisher, notifier port.Notifier, alertAddr string, logger *zap.Logger) *Bus {
	h := NewHandlers(publisher, notifier, alertAddr, logger)
	routes := map[string][]HandlerFunc{
		domain.MsgBatchCreated:         {h.AddBatch},
		domain.MsgBatchQuantityChanged: {h.ChangeBatchQuantity},
		domain.MsgAllocationRequired:   {h.Allocate},
		domain.MsgLineAllocated:        {h.PublishAllocated, h.AddAllocationToReadModel},
		domain.MsgLineDeallocated:      {h.RemoveAllocationFromReadModel, h.PublishDeallocated},
		domain.MsgOutOfStock:           {h.SendOutOfStockNotification},
	}
	return NewBus(routes, uowf, logger)
}
