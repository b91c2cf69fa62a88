package service

import (
	"context"
	"testing"

	"github.com/stockwell-io/allocator/internal/adapter/storage"
	"github.com/stockwell-io/allocator/internal/port"
)

func TestAllocations_EmptyOrder(t *testing.T) {
	store := storage.NewMemoryStore()

	rows, err := Allocations(context.Background(), store, "unknown-order")
	if err != nil {
		t.Fatalf("Allocations failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %v", rows)
	}
}

func TestAllocations_ReturnsCommittedRows(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	uow, _ := store.New(ctx)
	uow.Allocations().Add(ctx, port.AllocationView{OrderID: "order-1", Sku: "SKU-A", BatchRef: "batch-1"})
	uow.Allocations().Add(ctx, port.AllocationView{OrderID: "order-1", Sku: "SKU-B", BatchRef: "batch-2"})
	uow.Allocations().Add(ctx, port.AllocationView{OrderID: "order-2", Sku: "SKU-A", BatchRef: "batch-1"})
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	rows, err := Allocations(ctx, store, "order-1")
	if err != nil {
		t.Fatalf("Allocations failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected 2 rows for order-1, got %d", len(rows))
	}
}
