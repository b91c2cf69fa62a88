package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/stockwell-io/allocator/internal/adapter/storage"
	"github.com/stockwell-io/allocator/internal/core/domain"
	"github.com/stockwell-io/allocator/internal/core/service"
)

const (
	sku           = "STRESS-CHAIR"
	batchRef      = "batch-stress"
	initialStock  = 20
	totalRequests = 50
)

type countingPublisher struct {
	allocated atomic.Int32
}

func (p *countingPublisher) Publish(ctx context.Context, event domain.Event) error {
	if event.MessageName() == domain.MsgLineAllocated {
		p.allocated.Add(1)
	}
	return nil
}

type countingNotifier struct {
	sent atomic.Int32
}

func (n *countingNotifier) Send(ctx context.Context, destination, message string) error {
	n.sent.Add(1)
	return nil
}

func main() {
	ctx := context.Background()

	// Initialize the store and bus
	store := storage.NewMemoryStore()
	publisher := &countingPublisher{}
	notifier := &countingNotifier{}
	bus := service.New(store, publisher, notifier, "stock@allocator.test", zap.NewNop())

	if _, err := bus.Handle(ctx, domain.BatchCreated{Ref: batchRef, Sku: sku, Qty: initialStock}); err != nil {
		log.Fatalf("failed to create batch: %v", err)
	}

	// Counters
	var allocatedCount atomic.Int32
	var outOfStockCount atomic.Int32
	var conflictRetries atomic.Int32

	// Spawn concurrent requests, retrying on version conflicts
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(orderID int) {
			defer wg.Done()

			command := domain.AllocationRequired{
				OrderID: fmt.Sprintf("order-%d", orderID),
				Sku:     sku,
				Qty:     1,
			}
			for {
				_, err := bus.Handle(ctx, command)
				if errors.Is(err, domain.ErrConcurrencyConflict) {
					conflictRetries.Add(1)
					continue
				}
				var oos domain.OutOfStockError
				if errors.As(err, &oos) {
					outOfStockCount.Add(1)
				} else if err == nil {
					allocatedCount.Add(1)
				} else {
					log.Fatalf("unexpected error: %v", err)
				}
				return
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	allocated := allocatedCount.Load()
	outOfStock := outOfStockCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Allocated:        %d\n", allocated)
	fmt.Printf("Out of Stock:     %d\n", outOfStock)
	fmt.Printf("Conflict Retries: %d\n", conflictRetries.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if allocated == initialStock && outOfStock == totalRequests-initialStock {
		fmt.Printf("PASS: Exactly %d orders allocated, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d allocated/%d rejected, got %d/%d\n",
			initialStock, totalRequests-initialStock, allocated, outOfStock)
	}

	if got := publisher.allocated.Load(); got == initialStock {
		fmt.Printf("PASS: %d allocation events published\n", got)
	} else {
		fmt.Printf("FAIL: Expected %d allocation events, got %d\n", initialStock, got)
	}

	if got := notifier.sent.Load(); got == totalRequests-initialStock {
		fmt.Printf("PASS: %d out-of-stock notifications sent\n", got)
	} else {
		fmt.Printf("FAIL: Expected %d notifications, got %d\n", totalRequests-initialStock, got)
	}

	// Verify no stock is left on the batch
	uow, err := store.New(ctx)
	if err != nil {
		log.Fatalf("failed to open unit of work: %v", err)
	}
	defer uow.Rollback(ctx)

	product, err := uow.Products().Get(ctx, sku)
	if err != nil || product == nil {
		log.Fatalf("failed to load product: %v", err)
	}

	available := 0
	for _, b := range product.Batches() {
		available += b.AvailableQty()
	}
	fmt.Printf("Final Available:  %d\n", available)

	if available == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", available)
	}
}
