package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stockwell-io/allocator/internal/core/domain"
	"github.com/stockwell-io/allocator/internal/port"
)

// cleanTables wipes shared-server backends between runs. The sqlite
// suite skips it because every run gets a fresh temp file.
func cleanTables(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx := context.Background()
	for _, table := range []string{"allocations", "batches", "products", "allocations_view"} {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("clean %s: %v", table, err)
		}
	}
}

// runStoreSuite is the behavior contract every SQL backend must pass.
func runStoreSuite(t *testing.T, store *SQLStore) {
	t.Run("RoundTrip", func(t *testing.T) { testSQLRoundTrip(t, store) })
	t.Run("GetMissing", func(t *testing.T) { testSQLGetMissing(t, store) })
	t.Run("GetByBatchRef", func(t *testing.T) { testSQLGetByBatchRef(t, store) })
	t.Run("ConcurrencyConflict", func(t *testing.T) { testSQLConcurrencyConflict(t, store) })
	t.Run("UntouchedProductCommits", func(t *testing.T) { testSQLUntouchedProductCommits(t, store) })
	t.Run("DuplicateSkuConflicts", func(t *testing.T) { testSQLDuplicateSkuConflicts(t, store) })
	t.Run("OutOfStockEventSurvivesCommit", func(t *testing.T) { testSQLOutOfStockEvent(t, store) })
	t.Run("SheddingOrderSurvivesReload", func(t *testing.T) { testSQLSheddingOrder(t, store) })
	t.Run("Views", func(t *testing.T) { testSQLViews(t, store) })
}

func testSQLRoundTrip(t *testing.T, store *SQLStore) {
	ctx := context.Background()
	eta := time.Now().AddDate(0, 0, 5).UTC().Truncate(time.Millisecond)

	uow, _ := store.New(ctx)
	product := domain.NewProduct("ROUND-SKU")
	uow.Products().Add(ctx, product)
	product.AddBatch(domain.NewBatch("round-in-stock", "ROUND-SKU", 20, nil))
	product.AddBatch(domain.NewBatch("round-shipment", "ROUND-SKU", 30, &eta))
	if _, err := product.Allocate(domain.OrderLine{OrderID: "round-order-1", Sku: "ROUND-SKU", Qty: 2}); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	fresh, _ := store.New(ctx)
	reloaded, err := fresh.Products().Get(ctx, "ROUND-SKU")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if reloaded == nil {
		t.Fatal("expected product, got nil")
	}
	if reloaded.VersionNumber != 3 {
		t.Errorf("expected version 3, got %d", reloaded.VersionNumber)
	}
	if got := reloaded.Batch("round-in-stock").AvailableQty(); got != 18 {
		t.Errorf("expected available 18, got %d", got)
	}
	shipment := reloaded.Batch("round-shipment")
	if shipment.ETA() == nil {
		t.Fatal("expected eta on shipment batch")
	}
	if shipment.ETA().UnixMilli() != eta.UnixMilli() {
		t.Errorf("eta mangled: want %v, got %v", eta, shipment.ETA())
	}
	if reloaded.Batch("round-in-stock").ETA() != nil {
		t.Error("warehouse batch grew an eta")
	}
}

func testSQLGetMissing(t *testing.T, store *SQLStore) {
	ctx := context.Background()

	uow, _ := store.New(ctx)
	product, err := uow.Products().Get(ctx, "NO-SUCH-SKU")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if product != nil {
		t.Error("expected nil for unknown sku")
	}
}

func testSQLGetByBatchRef(t *testing.T, store *SQLStore) {
	ctx := context.Background()
	addProductWithBatch(t, store, "BYREF-SKU", "byref-batch", 20)

	uow, _ := store.New(ctx)
	product, err := uow.Products().GetByBatchRef(ctx, "byref-batch")
	if err != nil {
		t.Fatalf("GetByBatchRef failed: %v", err)
	}
	if product == nil || product.Sku != "BYREF-SKU" {
		t.Fatalf("expected BYREF-SKU, got %+v", product)
	}

	missing, err := uow.Products().GetByBatchRef(ctx, "no-such-batch")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown batch ref")
	}
}

func testSQLConcurrencyConflict(t *testing.T, store *SQLStore) {
	ctx := context.Background()
	addProductWithBatch(t, store, "RACE-SKU", "race-batch", 20)

	uow1, _ := store.New(ctx)
	uow2, _ := store.New(ctx)
	p1, _ := uow1.Products().Get(ctx, "RACE-SKU")
	p2, _ := uow2.Products().Get(ctx, "RACE-SKU")

	p1.Allocate(domain.OrderLine{OrderID: "race-order-1", Sku: "RACE-SKU", Qty: 5})
	p2.Allocate(domain.OrderLine{OrderID: "race-order-2", Sku: "RACE-SKU", Qty: 5})

	if err := uow1.Commit(ctx); err != nil {
		t.Fatalf("first commit failed: %v", err)
	}
	err := uow2.Commit(ctx)
	if !errors.Is(err, domain.ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got: %v", err)
	}
	if len(uow2.NewEvents()) != 0 {
		t.Error("losing unit of work must not release events")
	}

	fresh, _ := store.New(ctx)
	reloaded, _ := fresh.Products().Get(ctx, "RACE-SKU")
	if got := reloaded.Batch("race-batch").AvailableQty(); got != 15 {
		t.Errorf("expected only the winning allocation applied, available %d", got)
	}
	if reloaded.VersionNumber != 2 {
		t.Errorf("expected version 2, got %d", reloaded.VersionNumber)
	}
}

func testSQLUntouchedProductCommits(t *testing.T, store *SQLStore) {
	ctx := context.Background()
	addProductWithBatch(t, store, "CALM-SKU", "calm-batch", 20)

	reader, _ := store.New(ctx)
	if _, err := reader.Products().Get(ctx, "CALM-SKU"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	writer, _ := store.New(ctx)
	p, _ := writer.Products().Get(ctx, "CALM-SKU")
	p.Allocate(domain.OrderLine{OrderID: "calm-order", Sku: "CALM-SKU", Qty: 5})
	if err := writer.Commit(ctx); err != nil {
		t.Fatalf("writer commit failed: %v", err)
	}

	if err := reader.Commit(ctx); err != nil {
		t.Errorf("read-only commit failed: %v", err)
	}
}

func testSQLDuplicateSkuConflicts(t *testing.T, store *SQLStore) {
	ctx := context.Background()
	addProductWithBatch(t, store, "DUP-SKU", "dup-batch-1", 20)

	uow, _ := store.New(ctx)
	product := domain.NewProduct("DUP-SKU")
	uow.Products().Add(ctx, product)
	product.AddBatch(domain.NewBatch("dup-batch-2", "DUP-SKU", 10, nil))

	err := uow.Commit(ctx)
	if !errors.Is(err, domain.ErrConcurrencyConflict) {
		t.Errorf("expected ErrConcurrencyConflict, got: %v", err)
	}
}

func testSQLOutOfStockEvent(t *testing.T, store *SQLStore) {
	ctx := context.Background()
	addProductWithBatch(t, store, "SCARCE-SKU", "scarce-batch", 5)

	uow, _ := store.New(ctx)
	product, _ := uow.Products().Get(ctx, "SCARCE-SKU")
	if _, err := product.Allocate(domain.OrderLine{OrderID: "scarce-order", Sku: "SCARCE-SKU", Qty: 50}); err == nil {
		t.Fatal("expected out of stock")
	}
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	events := uow.NewEvents()
	if len(events) != 1 || events[0] != (domain.OutOfStock{Sku: "SCARCE-SKU"}) {
		t.Fatalf("expected OutOfStock event, got %+v", events)
	}

	fresh, _ := store.New(ctx)
	reloaded, _ := fresh.Products().Get(ctx, "SCARCE-SKU")
	if reloaded.VersionNumber != 1 {
		t.Errorf("failed allocation must not move the stored version, got %d", reloaded.VersionNumber)
	}
}

func testSQLSheddingOrder(t *testing.T, store *SQLStore) {
	ctx := context.Background()
	addProductWithBatch(t, store, "SHED-SKU", "shed-batch", 50)

	uow, _ := store.New(ctx)
	product, _ := uow.Products().Get(ctx, "SHED-SKU")
	product.Allocate(domain.OrderLine{OrderID: "shed-order-old", Sku: "SHED-SKU", Qty: 20})
	product.Allocate(domain.OrderLine{OrderID: "shed-order-new", Sku: "SHED-SKU", Qty: 20})
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	// allocation order must survive the reload so shedding stays
	// newest-first across processes
	fresh, _ := store.New(ctx)
	reloaded, _ := fresh.Products().Get(ctx, "SHED-SKU")
	if err := reloaded.ChangeBatchQuantity("shed-batch", 25); err != nil {
		t.Fatalf("ChangeBatchQuantity failed: %v", err)
	}
	if err := fresh.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	events := fresh.NewEvents()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0] != (domain.Deallocated{OrderID: "shed-order-new", Sku: "SHED-SKU", Qty: 20}) {
		t.Errorf("expected newest line shed first, got %+v", events[0])
	}
}

func testSQLViews(t *testing.T, store *SQLStore) {
	ctx := context.Background()

	uow, _ := store.New(ctx)
	uow.Allocations().Add(ctx, port.AllocationView{OrderID: "view-order", Sku: "VIEW-SKU-A", BatchRef: "view-batch-1"})
	uow.Allocations().Add(ctx, port.AllocationView{OrderID: "view-order", Sku: "VIEW-SKU-B", BatchRef: "view-batch-2"})
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	fresh, _ := store.New(ctx)
	rows, err := fresh.Allocations().ListByOrderID(ctx, "view-order")
	if err != nil {
		t.Fatalf("ListByOrderID failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Sku != "VIEW-SKU-A" || rows[0].BatchRef != "view-batch-1" {
		t.Errorf("unexpected first row %+v", rows[0])
	}

	remover, _ := store.New(ctx)
	remover.Allocations().Remove(ctx, "view-order", "VIEW-SKU-A")
	if err := remover.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	fresh, _ = store.New(ctx)
	rows, _ = fresh.Allocations().ListByOrderID(ctx, "view-order")
	if len(rows) != 1 || rows[0].Sku != "VIEW-SKU-B" {
		t.Errorf("expected only VIEW-SKU-B left, got %+v", rows)
	}
}
