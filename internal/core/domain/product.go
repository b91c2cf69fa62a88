package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Product is the consistency boundary for one sku. It owns the sku's
// batches, makes every allocation decision, and queues the messages
// those decisions emit. VersionNumber backs the optimistic concurrency
// check at commit time and moves exactly once per state-changing call.
type Product struct {
	Sku           string
	VersionNumber int

	batches []*Batch
	events  []Message
}

func NewProduct(sku string) *Product {
	return &Product{Sku: sku}
}

// RestoreProduct rebuilds an aggregate from storage.
func RestoreProduct(sku string, version int, batches []*Batch) *Product {
	return &Product{Sku: sku, VersionNumber: version, batches: batches}
}

// Batches returns the product's batches in registration order.
func (p *Product) Batches() []*Batch {
	return slices.Clone(p.batches)
}

// Batch returns the batch with the given reference, or nil.
func (p *Product) Batch(ref string) *Batch {
	for _, b := range p.batches {
		if b.Ref == ref {
			return b
		}
	}
	return nil
}

// AddBatch registers a new batch of the product's sku.
func (p *Product) AddBatch(b *Batch) error {
	if b.Sku != p.Sku {
		return fmt.Errorf("batch %s is for sku %s, not %s", b.Ref, b.Sku, p.Sku)
	}
	if p.Batch(b.Ref) != nil {
		return fmt.Errorf("batch %s already registered", b.Ref)
	}
	p.batches = append(p.batches, b)
	p.VersionNumber++
	return nil
}

// Allocate places the line on the preferred batch: warehouse stock
// before shipments, earlier shipments before later ones, ties broken
// by reference. It returns the chosen batch reference and queues an
// Allocated event. When no batch can take the line it queues an
// OutOfStock event and fails with OutOfStockError, leaving the version
// untouched.
func (p *Product) Allocate(line OrderLine) (string, error) {
	for _, b := range p.batches {
		if b.contains(line) {
			return "", LineAlreadyAllocatedError{OrderID: line.OrderID, Sku: line.Sku}
		}
	}

	for _, b := range p.sortedBatches() {
		if !b.CanAllocate(line) {
			continue
		}
		b.allocate(line)
		p.VersionNumber++
		p.events = append(p.events, Allocated{
			OrderID:  line.OrderID,
			Sku:      line.Sku,
			Qty:      line.Qty,
			BatchRef: b.Ref,
		})
		return b.Ref, nil
	}

	p.events = append(p.events, OutOfStock{Sku: p.Sku})
	return "", OutOfStockError{Sku: p.Sku}
}

func (p *Product) sortedBatches() []*Batch {
	sorted := slices.Clone(p.batches)
	slices.SortStableFunc(sorted, func(a, b *Batch) int {
		if a.earlier(b) {
			return -1
		}
		if b.earlier(a) {
			return 1
		}
		return strings.Compare(a.Ref, b.Ref)
	})
	return sorted
}

// ChangeBatchQuantity sets a batch's purchased quantity. If the batch
// ends up over-allocated it sheds lines newest-first until it fits,
// queueing a Deallocated event and a fresh AllocationRequired command
// per line so the bus can place each one somewhere else. The version
// moves once however many lines are shed.
func (p *Product) ChangeBatchQuantity(ref string, qty int) error {
	b := p.Batch(ref)
	if b == nil {
		return UnknownBatchError{Ref: ref}
	}
	b.purchased = qty
	for b.AvailableQty() < 0 {
		line, ok := b.popNewestAllocation()
		if !ok {
			break
		}
		p.events = append(p.events,
			Deallocated{OrderID: line.OrderID, Sku: line.Sku, Qty: line.Qty},
			AllocationRequired{OrderID: line.OrderID, Sku: line.Sku, Qty: line.Qty},
		)
	}
	p.VersionNumber++
	return nil
}

// PopEvents drains the messages queued by mutations since the last
// drain, in the order they were queued.
func (p *Product) PopEvents() []Message {
	events := p.events
	p.events = nil
	return events
}

// Clone returns a deep copy detached from the receiver. Pending events
// are not carried over.
func (p *Product) Clone() *Product {
	batches := make([]*Batch, len(p.batches))
	for i, b := range p.batches {
		batches[i] = b.clone()
	}
	return &Product{Sku: p.Sku, VersionNumber: p.VersionNumber, batches: batches}
}
