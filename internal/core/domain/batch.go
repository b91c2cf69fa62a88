package domain

import (
	"slices"
	"time"
)

// OrderLine is an immutable value object: a customer order's demand for
// a quantity of one sku. Two lines with equal fields are the same line.
type OrderLine struct {
	OrderID string
	Sku     string
	Qty     int
}

// Batch is a purchase of stock, either already in the warehouse or
// arriving on a shipment. It tracks which order lines it has absorbed.
type Batch struct {
	Ref string
	Sku string

	purchased   int
	eta         *time.Time
	allocations []OrderLine // allocation order, newest last
}

// NewBatch returns an empty batch. A nil eta means warehouse stock.
func NewBatch(ref, sku string, qty int, eta *time.Time) *Batch {
	return &Batch{Ref: ref, Sku: sku, purchased: qty, eta: eta}
}

// RestoreBatch rebuilds a batch from storage. The allocations must be
// in their original allocation order, oldest first.
func RestoreBatch(ref, sku string, qty int, eta *time.Time, allocations []OrderLine) *Batch {
	return &Batch{Ref: ref, Sku: sku, purchased: qty, eta: eta, allocations: slices.Clone(allocations)}
}

func (b *Batch) ETA() *time.Time { return b.eta }

func (b *Batch) PurchasedQty() int { return b.purchased }

// Allocations returns the batch's lines in allocation order, oldest
// first.
func (b *Batch) Allocations() []OrderLine {
	return slices.Clone(b.allocations)
}

func (b *Batch) AllocatedQty() int {
	total := 0
	for _, line := range b.allocations {
		total += line.Qty
	}
	return total
}

func (b *Batch) AvailableQty() int {
	return b.purchased - b.AllocatedQty()
}

// CanAllocate reports whether the batch sells the line's sku and has
// room for its quantity.
func (b *Batch) CanAllocate(line OrderLine) bool {
	return b.Sku == line.Sku && b.AvailableQty() >= line.Qty
}

func (b *Batch) contains(line OrderLine) bool {
	return slices.Contains(b.allocations, line)
}

func (b *Batch) allocate(line OrderLine) {
	b.allocations = append(b.allocations, line)
}

// popNewestAllocation removes and returns the most recently allocated
// line. ok is false when the batch has none left.
func (b *Batch) popNewestAllocation() (OrderLine, bool) {
	if len(b.allocations) == 0 {
		return OrderLine{}, false
	}
	line := b.allocations[len(b.allocations)-1]
	b.allocations = b.allocations[:len(b.allocations)-1]
	return line, true
}

// earlier reports whether b should be tried before other when picking a
// batch: warehouse stock first, then earliest arrival.
func (b *Batch) earlier(other *Batch) bool {
	if b.eta == nil {
		return other.eta != nil
	}
	if other.eta == nil {
		return false
	}
	return b.eta.Before(*other.eta)
}

func (b *Batch) clone() *Batch {
	copied := &Batch{
		Ref:         b.Ref,
		Sku:         b.Sku,
		purchased:   b.purchased,
		allocations: slices.Clone(b.allocations),
	}
	if b.eta != nil {
		eta := *b.eta
		copied.eta = &eta
	}
	return copied
}
