package domain

import (
	"errors"
	"fmt"
)

// ErrConcurrencyConflict reports that a commit lost an optimistic
// concurrency race. Nothing was persisted and no events were emitted;
// the caller may reload and retry.
var ErrConcurrencyConflict = errors.New("concurrency conflict")

// OutOfStockError means no batch of the sku can take the line.
type OutOfStockError struct {
	Sku string
}

func (e OutOfStockError) Error() string {
	return fmt.Sprintf("out of stock for sku %s", e.Sku)
}

// InvalidSkuError means the sku has no product at all.
type InvalidSkuError struct {
	Sku string
}

func (e InvalidSkuError) Error() string {
	return fmt.Sprintf("invalid sku %s", e.Sku)
}

// UnknownBatchError means no batch carries the given reference.
type UnknownBatchError struct {
	Ref string
}

func (e UnknownBatchError) Error() string {
	return fmt.Sprintf("unknown batch %s", e.Ref)
}

// LineAlreadyAllocatedError means the exact order line is already
// allocated on this product and allocating it again would double-book
// stock.
type LineAlreadyAllocatedError struct {
	OrderID string
	Sku     string
}

func (e LineAlreadyAllocatedError) Error() string {
	return fmt.Sprintf("line %s already allocated for sku %s", e.OrderID, e.Sku)
}

// UnroutableMessageError means the routing table has no handler for a
// message name. That is a wiring bug, not a runtime condition.
type UnroutableMessageError struct {
	Name string
}

func (e UnroutableMessageError) Error() string {
	return fmt.Sprintf("no handler registered for message %s", e.Name)
}
