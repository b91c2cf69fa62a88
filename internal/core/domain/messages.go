package domain

import "time"

// Message names, stable across the routing table and the wire.
const (
	MsgBatchCreated         = "batch_created"
	MsgBatchQuantityChanged = "batch_quantity_changed"
	MsgAllocationRequired   = "allocation_required"
	MsgLineAllocated        = "line_allocated"
	MsgLineDeallocated      = "line_deallocated"
	MsgOutOfStock           = "out_of_stock"
)

// Message is anything the bus can route: commands that request a state
// change and events that report one.
type Message interface {
	MessageName() string
}

// Command is a message naming an outcome the caller wants. Its handler
// errors surface to whoever put the command on the bus.
type Command interface {
	Message
	isCommand()
}

// Event is a message reporting something that happened. Event handler
// errors are logged and do not stop the rest of the queue.
type Event interface {
	Message
	isEvent()
}

// BatchCreated registers a new batch of purchasable stock for a sku.
type BatchCreated struct {
	Ref string     `json:"ref"`
	Sku string     `json:"sku"`
	Qty int        `json:"qty"`
	ETA *time.Time `json:"eta,omitempty"` // nil means warehouse stock
}

func (BatchCreated) MessageName() string { return MsgBatchCreated }
func (BatchCreated) isCommand()          {}

// BatchQuantityChanged corrects a batch's purchased quantity, for
// example after a short delivery.
type BatchQuantityChanged struct {
	Ref string `json:"ref"`
	Qty int    `json:"qty"`
}

func (BatchQuantityChanged) MessageName() string { return MsgBatchQuantityChanged }
func (BatchQuantityChanged) isCommand()          {}

// AllocationRequired asks for an order line to be placed on a batch.
type AllocationRequired struct {
	OrderID string `json:"order_id"`
	Sku     string `json:"sku"`
	Qty     int    `json:"qty"`
}

func (AllocationRequired) MessageName() string { return MsgAllocationRequired }
func (AllocationRequired) isCommand()          {}

// Allocated reports that an order line landed on a batch.
type Allocated struct {
	OrderID  string `json:"order_id"`
	Sku      string `json:"sku"`
	Qty      int    `json:"qty"`
	BatchRef string `json:"batchref"`
}

func (Allocated) MessageName() string { return MsgLineAllocated }
func (Allocated) isEvent()            {}

// Deallocated reports that an order line lost its batch and needs a
// new home.
type Deallocated struct {
	OrderID string `json:"order_id"`
	Sku     string `json:"sku"`
	Qty     int    `json:"qty"`
}

func (Deallocated) MessageName() string { return MsgLineDeallocated }
func (Deallocated) isEvent()            {}

// OutOfStock reports that a sku has no batch left that can take a line.
type OutOfStock struct {
	Sku string `json:"sku"`
}

func (OutOfStock) MessageName() string { return MsgOutOfStock }
func (OutOfStock) isEvent()            {}
