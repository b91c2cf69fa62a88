package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stockwell-io/allocator/internal/core/domain"
)

// Inbound lists the channels (or topics) that carry commands from
// upstream systems. Everything else on the wire is outbound.
var Inbound = []string{domain.MsgBatchQuantityChanged, domain.MsgAllocationRequired}

// envelope frames every message on the wire: a unique id for
// downstream de-duplication, the message name for decoding, and the
// payload itself.
type envelope struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Encode wraps the message in an envelope and marshals it.
func Encode(msg domain.Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msg.MessageName(), err)
	}
	data, err := json.Marshal(envelope{
		ID:         uuid.New().String(),
		Name:       msg.MessageName(),
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return data, nil
}

// Decode unmarshals an envelope and rebuilds the named message. An
// unknown name is an error: the wire only carries the closed message
// set.
func Decode(data []byte) (domain.Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	switch env.Name {
	case domain.MsgBatchCreated:
		return decodeAs[domain.BatchCreated](env.Payload)
	case domain.MsgBatchQuantityChanged:
		return decodeAs[domain.BatchQuantityChanged](env.Payload)
	case domain.MsgAllocationRequired:
		return decodeAs[domain.AllocationRequired](env.Payload)
	case domain.MsgLineAllocated:
		return decodeAs[domain.Allocated](env.Payload)
	case domain.MsgLineDeallocated:
		return decodeAs[domain.Deallocated](env.Payload)
	case domain.MsgOutOfStock:
		return decodeAs[domain.OutOfStock](env.Payload)
	default:
		return nil, fmt.Errorf("unknown message name %q", env.Name)
	}
}

func decodeAs[T domain.Message](payload []byte) (domain.Message, error) {
	var msg T
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", msg.MessageName(), err)
	}
	return msg, nil
}
