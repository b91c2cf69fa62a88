package port

import (
	"context"

	"github.com/stockwell-io/allocator/internal/core/domain"
)

// EventPublisher pushes committed domain events to downstream systems.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}
