package messaging

import (
	"context"

	"go.uber.org/zap"

	"github.com/stockwell-io/allocator/internal/core/domain"
)

// LogPublisher writes events to the log instead of a broker. It backs
// the "none" transport, where the service runs without messaging.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event domain.Event) error {
	data, err := Encode(event)
	if err != nil {
		return err
	}
	p.logger.Info("event published",
		zap.String("name", event.MessageName()),
		zap.ByteString("payload", data),
	)
	return nil
}
