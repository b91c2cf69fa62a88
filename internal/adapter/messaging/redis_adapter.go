package messaging

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stockwell-io/allocator/internal/core/domain"
	"github.com/stockwell-io/allocator/internal/core/service"
	"github.com/stockwell-io/allocator/internal/port"
)

// RedisPublisher pushes committed events to the pub/sub channel named
// after each event.
type RedisPublisher struct {
	client *redis.Client
}

var _ port.EventPublisher = (*RedisPublisher)(nil)

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, event domain.Event) error {
	data, err := Encode(event)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, event.MessageName(), data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", event.MessageName(), err)
	}
	return nil
}

// RedisConsumer subscribes to the inbound command channels and feeds
// every decoded command to the bus. Undecodable payloads are logged
// and dropped so one bad producer cannot wedge the stream.
type RedisConsumer struct {
	client *redis.Client
	bus    *service.Bus
	logger *zap.Logger
}

func NewRedisConsumer(client *redis.Client, bus *service.Bus, logger *zap.Logger) *RedisConsumer {
	return &RedisConsumer{client: client, bus: bus, logger: logger}
}

// Run consumes until ctx is cancelled.
func (c *RedisConsumer) Run(ctx context.Context) error {
	pubsub := c.client.Subscribe(ctx, Inbound...)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			c.handleMessage(ctx, m.Channel, []byte(m.Payload))
		}
	}
}

func (c *RedisConsumer) handleMessage(ctx context.Context, channel string, payload []byte) {
	msg, err := Decode(payload)
	if err != nil {
		c.logger.Error("drop undecodable message",
			zap.String("channel", channel),
			zap.Error(err),
		)
		return
	}
	// only commands come in; accepting an event here would bounce our
	// own published events straight back through the bus
	if _, ok := msg.(domain.Command); !ok {
		c.logger.Warn("drop non-command message",
			zap.String("channel", channel),
			zap.String("message", msg.MessageName()),
		)
		return
	}
	if _, err := c.bus.Handle(ctx, msg); err != nil {
		c.logger.Error("message handling failed",
			zap.String("message", msg.MessageName()),
			zap.Error(err),
		)
	}
}
