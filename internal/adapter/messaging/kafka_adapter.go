package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/stockwell-io/allocator/internal/core/domain"
	"github.com/stockwell-io/allocator/internal/core/service"
	"github.com/stockwell-io/allocator/internal/port"
)

// KafkaPublisher writes committed events to the topic named after each
// event. Trace context rides in the message headers.
type KafkaPublisher struct {
	writer *kafka.Writer
}

var _ port.EventPublisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event domain.Event) error {
	data, err := Encode(event)
	if err != nil {
		return err
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	headers := make([]kafka.Header, 0, len(carrier))
	for key, value := range carrier {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   event.MessageName(),
		Value:   data,
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", event.MessageName(), err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// KafkaConsumer reads the inbound command topics as one consumer group
// and feeds decoded commands to the bus.
type KafkaConsumer struct {
	reader *kafka.Reader
	bus    *service.Bus
	logger *zap.Logger
}

func NewKafkaConsumer(brokers []string, groupID string, bus *service.Bus, logger *zap.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			GroupID:     groupID,
			GroupTopics: Inbound,
		}),
		bus:    bus,
		logger: logger,
	}
}

// Run consumes until ctx is cancelled.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return ctx.Err()
			}
			return fmt.Errorf("read message: %w", err)
		}
		c.handleMessage(c.extractTraceContext(ctx, m), m.Topic, m.Value)
	}
}

// extractTraceContext continues the producer's trace when the headers
// carry one.
func (c *KafkaConsumer) extractTraceContext(ctx context.Context, m kafka.Message) context.Context {
	carrier := propagation.MapCarrier{}
	for _, h := range m.Headers {
		carrier[h.Key] = string(h.Value)
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

func (c *KafkaConsumer) handleMessage(ctx context.Context, topic string, payload []byte) {
	msg, err := Decode(payload)
	if err != nil {
		c.logger.Error("drop undecodable message",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return
	}
	if _, ok := msg.(domain.Command); !ok {
		c.logger.Warn("drop non-command message",
			zap.String("topic", topic),
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
