package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/stockwell-io/allocator/internal/core/domain"
	"github.com/stockwell-io/allocator/internal/port"
)

// HandlerFunc processes one message inside the unit of work it is
// given. A non-nil result lands in the bus accumulator.
type HandlerFunc func(ctx context.Context, uow port.UnitOfWork, msg domain.Message) (any, error)

// Bus routes messages to their handlers in FIFO order. The routing
// table is fixed at construction. Events that a committed unit of work
// released are appended to the tail of the queue and processed in
// turn, so one command can fan out into a whole chain of follow-ups
// without recursion.
type Bus struct {
	routes map[string][]HandlerFunc
	uowf   port.UnitOfWorkFactory
	logger *zap.Logger
	tracer trace.Tracer
}

func NewBus(routes map[string][]HandlerFunc, uowf port.UnitOfWorkFactory, logger *zap.Logger) *Bus {
	return &Bus{
		routes: routes,
		uowf:   uowf,
		logger: logger,
		tracer: otel.Tracer("allocator/bus"),
	}
}

// Handle drains msgs and everything they cause. It returns the non-nil
// handler results in processing order; a synchronous caller that issued
// one command reads its answer from the first element. A message with
// no route is a wiring bug and stops the queue immediately. A failing
// command handler does not: its first error is kept and returned after
// the queue has drained, so one bad message cannot starve the others.
// Event handler errors are logged and dropped.
func (b *Bus) Handle(ctx context.Context, msgs ...domain.Message) ([]any, error) {
	queue := make([]domain.Message, len(msgs))
	copy(queue, msgs)

	var results []any
	var firstErr error

	for len(queue) > 0 {
		msg := queue[0]
		queue = queue[1:]

		handlers, ok := b.routes[msg.MessageName()]
		if !ok {
			return results, domain.UnroutableMessageError{Name: msg.MessageName()}
		}

		msgCtx, span := b.tracer.Start(ctx, "bus.handle", trace.WithAttributes(
			attribute.String("message.name", msg.MessageName()),
			attribute.Int("message.handlers", len(handlers)),
		))
		for _, handle := range handlers {
			result, released, err := b.dispatch(msgCtx, handle, msg)
			queue = append(queue, released...)
			if result != nil {
				results = append(results, result)
			}
			if err != nil {
				b.logger.Error("handler failed",
					zap.String("message", msg.MessageName()),
					zap.Error(err),
				)
				if _, isCommand := msg.(domain.Command); isCommand && firstErr == nil {
					firstErr = err
				}
			}
		}
		span.End()
	}
	return results, firstErr
}

// dispatch runs one handler in a fresh unit of work and collects
// whatever events its commit released. Events come back even when the
// handler errs: a handler may commit an event and then report failure,
// and that event is already durable.
func (b *Bus) dispatch(ctx context.Context, handle HandlerFunc, msg domain.Message) (any, []domain.Message, error) {
	uow, err := b.uowf.New(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("new unit of work: %w", err)
	}
	defer uow.Rollback(ctx)

	result, err := handle(ctx, uow, msg)
	return result, uow.NewEvents(), err
}
