package notification

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes notifications to the log instead of sending them.
// It stands in for the SMTP notifier when no mail relay is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, destination, message string) error {
	n.logger.Info("notification",
		zap.String("to", destination),
		zap.String("message", message),
	)
	return nil
}
