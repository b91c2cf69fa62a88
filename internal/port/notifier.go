package port

import "context"

// Notifier delivers human-facing alerts.
type Notifier interface {
	Send(ctx context.Context, destination, message string) error
}
