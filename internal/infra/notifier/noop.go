package notifier

import (
	"context"

	"storywire/internal/domain/entity"
)

// NoOpNotifier is used when notifications are disabled to avoid nil checks.
type NoOpNotifier struct{}

// NewNoOpNotifier creates a new NoOpNotifier instance.
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// NotifyBreaking does nothing and returns nil immediately.
func (n *NoOpNotifier) NotifyBreaking(context.Context, *entity.Story) error {
	return nil
}
