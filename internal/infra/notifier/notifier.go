// Package notifier announces stories that became BREAKING. It provides Slack
// and Discord webhook implementations, a fan-out over several notifiers and a
// no-op notifier for when notifications are disabled.
package notifier

import (
	"context"
	"errors"

	"storywire/internal/domain/entity"
)

// Notifier sends a breaking-story announcement.
// Implementations handle rate limiting, retries, and error logging internally.
type Notifier interface {
	// NotifyBreaking announces story. It is called once per story, on its
	// first transition to BREAKING.
	NotifyBreaking(ctx context.Context, story *entity.Story) error
}

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

// NotifyBreaking implements Notifier.
func (m Multi) NotifyBreaking(ctx context.Context, story *entity.Story) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyBreaking(ctx, story); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
