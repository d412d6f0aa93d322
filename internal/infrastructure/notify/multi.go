package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/travel-review/internal/domain/entity"
)

// Channel is one delivery route for notices
type Channel interface {
	Name() string
	Send(ctx context.Context, kind entity.NotificationKind, recipients []entity.Address, payload map[string]interface{}) error
}

// MultiNotifier fans a notice out to every configured channel. Delivery
// succeeds when at least one channel accepts it.
type MultiNotifier struct {
	channels []Channel
	logger   *zap.Logger
}

// NewMultiNotifier creates a fan-out notifier
func NewMultiNotifier(logger *zap.Logger, channels ...Channel) *MultiNotifier {
	return &MultiNotifier{
		channels: channels,
		logger:   logger,
	}
}

// Channels returns the configured channel names
func (m *MultiNotifier) Channels() []string {
	names := make([]string, len(m.channels))
	for i, ch := range m.channels {
		names[i] = ch.Name()
	}
	return names
}

// Send delivers through every channel and joins the failures
func (m *MultiNotifier) Send(ctx context.Context, kind entity.NotificationKind, recipients []entity.Address, payload map[string]interface{}) error {
	if len(m.channels) == 0 {
		return errors.New("no notification channels configured")
	}

	var errs []error
	delivered := 0
	for _, ch := range m.channels {
		if err := ch.Send(ctx, kind, recipients, payload); err != nil {
			m.logger.Warn("Notification channel failed",
				zap.String("channel", ch.Name()),
				zap.String("kind", kind.String()),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
			continue
		}
		delivered++
	}

	if delivered > 0 {
		return nil
	}
	return errors.Join(errs...)
}
