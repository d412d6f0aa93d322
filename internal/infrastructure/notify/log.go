package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/garyjia/travel-review/internal/domain/entity"
)

// LogChannel writes rendered notices to the log instead of delivering them.
// It stands in when no real channel is configured.
type LogChannel struct {
	renderer *Renderer
	logger   *zap.Logger
}

// NewLogChannel creates a log-only channel
func NewLogChannel(renderer *Renderer, logger *zap.Logger) *LogChannel {
	return &LogChannel{renderer: renderer, logger: logger}
}

// Name identifies the channel in logs
func (c *LogChannel) Name() string {
	return "log"
}

// Send logs the subject and recipients of the notice
func (c *LogChannel) Send(_ context.Context, kind entity.NotificationKind, recipients []entity.Address, payload map[string]interface{}) error {
	msg, err := c.renderer.Render(kind, payload)
	if err != nil {
		return err
	}

	emails := make([]string, len(recipients))
	for i, r := range recipients {
		emails[i] = r.Email
	}
	c.logger.Info("Notification",
		zap.String("kind", kind.String()),
		zap.Strings("recipients", emails),
		zap.String("subject", msg.Subject))
	return nil
}
