package dispatcher

import (
	"context"

	"github.com/google/uuid"

	"github.com/garyjia/travel-review/internal/domain/entity"
	"github.com/garyjia/travel-review/internal/domain/event"
)

// PublishNotices turns committed notices into events sharing one correlation
// ID and dispatches them asynchronously. Delivery failures never reach the
// caller; notices with an unknown kind are logged and dropped.
func PublishNotices(ctx context.Context, d Dispatcher, logger Logger, notices []entity.Notice) string {
	if d == nil || len(notices) == 0 {
		return ""
	}

	correlationID := uuid.NewString()
	for _, n := range notices {
		evt, err := event.FromNotice(n, correlationID)
		if err != nil {
			if logger != nil {
				logger.Error("Dropping notice", "kind", n.Kind, "error", err)
			}
			continue
		}
		d.DispatchAsync(context.WithoutCancel(ctx), evt)
	}

	return correlationID
}

// PublishStatusChange dispatches a status-changed event for metrics and audit listeners
func PublishStatusChange(ctx context.Context, d Dispatcher, eventType event.Type, requestID, tripID int64, from, to string) {
	if d == nil || from == to {
		return
	}
	d.DispatchAsync(context.WithoutCancel(ctx), event.NewEvent(eventType, requestID, tripID, map[string]interface{}{
		"previous_status": from,
		"new_status":      to,
	}))
}
