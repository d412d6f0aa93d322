package dispatcher

import (
	"context"

	"github.com/garyjia/travel-review/internal/domain/event"
)

// Handler reacts to one domain event. Notice delivery, metrics and
// the queue hand-off are all handlers.
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo describes a registration. The handler itself is not exposed.
type HandlerInfo struct {
	Name      string
	EventType event.Type
}

type registration struct {
	name    string
	handler Handler
}

// Stats counts handler executions since the dispatcher was created
type Stats struct {
	Dispatched int64 `json:"dispatched"`
	Failed     int64 `json:"failed"`
	Panicked   int64 `json:"panicked"`
	InFlight   int64 `json:"in_flight"`
}
