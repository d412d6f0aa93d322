package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/garyjia/travel-review/internal/domain/event"
)

// Dispatcher fans committed domain events out to named handlers.
// Handlers for one event run in registration order and a failing handler
// does not keep the others from running.
type Dispatcher interface {
	// SubscribeNamed registers handler under name. Registering the same
	// name twice for a type replaces the earlier handler.
	SubscribeNamed(eventType event.Type, name string, handler Handler)

	// SubscribeAll registers one named handler for several event types
	SubscribeAll(eventTypes []event.Type, name string, handler Handler)

	// Dispatch runs every handler for the event and returns their joined errors
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync runs the handlers on a background goroutine.
	// Errors are logged and counted, never returned.
	DispatchAsync(ctx context.Context, evt *event.Event)

	// ListHandlers returns registrations for an event type in run order
	ListHandlers(eventType event.Type) []HandlerInfo

	// Stats returns execution counters
	Stats() Stats

	// Close rejects new events and waits for in-flight async handlers
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type eventDispatcher struct {
	mu       sync.RWMutex
	handlers map[event.Type][]registration
	logger   Logger
	timeout  time.Duration

	wg     sync.WaitGroup
	closed atomic.Bool

	dispatched atomic.Int64
	failed     atomic.Int64
	panicked   atomic.Int64
	inFlight   atomic.Int64
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// WithHandlerTimeout bounds each async handler run. Zero means no bound.
func WithHandlerTimeout(timeout time.Duration) Option {
	return func(d *eventDispatcher) {
		d.timeout = timeout
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		handlers: make(map[event.Type][]registration),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *eventDispatcher) SubscribeAll(eventTypes []event.Type, name string, handler Handler) {
	for _, t := range eventTypes {
		d.SubscribeNamed(t, name, handler)
	}
}

func (d *eventDispatcher) SubscribeNamed(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	regs := d.handlers[eventType]
	replaced := false
	for i := range regs {
		if regs[i].name == name {
			regs[i].handler = handler
			replaced = true
			break
		}
	}
	if !replaced {
		d.handlers[eventType] = append(regs, registration{name: name, handler: handler})
	}

	d.logInfo("Handler registered",
		"event_type", eventType,
		"handler_name", name,
		"replaced", replaced,
	)
}

// snapshot copies the registrations so handlers run without the lock held
func (d *eventDispatcher) snapshot(eventType event.Type) []registration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]registration(nil), d.handlers[eventType]...)
}

func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	if d.closed.Load() {
		return fmt.Errorf("dispatcher is closed")
	}

	var errs []error
	for _, reg := range d.snapshot(evt.Type) {
		if err := d.run(ctx, evt, reg); err != nil {
			errs = append(errs, fmt.Errorf("handler %s: %w", reg.name, err))
		}
	}
	return errors.Join(errs...)
}

func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	if d.closed.Load() {
		d.logError("Dropping event, dispatcher is closed",
			"event_type", evt.Type,
			"event_id", evt.ID,
			"correlation_id", evt.CorrelationID,
		)
		return
	}

	regs := d.snapshot(evt.Type)
	if len(regs) == 0 {
		return
	}

	d.wg.Add(1)
	d.inFlight.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.inFlight.Add(-1)

		for _, reg := range regs {
			runCtx, cancel := ctx, context.CancelFunc(func() {})
			if d.timeout > 0 {
				runCtx, cancel = context.WithTimeout(ctx, d.timeout)
			}
			_ = d.run(runCtx, evt, reg)
			cancel()
		}
	}()
}

// run executes one handler with panic recovery and records the outcome
func (d *eventDispatcher) run(ctx context.Context, evt *event.Event, reg registration) (err error) {
	d.dispatched.Add(1)

	defer func() {
		if r := recover(); r != nil {
			d.panicked.Add(1)
			err = fmt.Errorf("handler panic: %v", r)
		}
		if err != nil {
			d.failed.Add(1)
			d.logError("Handler failed",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"correlation_id", evt.CorrelationID,
				"request_id", evt.RequestID,
				"trip_id", evt.TripID,
				"handler_name", reg.name,
				"error", err,
			)
		}
	}()

	return reg.handler(ctx, evt)
}

func (d *eventDispatcher) ListHandlers(eventType event.Type) []HandlerInfo {
	regs := d.snapshot(eventType)
	result := make([]HandlerInfo, len(regs))
	for i, r := range regs {
		result[i] = HandlerInfo{Name: r.name, EventType: eventType}
	}
	return result
}

func (d *eventDispatcher) Stats() Stats {
	return Stats{
		Dispatched: d.dispatched.Load(),
		Failed:     d.failed.Load(),
		Panicked:   d.panicked.Load(),
		InFlight:   d.inFlight.Load(),
	}
}

func (d *eventDispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already closed")
	}

	d.logInfo("Closing dispatcher, waiting for async handlers", "in_flight", d.inFlight.Load())
	d.wg.Wait()

	stats := d.Stats()
	d.logInfo("Dispatcher closed",
		"dispatched", stats.Dispatched,
		"failed", stats.Failed,
		"panicked", stats.Panicked,
	)
	return nil
}

func (d *eventDispatcher) logInfo(msg string, keysAndValues ...interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, keysAndValues...)
	}
}

func (d *eventDispatcher) logError(msg string, keysAndValues ...interface{}) {
	if d.logger != nil {
		d.logger.Error(msg, keysAndValues...)
	}
}
