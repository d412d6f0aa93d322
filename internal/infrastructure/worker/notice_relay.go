package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/garyjia/travel-review/internal/domain/entity"
	"github.com/garyjia/travel-review/internal/infrastructure/queue"
)

// Deliverer sends one notice. The notification service satisfies it.
type Deliverer interface {
	Deliver(ctx context.Context, notice entity.Notice) error
}

// Subscriber registers queue-group subscriptions. *nats.Conn satisfies it.
type Subscriber interface {
	QueueSubscribe(subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// NoticeRelayConfig holds configuration for the relay
type NoticeRelayConfig struct {
	Subject        string
	Queue          string
	DeliverTimeout time.Duration
}

// DefaultNoticeRelayConfig returns default configuration
func DefaultNoticeRelayConfig() NoticeRelayConfig {
	return NoticeRelayConfig{
		Subject:        queue.DefaultSubject,
		Queue:          "notice-relay",
		DeliverTimeout: 30 * time.Second,
	}
}

// NoticeRelay consumes queued notices and hands them to the deliverer.
// Relays in the same queue group share the load.
type NoticeRelay struct {
	config    NoticeRelayConfig
	sub       Subscriber
	deliverer Deliverer
	logger    *zap.Logger

	mu           sync.Mutex
	ctx          context.Context
	subscription *nats.Subscription
	isRunning    bool
	delivered    int
	failed       int
}

// NewNoticeRelay creates a new relay worker
func NewNoticeRelay(config NoticeRelayConfig, sub Subscriber, deliverer Deliverer, logger *zap.Logger) *NoticeRelay {
	defaults := DefaultNoticeRelayConfig()
	if config.Subject == "" {
		config.Subject = defaults.Subject
	}
	if config.Queue == "" {
		config.Queue = defaults.Queue
	}
	if config.DeliverTimeout <= 0 {
		config.DeliverTimeout = defaults.DeliverTimeout
	}

	return &NoticeRelay{
		config:    config,
		sub:       sub,
		deliverer: deliverer,
		logger:    logger,
	}
}

// Name returns the worker name
func (r *NoticeRelay) Name() string {
	return "notice-relay"
}

// Start subscribes to the notice subject
func (r *NoticeRelay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRunning {
		return fmt.Errorf("notice relay already running")
	}

	subscription, err := r.sub.QueueSubscribe(r.config.Subject, r.config.Queue, r.HandleMessage)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.config.Subject, err)
	}

	r.ctx = ctx
	r.subscription = subscription
	r.isRunning = true

	r.logger.Info("Notice relay started",
		zap.String("subject", r.config.Subject),
		zap.String("queue", r.config.Queue))
	return nil
}

// Stop drains the subscription so in-flight notices finish
func (r *NoticeRelay) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isRunning {
		return nil
	}
	r.isRunning = false

	if r.subscription != nil {
		if err := r.subscription.Drain(); err != nil {
			return fmt.Errorf("drain notice subscription: %w", err)
		}
	}

	r.logger.Info("Notice relay stopped",
		zap.Int("delivered", r.delivered),
		zap.Int("failed", r.failed))
	return nil
}

// HandleMessage delivers one queued notice. Undecodable messages are dropped.
func (r *NoticeRelay) HandleMessage(msg *nats.Msg) {
	notice, err := queue.DecodeNotice(msg.Data)
	if err != nil {
		r.logger.Error("Dropping malformed notice", zap.String("subject", msg.Subject), zap.Error(err))
		r.record(false)
		return
	}

	ctx, cancel := context.WithTimeout(r.baseContext(), r.config.DeliverTimeout)
	defer cancel()

	if err := r.deliverer.Deliver(ctx, notice); err != nil {
		r.logger.Warn("Queued notice not delivered",
			zap.String("kind", notice.Kind.String()),
			zap.Int64("request_id", notice.RequestID),
			zap.Int64("trip_id", notice.TripID),
			zap.Error(err))
		r.record(false)
		return
	}
	r.record(true)
}

// Stats returns delivered and failed counts
func (r *NoticeRelay) Stats() (delivered, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.delivered, r.failed
}

func (r *NoticeRelay) record(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok {
		r.delivered++
	} else {
		r.failed++
	}
}

// baseContext keeps deliveries alive after cancellation so Drain can flush them
func (r *NoticeRelay) baseContext() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(r.ctx)
}
