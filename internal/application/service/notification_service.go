package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/travel-review/internal/application/port"
	"github.com/garyjia/travel-review/internal/domain/entity"
	"github.com/garyjia/travel-review/internal/domain/event"
)

// NotificationService delivers notices decided by the review services.
// Delivery is best effort: failures are logged and recorded, never rolled back.
type NotificationService interface {
	// HandleEvent is the dispatcher handler for notice events. With a queue
	// configured the notice is deferred to the relay, otherwise delivered inline.
	HandleEvent(ctx context.Context, evt *event.Event) error

	// Deliver resolves recipients, sends the notice and records the attempt
	Deliver(ctx context.Context, notice entity.Notice) error
}

// NotificationMetrics observes delivery outcomes
type NotificationMetrics interface {
	ObserveNotification(kind entity.NotificationKind, status string)
}

type notificationServiceImpl struct {
	org      port.OrgLookup
	notifier port.Notifier
	logRepo  port.NotificationLogRepository
	queue    port.NoticeQueue
	metrics  NotificationMetrics
	logger   Logger
}

// NotificationOption configures the notification service
type NotificationOption func(*notificationServiceImpl)

// WithQueue defers delivery to an out-of-process relay
func WithQueue(q port.NoticeQueue) NotificationOption {
	return func(s *notificationServiceImpl) {
		s.queue = q
	}
}

// WithNotificationMetrics records delivery outcomes
func WithNotificationMetrics(m NotificationMetrics) NotificationOption {
	return func(s *notificationServiceImpl) {
		s.metrics = m
	}
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	org port.OrgLookup,
	notifier port.Notifier,
	logRepo port.NotificationLogRepository,
	logger Logger,
	opts ...NotificationOption,
) NotificationService {
	s := &notificationServiceImpl{
		org:      org,
		notifier: notifier,
		logRepo:  logRepo,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleEvent routes a notice event to the queue or straight to delivery
func (s *notificationServiceImpl) HandleEvent(ctx context.Context, evt *event.Event) error {
	notice, err := evt.Notice()
	if err != nil {
		return err
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, notice); err != nil {
			s.logger.Error("Failed to enqueue notice, delivering inline", "error", err, "kind", notice.Kind, "event_id", evt.ID)
			return s.Deliver(ctx, notice)
		}
		return nil
	}

	return s.Deliver(ctx, notice)
}

// Deliver sends one notice to its resolved recipients
func (s *notificationServiceImpl) Deliver(ctx context.Context, notice entity.Notice) error {
	recipients, err := s.resolve(ctx, notice)
	if err != nil {
		s.logger.Error("Failed to resolve recipients", "error", err, "kind", notice.Kind)
		s.recordAttempt(ctx, notice, nil, entity.NotificationStatusFailed, err.Error())
		return fmt.Errorf("resolve recipients: %w", err)
	}

	if len(recipients) == 0 {
		s.logger.Info("Notice has no reachable recipients", "kind", notice.Kind, "request_id", notice.RequestID, "trip_id", notice.TripID)
		s.recordAttempt(ctx, notice, recipients, entity.NotificationStatusSkipped, "no recipients with an email address")
		return nil
	}

	if err := s.notifier.Send(ctx, notice.Kind, recipients, notice.Payload); err != nil {
		s.logger.Error("Failed to send notification", "error", err, "kind", notice.Kind, "request_id", notice.RequestID, "trip_id", notice.TripID)
		s.recordAttempt(ctx, notice, recipients, entity.NotificationStatusFailed, err.Error())
		return fmt.Errorf("send %s: %w", notice.Kind, err)
	}

	s.recordAttempt(ctx, notice, recipients, entity.NotificationStatusSent, "")
	s.logger.Info("Notification sent", "kind", notice.Kind, "recipients", len(recipients), "request_id", notice.RequestID, "trip_id", notice.TripID)
	return nil
}

// resolve turns recipient user IDs and raw addresses into deliverable addresses
func (s *notificationServiceImpl) resolve(ctx context.Context, notice entity.Notice) ([]entity.Address, error) {
	var out []entity.Address
	seen := map[string]bool{}

	if len(notice.RecipientIDs) > 0 {
		users, err := s.org.Users(ctx, notice.RecipientIDs)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			if u.Email == "" || seen[u.Email] {
				continue
			}
			seen[u.Email] = true
			out = append(out, entity.Address{UserID: u.ID, Name: u.Name, Email: u.Email})
		}
	}

	for _, addr := range notice.Addresses {
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, entity.Address{Email: addr})
	}

	return out, nil
}

func (s *notificationServiceImpl) recordAttempt(ctx context.Context, notice entity.Notice, recipients []entity.Address, status, errMsg string) {
	if s.metrics != nil {
		s.metrics.ObserveNotification(notice.Kind, status)
	}
	if s.logRepo == nil {
		return
	}

	emails := make([]string, len(recipients))
	for i, r := range recipients {
		emails[i] = r.Email
	}

	entry := &entity.NotificationLog{
		Kind:         notice.Kind,
		Recipients:   strings.Join(emails, ", "),
		Status:       status,
		ErrorMessage: errMsg,
	}
	if notice.RequestID != 0 {
		id := notice.RequestID
		entry.RequestID = &id
	}
	if notice.TripID != 0 {
		id := notice.TripID
		entry.TripID = &id
	}

	if err := s.logRepo.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to record notification attempt", "error", err, "kind", notice.Kind, "status", status)
	}
}
