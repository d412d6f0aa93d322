package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-review/internal/domain/entity"
	"github.com/garyjia/travel-review/internal/domain/event"
)

type sentMessage struct {
	kind       entity.NotificationKind
	recipients []entity.Address
	payload    map[string]interface{}
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (m *mockNotifier) Send(ctx context.Context, kind entity.NotificationKind, recipients []entity.Address, payload map[string]interface{}) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{kind: kind, recipients: recipients, payload: payload})
	return nil
}

type mockQueue struct {
	notices []entity.Notice
	err     error
}

func (m *mockQueue) Enqueue(ctx context.Context, n entity.Notice) error {
	if m.err != nil {
		return m.err
	}
	m.notices = append(m.notices, n)
	return nil
}

type mockNotificationMetrics struct {
	observed map[string]int
}

func (m *mockNotificationMetrics) ObserveNotification(kind entity.NotificationKind, status string) {
	if m.observed == nil {
		m.observed = map[string]int{}
	}
	m.observed[kind.String()+"/"+status]++
}

func newNotificationFixture(opts ...NotificationOption) (NotificationService, *mockNotifier, *memStore, *mockNotificationMetrics) {
	store := newMemStore()
	notifier := &mockNotifier{}
	metrics := &mockNotificationMetrics{}
	opts = append(opts, WithNotificationMetrics(metrics))
	svc := NewNotificationService(newMockOrg(), notifier, memNotificationLogs{store}, &mockLogger{}, opts...)
	return svc, notifier, store, metrics
}

func TestNotificationService_Deliver(t *testing.T) {
	tests := []struct {
		name           string
		notice         entity.Notice
		sendErr        error
		wantErr        bool
		wantStatus     string
		wantRecipients []string
	}{
		{
			name: "users and raw addresses are merged without duplicates",
			notice: entity.Notice{
				Kind:         entity.KindStatusUpdate,
				RequestID:    7,
				RecipientIDs: []int64{ownerID, secHead, ownerID},
				Addresses:    []string{"user100@example.org", "travel@example.org"},
			},
			wantStatus:     entity.NotificationStatusSent,
			wantRecipients: []string{"user100@example.org", "user11@example.org", "travel@example.org"},
		},
		{
			name:       "unknown users leave nothing to send",
			notice:     entity.Notice{Kind: entity.KindReviewAwaiting, RequestID: 7, RecipientIDs: []int64{outsiderID}},
			wantStatus: entity.NotificationStatusSkipped,
		},
		{
			name:           "send failure is recorded and returned",
			notice:         entity.Notice{Kind: entity.KindTripCostWarning, TripID: 3, Addresses: []string{"travel@example.org"}},
			sendErr:        errors.New("smtp down"),
			wantErr:        true,
			wantStatus:     entity.NotificationStatusFailed,
			wantRecipients: []string{"travel@example.org"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, notifier, store, metrics := newNotificationFixture()
			notifier.err = tt.sendErr

			err := svc.Deliver(context.Background(), tt.notice)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			require.Len(t, store.logs, 1)
			entry := store.logs[0]
			assert.Equal(t, tt.wantStatus, entry.Status)
			assert.Equal(t, tt.notice.Kind, entry.Kind)
			assert.Equal(t, 1, metrics.observed[tt.notice.Kind.String()+"/"+tt.wantStatus])

			if tt.notice.RequestID != 0 {
				require.NotNil(t, entry.RequestID)
				assert.Equal(t, tt.notice.RequestID, *entry.RequestID)
			}
			if tt.notice.TripID != 0 {
				require.NotNil(t, entry.TripID)
				assert.Equal(t, tt.notice.TripID, *entry.TripID)
			}

			if tt.wantStatus == entity.NotificationStatusSent {
				require.Len(t, notifier.sent, 1)
				var emails []string
				for _, r := range notifier.sent[0].recipients {
					emails = append(emails, r.Email)
				}
				assert.Equal(t, tt.wantRecipients, emails)
			} else {
				assert.Empty(t, notifier.sent)
			}
		})
	}
}

func TestNotificationService_ResolveFailure(t *testing.T) {
	store := newMemStore()
	org := newMockOrg()
	org.usersErr = errors.New("directory unavailable")
	svc := NewNotificationService(org, &mockNotifier{}, memNotificationLogs{store}, &mockLogger{})

	err := svc.Deliver(context.Background(), entity.Notice{Kind: entity.KindReviewAwaiting, RecipientIDs: []int64{secHead}})
	assert.Error(t, err)
	require.Len(t, store.logs, 1)
	assert.Equal(t, entity.NotificationStatusFailed, store.logs[0].Status)
	assert.Contains(t, store.logs[0].ErrorMessage, "directory unavailable")
}

func TestNotificationService_HandleEvent(t *testing.T) {
	notice := entity.Notice{
		Kind:         entity.KindReviewAwaiting,
		RequestID:    9,
		RecipientIDs: []int64{secHead},
		Payload:      map[string]interface{}{"request_id": float64(9)},
	}
	evt, err := event.FromNotice(notice, "corr-1")
	require.NoError(t, err)

	t.Run("inline delivery without a queue", func(t *testing.T) {
		svc, notifier, _, _ := newNotificationFixture()
		require.NoError(t, svc.HandleEvent(context.Background(), evt))
		require.Len(t, notifier.sent, 1)
		assert.Equal(t, entity.KindReviewAwaiting, notifier.sent[0].kind)
	})

	t.Run("queued when a queue is configured", func(t *testing.T) {
		queue := &mockQueue{}
		svc, notifier, store, _ := newNotificationFixture(WithQueue(queue))
		require.NoError(t, svc.HandleEvent(context.Background(), evt))
		require.Len(t, queue.notices, 1)
		assert.Equal(t, int64(9), queue.notices[0].RequestID)
		assert.Empty(t, notifier.sent)
		assert.Empty(t, store.logs, "the relay records the attempt")
	})

	t.Run("falls back to inline when enqueue fails", func(t *testing.T) {
		queue := &mockQueue{err: errors.New("nats: no servers available")}
		svc, notifier, _, _ := newNotificationFixture(WithQueue(queue))
		require.NoError(t, svc.HandleEvent(context.Background(), evt))
		assert.Len(t, notifier.sent, 1)
	})

	t.Run("non-notice events are rejected", func(t *testing.T) {
		svc, _, _, _ := newNotificationFixture()
		other := event.NewEvent(event.TypeRequestStatusChanged, 9, 0, nil)
		assert.Error(t, svc.HandleEvent(context.Background(), other))
	})
}
