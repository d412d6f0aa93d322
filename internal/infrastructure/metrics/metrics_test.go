package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-review/internal/domain/entity"
	"github.com/garyjia/travel-review/internal/domain/event"
)

func TestMetrics_StatusTransitions(t *testing.T) {
	m := New()
	ctx := context.Background()

	payload := map[string]interface{}{"previous_status": "DRAFT", "new_status": "SUBMITTED"}
	require.NoError(t, m.HandleStatusChange(ctx, event.NewEvent(event.TypeRequestStatusChanged, 1, 0, payload)))
	require.NoError(t, m.HandleStatusChange(ctx, event.NewEvent(event.TypeRequestStatusChanged, 2, 0, payload)))
	require.NoError(t, m.HandleStatusChange(ctx, event.NewEvent(event.TypeTripStatusChanged, 0, 1, map[string]interface{}{
		"previous_status": "VERIFIED", "new_status": "UNDER_REVIEW",
	})))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("request", "DRAFT", "SUBMITTED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("trip", "VERIFIED", "UNDER_REVIEW")))
}

func TestMetrics_NotificationsAndWarnings(t *testing.T) {
	m := New()

	m.ObserveNotification(entity.KindStatusUpdate, entity.NotificationStatusSent)
	m.ObserveNotification(entity.KindStatusUpdate, entity.NotificationStatusFailed)
	m.ObserveNotification(entity.KindStatusUpdate, entity.NotificationStatusSent)
	require.NoError(t, m.HandleCostWarning(context.Background(), event.NewEvent(event.TypeTripCostWarning, 0, 4, nil)))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.notifications.WithLabelValues("STATUS_UPDATE", "SENT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("STATUS_UPDATE", "FAILED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.costWarnings))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveNotification(entity.KindTripCostWarning, entity.NotificationStatusSkipped)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `travelreview_notifications_total{kind="TRIP_COST_WARNING",status="SKIPPED"} 1`)
}
