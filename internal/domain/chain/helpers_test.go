package chain

import (
	"time"

	"github.com/garyjia/travel-review/internal/domain/entity"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func reviewer(id, userID int64, role entity.Role, status entity.ReviewerStatus) *entity.Reviewer {
	return &entity.Reviewer{
		ReviewStep: entity.ReviewStep{
			ID:     id,
			Order:  int(id),
			UserID: userID,
			Role:   role,
			Status: status,
		},
		RequestID: 1,
	}
}

func tripReviewer(id, userID int64, role entity.Role, status entity.ReviewerStatus) *entity.TripReviewer {
	return &entity.TripReviewer{
		ReviewStep: entity.ReviewStep{
			ID:     id,
			Order:  int(id),
			UserID: userID,
			Role:   role,
			Status: status,
		},
		TripID: 1,
	}
}

func statuses[R Stepper](chain []R) []entity.ReviewerStatus {
	out := make([]entity.ReviewerStatus, len(chain))
	for i, r := range chain {
		out[i] = r.Step().Status
	}
	return out
}

func submittedRequest(id int64) *entity.Request {
	at := testNow.Add(-time.Hour)
	return &entity.Request{
		ID:          id,
		OwnerID:     100,
		SubmittedAt: &at,
		Status:      entity.RequestSubmitted,
	}
}

func countPending[R Stepper](chain []R) int {
	n := 0
	for _, r := range chain {
		if r.Step().Status == entity.ReviewerPending {
			n++
		}
	}
	return n
}
