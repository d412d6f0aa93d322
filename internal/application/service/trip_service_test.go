package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-review/internal/domain/chain"
	"github.com/garyjia/travel-review/internal/domain/entity"
	"github.com/garyjia/travel-review/internal/domain/event"
)

func (f *fixture) createADMTrip(t *testing.T) *entity.Trip {
	t.Helper()
	trip, err := f.trips.CreateTrip(context.Background(), adminID, CreateTripInput{
		Name:                  "Fisheries Congress",
		StartDate:             serviceNow.Add(60 * 24 * time.Hour),
		IsADMApprovalRequired: true,
	})
	require.NoError(t, err)
	return trip
}

func (f *fixture) tripReviewers(t *testing.T, tripID int64) []*entity.TripReviewer {
	t.Helper()
	detail, err := f.trips.GetTrip(context.Background(), tripID)
	require.NoError(t, err)
	return detail.Reviewers
}

// approveTripCurrent makes the current trip reviewer approve
func (f *fixture) approveTripCurrent(t *testing.T, tripID int64) *entity.Trip {
	t.Helper()
	current, ok := chain.Current(f.tripReviewers(t, tripID))
	require.True(t, ok, "trip %d has no current reviewer", tripID)
	trip, err := f.trips.DecideAsTripReviewer(context.Background(), current.UserID, current.ID, entity.DecisionApprove, "")
	require.NoError(t, err)
	return trip
}

func (f *fixture) startReview(t *testing.T, tripID int64) {
	t.Helper()
	_, err := f.trips.VerifyTrip(context.Background(), adminID, tripID)
	require.NoError(t, err)
	_, err = f.trips.StartTripReview(context.Background(), adminID, tripID)
	require.NoError(t, err)
}

func TestTripService_CreateBuildsChain(t *testing.T) {
	f := newFixture(t)

	_, err := f.trips.CreateTrip(context.Background(), ownerID, CreateTripInput{Name: "x"})
	assert.ErrorIs(t, err, chain.ErrAuthorization)

	trip := f.createADMTrip(t)
	assert.Equal(t, entity.TripUnverified, trip.Status)

	reviewers := f.tripReviewers(t, trip.ID)
	require.Len(t, reviewers, 3)
	assert.Equal(t, ncrCoord, reviewers[0].UserID)
	assert.Equal(t, entity.RoleNCRCoordinator, reviewers[0].Role)
	assert.Equal(t, admDelgate, reviewers[1].UserID)
	assert.Equal(t, entity.RoleADM, reviewers[1].Role)
	assert.Equal(t, admID, reviewers[2].UserID)

	plain, err := f.trips.CreateTrip(context.Background(), adminID, CreateTripInput{Name: "Local Visit"})
	require.NoError(t, err)
	assert.Empty(t, f.tripReviewers(t, plain.ID))
}

func TestTripService_ToggleADM(t *testing.T) {
	f := newFixture(t)
	trip := f.createADMTrip(t)

	updated, err := f.trips.SetADMApprovalRequired(context.Background(), adminID, trip.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsADMApprovalRequired)
	assert.Empty(t, f.tripReviewers(t, trip.ID))

	_, err = f.trips.SetADMApprovalRequired(context.Background(), adminID, trip.ID, true)
	require.NoError(t, err)
	assert.Len(t, f.tripReviewers(t, trip.ID), 3)

	_, err = f.trips.SetADMApprovalRequired(context.Background(), ownerID, trip.ID, false)
	assert.ErrorIs(t, err, chain.ErrAuthorization)

	f.startReview(t, trip.ID)
	_, err = f.trips.SetADMApprovalRequired(context.Background(), adminID, trip.ID, false)
	assert.ErrorIs(t, err, chain.ErrInvariantViolation, "locked once under review")
	_, err = f.trips.ResetTripReviewers(context.Background(), adminID, trip.ID)
	assert.ErrorIs(t, err, chain.ErrInvariantViolation)
}

func TestTripService_VerifyAndStart(t *testing.T) {
	f := newFixture(t)
	trip := f.createADMTrip(t)

	_, err := f.trips.StartTripReview(context.Background(), adminID, trip.ID)
	assert.ErrorIs(t, err, chain.ErrInvariantViolation, "must be verified first")

	verified, err := f.trips.VerifyTrip(context.Background(), adminID, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TripVerified, verified.Status)

	_, err = f.trips.VerifyTrip(context.Background(), adminID, trip.ID)
	assert.ErrorIs(t, err, chain.ErrInvariantViolation)

	started, err := f.trips.StartTripReview(context.Background(), adminID, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TripUnderReview, started.Status)

	reviewers := f.tripReviewers(t, trip.ID)
	assert.Equal(t, entity.ReviewerPending, reviewers[0].Status)
	assert.Equal(t, entity.ReviewerQueued, reviewers[1].Status)

	awaiting := f.disp.ofType(event.TypeTripReviewAwaiting)
	require.Len(t, awaiting, 1)
	assert.Equal(t, []int64{ncrCoord}, awaiting[0].RecipientIDs)
	assert.Len(t, f.disp.ofType(event.TypeTripStatusChanged), 2)
}

func TestTripService_DecideRules(t *testing.T) {
	f := newFixture(t)
	trip := f.createADMTrip(t)
	f.startReview(t, trip.ID)
	reviewers := f.tripReviewers(t, trip.ID)

	_, err := f.trips.DecideAsTripReviewer(context.Background(), ncrCoord, reviewers[0].ID, entity.DecisionDeny, "")
	assert.ErrorIs(t, err, chain.ErrInvariantViolation, "trip reviewers only approve")

	_, err = f.trips.DecideAsTripReviewer(context.Background(), admDelgate, reviewers[1].ID, entity.DecisionApprove, "")
	assert.ErrorIs(t, err, chain.ErrAuthorization)

	_, err = f.trips.DecideAsTripReviewer(context.Background(), ncrCoord, 4242, entity.DecisionApprove, "")
	assert.ErrorIs(t, err, chain.ErrNotFound)
}

func TestTripService_FinalADMReleasesRequests(t *testing.T) {
	f := newFixture(t)
	trip := f.createADMTrip(t)

	waiting := f.createRequest(t, CreateRequestInput{TripID: &trip.ID})
	early := f.createRequest(t, CreateRequestInput{TripID: &trip.ID})
	for _, req := range []*entity.Request{waiting, early} {
		_, err := f.requests.SubmitRequest(context.Background(), ownerID, req.ID)
		require.NoError(t, err)
	}
	for i := 0; i < 4; i++ {
		f.decideCurrent(t, waiting.ID, entity.DecisionApprove)
	}
	require.Equal(t, entity.RequestPendingADMApproval, f.status(t, waiting.ID))

	f.startReview(t, trip.ID)
	f.approveTripCurrent(t, trip.ID)
	f.approveTripCurrent(t, trip.ID)
	assert.Equal(t, entity.RequestPendingADMApproval, f.status(t, waiting.ID), "delegate approval does not release")

	reviewed := f.approveTripCurrent(t, trip.ID)
	assert.Equal(t, entity.TripReviewed, reviewed.Status)

	assert.Equal(t, entity.RequestPendingRDGApproval, f.status(t, waiting.ID))
	reviewers := f.reviewers(t, waiting.ID)
	adm := reviewers[4]
	assert.Equal(t, entity.RoleADM, adm.Role)
	assert.Equal(t, entity.ReviewerApproved, adm.Status)
	assert.Equal(t, chain.BulkApprovalComment, adm.Comments)
	assert.Equal(t, entity.ReviewerPending, reviewers[5].Status)

	assert.Equal(t, entity.RequestPendingReview, f.status(t, early.ID), "requests not at ADM are untouched")
	assert.Contains(t, f.store.actions(waiting.ID), entity.ActionBulkApprove)
}

func TestTripService_CancelTrip(t *testing.T) {
	f := newFixture(t)
	trip, err := f.trips.CreateTrip(context.Background(), adminID, CreateTripInput{Name: "Cancelled Expedition", StartDate: serviceNow.Add(90 * 24 * time.Hour)})
	require.NoError(t, err)

	draft := f.createRequest(t, CreateRequestInput{TripID: &trip.ID})
	inReview := f.createRequest(t, CreateRequestInput{TripID: &trip.ID, Travellers: []TravellerInput{{UserID: 200, TotalCost: 12000}}})
	approved := f.createRequest(t, CreateRequestInput{TripID: &trip.ID})

	for _, req := range []*entity.Request{inReview, approved} {
		_, err := f.requests.SubmitRequest(context.Background(), ownerID, req.ID)
		require.NoError(t, err)
	}
	for i := 0; i < 5; i++ {
		f.decideCurrent(t, approved.ID, entity.DecisionApprove)
	}
	require.Len(t, f.disp.ofType(event.TypeTripCostWarning), 1)

	_, err = f.trips.CancelTrip(context.Background(), ownerID, trip.ID, "")
	assert.ErrorIs(t, err, chain.ErrAuthorization)

	f.disp.reset()
	cancelled, err := f.trips.CancelTrip(context.Background(), adminID, trip.ID, "venue closed")
	require.NoError(t, err)
	assert.Equal(t, entity.TripCancelled, cancelled.Status)
	assert.Equal(t, "venue closed", cancelled.AdminNotes)
	assert.Zero(t, cancelled.NonResidentTotalCost)
	assert.Nil(t, cancelled.CostWarningSentAt, "cancelled requests no longer count")

	assert.Equal(t, entity.RequestCancelled, f.status(t, draft.ID))
	assert.Equal(t, entity.RequestCancelled, f.status(t, inReview.ID))
	assert.Equal(t, entity.RequestApproved, f.status(t, approved.ID))
	for _, r := range f.reviewers(t, inReview.ID) {
		assert.Equal(t, entity.ReviewerCancelled, r.Status)
	}

	updates := f.disp.ofType(event.TypeStatusUpdate)
	require.Len(t, updates, 1, "drafts are cancelled silently")
	assert.Equal(t, inReview.ID, updates[0].RequestID)

	_, err = f.trips.CancelTrip(context.Background(), adminID, trip.ID, "")
	assert.ErrorIs(t, err, chain.ErrInvariantViolation)

	_, err = f.requests.CreateRequest(context.Background(), CreateRequestInput{OwnerID: ownerID, SectionID: sectionA, TripID: &trip.ID})
	assert.ErrorIs(t, err, chain.ErrInvariantViolation)
}

func TestTripService_CancelTripNotifiesGroupMembers(t *testing.T) {
	f := newFixture(t)
	trip, err := f.trips.CreateTrip(context.Background(), adminID, CreateTripInput{Name: "Field Week", StartDate: serviceNow.Add(60 * 24 * time.Hour)})
	require.NoError(t, err)

	group := f.createRequest(t, CreateRequestInput{IsGroup: true, TripID: &trip.ID})
	member := f.createRequest(t, CreateRequestInput{
		OwnerID:         101,
		ParentRequestID: &group.ID,
		Travellers:      []TravellerInput{{UserID: 201}},
	})
	_, err = f.requests.SubmitRequest(context.Background(), ownerID, group.ID)
	require.NoError(t, err)

	f.disp.reset()
	_, err = f.trips.CancelTrip(context.Background(), adminID, trip.ID, "")
	require.NoError(t, err)
	assert.Equal(t, entity.RequestCancelled, f.status(t, member.ID))

	updates := f.disp.ofType(event.TypeStatusUpdate)
	require.Len(t, updates, 1, "members are notified through the group")
	assert.Equal(t, group.ID, updates[0].RequestID)
	assert.ElementsMatch(t, []int64{ownerID, 101, 201}, updates[0].RecipientIDs)
}
