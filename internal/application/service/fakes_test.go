package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/travel-review/internal/application/dispatcher"
	"github.com/garyjia/travel-review/internal/application/port"
	"github.com/garyjia/travel-review/internal/domain/chain"
	"github.com/garyjia/travel-review/internal/domain/entity"
	"github.com/garyjia/travel-review/internal/domain/event"
)

// memStore is an in-memory implementation of every persistence port. Values
// are copied on the way in and out so services cannot mutate stored rows.
type memStore struct {
	mu            sync.Mutex
	nextID        int64
	requests      map[int64]*entity.Request
	travellers    map[int64]*entity.Traveller
	reviewers     map[int64]*entity.Reviewer
	trips         map[int64]*entity.Trip
	tripReviewers map[int64]*entity.TripReviewer
	history       []*entity.ReviewHistory
	logs          []*entity.NotificationLog
}

func newMemStore() *memStore {
	return &memStore{
		requests:      map[int64]*entity.Request{},
		travellers:    map[int64]*entity.Traveller{},
		reviewers:     map[int64]*entity.Reviewer{},
		trips:         map[int64]*entity.Trip{},
		tripReviewers: map[int64]*entity.TripReviewer{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) repositories() Repositories {
	return Repositories{
		Requests:      memRequests{m},
		Travellers:    memTravellers{m},
		Reviewers:     memReviewers{m},
		Trips:         memTrips{m},
		TripReviewers: memTripReviewers{m},
		History:       memHistory{m},
	}
}

func (m *memStore) actions(requestID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, h := range m.history {
		if h.RequestID != nil && *h.RequestID == requestID {
			out = append(out, h.ActionType)
		}
	}
	return out
}

type memRequests struct{ m *memStore }

func (r memRequests) Create(ctx context.Context, req *entity.Request) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	req.ID = r.m.id()
	cp := *req
	cp.Travellers = nil
	cp.Members = nil
	r.m.requests[req.ID] = &cp
	return nil
}

func (r memRequests) GetByID(ctx context.Context, id int64) (*entity.Request, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if req, ok := r.m.requests[id]; ok {
		cp := *req
		return &cp, nil
	}
	return nil, nil
}

func (r memRequests) filter(keep func(*entity.Request) bool) []*entity.Request {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.Request
	for _, req := range r.m.requests {
		if keep(req) {
			cp := *req
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r memRequests) GetChildren(ctx context.Context, parentID int64) ([]*entity.Request, error) {
	return r.filter(func(req *entity.Request) bool {
		return req.ParentRequestID != nil && *req.ParentRequestID == parentID
	}), nil
}

func (r memRequests) GetByTripID(ctx context.Context, tripID int64) ([]*entity.Request, error) {
	return r.filter(func(req *entity.Request) bool {
		return req.TripID != nil && *req.TripID == tripID
	}), nil
}

func (r memRequests) ListReviewableIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	for _, req := range r.filter(func(req *entity.Request) bool { return !req.IsChild() }) {
		ids = append(ids, req.ID)
	}
	return ids, nil
}

func (r memRequests) Update(ctx context.Context, req *entity.Request) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.requests[req.ID]
	if !ok || stored.Version != req.Version {
		return port.ErrStaleWrite
	}
	req.Version++
	cp := *req
	cp.Travellers = nil
	r.m.requests[req.ID] = &cp
	return nil
}

type memTravellers struct{ m *memStore }

func (r memTravellers) Create(ctx context.Context, t *entity.Traveller) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t.ID = r.m.id()
	cp := *t
	r.m.travellers[t.ID] = &cp
	return nil
}

func (r memTravellers) GetByID(ctx context.Context, id int64) (*entity.Traveller, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if t, ok := r.m.travellers[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (r memTravellers) GetByRequestID(ctx context.Context, requestID int64) ([]*entity.Traveller, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.Traveller
	for _, t := range r.m.travellers {
		if t.RequestID == requestID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memTravellers) UpdateCost(ctx context.Context, id int64, cost float64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.travellers[id].TotalCost = cost
	return nil
}

type memReviewers struct{ m *memStore }

func (r memReviewers) GetByID(ctx context.Context, id int64) (*entity.Reviewer, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if rv, ok := r.m.reviewers[id]; ok {
		cp := *rv
		return &cp, nil
	}
	return nil, nil
}

func (r memReviewers) GetByRequestID(ctx context.Context, requestID int64) ([]*entity.Reviewer, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.Reviewer
	for _, rv := range r.m.reviewers {
		if rv.RequestID == requestID {
			cp := *rv
			out = append(out, &cp)
		}
	}
	chain.SortByOrder(out)
	return out, nil
}

func (r memReviewers) ReplaceChain(ctx context.Context, requestID int64, reviewers []*entity.Reviewer) error {
	r.m.mu.Lock()
	for id, rv := range r.m.reviewers {
		if rv.RequestID == requestID {
			delete(r.m.reviewers, id)
		}
	}
	r.m.mu.Unlock()
	for _, rv := range reviewers {
		rv.RequestID = requestID
		if err := r.Insert(ctx, rv); err != nil {
			return err
		}
	}
	return nil
}

func (r memReviewers) Insert(ctx context.Context, rv *entity.Reviewer) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rv.ID = r.m.id()
	cp := *rv
	r.m.reviewers[rv.ID] = &cp
	return nil
}

func (r memReviewers) Save(ctx context.Context, reviewers []*entity.Reviewer) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, rv := range reviewers {
		if _, ok := r.m.reviewers[rv.ID]; !ok {
			return errors.New("save of unknown reviewer")
		}
		cp := *rv
		r.m.reviewers[rv.ID] = &cp
	}
	return nil
}

// set overwrites stored reviewer statuses, used to plant corrupt chains
func (r memReviewers) set(id int64, status entity.ReviewerStatus) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.reviewers[id].Status = status
}

type memTrips struct{ m *memStore }

func (r memTrips) Create(ctx context.Context, trip *entity.Trip) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	trip.ID = r.m.id()
	cp := *trip
	r.m.trips[trip.ID] = &cp
	return nil
}

func (r memTrips) GetByID(ctx context.Context, id int64) (*entity.Trip, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if t, ok := r.m.trips[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (r memTrips) List(ctx context.Context, limit, offset int) ([]*entity.Trip, error) {
	ids, _ := r.ListIDs(ctx)
	var out []*entity.Trip
	for _, id := range ids {
		t, _ := r.GetByID(ctx, id)
		out = append(out, t)
	}
	return out, nil
}

func (r memTrips) ListIDs(ctx context.Context) ([]int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var ids []int64
	for id := range r.m.trips {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r memTrips) Update(ctx context.Context, trip *entity.Trip) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.trips[trip.ID]
	if !ok || stored.Version != trip.Version {
		return port.ErrStaleWrite
	}
	trip.Version++
	cp := *trip
	r.m.trips[trip.ID] = &cp
	return nil
}

type memTripReviewers struct{ m *memStore }

func (r memTripReviewers) GetByID(ctx context.Context, id int64) (*entity.TripReviewer, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if rv, ok := r.m.tripReviewers[id]; ok {
		cp := *rv
		return &cp, nil
	}
	return nil, nil
}

func (r memTripReviewers) GetByTripID(ctx context.Context, tripID int64) ([]*entity.TripReviewer, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.TripReviewer
	for _, rv := range r.m.tripReviewers {
		if rv.TripID == tripID {
			cp := *rv
			out = append(out, &cp)
		}
	}
	chain.SortByOrder(out)
	return out, nil
}

func (r memTripReviewers) ReplaceChain(ctx context.Context, tripID int64, reviewers []*entity.TripReviewer) error {
	if err := r.DeleteByTripID(ctx, tripID); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, rv := range reviewers {
		rv.TripID = tripID
		rv.ID = r.m.id()
		cp := *rv
		r.m.tripReviewers[rv.ID] = &cp
	}
	return nil
}

func (r memTripReviewers) DeleteByTripID(ctx context.Context, tripID int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for id, rv := range r.m.tripReviewers {
		if rv.TripID == tripID {
			delete(r.m.tripReviewers, id)
		}
	}
	return nil
}

func (r memTripReviewers) Save(ctx context.Context, reviewers []*entity.TripReviewer) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, rv := range reviewers {
		cp := *rv
		r.m.tripReviewers[rv.ID] = &cp
	}
	return nil
}

type memHistory struct{ m *memStore }

func (r memHistory) Create(ctx context.Context, h *entity.ReviewHistory) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	h.ID = r.m.id()
	cp := *h
	r.m.history = append(r.m.history, &cp)
	return nil
}

func (r memHistory) GetByRequestID(ctx context.Context, requestID int64) ([]*entity.ReviewHistory, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.ReviewHistory
	for _, h := range r.m.history {
		if h.RequestID != nil && *h.RequestID == requestID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r memHistory) GetByTripID(ctx context.Context, tripID int64) ([]*entity.ReviewHistory, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.ReviewHistory
	for _, h := range r.m.history {
		if h.TripID != nil && *h.TripID == tripID {
			out = append(out, h)
		}
	}
	return out, nil
}

type memNotificationLogs struct{ m *memStore }

func (r memNotificationLogs) Create(ctx context.Context, l *entity.NotificationLog) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	l.ID = r.m.id()
	cp := *l
	r.m.logs = append(r.m.logs, &cp)
	return nil
}

func (r memNotificationLogs) GetByRequestID(ctx context.Context, requestID int64) ([]*entity.NotificationLog, error) {
	return nil, nil
}

func (r memNotificationLogs) GetByTripID(ctx context.Context, tripID int64) ([]*entity.NotificationLog, error) {
	return nil, nil
}

// mockTxManager runs fn directly. The memory store has no rollback, so tests
// only rely on data written by successful calls.
type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

// mockOrg is a fixed org chart
type mockOrg struct {
	paths        map[int64]*entity.OrgPath
	defaults     map[entity.DefaultScope]map[int64][]int64
	tripDefaults entity.TripReviewerDefaults
	users        map[int64]*entity.User
	usersErr     error
}

func (m *mockOrg) SectionPath(ctx context.Context, sectionID int64) (*entity.OrgPath, error) {
	if p, ok := m.paths[sectionID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, chain.ErrNotFound
}

func (m *mockOrg) DefaultReviewers(ctx context.Context, scope entity.DefaultScope, scopeID int64) ([]int64, error) {
	return m.defaults[scope][scopeID], nil
}

func (m *mockOrg) TripDefaults(ctx context.Context) (*entity.TripReviewerDefaults, error) {
	cp := m.tripDefaults
	return &cp, nil
}

func (m *mockOrg) Users(ctx context.Context, ids []int64) ([]*entity.User, error) {
	if m.usersErr != nil {
		return nil, m.usersErr
	}
	var out []*entity.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// mockDispatcher records dispatched events synchronously
type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {
}

func (m *mockDispatcher) SubscribeAll(eventTypes []event.Type, name string, handler dispatcher.Handler) {
}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.DispatchAsync(ctx, evt)
	return nil
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo {
	return nil
}

func (m *mockDispatcher) Stats() dispatcher.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return dispatcher.Stats{Dispatched: int64(len(m.events))}
}

func (m *mockDispatcher) Close() error {
	return nil
}

func (m *mockDispatcher) ofType(t event.Type) []*event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*event.Event
	for _, e := range m.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (m *mockDispatcher) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}

// Org chart used across service tests
const (
	sectionA   int64 = 1
	ownerID    int64 = 100
	secDefault int64 = 21
	secHead    int64 = 11
	divHead    int64 = 12
	branchHead int64 = 13
	rdgID      int64 = 14
	admContact int64 = 30
	ncrReview  int64 = 31
	ncrCoord   int64 = 51
	admDelgate int64 = 52
	admID      int64 = 53
	adminID    int64 = 900
	outsiderID int64 = 999
)

var serviceNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newMockOrg() *mockOrg {
	users := map[int64]*entity.User{}
	for _, id := range []int64{ownerID, secDefault, secHead, divHead, branchHead, rdgID, admContact, ncrReview, ncrCoord, admDelgate, admID} {
		users[id] = &entity.User{ID: id, Name: fmt.Sprintf("User %d", id), Email: fmt.Sprintf("user%d@example.org", id)}
	}
	return &mockOrg{
		paths: map[int64]*entity.OrgPath{
			sectionA: {
				SectionID: sectionA, SectionHeadID: secHead,
				DivisionID: 2, DivisionHeadID: divHead,
				BranchID: 3, BranchHeadID: branchHead,
				RegionID: 4, RegionCode: "PAC", RegionHeadID: rdgID,
			},
		},
		defaults: map[entity.DefaultScope]map[int64][]int64{
			entity.ScopeSection:     {sectionA: {secDefault}},
			entity.ScopeADMContact:  {0: {admContact}},
			entity.ScopeNCRReviewer: {0: {ncrReview}},
		},
		tripDefaults: entity.TripReviewerDefaults{
			NCRCoordinatorIDs: []int64{ncrCoord},
			ADMDelegateIDs:    []int64{admDelgate},
			ADMID:             admID,
		},
		users: users,
	}
}
