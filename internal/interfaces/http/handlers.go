package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/travel-review/internal/application/port"
	"github.com/garyjia/travel-review/internal/application/service"
	"github.com/garyjia/travel-review/internal/domain/chain"
	"github.com/garyjia/travel-review/internal/domain/entity"
)

// Version is reported by the health check; set at build time by the CLI
var Version = "dev"

// ActorHeader carries the acting user's ID. Authentication happens upstream.
const ActorHeader = "X-User-ID"

const actorKey = "actor_id"

// Handlers contains all HTTP request handlers
type Handlers struct {
	requests      service.RequestService
	trips         service.TripService
	notifications port.NotificationLogRepository
	logger        Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{
		requests:      services.Requests,
		trips:         services.Trips,
		notifications: services.Notifications,
		logger:        logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ListTripsRequest represents query parameters for listing trips
type ListTripsRequest struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// DecisionRequest is the body of a reviewer decision
type DecisionRequest struct {
	Decision entity.ReviewDecision `json:"decision" binding:"required"`
	Comments string                `json:"comments"`
}

// CommentsRequest is the body of a request-changes call
type CommentsRequest struct {
	Comments string `json:"comments"`
}

// CostRequest is the body of a traveller cost update
type CostRequest struct {
	TotalCost *float64 `json:"total_cost" binding:"required"`
}

// ADMApprovalRequest is the body of the ADM approval toggle
type ADMApprovalRequest struct {
	Required *bool `json:"required" binding:"required"`
}

// CancelTripRequest is the body of a trip cancellation
type CancelTripRequest struct {
	AdminNotes string `json:"admin_notes"`
}

// requireActor rejects API calls without a valid actor header
func requireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.GetHeader(ActorHeader), 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing or invalid " + ActorHeader + " header",
			})
			return
		}
		c.Set(actorKey, id)
		c.Next()
	}
}

func actorID(c *gin.Context) int64 {
	return c.GetInt64(actorKey)
}

// pathID parses the :id parameter, writing a 400 on failure
func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid ID: " + idStr,
		})
		return 0, false
	}
	return id, true
}

// bind decodes a JSON body, writing a 400 on failure
func (h *Handlers) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body: " + err.Error(),
		})
		return false
	}
	return true
}

// bindOptional is bind for bodies whose fields all have usable zero values
func (h *Handlers) bindOptional(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return h.bind(c, dst)
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, chain.ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, chain.ErrInvariantViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, chain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, port.ErrStaleWrite):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) fail(c *gin.Context, op string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "operation", op, "error", err)
		if !errors.Is(err, chain.ErrIntegrity) {
			msg = op + " failed"
		}
	}
	c.JSON(status, Response{Success: false, Error: msg})
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	ok(c, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   Version,
	})
}

// CreateRequest handles POST /api/requests. The actor becomes the owner.
func (h *Handlers) CreateRequest(c *gin.Context) {
	var in service.CreateRequestInput
	if !h.bind(c, &in) {
		return
	}
	in.OwnerID = actorID(c)

	req, err := h.requests.CreateRequest(c.Request.Context(), in)
	if err != nil {
		h.fail(c, "create request", err)
		return
	}
	ok(c, http.StatusCreated, req)
}

// GetRequest handles GET /api/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	detail, err := h.requests.GetRequest(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get request", err)
		return
	}
	ok(c, http.StatusOK, detail)
}

// SubmitRequest handles POST /api/requests/:id/submit
func (h *Handlers) SubmitRequest(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	req, err := h.requests.SubmitRequest(c.Request.Context(), actorID(c), id)
	if err != nil {
		h.fail(c, "submit request", err)
		return
	}
	ok(c, http.StatusOK, req)
}

// UnsubmitRequest handles POST /api/requests/:id/unsubmit
func (h *Handlers) UnsubmitRequest(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	req, err := h.requests.UnsubmitRequest(c.Request.Context(), actorID(c), id)
	if err != nil {
		h.fail(c, "unsubmit request", err)
		return
	}
	ok(c, http.StatusOK, req)
}

// RequestChanges handles POST /api/requests/:id/changes
func (h *Handlers) RequestChanges(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	var body CommentsRequest
	if !h.bindOptional(c, &body) {
		return
	}
	req, err := h.requests.RequestChanges(c.Request.Context(), actorID(c), id, body.Comments)
	if err != nil {
		h.fail(c, "request changes", err)
		return
	}
	ok(c, http.StatusOK, req)
}

// ResetReviewers handles POST /api/requests/:id/reset-reviewers
func (h *Handlers) ResetReviewers(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	reviewers, err := h.requests.ResetReviewers(c.Request.Context(), actorID(c), id)
	if err != nil {
		h.fail(c, "reset reviewers", err)
		return
	}
	ok(c, http.StatusOK, reviewers)
}

// DecideAsReviewer handles POST /api/reviewers/:id/decision
func (h *Handlers) DecideAsReviewer(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	var body DecisionRequest
	if !h.bind(c, &body) {
		return
	}
	req, err := h.requests.DecideAsReviewer(c.Request.Context(), actorID(c), id, body.Decision, body.Comments)
	if err != nil {
		h.fail(c, "record decision", err)
		return
	}
	ok(c, http.StatusOK, req)
}

// UpdateTravellerCost handles PUT /api/travellers/:id/cost
func (h *Handlers) UpdateTravellerCost(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	var body CostRequest
	if !h.bind(c, &body) {
		return
	}
	if err := h.requests.UpdateTravellerCost(c.Request.Context(), actorID(c), id, *body.TotalCost); err != nil {
		h.fail(c, "update traveller cost", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"traveller_id": id, "total_cost": *body.TotalCost})
}

// RequestNotifications handles GET /api/requests/:id/notifications
func (h *Handlers) RequestNotifications(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	logs, err := h.notifications.GetByRequestID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "list notifications", err)
		return
	}
	ok(c, http.StatusOK, logs)
}

// ListTrips handles GET /api/trips
func (h *Handlers) ListTrips(c *gin.Context) {
	var req ListTripsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid query parameters",
		})
		return
	}

	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	trips, err := h.trips.ListTrips(c.Request.Context(), req.Limit, req.Offset)
	if err != nil {
		h.fail(c, "list trips", err)
		return
	}
	ok(c, http.StatusOK, trips)
}

// CreateTrip handles POST /api/trips
func (h *Handlers) CreateTrip(c *gin.Context) {
	var in service.CreateTripInput
	if !h.bind(c, &in) {
		return
	}
	trip, err := h.trips.CreateTrip(c.Request.Context(), actorID(c), in)
	if err != nil {
		h.fail(c, "create trip", err)
		return
	}
	ok(c, http.StatusCreated, trip)
}

// GetTrip handles GET /api/trips/:id
func (h *Handlers) GetTrip(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	detail, err := h.trips.GetTrip(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get trip", err)
		return
	}
	ok(c, http.StatusOK, detail)
}

// VerifyTrip handles POST /api/trips/:id/verify
func (h *Handlers) VerifyTrip(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	trip, err := h.trips.VerifyTrip(c.Request.Context(), actorID(c), id)
	if err != nil {
		h.fail(c, "verify trip", err)
		return
	}
	ok(c, http.StatusOK, trip)
}

// SetADMApprovalRequired handles PUT /api/trips/:id/adm-approval
func (h *Handlers) SetADMApprovalRequired(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	var body ADMApprovalRequest
	if !h.bind(c, &body) {
		return
	}
	trip, err := h.trips.SetADMApprovalRequired(c.Request.Context(), actorID(c), id, *body.Required)
	if err != nil {
		h.fail(c, "set ADM approval", err)
		return
	}
	ok(c, http.StatusOK, trip)
}

// StartTripReview handles POST /api/trips/:id/start-review
func (h *Handlers) StartTripReview(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	trip, err := h.trips.StartTripReview(c.Request.Context(), actorID(c), id)
	if err != nil {
		h.fail(c, "start trip review", err)
		return
	}
	ok(c, http.StatusOK, trip)
}

// ResetTripReviewers handles POST /api/trips/:id/reset-reviewers
func (h *Handlers) ResetTripReviewers(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	reviewers, err := h.trips.ResetTripReviewers(c.Request.Context(), actorID(c), id)
	if err != nil {
		h.fail(c, "reset trip reviewers", err)
		return
	}
	ok(c, http.StatusOK, reviewers)
}

// CancelTrip handles POST /api/trips/:id/cancel
func (h *Handlers) CancelTrip(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	var body CancelTripRequest
	if !h.bindOptional(c, &body) {
		return
	}
	trip, err := h.trips.CancelTrip(c.Request.Context(), actorID(c), id, body.AdminNotes)
	if err != nil {
		h.fail(c, "cancel trip", err)
		return
	}
	ok(c, http.StatusOK, trip)
}

// DecideAsTripReviewer handles POST /api/trip-reviewers/:id/decision
func (h *Handlers) DecideAsTripReviewer(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	var body DecisionRequest
	if !h.bind(c, &body) {
		return
	}
	trip, err := h.trips.DecideAsTripReviewer(c.Request.Context(), actorID(c), id, body.Decision, body.Comments)
	if err != nil {
		h.fail(c, "record trip decision", err)
		return
	}
	ok(c, http.StatusOK, trip)
}

// TripNotifications handles GET /api/trips/:id/notifications
func (h *Handlers) TripNotifications(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	logs, err := h.notifications.GetByTripID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "list notifications", err)
		return
	}
	ok(c, http.StatusOK, logs)
}
