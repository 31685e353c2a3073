package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dumu-waks/service-booking/internal/application"
	"github.com/dumu-waks/service-booking/pkg/auth"
	"github.com/dumu-waks/service-booking/pkg/domain"
	"github.com/dumu-waks/service-booking/pkg/middleware"
	"github.com/dumu-waks/service-booking/pkg/response"
)

// BookingHandler handles HTTP requests for booking operations.
type BookingHandler struct {
	service *application.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service *application.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// RegisterRoutes registers all booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	bookings := r.Group("/api/v1/bookings")
	bookings.Use(authMW)
	{
		bookings.POST("", middleware.RequireRole(auth.RoleCustomer), h.CreateBooking)
		bookings.GET("", h.ListBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.GET("/number/:number", h.GetBookingByNumber)
		bookings.POST("/:id/confirm-fee", h.ConfirmFee)
		bookings.POST("/:id/accept", middleware.RequireRole(auth.RoleTechnician), h.AcceptBooking)
		bookings.POST("/:id/reject", middleware.RequireRole(auth.RoleTechnician), h.RejectBooking)
		bookings.POST("/:id/counter-offer", middleware.RequireRole(auth.RoleTechnician), h.SubmitCounterOffer)
		bookings.POST("/:id/counter-offer/respond", h.RespondToCounterOffer)
		bookings.POST("/:id/en-route", middleware.RequireRole(auth.RoleTechnician), h.MarkEnRoute)
		bookings.POST("/:id/arrive", middleware.RequireRole(auth.RoleTechnician), h.MarkArrived)
		bookings.POST("/:id/start", middleware.RequireRole(auth.RoleTechnician), h.StartWork)
		bookings.POST("/:id/pause", middleware.RequireRole(auth.RoleTechnician), h.PauseJob)
		bookings.POST("/:id/resume", middleware.RequireRole(auth.RoleTechnician), h.StartWork)
		bookings.POST("/:id/request-completion", middleware.RequireRole(auth.RoleTechnician), h.RequestCompletion)
		bookings.POST("/:id/confirm-completion", h.ConfirmCompletion)
		bookings.POST("/:id/pay-balance", h.PayBalance)
		bookings.POST("/:id/cancel", h.CancelBooking)
		bookings.POST("/:id/dispute", h.DisputeBooking)
	}
}

// CreateBooking handles POST /api/v1/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateBooking(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListBookings handles GET /api/v1/bookings. Customers see their own
// bookings, technicians see their assigned ones.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	page, limit := parsePagination(c)

	var (
		result *domain.PaginatedResult[application.BookingDTO]
		err    error
	)
	if actor.Role == auth.RoleTechnician {
		result, err = h.service.GetTechnicianBookings(c.Request.Context(), actor.ID, page, limit)
	} else {
		result, err = h.service.GetCustomerBookings(c.Request.Context(), actor.ID, page, limit)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetBooking handles GET /api/v1/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID, actor, ok := bookingRequest(c)
	if !ok {
		return
	}

	result, err := h.service.GetBooking(c.Request.Context(), bookingID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetBookingByNumber handles GET /api/v1/bookings/number/:number.
func (h *BookingHandler) GetBookingByNumber(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	result, err := h.service.GetBookingByNumber(c.Request.Context(), c.Param("number"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ConfirmFee handles POST /api/v1/bookings/:id/confirm-fee.
func (h *BookingHandler) ConfirmFee(c *gin.Context) {
	bookingID, actor, ok := bookingRequest(c)
	if !ok {
		return
	}

	var body struct {
		TransactionID uuid.UUID `json:"transaction_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.ConfirmBookingFee(c.Request.Context(), bookingID, actor, body.TransactionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// AcceptBooking handles POST /api/v1/bookings/:id/accept.
func (h *BookingHandler) AcceptBooking(c *gin.Context) {
	bookingID, actor, ok := bookingRequest(c)
	if !ok {
		return
	}

	result, err := h.service.AcceptBooking(c.Request.Context(), bookingID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// RejectBooking handles POST /api/v1/bookings/:id/reject.
func (h *BookingHandler) RejectBooking(c *gin.Context) {
	bookingID, actor, ok := bookingRequest(c)
	if !ok {
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)

	result, err := h.service.RejectBooking(c.Request.Context(), bookingID, actor, body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// SubmitCounterOffer handles POST /api/v1/bookings/:id/counter-offer.
func (h *BookingHandler) SubmitCounterOffer(c *gin.Context) {
	bookingID, actor, ok := bookingRequest(c)
	if !ok {
		return
	}

	var body struct {
		ProposedAmount int64  `json:"proposed_amount" binding:"required,gt=0"`
		Reason         string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.SubmitCounterOffer(c.Request.Context(), bookingID, actor, body.ProposedAmount, body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// RespondToCounterOffer handles POST /api/v1/bookings/:id/counter-offer/respond.
func (h *BookingHandler) RespondToCounterOffer(c *gin.Context) {
	bookingID, actor, ok := bookingRequest(c)
	if !ok {
		return
	}

	var body struct {
		Accepted *bool  `json:"accepted" binding:"required"`
		Notes    string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.RespondToCounterOffer(c.Request.Context(), bookingID, actor, *body.Accepted, body.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// MarkEnRoute handles POST /api/v1/bookings/:id/en-route.
func (h *BookingHandler) MarkEnRoute(c *gin.Context) {
	h.simpleTransition(c, h.service.MarkEnRoute)
}

// MarkArrived handles POST /api/v1/bookings/:id/arrived.
func (h *BookingHandler) MarkArrived(c *gin.Context) {
	h.simpleTransition(c, h.service.MarkArrived)
}

// StartWork handles POST /api/v1/bookings/:id/start.
func (h *BookingHandler) StartWork(c *gin.Context) {
	h.simpleTransition(c, h.service.StartWork)
}

// PauseJob handles POST /api/v1/bookings/:id/pause.
func (h *BookingHandler) PauseJob(c *gin.Context) {
	bookingID, actor, ok := bookingRequest(c)
	if !ok {
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)

	result, err := h.service.PauseJob(c.Request.Context(), bookingID, actor, body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// RequestCompletion handles POST /api/v1/bookings/:id/request-completion.
func (h *BookingHandler) RequestCompletion(c *gin.Context) {
	bookingID, actor, ok := bookingRequest(c)
	if !ok {
		return
	}

	var body struct {
		Notes string `json:"notes"`
	}
	_ = c.ShouldBindJSON(&body)

	result, err := h.service.RequestCompletion(c.Request.Context(), bookingID, actor, body.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ConfirmCompletion handles POST /api/v1/bookings/:id/confirm-completion.
func (h *BookingHandler) ConfirmCompletion(c *gin.Context) {
	bookingID, actor, ok := bookingRequest(c)
	if !ok {
		return
	}

	var body struct {
		Approved *bool    `json:"approved" binding:"required"`
		Feedback string   `json:"feedback"`
		Issues   []string `json:"issues"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.ConfirmCompletion(c.Request.Context(), bookingID, actor, *body.Approved, body.Feedback, body.Issues)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// PayBalance handles POST /api/v1/bookings/:id/pay-balance.
func (h *BookingHandler) PayBalance(c *gin.Context) {
	bookingID, actor, ok := bookingRequest(c)
	if !ok {
		return
	}

	var body struct {
		TransactionID uuid.UUID `json:"transaction_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.ConfirmBalancePayment(c.Request.Context(), bookingID, actor, body.TransactionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	bookingID, actor, ok := bookingRequest(c)
	if !ok {
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)

	result, err := h.service.CancelBooking(c.Request.Context(), bookingID, actor, body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// DisputeBooking handles POST /api/v1/bookings/:id/dispute.
func (h *BookingHandler) DisputeBooking(c *gin.Context) {
	bookingID, actor, ok := bookingRequest(c)
	if !ok {
		return
	}

	var body struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.DisputeBooking(c.Request.Context(), bookingID, actor, body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// --- Helpers ---

func (h *BookingHandler) simpleTransition(c *gin.Context, op func(ctx context.Context, id uuid.UUID, actor application.Actor) (*application.BookingDTO, error)) {
	bookingID, actor, ok := bookingRequest(c)
	if !ok {
		return
	}

	result, err := op(c.Request.Context(), bookingID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// bookingRequest extracts the booking ID path parameter and the
// authenticated actor, writing the error response itself on failure.
func bookingRequest(c *gin.Context) (uuid.UUID, application.Actor, bool) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return uuid.Nil, application.Actor{}, false
	}

	actor, ok := currentActor(c)
	if !ok {
		return uuid.Nil, application.Actor{}, false
	}
	return bookingID, actor, true
}

func currentActor(c *gin.Context) (application.Actor, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return application.Actor{}, false
	}
	role, ok := middleware.GetUserRole(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return application.Actor{}, false
	}
	return application.Actor{ID: userID, Role: role}, true
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}
