package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dumu-waks/service-booking/internal/application"
	"github.com/dumu-waks/service-booking/pkg/auth"
	"github.com/dumu-waks/service-booking/pkg/middleware"
	"github.com/dumu-waks/service-booking/pkg/response"
)

// AdminBookingHandler handles admin HTTP requests for booking management.
type AdminBookingHandler struct {
	service *application.BookingService
}

// NewAdminBookingHandler creates a new AdminBookingHandler.
func NewAdminBookingHandler(service *application.BookingService) *AdminBookingHandler {
	return &AdminBookingHandler{service: service}
}

// RegisterRoutes registers admin booking routes.
func (h *AdminBookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	staffRole := middleware.RequireRole(auth.RoleAdmin, auth.RoleSupport)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, staffRole)
	{
		admin.GET("/bookings", h.ListBookings)
		admin.GET("/stats/bookings", h.BookingStats)
		admin.POST("/bookings/:id/assign", h.AssignTechnician)
		admin.POST("/bookings/:id/release-fee", h.ReleaseFee)
		admin.POST("/bookings/:id/refund-fee", h.RefundFee)
	}
}

// ListBookings handles GET /api/v1/admin/bookings.
func (h *AdminBookingHandler) ListBookings(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	bookings, total, err := h.service.ListAllBookings(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, bookings, total, page, limit)
}

// BookingStats handles GET /api/v1/admin/stats/bookings.
func (h *AdminBookingHandler) BookingStats(c *gin.Context) {
	stats, err := h.service.GetBookingStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// AssignTechnician handles POST /api/v1/admin/bookings/:id/assign.
func (h *AdminBookingHandler) AssignTechnician(c *gin.Context) {
	bookingID, actor, ok := bookingRequest(c)
	if !ok {
		return
	}

	var body struct {
		TechnicianID uuid.UUID `json:"technician_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.AssignTechnician(c.Request.Context(), bookingID, actor, body.TechnicianID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ReleaseFee handles POST /api/v1/admin/bookings/:id/release-fee.
func (h *AdminBookingHandler) ReleaseFee(c *gin.Context) {
	bookingID, actor, ok := bookingRequest(c)
	if !ok {
		return
	}

	result, err := h.service.ReleaseBookingFee(c.Request.Context(), bookingID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// RefundFee handles POST /api/v1/admin/bookings/:id/refund-fee.
func (h *AdminBookingHandler) RefundFee(c *gin.Context) {
	bookingID, actor, ok := bookingRequest(c)
	if !ok {
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)

	result, err := h.service.RefundBookingFee(c.Request.Context(), bookingID, actor, body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
