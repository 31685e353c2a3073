package application

import (
	"time"

	"github.com/google/uuid"

	bookingDomain "github.com/dumu-waks/service-booking/internal/domain/booking"
	"github.com/dumu-waks/service-booking/pkg/auth"
)

// Actor identifies who is requesting a transition, as supplied by the
// identity service via the auth middleware.
type Actor struct {
	ID   uuid.UUID
	Role auth.Role
}

// CreateBookingRequest holds the data needed to create a new booking.
type CreateBookingRequest struct {
	ServiceType         string     `json:"service_type" binding:"required"`
	Description         string     `json:"description"`
	BasePrice           int64      `json:"base_price" binding:"required"`
	ServiceCharge       int64      `json:"service_charge"`
	Discount            int64      `json:"discount"`
	ServiceDate         time.Time  `json:"service_date" binding:"required"`
	PreferredTechnician *uuid.UUID `json:"preferred_technician"`
	Notes               string     `json:"notes"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID                  uuid.UUID                        `json:"id"`
	BookingNumber       string                           `json:"booking_number"`
	CustomerID          uuid.UUID                        `json:"customer_id"`
	TechnicianID        *uuid.UUID                       `json:"technician_id,omitempty"`
	PreferredTechnician *uuid.UUID                       `json:"preferred_technician,omitempty"`
	ServiceType         string                           `json:"service_type"`
	Description         string                           `json:"description,omitempty"`
	Status              string                           `json:"status"`
	StatusHistory       []bookingDomain.StatusChange     `json:"status_history"`
	Pricing             bookingDomain.Pricing            `json:"pricing"`
	BookingFee          bookingDomain.BookingFee         `json:"booking_fee"`
	CounterOffer        *bookingDomain.CounterOffer      `json:"counter_offer,omitempty"`
	CompletionRequest   *bookingDomain.CompletionRequest `json:"completion_request,omitempty"`
	Payment             bookingDomain.Payment            `json:"payment"`
	Cancellation        *bookingDomain.Cancellation      `json:"cancellation,omitempty"`
	ServiceDate         time.Time                        `json:"service_date"`
	ActualStartTime     *time.Time                       `json:"actual_start_time,omitempty"`
	ActualEndTime       *time.Time                       `json:"actual_end_time,omitempty"`
	ActualDurationMin   *int64                           `json:"actual_duration_min,omitempty"`
	RemainingBalance    int64                            `json:"remaining_balance"`
	Notes               string                           `json:"notes,omitempty"`
	Version             int64                            `json:"version"`
	CreatedAt           time.Time                        `json:"created_at"`
	UpdatedAt           time.Time                        `json:"updated_at"`
}

// CompletionResultDTO is returned from completion confirmation; RemainingBalance
// is nonzero when the booking moved to payment_pending instead of verified.
type CompletionResultDTO struct {
	Booking          BookingDTO `json:"booking"`
	RemainingBalance int64      `json:"remaining_balance"`
}

// BookingStatsDTO holds booking statistics for the admin dashboard.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	s := bk.Snapshot()
	return BookingDTO{
		ID:                  s.ID,
		BookingNumber:       s.BookingNumber,
		CustomerID:          s.CustomerID,
		TechnicianID:        s.TechnicianID,
		PreferredTechnician: s.PreferredTechnician,
		ServiceType:         s.ServiceType,
		Description:         s.Description,
		Status:              string(s.Status),
		StatusHistory:       s.StatusHistory,
		Pricing:             s.Pricing,
		BookingFee:          s.Fee,
		CounterOffer:        s.CounterOffer,
		CompletionRequest:   s.CompletionRequest,
		Payment:             s.Payment,
		Cancellation:        s.Cancellation,
		ServiceDate:         s.ServiceDate,
		ActualStartTime:     s.ActualStartTime,
		ActualEndTime:       s.ActualEndTime,
		ActualDurationMin:   s.ActualDurationMin,
		RemainingBalance:    bk.RemainingBalance(),
		Notes:               s.Notes,
		Version:             s.Version,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}
}
