package support

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TicketStatus represents the state of a support ticket.
type TicketStatus string

const (
	StatusOpen     TicketStatus = "open"
	StatusInReview TicketStatus = "in_review"
	StatusResolved TicketStatus = "resolved"
)

// Ticket is a support case raised against a booking, e.g. when a customer
// rejects a completion request.
type Ticket struct {
	ID          uuid.UUID
	BookingID   uuid.UUID
	RaisedBy    uuid.UUID
	Subject     string
	Description string
	Status      TicketStatus
	CreatedAt   time.Time
}

// NewTicket creates an open ticket for the given booking.
func NewTicket(bookingID, raisedBy uuid.UUID, subject, description string) *Ticket {
	return &Ticket{
		ID:          uuid.New(),
		BookingID:   bookingID,
		RaisedBy:    raisedBy,
		Subject:     subject,
		Description: description,
		Status:      StatusOpen,
		CreatedAt:   time.Now().UTC(),
	}
}

// TicketRepository defines the persistence contract for support tickets.
type TicketRepository interface {
	// Create persists a new ticket.
	Create(ctx context.Context, ticket *Ticket) error

	// FindByBookingID retrieves tickets raised against a booking.
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*Ticket, error)
}
