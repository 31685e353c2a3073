package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dumu-waks/service-booking/internal/domain/support"
)

// TicketModel is the GORM model for the support_tickets table.
type TicketModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	BookingID   uuid.UUID `gorm:"type:uuid;index;not null"`
	RaisedBy    uuid.UUID `gorm:"type:uuid;not null"`
	Subject     string    `gorm:"not null;size:200"`
	Description string    `gorm:"size:2000"`
	Status      string    `gorm:"not null;size:20;index"`
	CreatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (TicketModel) TableName() string {
	return "support_tickets"
}

// GormTicketRepository is the GORM-based implementation of TicketRepository.
type GormTicketRepository struct {
	db *gorm.DB
}

// NewGormTicketRepository creates a new GormTicketRepository.
func NewGormTicketRepository(db *gorm.DB) *GormTicketRepository {
	return &GormTicketRepository{db: db}
}

// Create persists a new ticket.
func (r *GormTicketRepository) Create(ctx context.Context, ticket *support.Ticket) error {
	model := TicketModel{
		ID:          ticket.ID,
		BookingID:   ticket.BookingID,
		RaisedBy:    ticket.RaisedBy,
		Subject:     ticket.Subject,
		Description: ticket.Description,
		Status:      string(ticket.Status),
		CreatedAt:   ticket.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to create support ticket: %w", err)
	}
	return nil
}

// FindByBookingID retrieves all tickets raised against a booking.
func (r *GormTicketRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*support.Ticket, error) {
	var models []TicketModel
	if err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find tickets: %w", err)
	}

	tickets := make([]*support.Ticket, len(models))
	for i, m := range models {
		tickets[i] = &support.Ticket{
			ID:          m.ID,
			BookingID:   m.BookingID,
			RaisedBy:    m.RaisedBy,
			Subject:     m.Subject,
			Description: m.Description,
			Status:      support.TicketStatus(m.Status),
			CreatedAt:   m.CreatedAt,
		}
	}
	return tickets, nil
}
