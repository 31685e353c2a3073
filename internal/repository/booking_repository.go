package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	bookingDomain "github.com/dumu-waks/service-booking/internal/domain/booking"
	"github.com/dumu-waks/service-booking/pkg/domain"
)

// BookingModel is the GORM model for the bookings table. Lifecycle
// sub-documents (history, fee, counter-offer, completion request, payment,
// cancellation) are stored as jsonb so the aggregate round-trips whole.
type BookingModel struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BookingNumber       string          `gorm:"uniqueIndex;not null;size:20"`
	CustomerID          uuid.UUID       `gorm:"type:uuid;index;not null"`
	TechnicianID        *uuid.UUID      `gorm:"type:uuid;index"`
	PreferredTechnician *uuid.UUID      `gorm:"type:uuid"`
	ServiceType         string          `gorm:"not null;size:100"`
	Description         string          `gorm:"size:2000"`
	Status              string          `gorm:"not null;size:30;index"`
	StatusHistory       json.RawMessage `gorm:"type:jsonb;not null"`
	Pricing             json.RawMessage `gorm:"type:jsonb;not null"`
	BookingFee          json.RawMessage `gorm:"type:jsonb;not null"`
	CounterOffer        json.RawMessage `gorm:"type:jsonb"`
	CompletionRequest   json.RawMessage `gorm:"type:jsonb"`
	Payment             json.RawMessage `gorm:"type:jsonb;not null"`
	Cancellation        json.RawMessage `gorm:"type:jsonb"`
	ServiceDate         time.Time       `gorm:"not null;index"`
	ActualStartTime     *time.Time      `gorm:""`
	ActualEndTime       *time.Time      `gorm:""`
	ActualDurationMin   *int64          `gorm:""`
	Notes               string          `gorm:"size:1000"`
	Version             int64           `gorm:"not null;default:1"`
	CreatedAt           time.Time       `gorm:"not null"`
	UpdatedAt           time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByNumber retrieves a booking by its booking number.
func (r *GormBookingRepository) FindByNumber(ctx context.Context, number string) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("booking_number = ?", number).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", number)
		}
		return nil, fmt.Errorf("failed to find booking by number: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByCustomerID retrieves bookings for a specific customer with pagination.
func (r *GormBookingRepository) FindByCustomerID(ctx context.Context, customerID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).Where("customer_id = ?", customerID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count customer bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find customer bookings: %w", err)
	}

	return toDomainBookings(models, total)
}

// FindByTechnicianID retrieves bookings for a specific technician with pagination.
func (r *GormBookingRepository) FindByTechnicianID(ctx context.Context, technicianID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).Where("technician_id = ?", technicianID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count technician bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Where("technician_id = ?", technicianID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find technician bookings: %w", err)
	}

	return toDomainBookings(models, total)
}

// Save persists a new booking.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

// Update persists changes to an existing booking with optimistic locking.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	// Only update if the stored version matches the version the aggregate
	// was loaded at (IncrementVersion has already bumped the in-memory one).
	expectedVersion := bk.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"technician_id":       model.TechnicianID,
			"status":              model.Status,
			"status_history":      model.StatusHistory,
			"pricing":             model.Pricing,
			"booking_fee":         model.BookingFee,
			"counter_offer":       model.CounterOffer,
			"completion_request":  model.CompletionRequest,
			"payment":             model.Payment,
			"cancellation":        model.Cancellation,
			"service_date":        model.ServiceDate,
			"actual_start_time":   model.ActualStartTime,
			"actual_end_time":     model.ActualEndTime,
			"actual_duration_min": model.ActualDurationMin,
			"notes":               model.Notes,
			"version":             model.Version,
			"updated_at":          model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified by another transaction")
	}

	return nil
}

// ListAll retrieves all bookings with pagination (admin).
func (r *GormBookingRepository) ListAll(ctx context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	return toDomainBookings(models, total)
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) (*BookingModel, error) {
	s := bk.Snapshot()

	historyJSON, err := json.Marshal(s.StatusHistory)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status history: %w", err)
	}

	pricingJSON, err := json.Marshal(s.Pricing)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pricing: %w", err)
	}

	feeJSON, err := json.Marshal(s.Fee)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal booking fee: %w", err)
	}

	paymentJSON, err := json.Marshal(s.Payment)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment: %w", err)
	}

	offerJSON, err := marshalOptional(s.CounterOffer)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal counter offer: %w", err)
	}

	completionJSON, err := marshalOptional(s.CompletionRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	cancellationJSON, err := marshalOptional(s.Cancellation)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cancellation: %w", err)
	}

	return &BookingModel{
		ID:                  s.ID,
		BookingNumber:       s.BookingNumber,
		CustomerID:          s.CustomerID,
		TechnicianID:        s.TechnicianID,
		PreferredTechnician: s.PreferredTechnician,
		ServiceType:         s.ServiceType,
		Description:         s.Description,
		Status:              string(s.Status),
		StatusHistory:       historyJSON,
		Pricing:             pricingJSON,
		BookingFee:          feeJSON,
		CounterOffer:        offerJSON,
		CompletionRequest:   completionJSON,
		Payment:             paymentJSON,
		Cancellation:        cancellationJSON,
		ServiceDate:         s.ServiceDate,
		ActualStartTime:     s.ActualStartTime,
		ActualEndTime:       s.ActualEndTime,
		ActualDurationMin:   s.ActualDurationMin,
		Notes:               s.Notes,
		Version:             s.Version,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}, nil
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		return nil, err
	}

	var history []bookingDomain.StatusChange
	if err := json.Unmarshal(m.StatusHistory, &history); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status history: %w", err)
	}

	var pricing bookingDomain.Pricing
	if err := json.Unmarshal(m.Pricing, &pricing); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pricing: %w", err)
	}

	var fee bookingDomain.BookingFee
	if err := json.Unmarshal(m.BookingFee, &fee); err != nil {
		return nil, fmt.Errorf("failed to unmarshal booking fee: %w", err)
	}

	var pay bookingDomain.Payment
	if err := json.Unmarshal(m.Payment, &pay); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment: %w", err)
	}

	var offer *bookingDomain.CounterOffer
	if err := unmarshalOptional(m.CounterOffer, &offer); err != nil {
		return nil, fmt.Errorf("failed to unmarshal counter offer: %w", err)
	}

	var completion *bookingDomain.CompletionRequest
	if err := unmarshalOptional(m.CompletionRequest, &completion); err != nil {
		return nil, fmt.Errorf("failed to unmarshal completion request: %w", err)
	}

	var cancellation *bookingDomain.Cancellation
	if err := unmarshalOptional(m.Cancellation, &cancellation); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cancellation: %w", err)
	}

	return bookingDomain.Reconstruct(bookingDomain.Snapshot{
		ID:                  m.ID,
		BookingNumber:       m.BookingNumber,
		CustomerID:          m.CustomerID,
		TechnicianID:        m.TechnicianID,
		PreferredTechnician: m.PreferredTechnician,
		ServiceType:         m.ServiceType,
		Description:         m.Description,
		Status:              status,
		StatusHistory:       history,
		Pricing:             pricing,
		Fee:                 fee,
		CounterOffer:        offer,
		CompletionRequest:   completion,
		Payment:             pay,
		Cancellation:        cancellation,
		ServiceDate:         m.ServiceDate,
		ActualStartTime:     m.ActualStartTime,
		ActualEndTime:       m.ActualEndTime,
		ActualDurationMin:   m.ActualDurationMin,
		Notes:               m.Notes,
		Version:             m.Version,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}), nil
}

func toDomainBookings(models []BookingModel, total int64) ([]*bookingDomain.Booking, int64, error) {
	bookings := make([]*bookingDomain.Booking, len(models))
	for i, m := range models {
		bk, err := toDomainBooking(&m)
		if err != nil {
			return nil, 0, err
		}
		bookings[i] = bk
	}
	return bookings, total, nil
}

func marshalOptional[T any](v *T) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalOptional[T any](data json.RawMessage, out **T) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*out = &v
	return nil
}
