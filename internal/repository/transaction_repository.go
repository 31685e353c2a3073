package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dumu-waks/service-booking/internal/domain/payment"
	"github.com/dumu-waks/service-booking/pkg/domain"
)

// TransactionModel is the GORM model for the transactions ledger table.
type TransactionModel struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	BookingID   uuid.UUID  `gorm:"type:uuid;index;not null"`
	UserID      uuid.UUID  `gorm:"type:uuid;index;not null"`
	Type        string     `gorm:"not null;size:30"`
	Amount      int64      `gorm:"not null"`
	Currency    string     `gorm:"not null;size:3;default:'KES'"`
	Status      string     `gorm:"not null;size:20;index"`
	Provider    string     `gorm:"not null;size:30"`
	ProviderRef string     `gorm:"size:100"`
	CreatedAt   time.Time  `gorm:"not null"`
	CompletedAt *time.Time `gorm:""`
}

// TableName returns the table name for the GORM model.
func (TransactionModel) TableName() string {
	return "transactions"
}

// GormTransactionRepository is the GORM-backed implementation of the payment
// Gateway. Mobile-money transactions land here via the payment event
// consumer; platform payouts and refunds are written by the booking service.
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewGormTransactionRepository creates a new GormTransactionRepository.
func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

// FindTransaction retrieves a ledger transaction by ID.
func (r *GormTransactionRepository) FindTransaction(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	var model TransactionModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Transaction", id.String())
		}
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}

	return &payment.Transaction{
		ID:          model.ID,
		BookingID:   model.BookingID,
		UserID:      model.UserID,
		Type:        payment.TransactionType(model.Type),
		Amount:      model.Amount,
		Currency:    model.Currency,
		Status:      payment.TransactionStatus(model.Status),
		Provider:    model.Provider,
		ProviderRef: model.ProviderRef,
		CreatedAt:   model.CreatedAt,
		CompletedAt: model.CompletedAt,
	}, nil
}

// CreateTransaction appends a new ledger transaction.
func (r *GormTransactionRepository) CreateTransaction(ctx context.Context, tx *payment.Transaction) error {
	model := TransactionModel{
		ID:          tx.ID,
		BookingID:   tx.BookingID,
		UserID:      tx.UserID,
		Type:        string(tx.Type),
		Amount:      tx.Amount,
		Currency:    tx.Currency,
		Status:      string(tx.Status),
		Provider:    tx.Provider,
		ProviderRef: tx.ProviderRef,
		CreatedAt:   tx.CreatedAt,
		CompletedAt: tx.CompletedAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}
