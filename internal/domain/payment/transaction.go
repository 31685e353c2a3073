package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TransactionType classifies what the money movement was for.
type TransactionType string

const (
	TypeBookingFee TransactionType = "booking_fee"
	TypeFeeRelease TransactionType = "fee_release"
	TypeFeeRefund  TransactionType = "fee_refund"
	TypeBalance    TransactionType = "balance"
)

// TransactionStatus represents the state of a money movement.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// Transaction records a single money movement in the ledger. Customer-side
// transactions (fee, balance) originate from the mobile-money provider;
// platform-side ones (release, refund) are created here.
type Transaction struct {
	ID          uuid.UUID
	BookingID   uuid.UUID
	UserID      uuid.UUID
	Type        TransactionType
	Amount      int64
	Currency    string
	Status      TransactionStatus
	Provider    string
	ProviderRef string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// NewTransaction creates a completed ledger entry for a platform-initiated
// movement (fee release or refund).
func NewTransaction(bookingID, userID uuid.UUID, txType TransactionType, amount int64, currency string) *Transaction {
	now := time.Now().UTC()
	return &Transaction{
		ID:          uuid.New(),
		BookingID:   bookingID,
		UserID:      userID,
		Type:        txType,
		Amount:      amount,
		Currency:    currency,
		Status:      StatusCompleted,
		Provider:    "platform",
		CreatedAt:   now,
		CompletedAt: &now,
	}
}

// Gateway is the payment-side collaborator the booking service consumes. The
// concrete implementation is backed by the transaction ledger table, fed by
// the mobile-money callback pipeline.
type Gateway interface {
	// FindTransaction retrieves a ledger transaction by ID.
	FindTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// CreateTransaction appends a new ledger transaction.
	CreateTransaction(ctx context.Context, tx *Transaction) error
}
