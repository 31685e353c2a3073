package booking

import (
	"time"

	"github.com/google/uuid"
)

// FeeStatus represents the lifecycle of the escrowed booking fee.
type FeeStatus string

const (
	FeeStatusPending  FeeStatus = "pending"
	FeeStatusHeld     FeeStatus = "held"
	FeeStatusReleased FeeStatus = "released"
	FeeStatusRefunded FeeStatus = "refunded"

	// FeeStatusPaid is a legacy status still present on bookings migrated
	// from the old payments table; it is treated the same as held.
	FeeStatusPaid FeeStatus = "paid"
)

// DefaultFeePercentage is the share of the total price collected up front.
const DefaultFeePercentage = 20

// BookingFee is the refundable deposit held in escrow until the job is
// verified (released to the technician) or the booking falls through
// (refunded to the customer).
type BookingFee struct {
	Amount               int64      `json:"amount"`
	Percentage           int64      `json:"percentage"`
	Status               FeeStatus  `json:"status"`
	HeldInEscrow         bool       `json:"held_in_escrow"`
	PaidAt               *time.Time `json:"paid_at,omitempty"`
	ReleasedAt           *time.Time `json:"released_at,omitempty"`
	RefundedAt           *time.Time `json:"refunded_at,omitempty"`
	TransactionID        *uuid.UUID `json:"transaction_id,omitempty"`
	ReleaseTransactionID *uuid.UUID `json:"release_transaction_id,omitempty"`
	RefundTransactionID  *uuid.UUID `json:"refund_transaction_id,omitempty"`
	Notes                string     `json:"notes,omitempty"`
}

// NewBookingFee computes the deposit for the given total at the given percentage.
func NewBookingFee(totalAmount, percentage int64) BookingFee {
	return BookingFee{
		Amount:     FeeAmount(totalAmount, percentage),
		Percentage: percentage,
		Status:     FeeStatusPending,
	}
}

// FeeAmount computes round(total × percentage / 100).
func FeeAmount(totalAmount, percentage int64) int64 {
	return roundAmount(float64(totalAmount) * float64(percentage) / 100)
}

// Settled returns true if the fee has been paid and not refunded, i.e. the
// technician can safely commit to the job.
func (f BookingFee) Settled() bool {
	switch f.Status {
	case FeeStatusHeld, FeeStatusPaid, FeeStatusReleased:
		return true
	}
	return false
}
