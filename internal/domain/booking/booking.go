package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/dumu-waks/service-booking/pkg/domain"
)

const bookingNumberChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Role labels recorded on history and cancellation entries. They mirror the
// auth package constants; kept local so the domain has no auth dependency.
const (
	roleCustomer   = "customer"
	roleTechnician = "technician"
)

// PaymentStatus represents the state of the remaining-balance payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
)

// Payment tracks the remaining balance owed after the booking fee.
type Payment struct {
	Status        PaymentStatus `json:"status"`
	Amount        int64         `json:"amount"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	TransactionID *uuid.UUID    `json:"transaction_id,omitempty"`
}

// StatusChange is a single entry in the append-only audit trail. Every
// transition appends exactly one entry; entries are never reordered,
// mutated or truncated.
type StatusChange struct {
	Status    BookingStatus `json:"status"`
	ChangedBy uuid.UUID     `json:"changed_by"`
	ChangedAt time.Time     `json:"changed_at"`
	Reason    string        `json:"reason,omitempty"`
	Notes     string        `json:"notes,omitempty"`
}

// Booking is the aggregate root for the booking domain. All lifecycle state
// (status, escrowed fee, counter-offer, completion request, remaining
// balance) lives on this single aggregate and is mutated only through its
// behavior methods.
type Booking struct {
	id                  uuid.UUID
	bookingNumber       string
	customerID          uuid.UUID
	technicianID        *uuid.UUID
	preferredTechnician *uuid.UUID
	serviceType         string
	description         string
	status              BookingStatus
	statusHistory       []StatusChange
	pricing             Pricing
	fee                 BookingFee
	counterOffer        *CounterOffer
	completionRequest   *CompletionRequest
	payment             Payment
	cancellation        *Cancellation
	serviceDate         time.Time
	actualStartTime     *time.Time
	actualEndTime       *time.Time
	actualDurationMin   *int64
	notes               string

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// generateBookingNumber creates a booking number in the format "DW-XXXXXXXX".
func generateBookingNumber() (string, error) {
	result := make([]byte, 8)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(bookingNumberChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate booking number: %w", err)
		}
		result[i] = bookingNumberChars[n.Int64()]
	}
	return "DW-" + string(result), nil
}

// NewBooking creates a new Booking aggregate in status pending with the
// booking fee computed at the default percentage.
func NewBooking(
	customerID uuid.UUID,
	preferredTechnician *uuid.UUID,
	serviceType string,
	description string,
	pricing Pricing,
	serviceDate time.Time,
	notes string,
) (*Booking, error) {
	if customerID == uuid.Nil {
		return nil, domain.NewValidationError("customer ID is required")
	}
	if serviceType == "" {
		return nil, domain.NewValidationError("service type is required")
	}
	if pricing.TotalAmount <= 0 {
		return nil, domain.NewValidationError("total amount must be positive")
	}
	if serviceDate.IsZero() {
		return nil, domain.NewValidationError("service date is required")
	}

	bookingNumber, err := generateBookingNumber()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	b := &Booking{
		id:                  uuid.New(),
		bookingNumber:       bookingNumber,
		customerID:          customerID,
		preferredTechnician: preferredTechnician,
		serviceType:         serviceType,
		description:         description,
		status:              StatusPending,
		pricing:             pricing,
		fee:                 NewBookingFee(pricing.TotalAmount, DefaultFeePercentage),
		payment:             Payment{Status: PaymentStatusPending},
		serviceDate:         serviceDate,
		notes:               notes,
		version:             1,
		createdAt:           now,
		updatedAt:           now,
	}
	b.appendHistory(StatusPending, customerID, "", "booking created", now)
	return b, nil
}

// Snapshot is the full externally visible state of a booking, used for
// persistence and DTO mapping.
type Snapshot struct {
	ID                  uuid.UUID
	BookingNumber       string
	CustomerID          uuid.UUID
	TechnicianID        *uuid.UUID
	PreferredTechnician *uuid.UUID
	ServiceType         string
	Description         string
	Status              BookingStatus
	StatusHistory       []StatusChange
	Pricing             Pricing
	Fee                 BookingFee
	CounterOffer        *CounterOffer
	CompletionRequest   *CompletionRequest
	Payment             Payment
	Cancellation        *Cancellation
	ServiceDate         time.Time
	ActualStartTime     *time.Time
	ActualEndTime       *time.Time
	ActualDurationMin   *int64
	Notes               string
	Version             int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Reconstruct rebuilds a Booking from persistence data (no validation).
func Reconstruct(s Snapshot) *Booking {
	return &Booking{
		id:                  s.ID,
		bookingNumber:       s.BookingNumber,
		customerID:          s.CustomerID,
		technicianID:        s.TechnicianID,
		preferredTechnician: s.PreferredTechnician,
		serviceType:         s.ServiceType,
		description:         s.Description,
		status:              s.Status,
		statusHistory:       s.StatusHistory,
		pricing:             s.Pricing,
		fee:                 s.Fee,
		counterOffer:        s.CounterOffer,
		completionRequest:   s.CompletionRequest,
		payment:             s.Payment,
		cancellation:        s.Cancellation,
		serviceDate:         s.ServiceDate,
		actualStartTime:     s.ActualStartTime,
		actualEndTime:       s.ActualEndTime,
		actualDurationMin:   s.ActualDurationMin,
		notes:               s.Notes,
		version:             s.Version,
		createdAt:           s.CreatedAt,
		updatedAt:           s.UpdatedAt,
	}
}

// Snapshot returns the booking's full state.
func (b *Booking) Snapshot() Snapshot {
	return Snapshot{
		ID:                  b.id,
		BookingNumber:       b.bookingNumber,
		CustomerID:          b.customerID,
		TechnicianID:        b.technicianID,
		PreferredTechnician: b.preferredTechnician,
		ServiceType:         b.serviceType,
		Description:         b.description,
		Status:              b.status,
		StatusHistory:       b.statusHistory,
		Pricing:             b.pricing,
		Fee:                 b.fee,
		CounterOffer:        b.counterOffer,
		CompletionRequest:   b.completionRequest,
		Payment:             b.payment,
		Cancellation:        b.cancellation,
		ServiceDate:         b.serviceDate,
		ActualStartTime:     b.actualStartTime,
		ActualEndTime:       b.actualEndTime,
		ActualDurationMin:   b.actualDurationMin,
		Notes:               b.notes,
		Version:             b.version,
		CreatedAt:           b.createdAt,
		UpdatedAt:           b.updatedAt,
	}
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// BookingNumber returns the human-readable booking number.
func (b *Booking) BookingNumber() string { return b.bookingNumber }

// CustomerID returns the owning customer's user ID.
func (b *Booking) CustomerID() uuid.UUID { return b.customerID }

// TechnicianID returns the assigned technician's user ID, or nil if unassigned.
func (b *Booking) TechnicianID() *uuid.UUID { return b.technicianID }

// Status returns the current booking status.
func (b *Booking) Status() BookingStatus { return b.status }

// StatusHistory returns the append-only audit trail.
func (b *Booking) StatusHistory() []StatusChange { return b.statusHistory }

// Pricing returns the current price breakdown.
func (b *Booking) Pricing() Pricing { return b.pricing }

// Fee returns the escrowed booking fee sub-state.
func (b *Booking) Fee() BookingFee { return b.fee }

// CounterOffer returns the active or concluded counter-offer, or nil.
func (b *Booking) CounterOffer() *CounterOffer { return b.counterOffer }

// CompletionRequest returns the completion request, or nil.
func (b *Booking) CompletionRequest() *CompletionRequest { return b.completionRequest }

// Payment returns the remaining-balance payment sub-state.
func (b *Booking) Payment() Payment { return b.payment }

// Cancellation returns the cancellation record, or nil.
func (b *Booking) Cancellation() *Cancellation { return b.cancellation }

// RemainingBalance returns the amount still owed after the booking fee.
func (b *Booking) RemainingBalance() int64 { return b.pricing.TotalAmount - b.fee.Amount }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// --- Behavior ---

// ConfirmFee validates the fee payment and escrows it. The transaction
// amount must equal the fee amount exactly. Moves the booking to assigned
// when a preferred technician was named, otherwise to matching.
func (b *Booking) ConfirmFee(transactionID uuid.UUID, transactionAmount int64, changedBy uuid.UUID) error {
	target := StatusMatching
	if b.preferredTechnician != nil {
		target = StatusAssigned
	}
	if b.status != StatusPending || !b.status.CanTransitionTo(target) {
		return domain.NewInvalidStateError(string(b.status), string(target))
	}
	if b.fee.Status != FeeStatusPending {
		return domain.NewInvalidStateError(string(b.fee.Status), string(FeeStatusHeld))
	}
	if transactionAmount != b.fee.Amount {
		return domain.NewAmountMismatchError(b.fee.Amount, transactionAmount)
	}

	now := time.Now().UTC()
	b.fee.Status = FeeStatusHeld
	b.fee.HeldInEscrow = true
	b.fee.PaidAt = &now
	b.fee.TransactionID = &transactionID

	if target == StatusAssigned {
		b.technicianID = b.preferredTechnician
	}
	b.status = target
	b.appendHistory(target, changedBy, "", "booking fee confirmed and held in escrow", now)
	return nil
}

// AssignTechnician assigns a technician found by the matching flow.
func (b *Booking) AssignTechnician(technicianID, changedBy uuid.UUID) error {
	if !b.status.CanTransitionTo(StatusAssigned) {
		return domain.NewInvalidStateError(string(b.status), string(StatusAssigned))
	}
	if technicianID == uuid.Nil {
		return domain.NewValidationError("technician ID is required")
	}
	now := time.Now().UTC()
	b.technicianID = &technicianID
	b.status = StatusAssigned
	b.appendHistory(StatusAssigned, changedBy, "", "technician assigned", now)
	return nil
}

// Accept commits the assigned technician to the job. Requires the booking
// fee to be settled so the technician is not committing to an unpaid job.
func (b *Booking) Accept(changedBy uuid.UUID) error {
	if !b.status.CanTransitionTo(StatusAccepted) {
		return domain.NewInvalidStateError(string(b.status), string(StatusAccepted))
	}
	if !b.fee.Settled() {
		return domain.NewValidationError("booking fee must be paid before the job can be accepted")
	}
	now := time.Now().UTC()
	b.status = StatusAccepted
	b.appendHistory(StatusAccepted, changedBy, "", "", now)
	return nil
}

// Reject declines the job and clears the technician so the booking can be
// re-matched or refunded.
func (b *Booking) Reject(changedBy uuid.UUID, reason string) error {
	if !b.status.CanTransitionTo(StatusRejected) {
		return domain.NewInvalidStateError(string(b.status), string(StatusRejected))
	}
	now := time.Now().UTC()
	b.technicianID = nil
	b.status = StatusRejected
	b.appendHistory(StatusRejected, changedBy, reason, "", now)
	return nil
}

// SubmitCounterOffer attaches a pending counter-offer. Only one offer can be
// live at a time; a new one may be submitted once the previous offer has
// been rejected or expired.
func (b *Booking) SubmitCounterOffer(proposedBy uuid.UUID, proposedAmount int64, reason string, now time.Time) error {
	if b.status != StatusAssigned {
		return domain.NewInvalidStateError(string(b.status), string(StatusAssigned))
	}
	if proposedAmount <= 0 {
		return domain.NewValidationError("proposed amount must be positive")
	}
	if reason == "" {
		return domain.NewValidationError("a reason for the counter-offer is required")
	}
	if b.counterOffer != nil && b.counterOffer.Status == OfferStatusPending {
		if !b.counterOffer.IsExpired(now) {
			return domain.NewInvalidStateError(string(OfferStatusPending), string(OfferStatusPending))
		}
		b.counterOffer.Status = OfferStatusExpired
	}

	offer := NewCounterOffer(proposedBy, proposedAmount, reason, b.pricing, now)
	b.counterOffer = &offer
	b.appendHistory(StatusAssigned, proposedBy, reason, fmt.Sprintf("counter-offer submitted: %d %s", proposedAmount, b.pricing.Currency), now)
	return nil
}

// RespondToCounterOffer records the customer's decision. Acceptance rewrites
// the pricing with the proposed breakdown, recomputes the booking fee from
// the new total, and moves the booking to accepted. Rejection leaves the
// booking assigned. An offer past its validity window is marked expired and
// the response is refused.
func (b *Booking) RespondToCounterOffer(changedBy uuid.UUID, accepted bool, notes string, now time.Time) error {
	if b.status != StatusAssigned {
		return domain.NewInvalidStateError(string(b.status), string(StatusAccepted))
	}
	if b.counterOffer == nil || b.counterOffer.Status != OfferStatusPending {
		current := "none"
		if b.counterOffer != nil {
			current = string(b.counterOffer.Status)
		}
		return domain.NewInvalidStateError(current, string(OfferStatusPending))
	}
	if b.counterOffer.IsExpired(now) {
		b.counterOffer.Status = OfferStatusExpired
		return domain.NewExpiredError("counter-offer has expired")
	}

	b.counterOffer.CustomerResponse = &OfferResponse{
		RespondedAt: now,
		Accepted:    accepted,
		Notes:       notes,
	}

	if !accepted {
		b.counterOffer.Status = OfferStatusRejected
		b.appendHistory(StatusAssigned, changedBy, "", "counter-offer rejected", now)
		return nil
	}

	b.counterOffer.Status = OfferStatusAccepted
	b.pricing = b.counterOffer.ProposedPricing
	b.fee.Amount = FeeAmount(b.pricing.TotalAmount, b.fee.Percentage)
	b.status = StatusAccepted
	b.appendHistory(StatusAccepted, changedBy, "", "counter-offer accepted", now)
	return nil
}

// MarkEnRoute records the technician heading out and starts the clock.
func (b *Booking) MarkEnRoute(changedBy uuid.UUID) error {
	if !b.status.CanTransitionTo(StatusEnRoute) {
		return domain.NewInvalidStateError(string(b.status), string(StatusEnRoute))
	}
	now := time.Now().UTC()
	b.status = StatusEnRoute
	b.actualStartTime = &now
	b.appendHistory(StatusEnRoute, changedBy, "", "", now)
	return nil
}

// MarkArrived records the technician at the job site.
func (b *Booking) MarkArrived(changedBy uuid.UUID) error {
	if !b.status.CanTransitionTo(StatusArrived) {
		return domain.NewInvalidStateError(string(b.status), string(StatusArrived))
	}
	now := time.Now().UTC()
	b.status = StatusArrived
	b.appendHistory(StatusArrived, changedBy, "", "", now)
	return nil
}

// StartWork begins or resumes the job.
func (b *Booking) StartWork(changedBy uuid.UUID) error {
	if b.status != StatusArrived && b.status != StatusPaused {
		return domain.NewInvalidStateError(string(b.status), string(StatusInProgress))
	}
	now := time.Now().UTC()
	b.status = StatusInProgress
	b.appendHistory(StatusInProgress, changedBy, "", "", now)
	return nil
}

// Pause suspends an in-progress job (parts run, customer unavailable, etc.).
func (b *Booking) Pause(changedBy uuid.UUID, reason string) error {
	if !b.status.CanTransitionTo(StatusPaused) {
		return domain.NewInvalidStateError(string(b.status), string(StatusPaused))
	}
	now := time.Now().UTC()
	b.status = StatusPaused
	b.appendHistory(StatusPaused, changedBy, reason, "", now)
	return nil
}

// RequestCompletion records the technician's claim that work is done, sets
// the end time and duration, and attaches a pending completion request.
func (b *Booking) RequestCompletion(changedBy uuid.UUID, notes string) error {
	if b.status != StatusInProgress {
		return domain.NewInvalidStateError(string(b.status), string(StatusCompleted))
	}
	now := time.Now().UTC()
	b.actualEndTime = &now
	if b.actualStartTime != nil {
		minutes := int64(now.Sub(*b.actualStartTime).Minutes())
		b.actualDurationMin = &minutes
	}

	req := NewCompletionRequest(changedBy, notes, now)
	b.completionRequest = &req
	b.status = StatusCompleted
	b.appendHistory(StatusCompleted, changedBy, "", "completion requested", now)
	return nil
}

// ConfirmCompletion records the customer's (or support's) sign-off decision.
// Approval moves the booking to payment_pending when a remaining balance is
// still owed, otherwise straight to verified; the remaining amount is
// returned so the caller can surface it. Rejection sends the booking back
// to in_progress.
func (b *Booking) ConfirmCompletion(changedBy uuid.UUID, approved bool, feedback string, issues []string) (int64, error) {
	if b.status != StatusCompleted {
		return 0, domain.NewInvalidStateError(string(b.status), string(StatusVerified))
	}
	if b.completionRequest == nil || b.completionRequest.Status != CompletionStatusPending {
		current := "none"
		if b.completionRequest != nil {
			current = string(b.completionRequest.Status)
		}
		return 0, domain.NewInvalidStateError(current, string(CompletionStatusPending))
	}

	now := time.Now().UTC()
	b.completionRequest.CustomerResponse = &CompletionResponse{
		RespondedAt: now,
		Approved:    approved,
		Feedback:    feedback,
		Issues:      issues,
	}

	if !approved {
		b.completionRequest.Status = CompletionStatusRejected
		b.status = StatusInProgress
		b.appendHistory(StatusInProgress, changedBy, "completion rejected", feedback, now)
		return 0, nil
	}

	b.completionRequest.Status = CompletionStatusApproved

	remaining := b.RemainingBalance()
	if remaining > 0 && b.payment.Status != PaymentStatusCompleted {
		b.payment.Amount = remaining
		b.status = StatusPaymentPending
		b.appendHistory(StatusPaymentPending, changedBy, "", fmt.Sprintf("remaining balance due: %d %s", remaining, b.pricing.Currency), now)
		return remaining, nil
	}

	b.status = StatusVerified
	b.appendHistory(StatusVerified, changedBy, "", "completion verified", now)
	return 0, nil
}

// ConfirmBalancePayment settles the remaining balance. The transaction
// amount must equal the outstanding balance exactly.
func (b *Booking) ConfirmBalancePayment(transactionID uuid.UUID, transactionAmount int64, changedBy uuid.UUID) error {
	if b.status != StatusPaymentPending {
		return domain.NewInvalidStateError(string(b.status), string(StatusVerified))
	}
	if transactionAmount != b.payment.Amount {
		return domain.NewAmountMismatchError(b.payment.Amount, transactionAmount)
	}

	now := time.Now().UTC()
	b.payment.Status = PaymentStatusCompleted
	b.payment.PaidAt = &now
	b.payment.TransactionID = &transactionID
	b.status = StatusVerified
	b.appendHistory(StatusVerified, changedBy, "", "remaining balance paid", now)
	return nil
}

// CanReleaseFee reports whether the escrowed fee is eligible for payout.
// Only a held fee on a verified booking can be released; released and
// refunded are mutually exclusive terminal fee states.
func (b *Booking) CanReleaseFee() error {
	if b.status != StatusVerified {
		return domain.NewInvalidStateError(string(b.status), string(StatusVerified))
	}
	if b.fee.Status != FeeStatusHeld {
		return domain.NewInvalidStateError(string(b.fee.Status), string(FeeStatusReleased))
	}
	return nil
}

// ReleaseFee pays the escrowed fee out to the technician. The payout
// transaction is recorded separately from the customer's original escrow
// payment reference.
func (b *Booking) ReleaseFee(releaseTransactionID uuid.UUID, changedBy uuid.UUID) error {
	if err := b.CanReleaseFee(); err != nil {
		return err
	}

	now := time.Now().UTC()
	b.fee.Status = FeeStatusReleased
	b.fee.HeldInEscrow = false
	b.fee.ReleasedAt = &now
	b.fee.ReleaseTransactionID = &releaseTransactionID
	b.appendHistory(StatusVerified, changedBy, "", "booking fee released to technician", now)
	return nil
}

// CanRefundFee reports whether the escrowed fee is eligible for refund.
// Allowed only while the fee is held and the booking has fallen through
// (cancelled, disputed or rejected).
func (b *Booking) CanRefundFee() error {
	if b.fee.Status != FeeStatusHeld {
		return domain.NewInvalidStateError(string(b.fee.Status), string(FeeStatusRefunded))
	}
	switch b.status {
	case StatusCancelled, StatusDisputed, StatusRejected:
	default:
		return domain.NewInvalidStateError(string(b.status), string(FeeStatusRefunded))
	}
	return nil
}

// RefundFee returns the escrowed fee to the customer. The booking status
// does not change.
func (b *Booking) RefundFee(refundTransactionID uuid.UUID, changedBy uuid.UUID, reason string) error {
	if err := b.CanRefundFee(); err != nil {
		return err
	}

	now := time.Now().UTC()
	b.fee.Status = FeeStatusRefunded
	b.fee.HeldInEscrow = false
	b.fee.RefundedAt = &now
	b.fee.RefundTransactionID = &refundTransactionID
	b.fee.Notes = reason
	b.appendHistory(b.status, changedBy, reason, "booking fee refunded to customer", now)
	return nil
}

// Cancel terminates the booking and computes the cancellation fee owed.
func (b *Booking) Cancel(changedBy uuid.UUID, role string, reason string, now time.Time) error {
	if !b.status.CanBeCancelled() {
		return domain.NewInvalidStateError(string(b.status), string(StatusCancelled))
	}

	fee := CancellationFee(now, b.serviceDate, b.pricing.TotalAmount, role == roleCustomer, b.status)
	b.cancellation = &Cancellation{
		CancelledBy:     changedBy,
		CancelledByRole: role,
		CancelledAt:     now,
		Reason:          reason,
		CancellationFee: fee,
	}
	b.status = StatusCancelled
	b.appendHistory(StatusCancelled, changedBy, reason, "", now)
	return nil
}

// Dispute flags completed or verified work for support review.
func (b *Booking) Dispute(changedBy uuid.UUID, reason string) error {
	if !b.status.CanTransitionTo(StatusDisputed) {
		return domain.NewInvalidStateError(string(b.status), string(StatusDisputed))
	}
	if reason == "" {
		return domain.NewValidationError("a reason for the dispute is required")
	}
	now := time.Now().UTC()
	b.status = StatusDisputed
	b.appendHistory(StatusDisputed, changedBy, reason, "", now)
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
	b.updatedAt = time.Now().UTC()
}

func (b *Booking) appendHistory(status BookingStatus, changedBy uuid.UUID, reason, notes string, at time.Time) {
	b.statusHistory = append(b.statusHistory, StatusChange{
		Status:    status,
		ChangedBy: changedBy,
		ChangedAt: at,
		Reason:    reason,
		Notes:     notes,
	})
	b.updatedAt = at
}
