package events

import (
	"time"

	"github.com/google/uuid"
)

// Kafka topics the booking service talks to.
const (
	TopicBookingEvents = "booking.events"
	TopicPaymentEvents = "payment.events"
)

// Event types published on booking.events.
const (
	BookingCreated               = "booking.created"
	BookingFeeConfirmed          = "booking.fee_confirmed"
	BookingTechnicianAssigned    = "booking.technician_assigned"
	BookingAccepted              = "booking.accepted"
	BookingRejected              = "booking.rejected"
	BookingCounterOfferSubmitted = "booking.counter_offer_submitted"
	BookingCounterOfferResponded = "booking.counter_offer_responded"
	BookingEnRoute               = "booking.en_route"
	BookingArrived               = "booking.arrived"
	BookingInProgress            = "booking.in_progress"
	BookingPaused                = "booking.paused"
	BookingCompletionRequested   = "booking.completion_requested"
	BookingPaymentPending        = "booking.payment_pending"
	BookingVerified              = "booking.verified"
	BookingCancelled             = "booking.cancelled"
	BookingDisputed              = "booking.disputed"
	BookingFeeReleased           = "booking.fee_released"
	BookingFeeRefunded           = "booking.fee_refunded"
	SupportTicketCreated         = "support.ticket_created"
)

// Event types consumed from payment.events.
const (
	PaymentCompleted = "payment.completed"
)

// Payment purposes carried on PaymentCompletedEvent.
const (
	PurposeBookingFee = "booking_fee"
	PurposeBalance    = "balance"
)

// BookingEvent is the payload for all booking lifecycle notifications. The
// notification service fans these out to SMS / push per counterparty.
type BookingEvent struct {
	BookingID     uuid.UUID  `json:"booking_id"`
	BookingNumber string     `json:"booking_number"`
	CustomerID    uuid.UUID  `json:"customer_id"`
	TechnicianID  *uuid.UUID `json:"technician_id,omitempty"`
	Status        string     `json:"status"`
	Amount        int64      `json:"amount,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// TicketCreatedEvent is published when a support ticket is auto-raised.
type TicketCreatedEvent struct {
	TicketID   uuid.UUID `json:"ticket_id"`
	BookingID  uuid.UUID `json:"booking_id"`
	RaisedBy   uuid.UUID `json:"raised_by"`
	Subject    string    `json:"subject"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PaymentCompletedEvent arrives on payment.events when the mobile-money
// pipeline confirms a customer payment (the M-Pesa callback analog).
type PaymentCompletedEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	BookingID     uuid.UUID `json:"booking_id"`
	PayerID       uuid.UUID `json:"payer_id"`
	Purpose       string    `json:"purpose"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	ProviderRef   string    `json:"provider_ref"`
	OccurredAt    time.Time `json:"occurred_at"`
}
