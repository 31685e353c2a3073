package booking

import (
	"time"

	"github.com/google/uuid"
)

// CounterOfferValidity is how long a technician's counter-offer stays open.
const CounterOfferValidity = 24 * time.Hour

// CounterOfferStatus represents the state of a price negotiation.
type CounterOfferStatus string

const (
	OfferStatusPending  CounterOfferStatus = "pending"
	OfferStatusAccepted CounterOfferStatus = "accepted"
	OfferStatusRejected CounterOfferStatus = "rejected"
	OfferStatusExpired  CounterOfferStatus = "expired"
)

// CounterOffer is a technician-proposed price revision the customer may
// accept or reject before work begins.
type CounterOffer struct {
	ProposedBy       uuid.UUID          `json:"proposed_by"`
	ProposedAt       time.Time          `json:"proposed_at"`
	ValidUntil       time.Time          `json:"valid_until"`
	Status           CounterOfferStatus `json:"status"`
	Reason           string             `json:"reason"`
	ProposedAmount   int64              `json:"proposed_amount"`
	ProposedPricing  Pricing            `json:"proposed_pricing"`
	CustomerResponse *OfferResponse     `json:"customer_response,omitempty"`
}

// OfferResponse records the customer's decision on a counter-offer.
type OfferResponse struct {
	RespondedAt time.Time `json:"responded_at"`
	Accepted    bool      `json:"accepted"`
	Notes       string    `json:"notes,omitempty"`
}

// NewCounterOffer creates a pending counter-offer valid for 24 hours, with
// the pricing breakdown rescaled to the proposed amount.
func NewCounterOffer(proposedBy uuid.UUID, proposedAmount int64, reason string, current Pricing, now time.Time) CounterOffer {
	return CounterOffer{
		ProposedBy:      proposedBy,
		ProposedAt:      now,
		ValidUntil:      now.Add(CounterOfferValidity),
		Status:          OfferStatusPending,
		Reason:          reason,
		ProposedAmount:  proposedAmount,
		ProposedPricing: current.RescaledTo(proposedAmount),
	}
}

// IsExpired returns true once the validity window has passed. Expiry is
// evaluated lazily on the next access, not by a background job.
func (o CounterOffer) IsExpired(now time.Time) bool {
	return now.After(o.ValidUntil)
}
