package booking

import (
	"time"

	"github.com/google/uuid"
)

// CompletionEscalationWindow is how long the customer has to respond to a
// completion request before support may step in.
const CompletionEscalationWindow = 48 * time.Hour

// CompletionStatus represents the state of a completion sign-off.
type CompletionStatus string

const (
	CompletionStatusPending  CompletionStatus = "pending"
	CompletionStatusApproved CompletionStatus = "approved"
	CompletionStatusRejected CompletionStatus = "rejected"
)

// CompletionRequest is the technician's claim that the job is done, awaiting
// customer or support sign-off.
type CompletionRequest struct {
	RequestedBy        uuid.UUID           `json:"requested_by"`
	RequestedAt        time.Time           `json:"requested_at"`
	EscalationDeadline time.Time           `json:"escalation_deadline"`
	Status             CompletionStatus    `json:"status"`
	Notes              string              `json:"notes,omitempty"`
	CustomerResponse   *CompletionResponse `json:"customer_response,omitempty"`
}

// CompletionResponse records the sign-off decision.
type CompletionResponse struct {
	RespondedAt time.Time `json:"responded_at"`
	Approved    bool      `json:"approved"`
	Feedback    string    `json:"feedback,omitempty"`
	Issues      []string  `json:"issues,omitempty"`
}

// NewCompletionRequest creates a pending completion request with a 48h
// escalation deadline.
func NewCompletionRequest(requestedBy uuid.UUID, notes string, now time.Time) CompletionRequest {
	return CompletionRequest{
		RequestedBy:        requestedBy,
		RequestedAt:        now,
		EscalationDeadline: now.Add(CompletionEscalationWindow),
		Status:             CompletionStatusPending,
		Notes:              notes,
	}
}
