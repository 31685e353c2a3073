package booking

import "fmt"

// BookingStatus represents the current state of a booking in its lifecycle.
type BookingStatus string

const (
	StatusPending        BookingStatus = "pending"
	StatusMatching       BookingStatus = "matching"
	StatusAssigned       BookingStatus = "assigned"
	StatusAccepted       BookingStatus = "accepted"
	StatusRejected       BookingStatus = "rejected"
	StatusEnRoute        BookingStatus = "en_route"
	StatusArrived        BookingStatus = "arrived"
	StatusInProgress     BookingStatus = "in_progress"
	StatusPaused         BookingStatus = "paused"
	StatusCompleted      BookingStatus = "completed"
	StatusPaymentPending BookingStatus = "payment_pending"
	StatusVerified       BookingStatus = "verified"
	StatusCancelled      BookingStatus = "cancelled"
	StatusDisputed       BookingStatus = "disputed"
	StatusRefunded       BookingStatus = "refunded"
)

// validTransitions defines the state machine for booking status transitions.
// Escrow sub-state changes (fee release, fee refund) do not move the booking
// between states and therefore do not appear here.
var validTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:        {StatusMatching, StatusAssigned, StatusCancelled},
	StatusMatching:       {StatusAssigned, StatusCancelled},
	StatusAssigned:       {StatusAccepted, StatusRejected, StatusCancelled},
	StatusAccepted:       {StatusEnRoute, StatusCancelled},
	StatusRejected:       {},
	StatusEnRoute:        {StatusArrived, StatusCancelled},
	StatusArrived:        {StatusInProgress},
	StatusInProgress:     {StatusPaused, StatusCompleted},
	StatusPaused:         {StatusInProgress},
	StatusCompleted:      {StatusPaymentPending, StatusVerified, StatusInProgress, StatusDisputed},
	StatusPaymentPending: {StatusVerified, StatusDisputed},
	StatusVerified:       {StatusDisputed},
	StatusCancelled:      {},
	StatusDisputed:       {StatusRefunded},
	StatusRefunded:       {},
}

// cancellableStatuses are the states a booking may be cancelled from.
var cancellableStatuses = map[BookingStatus]bool{
	StatusPending:  true,
	StatusMatching: true,
	StatusAssigned: true,
	StatusAccepted: true,
	StatusEnRoute:  true,
}

// IsValid returns true if the status is a recognized booking status.
func (s BookingStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}
	for _, t := range allowed {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s BookingStatus) IsTerminal() bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return true
	}
	return len(allowed) == 0
}

// CanBeCancelled returns true if the booking can be cancelled from this status.
func (s BookingStatus) CanBeCancelled() bool {
	return cancellableStatuses[s]
}

// String returns the string representation of the status.
func (s BookingStatus) String() string {
	return string(s)
}

// ParseBookingStatus converts a string to a BookingStatus, returning an error if invalid.
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid booking status: %s", s)
	}
	return status, nil
}
