package booking

import (
	"time"

	"github.com/google/uuid"
)

// Cancellation records who cancelled a booking, when, why, and at what cost.
// It is set exactly once and never unset.
type Cancellation struct {
	CancelledBy     uuid.UUID `json:"cancelled_by"`
	CancelledByRole string    `json:"cancelled_by_role"`
	CancelledAt     time.Time `json:"cancelled_at"`
	Reason          string    `json:"reason"`
	CancellationFee int64     `json:"cancellation_fee"`
}

// Cancellation fee tiers. A customer cancelling a non-pending booking inside
// 24 hours of the scheduled slot pays a share of the total that grows as the
// slot approaches.
const (
	cancelTierFullWindow = 24 * time.Hour
	cancelTierMid        = 6 * time.Hour
	cancelTierLate       = 2 * time.Hour

	cancelRateLate  = 0.75
	cancelRateMid   = 0.50
	cancelRateEarly = 0.25
)

// CancellationFee computes the fee owed when the booking is cancelled at
// `now` for a job scheduled at `serviceDate`. Technician- and
// platform-initiated cancellations are always free, as are cancellations of
// bookings still pending or more than 24 hours out.
func CancellationFee(now, serviceDate time.Time, totalAmount int64, customerCancelling bool, status BookingStatus) int64 {
	if !customerCancelling || status == StatusPending {
		return 0
	}

	untilStart := serviceDate.Sub(now)
	if untilStart >= cancelTierFullWindow {
		return 0
	}

	var rate float64
	switch {
	case untilStart < cancelTierLate:
		rate = cancelRateLate
	case untilStart < cancelTierMid:
		rate = cancelRateMid
	default:
		rate = cancelRateEarly
	}
	return roundAmount(float64(totalAmount) * rate)
}
