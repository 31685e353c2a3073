package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCancellationFee(t *testing.T) {
	serviceDate := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	const total = int64(1000)

	tests := []struct {
		name        string
		beforeStart time.Duration
		byCustomer  bool
		status      BookingStatus
		want        int64
	}{
		{"30 hours out is free", 30 * time.Hour, true, StatusAccepted, 0},
		{"exactly 24 hours out is free", 24 * time.Hour, true, StatusAccepted, 0},
		{"10 hours out pays 25%", 10 * time.Hour, true, StatusAccepted, 250},
		{"exactly 6 hours out pays 25%", 6 * time.Hour, true, StatusAccepted, 250},
		{"4 hours out pays 50%", 4 * time.Hour, true, StatusAccepted, 500},
		{"exactly 2 hours out pays 50%", 2 * time.Hour, true, StatusAccepted, 500},
		{"1 hour out pays 75%", 1 * time.Hour, true, StatusAccepted, 750},
		{"after the slot has passed pays 75%", -1 * time.Hour, true, StatusAccepted, 750},
		{"pending bookings are always free", 1 * time.Hour, true, StatusPending, 0},
		{"technician cancellations are free", 1 * time.Hour, false, StatusAccepted, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := serviceDate.Add(-tt.beforeStart)
			got := CancellationFee(now, serviceDate, total, tt.byCustomer, tt.status)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCancellationFeeRounds(t *testing.T) {
	serviceDate := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	now := serviceDate.Add(-10 * time.Hour)

	// 25% of 1001 = 250.25, rounds to 250.
	assert.Equal(t, int64(250), CancellationFee(now, serviceDate, 1001, true, StatusAccepted))
	// 25% of 1002 = 250.5, rounds to 251.
	assert.Equal(t, int64(251), CancellationFee(now, serviceDate, 1002, true, StatusAccepted))
}
