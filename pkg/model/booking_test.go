package model

import "testing"

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from string
		to   string
		want bool
	}{
		{BookingPending, BookingConfirmed, true},
		{BookingPending, BookingCancelled, true},
		{BookingPending, BookingCompleted, false},
		{BookingConfirmed, BookingCompleted, true},
		{BookingConfirmed, BookingCancelled, true},
		{BookingConfirmed, BookingPending, false},
		{BookingCompleted, BookingCancelled, false},
		{BookingCompleted, BookingConfirmed, false},
		{BookingCancelled, BookingConfirmed, false},
		{BookingCancelled, BookingCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			b := &Booking{Status: tt.from}
			if got := b.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo(%q) from %q = %v, want %v", tt.to, tt.from, got, tt.want)
			}
		})
	}
}

func TestHoldsInventory(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{BookingPending, true},
		{BookingConfirmed, true},
		{BookingCompleted, false},
		{BookingCancelled, false},
	}

	for _, tt := range tests {
		b := &Booking{Status: tt.status}
		if got := b.HoldsInventory(); got != tt.want {
			t.Errorf("HoldsInventory() for %q = %v, want %v", tt.status, got, tt.want)
		}
	}
}
