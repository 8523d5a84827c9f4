package enums

import "fmt"

// BookingStatus is the lifecycle state of a service booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

var validBookingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusConfirmed,
	BookingStatusCancelled,
	BookingStatusCompleted,
}

// bookingTransitions lists the legal source states for each target state.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusConfirmed: {BookingStatusPending},
	BookingStatusCancelled: {BookingStatusPending},
	BookingStatusCompleted: {BookingStatusPending, BookingStatusConfirmed},
}

// String implements fmt.Stringer.
func (b BookingStatus) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BookingStatus.
func (b BookingStatus) IsValid() bool {
	for _, candidate := range validBookingStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether moving from b to next is allowed.
func (b BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, from := range bookingTransitions[next] {
		if from == b {
			return true
		}
	}
	return false
}

// ParseBookingStatus converts raw input into a BookingStatus.
func ParseBookingStatus(value string) (BookingStatus, error) {
	for _, candidate := range validBookingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid booking status %q", value)
}
