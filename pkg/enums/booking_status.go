package enums

import "fmt"

// BookingStatus maps to the booking_status enum in Postgres.
type BookingStatus string

const (
	BookingStatusInitiated     BookingStatus = "initiated"
	BookingStatusPending       BookingStatus = "pending"
	BookingStatusReserved      BookingStatus = "reserved"
	BookingStatusPaid          BookingStatus = "paid"
	BookingStatusConfirmed     BookingStatus = "confirmed"
	BookingStatusCheckedIn     BookingStatus = "checked_in"
	BookingStatusBoarded       BookingStatus = "boarded"
	BookingStatusCompleted     BookingStatus = "completed"
	BookingStatusCancelled     BookingStatus = "cancelled"
	BookingStatusRefunded      BookingStatus = "refunded"
	BookingStatusExpired       BookingStatus = "expired"
	BookingStatusPaymentFailed BookingStatus = "payment_failed"
	BookingStatusNoShow        BookingStatus = "no_show"
)

var validBookingStatuses = []BookingStatus{
	BookingStatusInitiated,
	BookingStatusPending,
	BookingStatusReserved,
	BookingStatusPaid,
	BookingStatusConfirmed,
	BookingStatusCheckedIn,
	BookingStatusBoarded,
	BookingStatusCompleted,
	BookingStatusCancelled,
	BookingStatusRefunded,
	BookingStatusExpired,
	BookingStatusPaymentFailed,
	BookingStatusNoShow,
}

// bookingTransitions is the full edge set of the booking lifecycle.
// Any (from, to) pair not listed here is an illegal transition.
// Refunds stay reachable from post-payment terminal-looking states
// (completed, cancelled, no_show) because chargebacks and goodwill
// refunds arrive after the fact. payment_failed is the only state
// that loops back to pending, modeling a payment retry.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusInitiated:     {BookingStatusPending, BookingStatusReserved, BookingStatusExpired, BookingStatusCancelled},
	BookingStatusPending:       {BookingStatusReserved, BookingStatusPaid, BookingStatusExpired, BookingStatusCancelled, BookingStatusPaymentFailed},
	BookingStatusReserved:      {BookingStatusPaid, BookingStatusExpired, BookingStatusCancelled},
	BookingStatusPaid:          {BookingStatusConfirmed, BookingStatusCancelled, BookingStatusRefunded},
	BookingStatusConfirmed:     {BookingStatusCheckedIn, BookingStatusCancelled, BookingStatusRefunded, BookingStatusNoShow},
	BookingStatusCheckedIn:     {BookingStatusBoarded, BookingStatusNoShow},
	BookingStatusBoarded:       {BookingStatusCompleted},
	BookingStatusCompleted:     {BookingStatusRefunded},
	BookingStatusCancelled:     {BookingStatusRefunded},
	BookingStatusNoShow:        {BookingStatusRefunded},
	BookingStatusPaymentFailed: {BookingStatusPending, BookingStatusCancelled},
	BookingStatusRefunded:      {},
	BookingStatusExpired:       {},
}

// String implements fmt.Stringer.
func (s BookingStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known BookingStatus.
func (s BookingStatus) IsValid() bool {
	for _, candidate := range validBookingStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status has no outgoing edges.
func (s BookingStatus) IsTerminal() bool {
	edges, ok := bookingTransitions[s]
	return ok && len(edges) == 0
}

// CanTransitionTo reports whether the edge (s, to) is part of the lifecycle graph.
func (s BookingStatus) CanTransitionTo(to BookingStatus) bool {
	for _, candidate := range bookingTransitions[s] {
		if candidate == to {
			return true
		}
	}
	return false
}

// IsValidTransition reports whether moving from `from` to `to` is legal.
// A nil `from` means the booking has no history yet; the only legal
// first status is initiated.
func IsValidTransition(from *BookingStatus, to BookingStatus) bool {
	if from == nil {
		return to == BookingStatusInitiated
	}
	return from.CanTransitionTo(to)
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
