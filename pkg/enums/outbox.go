package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateBooking  OutboxAggregateType = "booking"
	AggregateSeatLock OutboxAggregateType = "seat_lock"
	AggregateLedger   OutboxAggregateType = "ledger_entry"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateBooking,
	AggregateSeatLock,
	AggregateLedger,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventBookingCreated   OutboxEventType = "booking_created"
	EventBookingConfirmed OutboxEventType = "booking_confirmed"
	EventBookingCancelled OutboxEventType = "booking_cancelled"
	EventPaymentReceived  OutboxEventType = "payment_received"
	EventPaymentFailed    OutboxEventType = "payment_failed"
	EventRefundProcessed  OutboxEventType = "refund_processed"
	EventSeatLockExpired  OutboxEventType = "seat_lock_expired"

	EventNotificationRequested OutboxEventType = "notification_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventBookingCreated,
	EventBookingConfirmed,
	EventBookingCancelled,
	EventPaymentReceived,
	EventPaymentFailed,
	EventRefundProcessed,
	EventSeatLockExpired,
	EventNotificationRequested,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
