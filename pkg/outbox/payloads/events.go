package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/skyfare-io/skyfare-backend/pkg/enums"
)

// BookingCreatedEvent signals a booking entered the lifecycle.
type BookingCreatedEvent struct {
	BookingID  uuid.UUID        `json:"booking_id"`
	Reference  string           `json:"reference"`
	UserID     uuid.UUID        `json:"user_id"`
	FlightID   uuid.UUID        `json:"flight_id"`
	CabinClass enums.CabinClass `json:"cabin_class"`
	Seats      int              `json:"seats"`
}

// BookingConfirmedEvent is emitted once payment clears and seats are committed.
type BookingConfirmedEvent struct {
	BookingID       uuid.UUID `json:"booking_id"`
	Reference       string    `json:"reference"`
	UserID          uuid.UUID `json:"user_id"`
	FlightID        uuid.UUID `json:"flight_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	AmountCents     int64     `json:"amount_cents"`
	Currency        string    `json:"currency"`
	ConfirmedAt     time.Time `json:"confirmed_at"`
}

// BookingCancelledEvent is emitted for both user and system cancellations.
type BookingCancelledEvent struct {
	BookingID     uuid.UUID           `json:"booking_id"`
	Reference     string              `json:"reference"`
	UserID        uuid.UUID           `json:"user_id"`
	FlightID      uuid.UUID           `json:"flight_id"`
	Status        enums.BookingStatus `json:"status"`
	Reason        string              `json:"reason,omitempty"`
	SeatsRestored int                 `json:"seats_restored"`
	CancelledAt   time.Time           `json:"cancelled_at"`
}

// PaymentReceivedEvent mirrors the ledger charge entry.
type PaymentReceivedEvent struct {
	BookingID       uuid.UUID `json:"booking_id"`
	Reference       string    `json:"reference"`
	EventID         string    `json:"event_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	AmountCents     int64     `json:"amount_cents"`
	Currency        string    `json:"currency"`
}

// PaymentFailedEvent is emitted when the gateway reports a failed intent.
type PaymentFailedEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	Reference     string    `json:"reference"`
	EventID       string    `json:"event_id"`
	FailureReason string    `json:"failure_reason,omitempty"`
	SeatsRestored int       `json:"seats_restored"`
}

// RefundProcessedEvent carries full or partial refund results.
type RefundProcessedEvent struct {
	BookingID     uuid.UUID           `json:"booking_id"`
	Reference     string              `json:"reference"`
	EventID       string              `json:"event_id"`
	AmountCents   int64               `json:"amount_cents"`
	Currency      string              `json:"currency"`
	FullRefund    bool                `json:"full_refund"`
	Status        enums.BookingStatus `json:"status"`
	SeatsRestored int                 `json:"seats_restored"`
}

// SeatLockExpiredEvent reports a hold reclaimed by the TTL sweep.
type SeatLockExpiredEvent struct {
	SeatLockID uuid.UUID        `json:"seat_lock_id"`
	FlightID   uuid.UUID        `json:"flight_id"`
	CabinClass enums.CabinClass `json:"cabin_class"`
	Seats      int              `json:"seats"`
	SessionID  string           `json:"session_id"`
	ExpiredAt  time.Time        `json:"expired_at"`
}

// NotificationRequestedEvent tells downstream systems to contact the traveler.
type NotificationRequestedEvent struct {
	BookingID uuid.UUID `json:"booking_id"`
	Reference string    `json:"reference"`
	UserID    uuid.UUID `json:"user_id"`
	Type      string    `json:"type"`
}
