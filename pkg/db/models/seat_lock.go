package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/skyfare-io/skyfare-backend/pkg/enums"
)

// SeatLock is a short-lived hold on seats during checkout. Active locks
// subtract from the availability seen by other sessions; stale locks are
// reclaimed by the cron sweep once expires_at has passed.
type SeatLock struct {
	ID         uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FlightID   uuid.UUID            `gorm:"column:flight_id;type:uuid;not null;index:ix_seat_locks_flight_cabin"`
	CabinClass enums.CabinClass     `gorm:"column:cabin_class;type:cabin_class;not null;index:ix_seat_locks_flight_cabin"`
	Seats      int                  `gorm:"column:seats;not null"`
	SessionID  string               `gorm:"column:session_id;not null"`
	BookingID  *uuid.UUID           `gorm:"column:booking_id;type:uuid"`
	Status     enums.SeatLockStatus `gorm:"column:status;type:seat_lock_status;not null;default:'active'"`
	ExpiresAt  time.Time            `gorm:"column:expires_at;not null"`
	CreatedAt  time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
