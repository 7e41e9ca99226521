package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/skyfare-io/skyfare-backend/pkg/enums"
)

// BookingStatusHistory is the append-only transition log per booking.
// PrevStatus is nil only for the first entry. Rows are never updated
// or deleted; the ordered NewStatus sequence must always be a valid
// walk of the booking lifecycle graph.
type BookingStatusHistory struct {
	ID         uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BookingID  uuid.UUID             `gorm:"column:booking_id;type:uuid;not null;index:ix_booking_status_history_booking"`
	PrevStatus *enums.BookingStatus  `gorm:"column:prev_status;type:booking_status"`
	NewStatus  enums.BookingStatus   `gorm:"column:new_status;type:booking_status;not null"`
	Reason     string                `gorm:"column:reason"`
	Actor      enums.TransitionActor `gorm:"column:actor;type:transition_actor;not null;default:'system'"`
	Metadata   json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt  time.Time             `gorm:"column:created_at;autoCreateTime"`
}
