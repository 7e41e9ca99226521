package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/skyfare-io/skyfare-backend/pkg/enums"
)

// LedgerEntry is one immutable monetary movement tied to a booking.
// The unique index on (event_id, booking_id, type) is the dedup guarantee:
// two racing deliveries of the same gateway event can both reach the
// insert, but only one commits.
type LedgerEntry struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BookingID   uuid.UUID             `gorm:"column:booking_id;type:uuid;not null;uniqueIndex:ux_ledger_entries_event_booking_type"`
	EventID     string                `gorm:"column:event_id;not null;uniqueIndex:ux_ledger_entries_event_booking_type"`
	Type        enums.LedgerEntryType `gorm:"column:type;type:ledger_entry_type;not null;uniqueIndex:ux_ledger_entries_event_booking_type"`
	AmountCents int64                 `gorm:"column:amount_cents;not null"`
	Currency    enums.Currency        `gorm:"column:currency;type:text;not null;default:'USD'"`
	Metadata    json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}
