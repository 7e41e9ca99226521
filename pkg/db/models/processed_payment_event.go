package models

import (
	"encoding/json"
	"time"
)

// ProcessedPaymentEvent records every payment-gateway event id ever seen.
// The row is inserted with Processed=false before any handling starts, so
// a crash mid-processing leaves the event retryable instead of lost.
// Rows are never deleted; they double as replay protection and audit.
type ProcessedPaymentEvent struct {
	ID          int64           `gorm:"column:id;primaryKey;autoIncrement"`
	EventID     string          `gorm:"column:event_id;not null;uniqueIndex:ux_processed_payment_events_event_id"`
	Type        string          `gorm:"column:type;not null"`
	Payload     json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	Processed   bool            `gorm:"column:processed;not null;default:false"`
	ProcessedAt *time.Time      `gorm:"column:processed_at"`
	LastError   *string         `gorm:"column:last_error"`
	RetryCount  int             `gorm:"column:retry_count;not null;default:0"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}
