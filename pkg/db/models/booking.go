package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/skyfare-io/skyfare-backend/pkg/enums"
)

// Booking represents one passenger purchase. Rows are never deleted;
// terminal statuses persist for audit.
type Booking struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Reference       string                 `gorm:"column:reference;not null;uniqueIndex:ux_bookings_reference"`
	UserID          uuid.UUID              `gorm:"column:user_id;type:uuid;not null"`
	FlightID        uuid.UUID              `gorm:"column:flight_id;type:uuid;not null"`
	CabinClass      enums.CabinClass       `gorm:"column:cabin_class;type:cabin_class;not null;default:'economy'"`
	Seats           int                    `gorm:"column:seats;not null"`
	Status          enums.BookingStatus    `gorm:"column:status;type:booking_status;not null;default:'initiated'"`
	AmountCents     int64                  `gorm:"column:amount_cents;not null"`
	RefundedCents   int64                  `gorm:"column:refunded_cents;not null;default:0"`
	Currency        enums.Currency         `gorm:"column:currency;type:text;not null;default:'USD'"`
	PaymentIntentID *string                `gorm:"column:payment_intent_id"`
	ChargeID        *string                `gorm:"column:charge_id"`
	History         []BookingStatusHistory `gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
