package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/skyfare-io/skyfare-backend/pkg/enums"
)

// FlightInventory tracks available seats per flight and cabin class.
// AvailableSeats never drops below zero; decrements go through a
// conditional update, not a read-modify-write.
type FlightInventory struct {
	FlightID       uuid.UUID        `gorm:"column:flight_id;type:uuid;primaryKey"`
	CabinClass     enums.CabinClass `gorm:"column:cabin_class;type:cabin_class;primaryKey"`
	AvailableSeats int              `gorm:"column:available_seats;not null;default:0"`
	TotalSeats     int              `gorm:"column:total_seats;not null"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides the default pluralization.
func (FlightInventory) TableName() string {
	return "flight_inventory"
}
