package enums

import "fmt"

// SeatLockStatus maps to the seat_lock_status enum in Postgres.
// Only active locks count toward the held-seat pool; the other
// three states are terminal.
type SeatLockStatus string

const (
	SeatLockStatusActive    SeatLockStatus = "active"
	SeatLockStatusReleased  SeatLockStatus = "released"
	SeatLockStatusExpired   SeatLockStatus = "expired"
	SeatLockStatusConverted SeatLockStatus = "converted"
)

var validSeatLockStatuses = []SeatLockStatus{
	SeatLockStatusActive,
	SeatLockStatusReleased,
	SeatLockStatusExpired,
	SeatLockStatusConverted,
}

// String implements fmt.Stringer.
func (s SeatLockStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SeatLockStatus.
func (s SeatLockStatus) IsValid() bool {
	for _, candidate := range validSeatLockStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSeatLockStatus converts raw input into a SeatLockStatus.
func ParseSeatLockStatus(value string) (SeatLockStatus, error) {
	for _, candidate := range validSeatLockStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid seat lock status %q", value)
}
