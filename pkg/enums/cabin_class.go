package enums

import "fmt"

// CabinClass maps to the cabin_class enum in Postgres.
type CabinClass string

const (
	CabinClassEconomy  CabinClass = "economy"
	CabinClassPremium  CabinClass = "premium_economy"
	CabinClassBusiness CabinClass = "business"
	CabinClassFirst    CabinClass = "first"
)

var validCabinClasses = []CabinClass{
	CabinClassEconomy,
	CabinClassPremium,
	CabinClassBusiness,
	CabinClassFirst,
}

// String implements fmt.Stringer.
func (c CabinClass) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CabinClass.
func (c CabinClass) IsValid() bool {
	for _, candidate := range validCabinClasses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCabinClass converts raw input into a CabinClass.
func ParseCabinClass(value string) (CabinClass, error) {
	for _, candidate := range validCabinClasses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cabin class %q", value)
}
