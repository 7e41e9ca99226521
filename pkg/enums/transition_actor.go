package enums

import "fmt"

// TransitionActor identifies who drove a booking status change.
type TransitionActor string

const (
	ActorUser           TransitionActor = "user"
	ActorAdmin          TransitionActor = "admin"
	ActorSystem         TransitionActor = "system"
	ActorPaymentGateway TransitionActor = "payment_gateway"
)

var validTransitionActors = []TransitionActor{
	ActorUser,
	ActorAdmin,
	ActorSystem,
	ActorPaymentGateway,
}

// IsValid reports whether the value is a known TransitionActor.
func (a TransitionActor) IsValid() bool {
	for _, candidate := range validTransitionActors {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseTransitionActor converts raw input into a TransitionActor.
func ParseTransitionActor(value string) (TransitionActor, error) {
	for _, candidate := range validTransitionActors {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transition actor %q", value)
}
