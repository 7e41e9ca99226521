package loyalty

import (
	"context"
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/skyfare-io/skyfare-backend/pkg/errors"
	"github.com/skyfare-io/skyfare-backend/pkg/logger"
)

func TestAwarderCreditsMiles(t *testing.T) {
	awarder, err := NewAwarder(logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("NewAwarder: %v", err)
	}

	miles, err := awarder.Award(context.Background(), AwardInput{
		BookingID:   uuid.New(),
		Reference:   "SFR-A2B3C4",
		UserID:      uuid.New(),
		AmountCents: 45899,
		Currency:    "usd",
	})
	if err != nil {
		t.Fatalf("Award: %v", err)
	}
	if miles != 458 {
		t.Fatalf("expected 458 miles, got %d", miles)
	}
}

func TestAwarderValidatesInput(t *testing.T) {
	awarder, err := NewAwarder(logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("NewAwarder: %v", err)
	}

	cases := []struct {
		name  string
		input AwardInput
	}{
		{name: "missing booking id", input: AwardInput{UserID: uuid.New(), AmountCents: 100}},
		{name: "missing user id", input: AwardInput{BookingID: uuid.New(), AmountCents: 100}},
		{name: "negative amount", input: AwardInput{BookingID: uuid.New(), UserID: uuid.New(), AmountCents: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := awarder.Award(context.Background(), tc.input); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
