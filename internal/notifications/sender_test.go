package notifications

import (
	"context"
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/skyfare-io/skyfare-backend/pkg/errors"
	"github.com/skyfare-io/skyfare-backend/pkg/logger"
)

func TestSenderAcceptsWellFormedMessage(t *testing.T) {
	snd, err := NewSender(logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}

	msg := Message{
		BookingID: uuid.New(),
		Reference: "SFR-A2B3C4",
		UserID:    uuid.New(),
		Type:      TypeBookingConfirmed,
	}
	if err := snd.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestSenderValidatesMessage(t *testing.T) {
	snd, err := NewSender(logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}

	cases := []struct {
		name string
		msg  Message
	}{
		{name: "missing booking id", msg: Message{UserID: uuid.New(), Type: TypePaymentFailed}},
		{name: "missing user id", msg: Message{BookingID: uuid.New(), Type: TypePaymentFailed}},
		{name: "missing type", msg: Message{BookingID: uuid.New(), UserID: uuid.New()}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := snd.Send(context.Background(), tc.msg); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
