package notifications

import (
	"context"

	"github.com/google/uuid"

	pkgerrors "github.com/skyfare-io/skyfare-backend/pkg/errors"
	"github.com/skyfare-io/skyfare-backend/pkg/logger"
)

// Message types routed to travelers.
const (
	TypeBookingConfirmed = "booking_confirmed"
	TypePaymentFailed    = "payment_failed"
	TypeRefundProcessed  = "refund_processed"
)

// Message is a traveler-facing notification request. The delivery
// channel (email, SMS, push) is chosen downstream.
type Message struct {
	BookingID uuid.UUID
	Reference string
	UserID    uuid.UUID
	Type      string
	Body      string
}

// Sender dispatches booking notifications. Implementations must be
// idempotent per message: the dispatch worker may retry after
// transient failures.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type sender struct {
	logg *logger.Logger
}

// NewSender builds the default sender, which records the request for
// the delivery pipeline to pick up.
func NewSender(logg *logger.Logger) (Sender, error) {
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &sender{logg: logg}, nil
}

func (s *sender) Send(ctx context.Context, msg Message) error {
	if msg.BookingID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "booking id required")
	}
	if msg.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if msg.Type == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "message type required")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"booking_id": msg.BookingID.String(),
		"user_id":    msg.UserID.String(),
		"reference":  msg.Reference,
		"type":       msg.Type,
	})
	s.logg.Info(logCtx, "notification queued for delivery")
	return nil
}
