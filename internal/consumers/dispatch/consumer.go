package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/skyfare-io/skyfare-backend/internal/loyalty"
	"github.com/skyfare-io/skyfare-backend/internal/notifications"
	"github.com/skyfare-io/skyfare-backend/internal/ticketing"
	"github.com/skyfare-io/skyfare-backend/pkg/enums"
	"github.com/skyfare-io/skyfare-backend/pkg/logger"
	"github.com/skyfare-io/skyfare-backend/pkg/outbox"
	"github.com/skyfare-io/skyfare-backend/pkg/outbox/payloads"
)

const dispatchConsumerName = "booking-dispatch"

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// ConsumerParams wire the booking event dispatcher.
type ConsumerParams struct {
	Subscription *pubsub.Subscriber
	Idempotency  idempotencyChecker
	Tickets      ticketing.Generator
	Miles        loyalty.Awarder
	Sender       notifications.Sender
	Logger       *logger.Logger
}

// Consumer fans booking lifecycle events out to the downstream
// collaborators: ticket issuance and miles on confirmation, traveler
// notifications on request.
type Consumer struct {
	subscription *pubsub.Subscriber
	idempotency  idempotencyChecker
	tickets      ticketing.Generator
	miles        loyalty.Awarder
	sender       notifications.Sender
	logg         *logger.Logger
}

// NewConsumer builds the booking event dispatcher. Subscription may be
// nil in tests that drive Process directly.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if params.Tickets == nil {
		return nil, fmt.Errorf("ticket generator required")
	}
	if params.Miles == nil {
		return nil, fmt.Errorf("loyalty awarder required")
	}
	if params.Sender == nil {
		return nil, fmt.Errorf("notification sender required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		subscription: params.Subscription,
		idempotency:  params.Idempotency,
		tickets:      params.Tickets,
		miles:        params.Miles,
		sender:       params.Sender,
		logg:         params.Logger,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if c.subscription == nil {
		return fmt.Errorf("subscription required")
	}
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		eventType := enums.OutboxEventType(msg.Attributes["event_type"])

		var envelope outbox.PayloadEnvelope
		if err := json.Unmarshal(msg.Data, &envelope); err != nil {
			logCtx := c.logg.WithField(ctx, "message_id", msg.ID)
			c.logg.Error(logCtx, "failed to decode envelope", err)
			msg.Ack()
			return
		}

		if err := c.Process(ctx, eventType, envelope); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Process handles a single envelope. A nil return means the message is
// settled; errors signal the caller to redeliver.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	switch eventType {
	case enums.EventBookingConfirmed, enums.EventNotificationRequested:
	default:
		c.logg.Info(logCtx, "event not handled by dispatch consumer")
		return nil
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return fmt.Errorf("parse event id: %w", err)
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, dispatchConsumerName, eventID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	switch eventType {
	case enums.EventBookingConfirmed:
		err = c.handleBookingConfirmed(ctx, envelope, logCtx)
	case enums.EventNotificationRequested:
		err = c.handleNotificationRequested(ctx, envelope)
	}
	if err != nil {
		c.logg.Error(logCtx, "dispatch failed", err)
		_ = c.idempotency.Delete(ctx, dispatchConsumerName, eventID)
		return err
	}
	return nil
}

func (c *Consumer) handleBookingConfirmed(ctx context.Context, envelope outbox.PayloadEnvelope, logCtx context.Context) error {
	var payload payloads.BookingConfirmedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	ticket, err := c.tickets.Issue(ctx, ticketing.IssueInput{
		BookingID: payload.BookingID,
		Reference: payload.Reference,
		UserID:    payload.UserID,
	})
	if err != nil {
		return fmt.Errorf("issue ticket: %w", err)
	}

	miles, err := c.miles.Award(ctx, loyalty.AwardInput{
		BookingID:   payload.BookingID,
		Reference:   payload.Reference,
		UserID:      payload.UserID,
		AmountCents: payload.AmountCents,
		Currency:    payload.Currency,
	})
	if err != nil {
		return fmt.Errorf("award miles: %w", err)
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"booking_id":    payload.BookingID.String(),
		"ticket_number": ticket.TicketNumber,
		"miles":         miles,
	})
	c.logg.Info(logCtx, "booking confirmation dispatched")
	return nil
}

func (c *Consumer) handleNotificationRequested(ctx context.Context, envelope outbox.PayloadEnvelope) error {
	var payload payloads.NotificationRequestedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return c.sender.Send(ctx, notifications.Message{
		BookingID: payload.BookingID,
		Reference: payload.Reference,
		UserID:    payload.UserID,
		Type:      payload.Type,
	})
}
