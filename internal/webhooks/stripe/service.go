package stripewebhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/skyfare-io/skyfare-backend/internal/bookings"
	"github.com/skyfare-io/skyfare-backend/internal/inventory"
	"github.com/skyfare-io/skyfare-backend/internal/ledger"
	"github.com/skyfare-io/skyfare-backend/internal/payments"
	"github.com/skyfare-io/skyfare-backend/internal/seatlocks"
	"github.com/skyfare-io/skyfare-backend/pkg/db/models"
	"github.com/skyfare-io/skyfare-backend/pkg/enums"
	pkgerrors "github.com/skyfare-io/skyfare-backend/pkg/errors"
	"github.com/skyfare-io/skyfare-backend/pkg/logger"
	"github.com/skyfare-io/skyfare-backend/pkg/metrics"
	"github.com/skyfare-io/skyfare-backend/pkg/outbox"
	"github.com/skyfare-io/skyfare-backend/pkg/outbox/payloads"
)

const (
	metadataBookingID  = "booking_id"
	metadataSeatLockID = "seat_lock_id"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams lists everything the webhook orchestrator depends on.
// Guard and Metrics are optional.
type ServiceParams struct {
	BookingRepo       bookings.Repository
	Bookings          bookings.Service
	Inventory         inventory.Service
	SeatLocks         seatlocks.Service
	Ledger            ledger.Service
	Gateway           payments.Gateway
	Outbox            *outbox.Service
	TransactionRunner txRunner
	Guard             *IdempotencyGuard
	Metrics           *metrics.WebhookMetrics
	Logger            *logger.Logger
}

// Service turns payment gateway webhooks into booking state changes.
// Each event is handled in exactly one database transaction: the booking
// row lock serializes racing deliveries, the lifecycle graph rejects
// out-of-order ones, and the ledger unique index rejects double money.
type Service struct {
	bookingRepo bookings.Repository
	bookings    bookings.Service
	inventory   inventory.Service
	seatLocks   seatlocks.Service
	ledger      ledger.Service
	gateway     payments.Gateway
	outbox      *outbox.Service
	txRunner    txRunner
	guard       *IdempotencyGuard
	metrics     *metrics.WebhookMetrics
	logg        *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.BookingRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "booking repo required")
	}
	if params.Bookings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "bookings service required")
	}
	if params.Inventory == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory service required")
	}
	if params.SeatLocks == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "seat locks service required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox service required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		bookingRepo: params.BookingRepo,
		bookings:    params.Bookings,
		inventory:   params.Inventory,
		seatLocks:   params.SeatLocks,
		ledger:      params.Ledger,
		gateway:     params.Gateway,
		outbox:      params.Outbox,
		txRunner:    params.TransactionRunner,
		guard:       params.Guard,
		metrics:     params.Metrics,
		logg:        params.Logger,
	}, nil
}

// HandleEvent is the single entry point for verified gateway events.
// The event id is stored BEFORE processing starts; a crash between the
// store and the mark leaves the event retryable, never lost.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.ID == "" || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	eventType := string(event.Type)
	start := time.Now()
	defer func() {
		s.metrics.ObserveDuration(eventType, time.Since(start))
	}()

	if s.guard != nil {
		dup, err := s.guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			// Redis being down must not drop events; the durable store
			// below still dedups.
			s.warn(ctx, event.ID, "idempotency guard unavailable", err)
		} else if dup {
			s.metrics.IncDuplicate(eventType)
			return nil
		}
	}

	_, fresh, err := s.gateway.Store(ctx, event.ID, eventType, event.Data.Raw)
	if err != nil {
		return err
	}
	if !fresh {
		s.metrics.IncDuplicate(eventType)
		return nil
	}

	if err := s.process(ctx, event); err != nil {
		if markErr := s.gateway.MarkFailed(ctx, event.ID, err); markErr != nil {
			s.warn(ctx, event.ID, "mark payment event failed", markErr)
		}
		if s.guard != nil {
			if delErr := s.guard.Delete(ctx, event.ID); delErr != nil {
				s.warn(ctx, event.ID, "release idempotency key", delErr)
			}
		}
		s.metrics.IncFailed(eventType)
		return err
	}

	if err := s.gateway.MarkProcessed(ctx, event.ID); err != nil {
		return err
	}
	s.metrics.IncProcessed(eventType)
	return nil
}

func (s *Service) process(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
		}
		return s.handleCheckoutCompleted(ctx, event, &session)
	case stripe.EventTypePaymentIntentSucceeded:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent event")
		}
		return s.handlePaymentSucceeded(ctx, event, &intent)
	case stripe.EventTypePaymentIntentPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent event")
		}
		return s.handlePaymentFailed(ctx, event, &intent)
	case stripe.EventTypeChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode charge event")
		}
		return s.handleChargeRefunded(ctx, event, &charge)
	default:
		// Unhandled types are acknowledged so the gateway stops
		// redelivering them.
		return nil
	}
}

// handleCheckoutCompleted drives the same confirm walk as
// payment_intent.succeeded: a completed session means the payment was
// captured, so the booking is charged, confirmed, and its seats
// committed in this transaction.
func (s *Service) handleCheckoutCompleted(ctx context.Context, event *stripe.Event, session *stripe.CheckoutSession) error {
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		booking, err := s.locateForUpdate(ctx, tx, session.Metadata, paymentIntentID(session.PaymentIntent), session.ClientReferenceID)
		if err != nil {
			return err
		}
		return s.confirmPayment(ctx, tx, event, booking, session.Metadata, paymentIntentID(session.PaymentIntent))
	})
}

func (s *Service) handlePaymentSucceeded(ctx context.Context, event *stripe.Event, intent *stripe.PaymentIntent) error {
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		booking, err := s.locateForUpdate(ctx, tx, intent.Metadata, intent.ID, "")
		if err != nil {
			return err
		}
		return s.confirmPayment(ctx, tx, event, booking, intent.Metadata, intent.ID)
	})
}

// confirmPayment walks the booking to confirmed, appends the charge,
// and commits the seats. Shared by the checkout-completed and
// payment-succeeded handlers; both events assert the same fact, that
// the money arrived.
func (s *Service) confirmPayment(ctx context.Context, tx *gorm.DB, event *stripe.Event, booking *models.Booking, metadata map[string]string, intentID string) error {
	if settledStatus(booking.Status) {
		// The confirmation already committed; this is a redelivery
		// that raced past both dedup layers.
		return nil
	}
	if booking.Status == enums.BookingStatusCancelled || booking.Status == enums.BookingStatusExpired {
		// Money arrived for a dead booking. Record it so finance can
		// see it; the refund flow handles giving it back.
		s.warn(ctx, event.ID, "payment succeeded for inactive booking", nil)
		_, ledgerErr := s.ledger.AppendTx(ctx, tx, ledger.AppendEntryInput{
			BookingID:   booking.ID,
			EventID:     event.ID,
			Type:        enums.LedgerEntryTypeCharge,
			AmountCents: booking.AmountCents,
			Currency:    booking.Currency,
		})
		if ledgerErr != nil && !ledger.IsAlreadyRecorded(ledgerErr) {
			return ledgerErr
		}
		return nil
	}

	if booking.PaymentIntentID == nil && intentID != "" {
		booking.PaymentIntentID = &intentID
		if err := s.bookingRepo.WithTx(tx).Update(ctx, booking); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "attach payment intent")
		}
	}

	tc := bookings.TransitionContext{
		Actor:  enums.ActorPaymentGateway,
		Reason: string(event.Type),
	}
	// Payment events can arrive before the booking ever left initiated.
	if booking.Status == enums.BookingStatusInitiated {
		if err := s.bookings.Transition(ctx, tx, booking, enums.BookingStatusPending, tc); err != nil {
			return err
		}
	}
	if booking.Status == enums.BookingStatusPaymentFailed {
		if err := s.bookings.Transition(ctx, tx, booking, enums.BookingStatusPending, tc); err != nil {
			return err
		}
	}
	if booking.Status == enums.BookingStatusPending || booking.Status == enums.BookingStatusReserved {
		if err := s.bookings.Transition(ctx, tx, booking, enums.BookingStatusPaid, tc); err != nil {
			return err
		}
	}
	if err := s.bookings.Transition(ctx, tx, booking, enums.BookingStatusConfirmed, tc); err != nil {
		return err
	}

	if _, err := s.ledger.AppendTx(ctx, tx, ledger.AppendEntryInput{
		BookingID:   booking.ID,
		EventID:     event.ID,
		Type:        enums.LedgerEntryTypeCharge,
		AmountCents: booking.AmountCents,
		Currency:    booking.Currency,
	}); err != nil && !ledger.IsAlreadyRecorded(err) {
		return err
	}

	// Seats are committed exactly once, on the pending->confirmed
	// walk. The status guard above means no second decrement.
	if err := s.inventory.DecrementTx(ctx, tx, booking.FlightID, booking.CabinClass, booking.Seats); err != nil {
		return err
	}

	s.convertSeatLock(ctx, tx, metadata, booking.ID, event.ID)

	if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventBookingConfirmed,
		AggregateType: enums.AggregateBooking,
		AggregateID:   booking.ID,
		Data: payloads.BookingConfirmedEvent{
			BookingID:       booking.ID,
			Reference:       booking.Reference,
			UserID:          booking.UserID,
			FlightID:        booking.FlightID,
			PaymentIntentID: intentID,
			AmountCents:     booking.AmountCents,
			Currency:        string(booking.Currency),
			ConfirmedAt:     time.Now().UTC(),
		},
		Version: 1,
	}); err != nil {
		return err
	}
	return s.emitNotification(ctx, tx, booking, "booking_confirmed")
}

func (s *Service) handlePaymentFailed(ctx context.Context, event *stripe.Event, intent *stripe.PaymentIntent) error {
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		booking, err := s.locateForUpdate(ctx, tx, intent.Metadata, intent.ID, "")
		if err != nil {
			return err
		}
		if booking.Status == enums.BookingStatusPaymentFailed ||
			booking.Status == enums.BookingStatusCancelled ||
			booking.Status == enums.BookingStatusExpired {
			return nil
		}

		tc := bookings.TransitionContext{
			Actor:  enums.ActorPaymentGateway,
			Reason: failureReason(intent),
		}
		// payment_intent.payment_failed can overtake checkout.session.completed.
		if booking.Status == enums.BookingStatusInitiated {
			if err := s.bookings.Transition(ctx, tx, booking, enums.BookingStatusPending, tc); err != nil {
				return err
			}
		}
		if booking.Status == enums.BookingStatusReserved {
			// A reservation does not fail with its payment attempt; the
			// traveler can retry while the hold lives.
			s.warn(ctx, event.ID, "payment failed for reserved booking", nil)
			return nil
		}
		if err := s.bookings.Transition(ctx, tx, booking, enums.BookingStatusPaymentFailed, tc); err != nil {
			return err
		}

		// The hold stays with the booking so a payment retry does not
		// lose the seats; the TTL sweep reclaims it if no retry comes.

		if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregateBooking,
			AggregateID:   booking.ID,
			Data: payloads.PaymentFailedEvent{
				BookingID:     booking.ID,
				Reference:     booking.Reference,
				EventID:       event.ID,
				FailureReason: failureReason(intent),
			},
			Version: 1,
		}); err != nil {
			return err
		}
		return s.emitNotification(ctx, tx, booking, "payment_failed")
	})
}

func (s *Service) handleChargeRefunded(ctx context.Context, event *stripe.Event, charge *stripe.Charge) error {
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		booking, err := s.locateForUpdate(ctx, tx, charge.Metadata, paymentIntentID(charge.PaymentIntent), "")
		if err != nil {
			return err
		}

		// Stripe reports the cumulative refunded amount; only the delta
		// beyond what the booking already absorbed is new money.
		delta := charge.AmountRefunded - booking.RefundedCents
		if delta <= 0 {
			return nil
		}
		fullRefund := booking.RefundedCents+delta >= booking.AmountCents

		entryType := enums.LedgerEntryTypePartialRefund
		if fullRefund {
			entryType = enums.LedgerEntryTypeRefund
		}
		if _, err := s.ledger.AppendTx(ctx, tx, ledger.AppendEntryInput{
			BookingID:   booking.ID,
			EventID:     event.ID,
			Type:        entryType,
			AmountCents: -delta,
			Currency:    booking.Currency,
		}); err != nil && !ledger.IsAlreadyRecorded(err) {
			return err
		}

		booking.RefundedCents += delta
		if booking.ChargeID == nil && charge.ID != "" {
			booking.ChargeID = &charge.ID
		}

		seatsRestored := 0
		if fullRefund {
			seatsCommitted := seatsWereCommitted(booking.Status)
			// Refunding a live booking in full cancels it; bookings
			// that already left the active path (cancelled, completed,
			// no_show) settle in the refunded terminal instead.
			target := enums.BookingStatusRefunded
			if booking.Status.CanTransitionTo(enums.BookingStatusCancelled) {
				target = enums.BookingStatusCancelled
			}
			if err := s.bookings.Transition(ctx, tx, booking, target, bookings.TransitionContext{
				Actor:  enums.ActorPaymentGateway,
				Reason: string(event.Type),
			}); err != nil {
				return err
			}
			if seatsCommitted {
				if err := s.inventory.IncrementTx(ctx, tx, booking.FlightID, booking.CabinClass, booking.Seats); err != nil {
					return err
				}
				seatsRestored = booking.Seats
			}
		}
		// Partial refunds leave the booking status untouched; the
		// traveler still flies.
		if err := s.bookingRepo.WithTx(tx).Update(ctx, booking); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update refunded amount")
		}

		if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundProcessed,
			AggregateType: enums.AggregateBooking,
			AggregateID:   booking.ID,
			Data: payloads.RefundProcessedEvent{
				BookingID:     booking.ID,
				Reference:     booking.Reference,
				EventID:       event.ID,
				AmountCents:   delta,
				Currency:      string(booking.Currency),
				FullRefund:    fullRefund,
				Status:        booking.Status,
				SeatsRestored: seatsRestored,
			},
			Version: 1,
		}); err != nil {
			return err
		}
		if fullRefund {
			return s.emitNotification(ctx, tx, booking, "refund_processed")
		}
		return nil
	})
}

// locateForUpdate resolves the booking a gateway object refers to and
// takes its row lock. Metadata wins over the payment intent id, which
// wins over the checkout client reference.
func (s *Service) locateForUpdate(ctx context.Context, tx *gorm.DB, metadata map[string]string, paymentIntent, reference string) (*models.Booking, error) {
	repo := s.bookingRepo.WithTx(tx)

	if raw, ok := metadata[metadataBookingID]; ok && raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "malformed booking id in gateway metadata")
		}
		return repo.FindForUpdate(ctx, id)
	}
	if paymentIntent != "" {
		booking, err := repo.FindByPaymentIntentID(ctx, paymentIntent)
		if err != nil {
			return nil, err
		}
		return repo.FindForUpdate(ctx, booking.ID)
	}
	if reference != "" {
		booking, err := repo.FindByReference(ctx, reference)
		if err != nil {
			return nil, err
		}
		return repo.FindForUpdate(ctx, booking.ID)
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway event carries no booking reference")
}

// convertSeatLock is best effort: a lock that expired between payment
// start and webhook delivery must not fail the confirmation.
func (s *Service) convertSeatLock(ctx context.Context, tx *gorm.DB, metadata map[string]string, bookingID uuid.UUID, eventID string) {
	raw, ok := metadata[metadataSeatLockID]
	if !ok || raw == "" {
		return
	}
	lockID, err := uuid.Parse(raw)
	if err != nil {
		s.warn(ctx, eventID, "malformed seat lock id in gateway metadata", err)
		return
	}
	if err := s.seatLocks.ConvertTx(ctx, tx, lockID, bookingID); err != nil {
		s.warn(ctx, eventID, "convert seat lock", err)
	}
}

// emitNotification queues one notification per (booking, kind). The
// kind widens the dedup identity so a refund notice is not swallowed
// by the confirmation notice that preceded it.
func (s *Service) emitNotification(ctx context.Context, tx *gorm.DB, booking *models.Booking, kind string) error {
	return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateBooking,
		AggregateID:   booking.ID,
		DedupKey:      kind,
		Data: payloads.NotificationRequestedEvent{
			BookingID: booking.ID,
			Reference: booking.Reference,
			UserID:    booking.UserID,
			Type:      kind,
		},
		Version: 1,
	})
}

func (s *Service) warn(ctx context.Context, eventID, msg string, err error) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithEventID(ctx, eventID)
	if err != nil {
		logCtx = s.logg.WithField(logCtx, "error", err.Error())
	}
	s.logg.Warn(logCtx, msg)
}

// settledStatus reports whether the money side of the booking already
// resolved; success redeliveries for these are pure no-ops.
func settledStatus(status enums.BookingStatus) bool {
	switch status {
	case enums.BookingStatusConfirmed,
		enums.BookingStatusCheckedIn,
		enums.BookingStatusBoarded,
		enums.BookingStatusCompleted,
		enums.BookingStatusRefunded,
		enums.BookingStatusNoShow:
		return true
	default:
		return false
	}
}

// seatsWereCommitted reports whether a booking in this status has had
// its seats decremented from flight inventory.
func seatsWereCommitted(status enums.BookingStatus) bool {
	switch status {
	case enums.BookingStatusConfirmed,
		enums.BookingStatusCheckedIn,
		enums.BookingStatusBoarded,
		enums.BookingStatusCompleted,
		enums.BookingStatusNoShow:
		return true
	default:
		return false
	}
}

func paymentIntentID(intent *stripe.PaymentIntent) string {
	if intent == nil {
		return ""
	}
	return intent.ID
}

func failureReason(intent *stripe.PaymentIntent) string {
	if intent != nil && intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		return intent.LastPaymentError.Msg
	}
	return "payment_intent.payment_failed"
}
