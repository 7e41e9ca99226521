package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/skyfare-io/skyfare-backend/internal/bookings"
	"github.com/skyfare-io/skyfare-backend/internal/seatlocks"
	"github.com/skyfare-io/skyfare-backend/pkg/config"
	dbpkg "github.com/skyfare-io/skyfare-backend/pkg/db"
	"github.com/skyfare-io/skyfare-backend/pkg/db/models"
	"github.com/skyfare-io/skyfare-backend/pkg/enums"
	pkgerrors "github.com/skyfare-io/skyfare-backend/pkg/errors"
	"github.com/skyfare-io/skyfare-backend/pkg/logger"
	"github.com/skyfare-io/skyfare-backend/pkg/outbox"
	"github.com/skyfare-io/skyfare-backend/pkg/outbox/payloads"
	"github.com/skyfare-io/skyfare-backend/pkg/redis"
)

const idempotencyScope = "checkout"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type paymentIntentCreator interface {
	Create(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service executes checkout orchestration: hold the seats, open the
// booking, and hand the caller a payment intent to finish against.
type Service interface {
	Execute(ctx context.Context, input CheckoutInput) (*CheckoutResult, error)
}

// CheckoutInput is the validated checkout request.
type CheckoutInput struct {
	UserID         uuid.UUID
	FlightID       uuid.UUID
	CabinClass     enums.CabinClass
	Seats          int
	SessionID      string
	FarePerSeat    decimal.Decimal
	Currency       enums.Currency
	IdempotencyKey string
}

// CheckoutResult is what the booking surface returns to the traveler.
type CheckoutResult struct {
	BookingID       uuid.UUID
	Reference       string
	AmountCents     int64
	Currency        enums.Currency
	SeatLockID      uuid.UUID
	LockExpiresAt   time.Time
	PaymentIntentID string
	ClientSecret    string
}

// ServiceParams lists the checkout service dependencies. Idempotency
// and Intents are optional; without a payment intent creator the
// checkout still reserves and books, leaving payment attachment to the
// gateway webhook flow.
type ServiceParams struct {
	TransactionRunner txRunner
	Bookings          bookings.Service
	BookingRepo       bookings.Repository
	SeatLocks         seatlocks.Service
	Outbox            outboxEmitter
	Intents           paymentIntentCreator
	Idempotency       redis.IdempotencyStore
	Config            config.CheckoutConfig
	Logger            *logger.Logger
}

type service struct {
	txRunner    txRunner
	bookings    bookings.Service
	bookingRepo bookings.Repository
	seatLocks   seatlocks.Service
	outbox      outboxEmitter
	intents     paymentIntentCreator
	idempotency redis.IdempotencyStore
	cfg         config.CheckoutConfig
	logg        *logger.Logger
}

// NewService wires the checkout orchestrator from its dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Bookings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "bookings service required")
	}
	if params.BookingRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "booking repo required")
	}
	if params.SeatLocks == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "seat locks service required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox service required")
	}
	if params.Config.MaxSeatsPerBooking <= 0 {
		params.Config.MaxSeatsPerBooking = 9
	}
	if params.Config.ReferenceMaxRetries <= 0 {
		params.Config.ReferenceMaxRetries = 5
	}
	return &service{
		txRunner:    params.TransactionRunner,
		bookings:    params.Bookings,
		bookingRepo: params.BookingRepo,
		seatLocks:   params.SeatLocks,
		outbox:      params.Outbox,
		intents:     params.Intents,
		idempotency: params.Idempotency,
		cfg:         params.Config,
		logg:        params.Logger,
	}, nil
}

func (s *service) Execute(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}

	if err := s.claimIdempotencyKey(ctx, input); err != nil {
		return nil, err
	}

	amountCents := amountFor(input.FarePerSeat, input.Seats)

	var (
		booking *models.Booking
		lock    *models.SeatLock
	)
	attempts := s.cfg.ReferenceMaxRetries
	for attempt := 0; attempt < attempts; attempt++ {
		reference, err := newReference()
		if err != nil {
			s.releaseIdempotencyKey(ctx, input)
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate booking reference")
		}

		err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
			acquired, err := s.seatLocks.AcquireTx(ctx, tx, seatlocks.AcquireInput{
				FlightID:   input.FlightID,
				CabinClass: input.CabinClass,
				Seats:      input.Seats,
				SessionID:  input.SessionID,
			})
			if err != nil {
				return err
			}
			created, err := s.bookings.CreateTx(ctx, tx, bookings.CreateBookingInput{
				Reference:   reference,
				UserID:      input.UserID,
				FlightID:    input.FlightID,
				CabinClass:  input.CabinClass,
				Seats:       input.Seats,
				AmountCents: amountCents,
				Currency:    input.Currency,
			})
			if err != nil {
				return err
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventBookingCreated,
				AggregateType: enums.AggregateBooking,
				AggregateID:   created.ID,
				Actor:         &outbox.ActorRef{UserID: input.UserID, Role: string(enums.ActorUser)},
				Data: payloads.BookingCreatedEvent{
					BookingID:  created.ID,
					Reference:  created.Reference,
					UserID:     created.UserID,
					FlightID:   created.FlightID,
					CabinClass: created.CabinClass,
					Seats:      created.Seats,
				},
				Version: 1,
			}); err != nil {
				return err
			}
			booking = created
			lock = acquired
			return nil
		})
		if err == nil {
			break
		}
		if dbpkg.IsUniqueViolation(err, "ux_bookings_reference") && attempt < attempts-1 {
			continue
		}
		s.releaseIdempotencyKey(ctx, input)
		return nil, err
	}
	if booking == nil {
		s.releaseIdempotencyKey(ctx, input)
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "booking reference space exhausted")
	}

	result := &CheckoutResult{
		BookingID:     booking.ID,
		Reference:     booking.Reference,
		AmountCents:   amountCents,
		Currency:      input.Currency,
		SeatLockID:    lock.ID,
		LockExpiresAt: lock.ExpiresAt,
	}

	if s.intents != nil {
		intent, err := s.createPaymentIntent(ctx, booking, lock, amountCents, input.Currency)
		if err != nil {
			// The booking and hold survive; the TTL sweep reclaims them
			// if the traveler never retries payment.
			return nil, err
		}
		result.PaymentIntentID = intent.ID
		result.ClientSecret = intent.ClientSecret
	}
	return result, nil
}

func (s *service) createPaymentIntent(ctx context.Context, booking *models.Booking, lock *models.SeatLock, amountCents int64, currency enums.Currency) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(string(currency)),
	}
	params.AddMetadata("booking_id", booking.ID.String())
	params.AddMetadata("seat_lock_id", lock.ID.String())
	params.AddMetadata("booking_reference", booking.Reference)

	intent, err := s.intents.Create(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}

	booking.PaymentIntentID = &intent.ID
	if err := s.bookingRepo.Update(ctx, booking); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "attach payment intent")
	}
	return intent, nil
}

func (s *service) validate(input CheckoutInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.FlightID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "flight id is required")
	}
	if !input.CabinClass.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid cabin class %q", input.CabinClass))
	}
	if input.Seats <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "seat count must be positive")
	}
	if input.Seats > s.cfg.MaxSeatsPerBooking {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("cannot book more than %d seats at once", s.cfg.MaxSeatsPerBooking))
	}
	if input.SessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if input.FarePerSeat.IsNegative() || input.FarePerSeat.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "fare must be positive")
	}
	if !input.Currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid currency %q", input.Currency))
	}
	return nil
}

func (s *service) claimIdempotencyKey(ctx context.Context, input CheckoutInput) error {
	if s.idempotency == nil || input.IdempotencyKey == "" {
		return nil
	}
	key := s.idempotency.IdempotencyKey(idempotencyScope, input.IdempotencyKey)
	set, err := s.idempotency.SetNX(ctx, key, "1", s.cfg.IdempotencyKeyTTL)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key")
	}
	if !set {
		return pkgerrors.New(pkgerrors.CodeConflict, "checkout request already in flight")
	}
	return nil
}

func (s *service) releaseIdempotencyKey(ctx context.Context, input CheckoutInput) {
	if s.idempotency == nil || input.IdempotencyKey == "" {
		return
	}
	key := s.idempotency.IdempotencyKey(idempotencyScope, input.IdempotencyKey)
	if err := s.idempotency.Del(ctx, key); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "release checkout idempotency key")
	}
}

// amountFor converts the per-seat fare into total cents.
func amountFor(farePerSeat decimal.Decimal, seats int) int64 {
	return farePerSeat.
		Mul(decimal.NewFromInt(int64(seats))).
		Shift(2).
		Round(0).
		IntPart()
}
