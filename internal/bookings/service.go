package bookings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skyfare-io/skyfare-backend/pkg/db/models"
	"github.com/skyfare-io/skyfare-backend/pkg/enums"
	pkgerrors "github.com/skyfare-io/skyfare-backend/pkg/errors"
)

// Service defines the booking lifecycle operations. Every status change
// goes through Transition so the history log stays a valid walk of the
// lifecycle graph.
type Service interface {
	CreateTx(ctx context.Context, tx *gorm.DB, input CreateBookingInput) (*models.Booking, error)
	Transition(ctx context.Context, tx *gorm.DB, booking *models.Booking, to enums.BookingStatus, tc TransitionContext) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	GetByReference(ctx context.Context, reference string) (*models.Booking, error)
	History(ctx context.Context, bookingID uuid.UUID) ([]models.BookingStatusHistory, error)
}

// CreateBookingInput captures everything a new booking row needs.
type CreateBookingInput struct {
	Reference   string
	UserID      uuid.UUID
	FlightID    uuid.UUID
	CabinClass  enums.CabinClass
	Seats       int
	AmountCents int64
	Currency    enums.Currency
}

// TransitionContext records who drove a transition and why.
type TransitionContext struct {
	Actor    enums.TransitionActor
	Reason   string
	Metadata json.RawMessage
}

type service struct {
	repo Repository
}

// NewService wires a booking service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("bookings repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreateTx(ctx context.Context, tx *gorm.DB, input CreateBookingInput) (*models.Booking, error) {
	if input.Reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking reference is required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.FlightID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "flight id is required")
	}
	if !input.CabinClass.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid cabin class %q", input.CabinClass))
	}
	if input.Seats <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seat count must be positive")
	}
	if input.AmountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}
	if !input.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid currency %q", input.Currency))
	}

	repo := s.repo.WithTx(tx)
	booking := &models.Booking{
		ID:          uuid.New(),
		Reference:   input.Reference,
		UserID:      input.UserID,
		FlightID:    input.FlightID,
		CabinClass:  input.CabinClass,
		Seats:       input.Seats,
		Status:      enums.BookingStatusInitiated,
		AmountCents: input.AmountCents,
		Currency:    input.Currency,
	}
	if err := repo.Create(ctx, booking); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create booking")
	}

	history := &models.BookingStatusHistory{
		ID:        uuid.New(),
		BookingID: booking.ID,
		NewStatus: enums.BookingStatusInitiated,
		Reason:    "booking created",
		Actor:     enums.ActorUser,
	}
	if err := repo.AppendHistory(ctx, history); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append booking history")
	}
	return booking, nil
}

// Transition moves booking to the target status, updates the row, and
// appends a history entry, all on the provided transaction. The caller
// must hold the booking row lock when concurrent writers are possible.
func (s *service) Transition(ctx context.Context, tx *gorm.DB, booking *models.Booking, to enums.BookingStatus, tc TransitionContext) error {
	if booking == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "booking is required")
	}
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid booking status %q", to))
	}
	actor := tc.Actor
	if actor == "" {
		actor = enums.ActorSystem
	}
	if !actor.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transition actor %q", actor))
	}
	if !booking.Status.CanTransitionTo(to) {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot transition booking from %s to %s", booking.Status, to))
	}

	repo := s.repo.WithTx(tx)
	prev := booking.Status
	booking.Status = to
	if err := repo.Update(ctx, booking); err != nil {
		booking.Status = prev
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update booking status")
	}

	history := &models.BookingStatusHistory{
		ID:         uuid.New(),
		BookingID:  booking.ID,
		PrevStatus: &prev,
		NewStatus:  to,
		Reason:     tc.Reason,
		Actor:      actor,
		Metadata:   tc.Metadata,
	}
	if err := repo.AppendHistory(ctx, history); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append booking history")
	}
	return nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id is required")
	}
	return s.repo.FindByID(ctx, id)
}

func (s *service) GetByReference(ctx context.Context, reference string) (*models.Booking, error) {
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking reference is required")
	}
	return s.repo.FindByReference(ctx, reference)
}

func (s *service) History(ctx context.Context, bookingID uuid.UUID) ([]models.BookingStatusHistory, error) {
	if bookingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id is required")
	}
	return s.repo.ListHistory(ctx, bookingID)
}
