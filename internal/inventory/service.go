package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skyfare-io/skyfare-backend/pkg/db/models"
	"github.com/skyfare-io/skyfare-backend/pkg/enums"
	pkgerrors "github.com/skyfare-io/skyfare-backend/pkg/errors"
)

// Service exposes seat inventory operations. Decrements are guarded at
// the SQL level so availability can never go negative, regardless of how
// many checkouts race.
type Service interface {
	SetCapacity(ctx context.Context, flightID uuid.UUID, cabin enums.CabinClass, totalSeats, availableSeats int) error
	// DecrementTx permanently removes seats from the pool, e.g. when a
	// booking is confirmed. Returns CodeInsufficientInventory when the
	// guarded update touches zero rows.
	DecrementTx(ctx context.Context, tx *gorm.DB, flightID uuid.UUID, cabin enums.CabinClass, seats int) error
	// IncrementTx returns seats to the pool, e.g. on refund or
	// system cancellation of a confirmed booking.
	IncrementTx(ctx context.Context, tx *gorm.DB, flightID uuid.UUID, cabin enums.CabinClass, seats int) error
	// Availability is the bookable count: available seats minus seats
	// held by unexpired active locks.
	Availability(ctx context.Context, flightID uuid.UUID, cabin enums.CabinClass) (int, error)
	Get(ctx context.Context, flightID uuid.UUID, cabin enums.CabinClass) (*models.FlightInventory, error)
}

type service struct {
	repo Repository
}

// NewService wires an inventory service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) SetCapacity(ctx context.Context, flightID uuid.UUID, cabin enums.CabinClass, totalSeats, availableSeats int) error {
	if flightID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "flight id is required")
	}
	if !cabin.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid cabin class %q", cabin))
	}
	if totalSeats < 0 || availableSeats < 0 || availableSeats > totalSeats {
		return pkgerrors.New(pkgerrors.CodeValidation, "seat counts out of range")
	}
	return s.repo.Upsert(ctx, &models.FlightInventory{
		FlightID:       flightID,
		CabinClass:     cabin,
		TotalSeats:     totalSeats,
		AvailableSeats: availableSeats,
	})
}

func (s *service) DecrementTx(ctx context.Context, tx *gorm.DB, flightID uuid.UUID, cabin enums.CabinClass, seats int) error {
	if err := validateAdjustment(flightID, cabin, seats); err != nil {
		return err
	}
	ok, err := s.repo.WithTx(tx).DecrementSeats(ctx, flightID, cabin, seats)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrement flight inventory")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeInsufficientInventory,
			fmt.Sprintf("flight %s %s has fewer than %d seats available", flightID, cabin, seats))
	}
	return nil
}

func (s *service) IncrementTx(ctx context.Context, tx *gorm.DB, flightID uuid.UUID, cabin enums.CabinClass, seats int) error {
	if err := validateAdjustment(flightID, cabin, seats); err != nil {
		return err
	}
	if err := s.repo.WithTx(tx).IncrementSeats(ctx, flightID, cabin, seats); err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "increment flight inventory")
	}
	return nil
}

func (s *service) Availability(ctx context.Context, flightID uuid.UUID, cabin enums.CabinClass) (int, error) {
	inv, err := s.repo.Find(ctx, flightID, cabin)
	if err != nil {
		return 0, err
	}
	held, err := s.repo.ActiveHeldSeats(ctx, flightID, cabin)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum active seat holds")
	}
	available := inv.AvailableSeats - held
	if available < 0 {
		available = 0
	}
	return available, nil
}

func (s *service) Get(ctx context.Context, flightID uuid.UUID, cabin enums.CabinClass) (*models.FlightInventory, error) {
	if flightID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "flight id is required")
	}
	return s.repo.Find(ctx, flightID, cabin)
}

func validateAdjustment(flightID uuid.UUID, cabin enums.CabinClass, seats int) error {
	if flightID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "flight id is required")
	}
	if !cabin.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid cabin class %q", cabin))
	}
	if seats <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "seat count must be positive")
	}
	return nil
}
