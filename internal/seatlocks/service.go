package seatlocks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skyfare-io/skyfare-backend/internal/inventory"
	"github.com/skyfare-io/skyfare-backend/pkg/db/models"
	"github.com/skyfare-io/skyfare-backend/pkg/enums"
	pkgerrors "github.com/skyfare-io/skyfare-backend/pkg/errors"
)

// Service manages the lifecycle of seat locks: short-lived holds taken
// during checkout that later convert into a booking, get released, or
// expire and are reclaimed by the sweep.
type Service interface {
	// AcquireTx takes a hold on seats inside the caller's transaction.
	// It locks the inventory row first so two racing sessions cannot
	// both see the last seat as free.
	AcquireTx(ctx context.Context, tx *gorm.DB, input AcquireInput) (*models.SeatLock, error)
	// Release frees an active hold, e.g. when the user abandons checkout.
	Release(ctx context.Context, lockID uuid.UUID) error
	// ConvertTx marks the hold as consumed by a booking. Conversion is
	// tolerant: a lock that already expired under the caller does not
	// fail the surrounding transaction.
	ConvertTx(ctx context.Context, tx *gorm.DB, lockID, bookingID uuid.UUID) error
	// ExpireStaleBatchTx flips a batch of overdue active locks to
	// expired inside the caller's transaction and returns the locks it
	// claimed.
	ExpireStaleBatchTx(ctx context.Context, tx *gorm.DB, batchSize int) ([]models.SeatLock, error)
	GetActiveBySession(ctx context.Context, sessionID string) (*models.SeatLock, error)
}

// AcquireInput captures a seat hold request.
type AcquireInput struct {
	FlightID   uuid.UUID
	CabinClass enums.CabinClass
	Seats      int
	SessionID  string
	TTL        time.Duration
}

// ServiceParams lists the dependencies the seat lock service needs.
type ServiceParams struct {
	Repo          Repository
	InventoryRepo inventory.Repository
	DefaultTTL    time.Duration
}

type service struct {
	repo          Repository
	inventoryRepo inventory.Repository
	defaultTTL    time.Duration
}

// NewService wires a seat lock service from its dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "seat lock repository required")
	}
	if params.InventoryRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory repository required")
	}
	if params.DefaultTTL <= 0 {
		params.DefaultTTL = 10 * time.Minute
	}
	return &service{
		repo:          params.Repo,
		inventoryRepo: params.InventoryRepo,
		defaultTTL:    params.DefaultTTL,
	}, nil
}

func (s *service) AcquireTx(ctx context.Context, tx *gorm.DB, input AcquireInput) (*models.SeatLock, error) {
	if input.FlightID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "flight id is required")
	}
	if !input.CabinClass.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid cabin class %q", input.CabinClass))
	}
	if input.Seats <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seat count must be positive")
	}
	if input.SessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	ttl := input.TTL
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	invRepo := s.inventoryRepo.WithTx(tx)
	inv, err := invRepo.FindForUpdate(ctx, input.FlightID, input.CabinClass)
	if err != nil {
		return nil, err
	}
	held, err := invRepo.ActiveHeldSeats(ctx, input.FlightID, input.CabinClass)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum active seat holds")
	}
	if inv.AvailableSeats-held < input.Seats {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientInventory,
			fmt.Sprintf("flight %s %s cannot hold %d more seats", input.FlightID, input.CabinClass, input.Seats))
	}

	lock := &models.SeatLock{
		ID:         uuid.New(),
		FlightID:   input.FlightID,
		CabinClass: input.CabinClass,
		Seats:      input.Seats,
		SessionID:  input.SessionID,
		Status:     enums.SeatLockStatusActive,
		ExpiresAt:  time.Now().UTC().Add(ttl),
	}
	if err := s.repo.WithTx(tx).Create(ctx, lock); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create seat lock")
	}
	return lock, nil
}

func (s *service) Release(ctx context.Context, lockID uuid.UUID) error {
	if lockID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "seat lock id is required")
	}
	ok, err := s.repo.UpdateStatus(ctx, lockID, enums.SeatLockStatusActive, enums.SeatLockStatusReleased)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "release seat lock")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "seat lock is no longer active")
	}
	return nil
}

func (s *service) ConvertTx(ctx context.Context, tx *gorm.DB, lockID, bookingID uuid.UUID) error {
	if lockID == uuid.Nil || bookingID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "seat lock id and booking id are required")
	}
	repo := s.repo.WithTx(tx)
	if err := repo.AttachBooking(ctx, lockID, bookingID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "attach booking to seat lock")
	}
	// Best effort: the lock may have expired between payment start and
	// webhook delivery. That is fine, the booking already owns its seats.
	if _, err := repo.UpdateStatus(ctx, lockID, enums.SeatLockStatusActive, enums.SeatLockStatusConverted); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "convert seat lock")
	}
	return nil
}

func (s *service) ExpireStaleBatchTx(ctx context.Context, tx *gorm.DB, batchSize int) ([]models.SeatLock, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	repo := s.repo.WithTx(tx)
	stale, err := repo.FindStale(ctx, time.Now().UTC(), batchSize)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list stale seat locks")
	}

	claimed := make([]models.SeatLock, 0, len(stale))
	for _, lock := range stale {
		ok, err := repo.UpdateStatus(ctx, lock.ID, enums.SeatLockStatusActive, enums.SeatLockStatusExpired)
		if err != nil {
			return claimed, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "expire seat lock")
		}
		if !ok {
			// Lost the race to a concurrent convert or release.
			continue
		}
		lock.Status = enums.SeatLockStatusExpired
		claimed = append(claimed, lock)
	}
	return claimed, nil
}

func (s *service) GetActiveBySession(ctx context.Context, sessionID string) (*models.SeatLock, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	return s.repo.FindActiveBySession(ctx, sessionID)
}
