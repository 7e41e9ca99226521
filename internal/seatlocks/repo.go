package seatlocks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skyfare-io/skyfare-backend/pkg/db/models"
	"github.com/skyfare-io/skyfare-backend/pkg/enums"
	pkgerrors "github.com/skyfare-io/skyfare-backend/pkg/errors"
)

// Repository manages persistence for seat locks.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, lock *models.SeatLock) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.SeatLock, error)
	FindActiveBySession(ctx context.Context, sessionID string) (*models.SeatLock, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.SeatLockStatus) (bool, error)
	AttachBooking(ctx context.Context, id, bookingID uuid.UUID) error
	// FindStale returns active locks whose expiry has passed, oldest
	// first, capped at limit.
	FindStale(ctx context.Context, cutoff time.Time, limit int) ([]models.SeatLock, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a seat lock repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, lock *models.SeatLock) error {
	return r.db.WithContext(ctx).Create(lock).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.SeatLock, error) {
	var lock models.SeatLock
	err := r.db.WithContext(ctx).First(&lock, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seat lock not found")
		}
		return nil, err
	}
	return &lock, nil
}

func (r *repository) FindActiveBySession(ctx context.Context, sessionID string) (*models.SeatLock, error) {
	var lock models.SeatLock
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND status = ?", sessionID, enums.SeatLockStatusActive).
		Order("created_at DESC").
		First(&lock).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seat lock not found")
		}
		return nil, err
	}
	return &lock, nil
}

// UpdateStatus flips the lock status only when the current status still
// matches `from`, reporting whether a row changed. The guard keeps the
// sweep and a concurrent convert from both claiming the same lock.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.SeatLockStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.SeatLock{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) AttachBooking(ctx context.Context, id, bookingID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.SeatLock{}).
		Where("id = ?", id).
		Update("booking_id", bookingID).Error
}

func (r *repository) FindStale(ctx context.Context, cutoff time.Time, limit int) ([]models.SeatLock, error) {
	var locks []models.SeatLock
	if err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", enums.SeatLockStatusActive, cutoff).
		Order("expires_at ASC").
		Limit(limit).
		Find(&locks).Error; err != nil {
		return nil, err
	}
	return locks, nil
}
