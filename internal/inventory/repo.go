package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skyfare-io/skyfare-backend/pkg/db/models"
	"github.com/skyfare-io/skyfare-backend/pkg/enums"
	pkgerrors "github.com/skyfare-io/skyfare-backend/pkg/errors"
)

// Repository manages persistence for flight seat inventory.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, inv *models.FlightInventory) error
	Find(ctx context.Context, flightID uuid.UUID, cabin enums.CabinClass) (*models.FlightInventory, error)
	// FindForUpdate locks the inventory row so seat-lock acquisition and
	// the availability check happen against a stable count.
	FindForUpdate(ctx context.Context, flightID uuid.UUID, cabin enums.CabinClass) (*models.FlightInventory, error)
	// DecrementSeats runs the guarded update and reports whether a row
	// changed. Zero rows means the guard failed: not enough seats.
	DecrementSeats(ctx context.Context, flightID uuid.UUID, cabin enums.CabinClass, seats int) (bool, error)
	IncrementSeats(ctx context.Context, flightID uuid.UUID, cabin enums.CabinClass, seats int) error
	ActiveHeldSeats(ctx context.Context, flightID uuid.UUID, cabin enums.CabinClass) (int, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Upsert(ctx context.Context, inv *models.FlightInventory) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "flight_id"}, {Name: "cabin_class"}},
			DoUpdates: clause.AssignmentColumns([]string{"available_seats", "total_seats", "updated_at"}),
		}).
		Create(inv).Error
}

func (r *repository) Find(ctx context.Context, flightID uuid.UUID, cabin enums.CabinClass) (*models.FlightInventory, error) {
	var inv models.FlightInventory
	err := r.db.WithContext(ctx).
		First(&inv, "flight_id = ? AND cabin_class = ?", flightID, cabin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "flight inventory not found")
		}
		return nil, err
	}
	return &inv, nil
}

func (r *repository) FindForUpdate(ctx context.Context, flightID uuid.UUID, cabin enums.CabinClass) (*models.FlightInventory, error) {
	var inv models.FlightInventory
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&inv, "flight_id = ? AND cabin_class = ?", flightID, cabin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "flight inventory not found")
		}
		return nil, err
	}
	return &inv, nil
}

func (r *repository) DecrementSeats(ctx context.Context, flightID uuid.UUID, cabin enums.CabinClass, seats int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.FlightInventory{}).
		Where("flight_id = ? AND cabin_class = ? AND available_seats >= ?", flightID, cabin, seats).
		UpdateColumn("available_seats", gorm.Expr("available_seats - ?", seats))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) IncrementSeats(ctx context.Context, flightID uuid.UUID, cabin enums.CabinClass, seats int) error {
	result := r.db.WithContext(ctx).
		Model(&models.FlightInventory{}).
		Where("flight_id = ? AND cabin_class = ?", flightID, cabin).
		UpdateColumn("available_seats", gorm.Expr("available_seats + ?", seats))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "flight inventory not found")
	}
	return nil
}

func (r *repository) ActiveHeldSeats(ctx context.Context, flightID uuid.UUID, cabin enums.CabinClass) (int, error) {
	var held *int
	err := r.db.WithContext(ctx).
		Model(&models.SeatLock{}).
		Select("SUM(seats)").
		Where("flight_id = ? AND cabin_class = ? AND status = ? AND expires_at > ?",
			flightID, cabin, enums.SeatLockStatusActive, time.Now().UTC()).
		Scan(&held).Error
	if err != nil {
		return 0, err
	}
	if held == nil {
		return 0, nil
	}
	return *held, nil
}
