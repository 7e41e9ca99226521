package payments

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/skyfare-io/skyfare-backend/pkg/db/models"
	pkgerrors "github.com/skyfare-io/skyfare-backend/pkg/errors"
)

// Repository manages persistence for processed payment events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, event *models.ProcessedPaymentEvent) error
	FindByEventID(ctx context.Context, eventID string) (*models.ProcessedPaymentEvent, error)
	MarkProcessed(ctx context.Context, eventID string) error
	MarkFailed(ctx context.Context, eventID, failure string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a processed-event repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, event *models.ProcessedPaymentEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) FindByEventID(ctx context.Context, eventID string) (*models.ProcessedPaymentEvent, error) {
	var event models.ProcessedPaymentEvent
	err := r.db.WithContext(ctx).First(&event, "event_id = ?", eventID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment event not found")
		}
		return nil, err
	}
	return &event, nil
}

func (r *repository) MarkProcessed(ctx context.Context, eventID string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&models.ProcessedPaymentEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]any{
			"processed":    true,
			"processed_at": now,
			"last_error":   nil,
		}).Error
}

func (r *repository) MarkFailed(ctx context.Context, eventID, failure string) error {
	return r.db.WithContext(ctx).
		Model(&models.ProcessedPaymentEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]any{
			"last_error":  failure,
			"retry_count": gorm.Expr("retry_count + 1"),
		}).Error
}
