package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/skyfare-io/skyfare-backend/internal/seatlocks"
	"github.com/skyfare-io/skyfare-backend/pkg/enums"
	"github.com/skyfare-io/skyfare-backend/pkg/logger"
	"github.com/skyfare-io/skyfare-backend/pkg/outbox"
	"github.com/skyfare-io/skyfare-backend/pkg/outbox/payloads"
)

const defaultSweepBatch = 200

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type seatLockEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// SeatLockSweepJobParams configure the seat lock TTL sweep.
type SeatLockSweepJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	SeatLocks seatlocks.Service
	Outbox    seatLockEmitter
	BatchSize int
}

// NewSeatLockSweepJob builds the job that reclaims overdue holds. Each
// run claims up to BatchSize expired locks and emits a seat_lock_expired
// event per lock in the same transaction, so availability recovery and
// the event record cannot diverge.
func NewSeatLockSweepJob(params SeatLockSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.SeatLocks == nil {
		return nil, fmt.Errorf("seat locks service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &seatLockSweepJob{
		logg:      params.Logger,
		db:        params.DB,
		seatLocks: params.SeatLocks,
		outbox:    params.Outbox,
		batch:     batch,
		now:       time.Now,
	}, nil
}

type seatLockSweepJob struct {
	logg      *logger.Logger
	db        txRunner
	seatLocks seatlocks.Service
	outbox    seatLockEmitter
	batch     int
	now       func() time.Time
}

func (j *seatLockSweepJob) Name() string { return "seat-lock-sweep" }

func (j *seatLockSweepJob) Run(ctx context.Context) error {
	var claimed int
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		locks, err := j.seatLocks.ExpireStaleBatchTx(ctx, tx, j.batch)
		if err != nil {
			return err
		}
		claimed = len(locks)
		expiredAt := j.now().UTC()
		for _, lock := range locks {
			event := outbox.DomainEvent{
				EventType:     enums.EventSeatLockExpired,
				AggregateType: enums.AggregateSeatLock,
				AggregateID:   lock.ID,
				Data: payloads.SeatLockExpiredEvent{
					SeatLockID: lock.ID,
					FlightID:   lock.FlightID,
					CabinClass: lock.CabinClass,
					Seats:      lock.Seats,
					SessionID:  lock.SessionID,
					ExpiredAt:  expiredAt,
				},
			}
			if err := j.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("seat lock sweep: %w", err)
	}
	if claimed > 0 {
		logCtx := j.logg.WithField(ctx, "locks_expired", claimed)
		j.logg.Info(logCtx, "seat lock sweep reclaimed stale holds")
	}
	return nil
}
