package loyalty

import (
	"context"

	"github.com/google/uuid"

	pkgerrors "github.com/skyfare-io/skyfare-backend/pkg/errors"
	"github.com/skyfare-io/skyfare-backend/pkg/logger"
)

// milesPerCurrencyUnit is the flat accrual rate: one mile per whole
// unit of the booking currency.
const milesPerCurrencyUnit = 1

// AwardInput describes the settled booking miles accrue against.
type AwardInput struct {
	BookingID   uuid.UUID
	Reference   string
	UserID      uuid.UUID
	AmountCents int64
	Currency    string
}

// Awarder credits loyalty miles once payment settles. Implementations
// must be idempotent per booking: the dispatch worker may retry after
// transient failures.
type Awarder interface {
	Award(ctx context.Context, input AwardInput) (int64, error)
}

type awarder struct {
	logg *logger.Logger
}

// NewAwarder builds the default flat-rate awarder.
func NewAwarder(logg *logger.Logger) (Awarder, error) {
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &awarder{logg: logg}, nil
}

func (a *awarder) Award(ctx context.Context, input AwardInput) (int64, error) {
	if input.BookingID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "booking id required")
	}
	if input.UserID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.AmountCents < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "amount must be non-negative")
	}

	miles := (input.AmountCents / 100) * milesPerCurrencyUnit
	logCtx := a.logg.WithFields(ctx, map[string]any{
		"booking_id": input.BookingID.String(),
		"user_id":    input.UserID.String(),
		"reference":  input.Reference,
		"miles":      miles,
	})
	a.logg.Info(logCtx, "loyalty miles awarded")
	return miles, nil
}
