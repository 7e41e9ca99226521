package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skyfare-io/skyfare-backend/pkg/db"
	"github.com/skyfare-io/skyfare-backend/pkg/db/models"
	"github.com/skyfare-io/skyfare-backend/pkg/enums"
	pkgerrors "github.com/skyfare-io/skyfare-backend/pkg/errors"
)

// ErrAlreadyRecorded signals that an identical (event, booking, type)
// entry already exists. Callers treat it as success: the ledger saw the
// money movement once and refuses to see it twice.
var ErrAlreadyRecorded = errors.New("ledger entry already recorded")

// IsAlreadyRecorded reports whether err is the duplicate-entry sentinel.
func IsAlreadyRecorded(err error) bool {
	return errors.Is(err, ErrAlreadyRecorded)
}

// Service records immutable monetary movements. Entries are append-only;
// there is no update or delete surface on purpose.
type Service interface {
	AppendTx(ctx context.Context, tx *gorm.DB, input AppendEntryInput) (*models.LedgerEntry, error)
	ListByBookingID(ctx context.Context, bookingID uuid.UUID) ([]models.LedgerEntry, error)
}

// AppendEntryInput captures the immutable data a ledger entry requires.
type AppendEntryInput struct {
	BookingID   uuid.UUID
	EventID     string
	Type        enums.LedgerEntryType
	AmountCents int64
	Currency    enums.Currency
	Metadata    json.RawMessage
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) AppendTx(ctx context.Context, tx *gorm.DB, input AppendEntryInput) (*models.LedgerEntry, error) {
	if input.BookingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id is required")
	}
	if input.EventID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid ledger entry type %q", input.Type))
	}
	if input.AmountCents == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be non-zero")
	}
	if !input.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid currency %q", input.Currency))
	}

	entry := &models.LedgerEntry{
		ID:          uuid.New(),
		BookingID:   input.BookingID,
		EventID:     input.EventID,
		Type:        input.Type,
		AmountCents: input.AmountCents,
		Currency:    input.Currency,
		Metadata:    input.Metadata,
	}
	if err := s.repo.WithTx(tx).Create(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, "ux_ledger_entries_event_booking_type") {
			return nil, ErrAlreadyRecorded
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append ledger entry")
	}
	return entry, nil
}

func (s *service) ListByBookingID(ctx context.Context, bookingID uuid.UUID) ([]models.LedgerEntry, error) {
	if bookingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id is required")
	}
	return s.repo.ListByBookingID(ctx, bookingID)
}
