package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/skyfare-io/skyfare-backend/api/responses"
	"github.com/skyfare-io/skyfare-backend/api/validators"
	"github.com/skyfare-io/skyfare-backend/internal/bookings"
	"github.com/skyfare-io/skyfare-backend/pkg/db/models"
	"github.com/skyfare-io/skyfare-backend/pkg/enums"
	pkgerrors "github.com/skyfare-io/skyfare-backend/pkg/errors"
	"github.com/skyfare-io/skyfare-backend/pkg/logger"
)

// TxRunner begins a transaction for handlers whose writes must land
// atomically. Satisfied by db.Client.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type bookingResponse struct {
	ID              string                `json:"id"`
	Reference       string                `json:"reference"`
	FlightID        string                `json:"flight_id"`
	CabinClass      string                `json:"cabin_class"`
	Seats           int                   `json:"seats"`
	Status          string                `json:"status"`
	AmountCents     int64                 `json:"amount_cents"`
	RefundedCents   int64                 `json:"refunded_cents"`
	Currency        string                `json:"currency"`
	PaymentIntentID string                `json:"payment_intent_id,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	History         []bookingHistoryEntry `json:"history,omitempty"`
}

type bookingHistoryEntry struct {
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	Actor      string    `json:"actor"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// BookingDetail returns the booking behind a reference, with its
// status history when ?history=1 is set.
func BookingDetail(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		reference := validators.SanitizeString(chi.URLParam(r, "reference"), 32)
		if reference == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "booking reference required"))
			return
		}

		booking, err := svc.GetByReference(ctx, reference)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := bookingResponse{
			ID:            booking.ID.String(),
			Reference:     booking.Reference,
			FlightID:      booking.FlightID.String(),
			CabinClass:    string(booking.CabinClass),
			Seats:         booking.Seats,
			Status:        string(booking.Status),
			AmountCents:   booking.AmountCents,
			RefundedCents: booking.RefundedCents,
			Currency:      string(booking.Currency),
			CreatedAt:     booking.CreatedAt,
			UpdatedAt:     booking.UpdatedAt,
		}
		if booking.PaymentIntentID != nil {
			resp.PaymentIntentID = *booking.PaymentIntentID
		}

		if r.URL.Query().Get("history") == "1" {
			history, err := svc.History(ctx, booking.ID)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			for _, row := range history {
				entry := bookingHistoryEntry{
					ToStatus:  string(row.NewStatus),
					Actor:     string(row.Actor),
					Reason:    row.Reason,
					CreatedAt: row.CreatedAt,
				}
				if row.PrevStatus != nil {
					entry.FromStatus = string(*row.PrevStatus)
				}
				resp.History = append(resp.History, entry)
			}
		}

		responses.WriteSuccess(w, resp)
	}
}

type transitionRequest struct {
	To     string `json:"to" validate:"required"`
	Reason string `json:"reason" validate:"max=512"`
}

// AdminBookingTransition forces a booking into a new status, subject
// to the lifecycle rules. Illegal edges come back as state conflicts.
// The load and the transition share one transaction under the booking
// row lock so a racing webhook delivery cannot interleave.
func AdminBookingTransition(txr TxRunner, repo bookings.Repository, svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		reference := validators.SanitizeString(chi.URLParam(r, "reference"), 32)
		if reference == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "booking reference required"))
			return
		}

		var req transitionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		target := enums.BookingStatus(req.To)
		if !target.IsValid() {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "unknown booking status").WithDetails(map[string]string{"to": req.To}))
			return
		}

		var booking *models.Booking
		err := txr.WithTx(ctx, func(tx *gorm.DB) error {
			found, err := repo.WithTx(tx).FindByReference(ctx, reference)
			if err != nil {
				return err
			}
			booking, err = repo.WithTx(tx).FindForUpdate(ctx, found.ID)
			if err != nil {
				return err
			}
			return svc.Transition(ctx, tx, booking, target, bookings.TransitionContext{
				Actor:  enums.ActorAdmin,
				Reason: validators.SanitizeString(req.Reason, 512),
			})
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{
			"reference": booking.Reference,
			"status":    string(booking.Status),
		})
	}
}
