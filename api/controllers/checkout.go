package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/skyfare-io/skyfare-backend/api/responses"
	"github.com/skyfare-io/skyfare-backend/api/validators"
	checkoutsvc "github.com/skyfare-io/skyfare-backend/internal/checkout"
	"github.com/skyfare-io/skyfare-backend/pkg/enums"
	pkgerrors "github.com/skyfare-io/skyfare-backend/pkg/errors"
	"github.com/skyfare-io/skyfare-backend/pkg/logger"
)

type checkoutRequest struct {
	UserID      string `json:"user_id" validate:"required,uuid"`
	FlightID    string `json:"flight_id" validate:"required,uuid"`
	CabinClass  string `json:"cabin_class" validate:"required,oneof=economy premium_economy business first"`
	Seats       int    `json:"seats" validate:"required,min=1,max=9"`
	SessionID   string `json:"session_id" validate:"required,max=128"`
	FarePerSeat string `json:"fare_per_seat" validate:"required"`
	Currency    string `json:"currency" validate:"required,oneof=USD EUR GBP"`
}

type checkoutResponse struct {
	BookingID       string    `json:"booking_id"`
	Reference       string    `json:"reference"`
	AmountCents     int64     `json:"amount_cents"`
	Currency        string    `json:"currency"`
	SeatLockID      string    `json:"seat_lock_id"`
	LockExpiresAt   time.Time `json:"lock_expires_at"`
	PaymentIntentID string    `json:"payment_intent_id,omitempty"`
	ClientSecret    string    `json:"client_secret,omitempty"`
}

// Checkout opens a booking: seat hold, booking row, payment intent.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid user id"))
			return
		}
		flightID, err := uuid.Parse(req.FlightID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid flight id"))
			return
		}
		fare, err := decimal.NewFromString(strings.TrimSpace(req.FarePerSeat))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "fare_per_seat must be a decimal amount"))
			return
		}

		result, err := svc.Execute(ctx, checkoutsvc.CheckoutInput{
			UserID:         userID,
			FlightID:       flightID,
			CabinClass:     enums.CabinClass(req.CabinClass),
			Seats:          req.Seats,
			SessionID:      validators.SanitizeString(req.SessionID, 128),
			FarePerSeat:    fare,
			Currency:       enums.Currency(req.Currency),
			IdempotencyKey: r.Header.Get("Idempotency-Key"),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			BookingID:       result.BookingID.String(),
			Reference:       result.Reference,
			AmountCents:     result.AmountCents,
			Currency:        string(result.Currency),
			SeatLockID:      result.SeatLockID.String(),
			LockExpiresAt:   result.LockExpiresAt,
			PaymentIntentID: result.PaymentIntentID,
			ClientSecret:    result.ClientSecret,
		})
	}
}
