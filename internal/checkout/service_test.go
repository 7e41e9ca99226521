package checkout

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/skyfare-io/skyfare-backend/internal/bookings"
	"github.com/skyfare-io/skyfare-backend/internal/inventory"
	"github.com/skyfare-io/skyfare-backend/internal/seatlocks"
	"github.com/skyfare-io/skyfare-backend/pkg/config"
	"github.com/skyfare-io/skyfare-backend/pkg/db/models"
	"github.com/skyfare-io/skyfare-backend/pkg/enums"
	pkgerrors "github.com/skyfare-io/skyfare-backend/pkg/errors"
	"github.com/skyfare-io/skyfare-backend/pkg/outbox"
)

type testTxRunner struct {
	db *gorm.DB
}

func (r *testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

type fakeIntents struct {
	fail   bool
	params *stripe.PaymentIntentParams
}

func (f *fakeIntents) Create(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if f.fail {
		return nil, errors.New("stripe unavailable")
	}
	f.params = params
	return &stripe.PaymentIntent{ID: "pi_test_1", ClientSecret: "pi_test_1_secret"}, nil
}

type fakeIdempotencyStore struct {
	keys map[string]struct{}
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{keys: map[string]struct{}{}}
}

func (f *fakeIdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	if _, ok := f.keys[key]; ok {
		return "1", nil
	}
	return "", nil
}

func (f *fakeIdempotencyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.keys[key]; ok {
		return false, nil
	}
	f.keys[key] = struct{}{}
	return true, nil
}

func (f *fakeIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "sf:idempotency:" + scope + ":" + id
}

func (f *fakeIdempotencyStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

func setupCheckoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	tables := []string{`
CREATE TABLE IF NOT EXISTS bookings (
  id TEXT PRIMARY KEY,
  reference TEXT NOT NULL UNIQUE,
  user_id TEXT NOT NULL,
  flight_id TEXT NOT NULL,
  cabin_class TEXT NOT NULL DEFAULT 'economy',
  seats INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'initiated',
  amount_cents INTEGER NOT NULL,
  refunded_cents INTEGER NOT NULL DEFAULT 0,
  currency TEXT NOT NULL DEFAULT 'USD',
  payment_intent_id TEXT,
  charge_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS booking_status_histories (
  id TEXT PRIMARY KEY,
  booking_id TEXT NOT NULL,
  prev_status TEXT,
  new_status TEXT NOT NULL,
  reason TEXT,
  actor TEXT NOT NULL DEFAULT 'system',
  metadata TEXT,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS flight_inventory (
  flight_id TEXT NOT NULL,
  cabin_class TEXT NOT NULL,
  available_seats INTEGER NOT NULL DEFAULT 0,
  total_seats INTEGER NOT NULL,
  updated_at DATETIME,
  PRIMARY KEY (flight_id, cabin_class)
);`, `
CREATE TABLE IF NOT EXISTS seat_locks (
  id TEXT PRIMARY KEY,
  flight_id TEXT NOT NULL,
  cabin_class TEXT NOT NULL,
  seats INTEGER NOT NULL,
  session_id TEXT NOT NULL,
  booking_id TEXT,
  status TEXT NOT NULL DEFAULT 'active',
  expires_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  dedup_key TEXT NOT NULL DEFAULT '',
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`}
	for _, table := range tables {
		require.NoError(t, db.Exec(table).Error)
	}
	return db
}

type checkoutHarness struct {
	db      *gorm.DB
	svc     Service
	intents *fakeIntents
	idemp   *fakeIdempotencyStore
}

func newCheckoutHarness(t *testing.T) *checkoutHarness {
	t.Helper()
	db := setupCheckoutTestDB(t)

	bookingRepo := bookings.NewRepository(db)
	bookingSvc, err := bookings.NewService(bookingRepo)
	require.NoError(t, err)

	seatLockSvc, err := seatlocks.NewService(seatlocks.ServiceParams{
		Repo:          seatlocks.NewRepository(db),
		InventoryRepo: inventory.NewRepository(db),
	})
	require.NoError(t, err)

	intents := &fakeIntents{}
	idemp := newFakeIdempotencyStore()
	svc, err := NewService(ServiceParams{
		TransactionRunner: &testTxRunner{db: db},
		Bookings:          bookingSvc,
		BookingRepo:       bookingRepo,
		SeatLocks:         seatLockSvc,
		Outbox:            outbox.NewService(outbox.NewRepository(db), nil),
		Intents:           intents,
		Idempotency:       idemp,
		Config: config.CheckoutConfig{
			MaxSeatsPerBooking:  9,
			PaymentWindow:       30 * time.Minute,
			IdempotencyKeyTTL:   24 * time.Hour,
			ReferenceMaxRetries: 5,
		},
	})
	require.NoError(t, err)
	return &checkoutHarness{db: db, svc: svc, intents: intents, idemp: idemp}
}

func (h *checkoutHarness) seedInventory(t *testing.T, flightID uuid.UUID, available int) {
	t.Helper()
	inv := models.FlightInventory{
		FlightID:       flightID,
		CabinClass:     enums.CabinClassEconomy,
		AvailableSeats: available,
		TotalSeats:     180,
	}
	require.NoError(t, h.db.Create(&inv).Error)
}

func validInput(flightID uuid.UUID) CheckoutInput {
	return CheckoutInput{
		UserID:      uuid.New(),
		FlightID:    flightID,
		CabinClass:  enums.CabinClassEconomy,
		Seats:       2,
		SessionID:   "sess-" + uuid.NewString()[:8],
		FarePerSeat: decimal.NewFromFloat(229.00),
		Currency:    enums.CurrencyUSD,
	}
}

func TestService_Execute(t *testing.T) {
	h := newCheckoutHarness(t)
	ctx := context.Background()

	flightID := uuid.New()
	h.seedInventory(t, flightID, 10)

	result, err := h.svc.Execute(ctx, validInput(flightID))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.Reference, "SFR-"))
	assert.Len(t, result.Reference, len("SFR-")+6)
	assert.Equal(t, int64(45800), result.AmountCents)
	assert.Equal(t, "pi_test_1", result.PaymentIntentID)
	assert.Equal(t, "pi_test_1_secret", result.ClientSecret)
	assert.True(t, result.LockExpiresAt.After(time.Now()))

	var booking models.Booking
	require.NoError(t, h.db.First(&booking, "id = ?", result.BookingID).Error)
	assert.Equal(t, enums.BookingStatusInitiated, booking.Status)
	require.NotNil(t, booking.PaymentIntentID)
	assert.Equal(t, "pi_test_1", *booking.PaymentIntentID)

	require.NotNil(t, h.intents.params)
	assert.Equal(t, result.BookingID.String(), h.intents.params.Metadata["booking_id"])
	assert.Equal(t, result.SeatLockID.String(), h.intents.params.Metadata["seat_lock_id"])

	var outboxCount int64
	require.NoError(t, h.db.Model(&models.OutboxEvent{}).
		Where("aggregate_id = ? AND event_type = ?", result.BookingID, enums.EventBookingCreated).
		Count(&outboxCount).Error)
	assert.Equal(t, int64(1), outboxCount)
}

func TestService_Execute_FareMath(t *testing.T) {
	h := newCheckoutHarness(t)
	ctx := context.Background()

	flightID := uuid.New()
	h.seedInventory(t, flightID, 10)

	input := validInput(flightID)
	input.Seats = 3
	input.FarePerSeat = decimal.RequireFromString("123.45")

	result, err := h.svc.Execute(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, int64(37035), result.AmountCents)
}

func TestService_Execute_SeatCap(t *testing.T) {
	h := newCheckoutHarness(t)

	input := validInput(uuid.New())
	input.Seats = 10
	_, err := h.svc.Execute(context.Background(), input)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestService_Execute_InsufficientInventory(t *testing.T) {
	h := newCheckoutHarness(t)
	ctx := context.Background()

	flightID := uuid.New()
	h.seedInventory(t, flightID, 1)

	input := validInput(flightID)
	_, err := h.svc.Execute(ctx, input)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientInventory))

	// Nothing committed: no booking, no hold.
	var bookingCount, lockCount int64
	require.NoError(t, h.db.Model(&models.Booking{}).Where("flight_id = ?", flightID).Count(&bookingCount).Error)
	require.NoError(t, h.db.Model(&models.SeatLock{}).Where("flight_id = ?", flightID).Count(&lockCount).Error)
	assert.Zero(t, bookingCount)
	assert.Zero(t, lockCount)
}

func TestService_Execute_DuplicateIdempotencyKey(t *testing.T) {
	h := newCheckoutHarness(t)
	ctx := context.Background()

	flightID := uuid.New()
	h.seedInventory(t, flightID, 10)

	input := validInput(flightID)
	input.IdempotencyKey = "idem-123"
	_, err := h.svc.Execute(ctx, input)
	require.NoError(t, err)

	_, err = h.svc.Execute(ctx, input)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestService_Execute_IdempotencyKeyReleasedOnFailure(t *testing.T) {
	h := newCheckoutHarness(t)
	ctx := context.Background()

	flightID := uuid.New()
	h.seedInventory(t, flightID, 1)

	input := validInput(flightID)
	input.IdempotencyKey = "idem-retry"
	_, err := h.svc.Execute(ctx, input)
	require.Error(t, err)

	// The key was released, so a corrected retry is not locked out.
	input.Seats = 1
	_, err = h.svc.Execute(ctx, input)
	require.NoError(t, err)
}

func TestService_Execute_IntentFailureKeepsBooking(t *testing.T) {
	h := newCheckoutHarness(t)
	h.intents.fail = true
	ctx := context.Background()

	flightID := uuid.New()
	h.seedInventory(t, flightID, 10)

	_, err := h.svc.Execute(ctx, validInput(flightID))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))

	// The booking and its hold survive for a payment retry; the TTL
	// sweep reclaims them otherwise.
	var bookingCount, lockCount int64
	require.NoError(t, h.db.Model(&models.Booking{}).Where("flight_id = ?", flightID).Count(&bookingCount).Error)
	require.NoError(t, h.db.Model(&models.SeatLock{}).
		Where("flight_id = ? AND status = ?", flightID, enums.SeatLockStatusActive).Count(&lockCount).Error)
	assert.Equal(t, int64(1), bookingCount)
	assert.Equal(t, int64(1), lockCount)
}
