package payments

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	table := `
CREATE TABLE IF NOT EXISTS processed_payment_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  event_id TEXT NOT NULL UNIQUE,
  type TEXT NOT NULL,
  payload TEXT NOT NULL,
  processed INTEGER NOT NULL DEFAULT 0,
  processed_at DATETIME,
  last_error TEXT,
  retry_count INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(table).Error)
	return db
}

func newGateway(t *testing.T, db *gorm.DB) Gateway {
	t.Helper()
	gw, err := NewGateway(NewRepository(db))
	require.NoError(t, err)
	return gw
}

func TestGateway_Store_Fresh(t *testing.T) {
	db := setupPaymentsTestDB(t)
	gw := newGateway(t, db)
	ctx := context.Background()

	event, fresh, err := gw.Store(ctx, "evt_001", "payment_intent.succeeded", json.RawMessage(`{"id":"evt_001"}`))
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.False(t, event.Processed)
}

func TestGateway_Store_ProcessedDuplicate(t *testing.T) {
	db := setupPaymentsTestDB(t)
	gw := newGateway(t, db)
	ctx := context.Background()

	_, fresh, err := gw.Store(ctx, "evt_002", "payment_intent.succeeded", nil)
	require.NoError(t, err)
	require.True(t, fresh)
	require.NoError(t, gw.MarkProcessed(ctx, "evt_002"))

	event, fresh, err := gw.Store(ctx, "evt_002", "payment_intent.succeeded", nil)
	require.NoError(t, err)
	assert.False(t, fresh, "a processed event must not be handed back for processing")
	assert.True(t, event.Processed)
}

func TestGateway_Store_UnprocessedRedelivery(t *testing.T) {
	db := setupPaymentsTestDB(t)
	gw := newGateway(t, db)
	ctx := context.Background()

	_, fresh, err := gw.Store(ctx, "evt_003", "charge.refunded", nil)
	require.NoError(t, err)
	require.True(t, fresh)
	require.NoError(t, gw.MarkFailed(ctx, "evt_003", errors.New("booking row missing")))

	// The first attempt failed, so the redelivery gets another run.
	event, fresh, err := gw.Store(ctx, "evt_003", "charge.refunded", nil)
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.False(t, event.Processed)
	assert.Equal(t, 1, event.RetryCount)
	require.NotNil(t, event.LastError)
	assert.Equal(t, "booking row missing", *event.LastError)
}

func TestGateway_MarkProcessedClearsError(t *testing.T) {
	db := setupPaymentsTestDB(t)
	gw := newGateway(t, db)
	ctx := context.Background()

	_, _, err := gw.Store(ctx, "evt_004", "payment_intent.payment_failed", nil)
	require.NoError(t, err)
	require.NoError(t, gw.MarkFailed(ctx, "evt_004", errors.New("transient")))
	require.NoError(t, gw.MarkProcessed(ctx, "evt_004"))

	repo := NewRepository(db)
	event, err := repo.FindByEventID(ctx, "evt_004")
	require.NoError(t, err)
	assert.True(t, event.Processed)
	assert.NotNil(t, event.ProcessedAt)
	assert.Nil(t, event.LastError)
}

func TestGateway_Store_Validation(t *testing.T) {
	gw := newGateway(t, setupPaymentsTestDB(t))

	_, _, err := gw.Store(context.Background(), "", "payment_intent.succeeded", nil)
	assert.Error(t, err)

	_, _, err = gw.Store(context.Background(), "evt_005", "", nil)
	assert.Error(t, err)
}
