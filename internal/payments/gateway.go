package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/skyfare-io/skyfare-backend/pkg/db"
	"github.com/skyfare-io/skyfare-backend/pkg/db/models"
	pkgerrors "github.com/skyfare-io/skyfare-backend/pkg/errors"
)

// Gateway is the durable dedup layer in front of webhook processing.
// Every incoming gateway event is persisted with processed=false BEFORE
// any business logic runs, so a crash mid-processing leaves the event
// retryable instead of lost, and a redelivery of a processed event is
// recognized without re-running side effects.
type Gateway interface {
	// Store records the event id. The boolean reports whether the event
	// is fresh: false means the id was seen before and already fully
	// processed, so the caller should acknowledge and do nothing.
	Store(ctx context.Context, eventID, eventType string, payload json.RawMessage) (*models.ProcessedPaymentEvent, bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
	MarkFailed(ctx context.Context, eventID string, cause error) error
}

const maxFailureLen = 1024

type gateway struct {
	repo Repository
}

// NewGateway wires the dedup gateway with the provided repository.
func NewGateway(repo Repository) (Gateway, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	return &gateway{repo: repo}, nil
}

func (g *gateway) Store(ctx context.Context, eventID, eventType string, payload json.RawMessage) (*models.ProcessedPaymentEvent, bool, error) {
	if eventID == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	if eventType == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "event type is required")
	}
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	event := &models.ProcessedPaymentEvent{
		EventID: eventID,
		Type:    eventType,
		Payload: payload,
	}
	err := g.repo.Insert(ctx, event)
	if err == nil {
		return event, true, nil
	}
	if !db.IsUniqueViolation(err, "ux_processed_payment_events_event_id") {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store payment event")
	}

	// Lost the insert race or this is a redelivery. Re-read to decide.
	existing, readErr := g.repo.FindByEventID(ctx, eventID)
	if readErr != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, readErr, "reread payment event")
	}
	if existing.Processed {
		return existing, false, nil
	}
	// Stored but never finished: the previous attempt crashed or failed.
	// Hand it back for another run.
	return existing, true, nil
}

func (g *gateway) MarkProcessed(ctx context.Context, eventID string) error {
	if eventID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	if err := g.repo.MarkProcessed(ctx, eventID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark payment event processed")
	}
	return nil
}

func (g *gateway) MarkFailed(ctx context.Context, eventID string, cause error) error {
	if eventID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	failure := "unknown failure"
	if cause != nil {
		failure = cause.Error()
	}
	if len(failure) > maxFailureLen {
		failure = failure[:maxFailureLen]
	}
	if err := g.repo.MarkFailed(ctx, eventID, failure); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark payment event failed")
	}
	return nil
}
