package ticketing

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/skyfare-io/skyfare-backend/pkg/errors"
	"github.com/skyfare-io/skyfare-backend/pkg/logger"
)

// airlinePrefix is the three-digit ticketing code stamped on every
// ticket number, IATA style.
const airlinePrefix = "793"

// Ticket is the issued e-ticket record handed back to the caller.
type Ticket struct {
	TicketNumber string
	BookingID    uuid.UUID
	Reference    string
	IssuedAt     time.Time
}

// IssueInput identifies the confirmed booking a ticket is issued for.
type IssueInput struct {
	BookingID uuid.UUID
	Reference string
	UserID    uuid.UUID
}

// Generator issues e-tickets for confirmed bookings. Implementations
// must be idempotent per booking: the dispatch worker may retry after
// transient failures.
type Generator interface {
	Issue(ctx context.Context, input IssueInput) (*Ticket, error)
}

type generator struct {
	logg *logger.Logger
	now  func() time.Time
}

// NewGenerator builds the default ticket generator. It mints ticket
// numbers locally; handoff to the ticketing vendor happens downstream.
func NewGenerator(logg *logger.Logger) (Generator, error) {
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &generator{logg: logg, now: time.Now}, nil
}

func (g *generator) Issue(ctx context.Context, input IssueInput) (*Ticket, error) {
	if input.BookingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id required")
	}
	if input.Reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking reference required")
	}

	number, err := newTicketNumber()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate ticket number")
	}
	ticket := &Ticket{
		TicketNumber: number,
		BookingID:    input.BookingID,
		Reference:    input.Reference,
		IssuedAt:     g.now().UTC(),
	}

	logCtx := g.logg.WithFields(ctx, map[string]any{
		"booking_id":    input.BookingID.String(),
		"reference":     input.Reference,
		"ticket_number": ticket.TicketNumber,
	})
	g.logg.Info(logCtx, "e-ticket issued")
	return ticket, nil
}

// newTicketNumber returns a 13-digit ticket number: the airline prefix
// followed by ten random digits.
func newTicketNumber() (string, error) {
	max := big.NewInt(10_000_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%010d", airlinePrefix, n.Int64()), nil
}
