package ticketing

import (
	"context"
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/skyfare-io/skyfare-backend/pkg/errors"
	"github.com/skyfare-io/skyfare-backend/pkg/logger"
)

func TestGeneratorIssuesTicket(t *testing.T) {
	gen, err := NewGenerator(logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	bookingID := uuid.New()

	ticket, err := gen.Issue(context.Background(), IssueInput{
		BookingID: bookingID,
		Reference: "SFR-A2B3C4",
		UserID:    uuid.New(),
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if ticket.BookingID != bookingID {
		t.Fatalf("expected booking id %s, got %s", bookingID, ticket.BookingID)
	}
	if len(ticket.TicketNumber) != 13 {
		t.Fatalf("expected 13-digit ticket number, got %q", ticket.TicketNumber)
	}
	if ticket.TicketNumber[:3] != airlinePrefix {
		t.Fatalf("expected prefix %s, got %q", airlinePrefix, ticket.TicketNumber)
	}
	if ticket.IssuedAt.IsZero() {
		t.Fatal("expected issued timestamp")
	}
}

func TestGeneratorValidatesInput(t *testing.T) {
	gen, err := NewGenerator(logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	cases := []struct {
		name  string
		input IssueInput
	}{
		{name: "missing booking id", input: IssueInput{Reference: "SFR-A2B3C4"}},
		{name: "missing reference", input: IssueInput{BookingID: uuid.New()}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := gen.Issue(context.Background(), tc.input); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
