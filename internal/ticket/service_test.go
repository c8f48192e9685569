package ticket

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lankaconnect/events-backend/internal/event"
)

type memRepo struct {
	byReg map[uuid.UUID]*Ticket
	byID  map[uuid.UUID]*Ticket
}

func newMemRepo() *memRepo {
	return &memRepo{byReg: map[uuid.UUID]*Ticket{}, byID: map[uuid.UUID]*Ticket{}}
}

func (r *memRepo) Create(ctx context.Context, t *Ticket) error {
	r.byReg[t.RegistrationID] = t
	r.byID[t.ID] = t
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	t, ok := r.byID[id]
	if !ok {
		return nil, ErrTicketNotFound
	}
	return t, nil
}

func (r *memRepo) GetByRegistrationID(ctx context.Context, registrationID uuid.UUID) (*Ticket, error) {
	t, ok := r.byReg[registrationID]
	if !ok {
		return nil, ErrTicketNotFound
	}
	return t, nil
}

func fixtureEventAndRegistration() (*event.Event, *event.Registration) {
	start := time.Now().UTC().Add(24 * time.Hour)
	ev := &event.Event{
		ID:        uuid.New(),
		Title:     "Vesak Celebration",
		StartDate: start,
		EndDate:   start.Add(3 * time.Hour),
		Location:  &event.EventLocation{VenueName: "Temple Grounds", City: "Edison", State: "NJ"},
	}
	reg := &event.Registration{
		ID:      uuid.New(),
		EventID: ev.ID,
		Attendees: []event.AttendeeDetails{
			{Name: "Nimal", AgeCategory: event.AgeAdult},
			{Name: "Sanduni", AgeCategory: event.AgeChild},
		},
		Contact: &event.RegistrationContact{Email: "nimal@example.com"},
		Status:  event.RegistrationConfirmed,
	}
	return ev, reg
}

func TestGenerateTicketIssuesCode(t *testing.T) {
	svc := NewService(newMemRepo(), zap.NewNop())
	ev, reg := fixtureEventAndRegistration()

	info, err := svc.GenerateTicket(context.Background(), ev, reg)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(info.TicketCode, "TKT-"), "code %q should carry the TKT- prefix", info.TicketCode)
	assert.NotEqual(t, uuid.Nil, info.ID)
}

func TestGenerateTicketIsIdempotent(t *testing.T) {
	svc := NewService(newMemRepo(), zap.NewNop())
	ev, reg := fixtureEventAndRegistration()

	first, err := svc.GenerateTicket(context.Background(), ev, reg)
	require.NoError(t, err)
	second, err := svc.GenerateTicket(context.Background(), ev, reg)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.TicketCode, second.TicketCode)
}

func TestFindTicketCodeReturnsEmptyWhenNoTicket(t *testing.T) {
	svc := NewService(newMemRepo(), zap.NewNop())

	code, err := svc.FindTicketCode(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, code)
}

func TestGetTicketPDFRendersDocument(t *testing.T) {
	svc := NewService(newMemRepo(), zap.NewNop())
	ev, reg := fixtureEventAndRegistration()

	pdf, err := svc.GetTicketPDF(context.Background(), ev, reg)
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")), "output should be a PDF document")
	assert.Greater(t, len(pdf), 500)
}

func TestGetTicketPDFHandlesLegacyRegistrationWithoutContact(t *testing.T) {
	svc := NewService(newMemRepo(), zap.NewNop())
	ev, reg := fixtureEventAndRegistration()
	reg.Contact = nil

	pdf, err := svc.GetTicketPDF(context.Background(), ev, reg)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}
