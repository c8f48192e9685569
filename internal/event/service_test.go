package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lankaconnect/events-backend/internal/reports"
)

// --- fakes ---

type memRepo struct {
	events map[uuid.UUID]*Event
	saves  int
}

func newMemRepo() *memRepo {
	return &memRepo{events: map[uuid.UUID]*Event{}}
}

func (r *memRepo) Create(ctx context.Context, e *Event) error {
	r.events[e.ID] = e
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	ev, ok := r.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return ev, nil
}

func (r *memRepo) GetByCheckoutSession(ctx context.Context, sessionID string) (*Event, *Registration, error) {
	for _, ev := range r.events {
		for i := range ev.Registrations {
			reg := &ev.Registrations[i]
			if reg.CheckoutSessionID != nil && *reg.CheckoutSessionID == sessionID {
				return ev, reg, nil
			}
		}
	}
	return nil, nil, ErrRegistrationNotFound
}

func (r *memRepo) GetRegistration(ctx context.Context, registrationID uuid.UUID) (*Registration, error) {
	for _, ev := range r.events {
		if reg := ev.FindRegistration(registrationID); reg != nil {
			return reg, nil
		}
	}
	return nil, ErrRegistrationNotFound
}

func (r *memRepo) Save(ctx context.Context, e *Event) error {
	r.events[e.ID] = e
	r.saves++
	return nil
}

func (r *memRepo) ListExpiredPreliminary(ctx context.Context, cutoff time.Time) ([]Registration, error) {
	var out []Registration
	for _, ev := range r.events {
		for i := range ev.Registrations {
			reg := &ev.Registrations[i]
			if reg.Status == RegistrationPreliminary && reg.CheckoutSessionExpiresAt != nil && reg.CheckoutSessionExpiresAt.Before(cutoff) {
				out = append(out, *reg)
			}
		}
	}
	return out, nil
}

func (r *memRepo) SaveRegistration(ctx context.Context, reg *Registration) error {
	return nil
}

type memMembers struct {
	emails map[string]bool
}

func (m *memMembers) ExistsWithEmail(ctx context.Context, email string) (bool, error) {
	return m.emails[email], nil
}

type fakeCheckout struct {
	err   error
	calls int
}

func (c *fakeCheckout) CreateEventCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	c.calls++
	if c.err != nil {
		return CheckoutSession{}, c.err
	}
	return CheckoutSession{ID: "cs_" + req.RegistrationID.String()[:8], URL: "https://pay.example/checkout"}, nil
}

type fakeRevenue struct {
	err error
}

func (c *fakeRevenue) CalculateBreakdown(ctx context.Context, price Money, location *EventLocation) (RevenueBreakdown, error) {
	if c.err != nil {
		return RevenueBreakdown{}, c.err
	}
	return RevenueBreakdown{
		SalesTax:           Money{Amount: 3.31, Currency: price.Currency},
		ProcessorFee:       Money{Amount: 1.75, Currency: price.Currency},
		PlatformCommission: Money{Amount: 2.50, Currency: price.Currency},
		OrganizerPayout:    Money{Amount: price.Amount - 7.56, Currency: price.Currency},
		SalesTaxRate:       0.06625,
	}, nil
}

type fakeTickets struct{}

func (fakeTickets) GenerateTicket(ctx context.Context, ev *Event, reg *Registration) (TicketInfo, error) {
	return TicketInfo{ID: uuid.New(), TicketCode: "TKT-TEST"}, nil
}

func (fakeTickets) GetTicketPDF(ctx context.Context, ev *Event, reg *Registration) ([]byte, error) {
	return []byte("%PDF-fake"), nil
}

func (fakeTickets) FindTicketCode(ctx context.Context, registrationID uuid.UUID) (string, error) {
	return "TKT-TEST", nil
}

type fakeEmails struct {
	freeSent int
	paidSent int
	lastPDF  []byte
}

func (e *fakeEmails) SendFreeConfirmation(ctx context.Context, ev *Event, reg *Registration) error {
	e.freeSent++
	return nil
}

func (e *fakeEmails) SendPaidConfirmation(ctx context.Context, ev *Event, reg *Registration, ticketPDF []byte) error {
	e.paidSent++
	e.lastPDF = ticketPDF
	return nil
}

var passLock = LockerFunc(func(ctx context.Context, eventID string, fn func() error) error {
	return fn()
})

type fixture struct {
	repo     *memRepo
	members  *memMembers
	checkout *fakeCheckout
	emails   *fakeEmails
	svc      Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:     newMemRepo(),
		members:  &memMembers{emails: map[string]bool{}},
		checkout: &fakeCheckout{},
		emails:   &fakeEmails{},
	}
	f.svc = NewService(f.repo, f.members, f.checkout, &fakeRevenue{}, fakeTickets{}, f.emails, nil, passLock, nil, reports.NewExporter(), zap.NewNop())
	return f
}

func (f *fixture) addEvent(t *testing.T, price *Money) *Event {
	t.Helper()
	ev := newPublishedEvent(t, 20, price)
	f.repo.events[ev.ID] = ev
	return ev
}

// --- registration flow ---

func TestRegisterAttendeesFreeEventReturnsNoCheckoutURL(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(t, nil)

	res, err := f.svc.RegisterAttendees(context.Background(), RegisterAttendeesInput{
		EventID:   ev.ID,
		Attendees: attendees(2),
		Contact:   contact("guest@example.com"),
	})
	require.NoError(t, err)

	assert.Nil(t, res.CheckoutURL)
	assert.Equal(t, RegistrationConfirmed, res.Status)
	assert.Equal(t, PaymentNotRequired, res.PaymentStatus)
	assert.Zero(t, f.checkout.calls)
}

func TestRegisterAttendeesPaidEventReturnsCheckoutURL(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(t, &Money{Amount: 25, Currency: "USD"})

	res, err := f.svc.RegisterAttendees(context.Background(), RegisterAttendeesInput{
		EventID:    ev.ID,
		Attendees:  attendees(2),
		Contact:    contact("guest@example.com"),
		SuccessURL: "https://app.example/success",
		CancelURL:  "https://app.example/cancel",
	})
	require.NoError(t, err)

	require.NotNil(t, res.CheckoutURL)
	assert.Equal(t, "https://pay.example/checkout", *res.CheckoutURL)
	assert.Equal(t, RegistrationPreliminary, res.Status)
	assert.Equal(t, PaymentPending, res.PaymentStatus)

	saved := ev.FindRegistration(res.RegistrationID)
	require.NotNil(t, saved)
	require.NotNil(t, saved.CheckoutSessionID)
	assert.Equal(t, 50.0, saved.TotalPrice.Amount)
	assert.False(t, saved.BreakdownDegraded)
	assert.InDelta(t, 2.50, saved.PlatformCommissionAmount, 0.001)
}

func TestRegisterAttendeesPaidEventRequiresRedirectURLs(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(t, &Money{Amount: 25, Currency: "USD"})

	_, err := f.svc.RegisterAttendees(context.Background(), RegisterAttendeesInput{
		EventID:   ev.ID,
		Attendees: attendees(1),
		Contact:   contact("guest@example.com"),
	})
	assert.ErrorIs(t, err, ErrCheckoutURLsNeeded)
	assert.Equal(t, 0, ev.CurrentRegistrations())
}

func TestRegisterAttendeesBreakdownFailureDegradesGracefully(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(t, &Money{Amount: 25, Currency: "USD"})
	f.svc = NewService(f.repo, f.members, f.checkout, &fakeRevenue{err: errors.New("tax service down")}, fakeTickets{}, f.emails, nil, passLock, nil, reports.NewExporter(), zap.NewNop())

	res, err := f.svc.RegisterAttendees(context.Background(), RegisterAttendeesInput{
		EventID:    ev.ID,
		Attendees:  attendees(1),
		Contact:    contact("guest@example.com"),
		SuccessURL: "https://app.example/success",
		CancelURL:  "https://app.example/cancel",
	})
	require.NoError(t, err)

	saved := ev.FindRegistration(res.RegistrationID)
	require.NotNil(t, saved)
	assert.True(t, saved.BreakdownDegraded)
	assert.Zero(t, saved.OrganizerPayoutAmount)
}

func TestRegisterAttendeesAnonymousMemberEmailRejected(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(t, nil)
	f.members.emails["member@example.com"] = true

	_, err := f.svc.RegisterAttendees(context.Background(), RegisterAttendeesInput{
		EventID:   ev.ID,
		Attendees: attendees(1),
		Contact:   contact("Member@Example.com"),
	})
	assert.ErrorIs(t, err, ErrMemberEmail)
	assert.Equal(t, 0, ev.CurrentRegistrations())
}

func TestRegisterAttendeesAnonymousDuplicateEmailRejected(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(t, nil)

	in := RegisterAttendeesInput{
		EventID:   ev.ID,
		Attendees: attendees(1),
		Contact:   contact("guest@example.com"),
	}
	_, err := f.svc.RegisterAttendees(context.Background(), in)
	require.NoError(t, err)

	_, err = f.svc.RegisterAttendees(context.Background(), in)
	assert.ErrorIs(t, err, ErrEmailAlreadyInUse)
	assert.Equal(t, 1, ev.CurrentRegistrations())
}

func TestRegisterAttendeesCheckoutFailureLeavesNoRegistration(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(t, &Money{Amount: 25, Currency: "USD"})
	f.checkout.err = errors.New("gateway unavailable")

	_, err := f.svc.RegisterAttendees(context.Background(), RegisterAttendeesInput{
		EventID:    ev.ID,
		Attendees:  attendees(1),
		Contact:    contact("guest@example.com"),
		SuccessURL: "https://app.example/success",
		CancelURL:  "https://app.example/cancel",
	})
	require.Error(t, err)
	// Nothing was saved, so the aggregate in storage never grew.
	assert.Zero(t, f.repo.saves)
}

// --- payment completion ---

func TestCompletePaymentConfirmsViaSessionID(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(t, &Money{Amount: 10, Currency: "USD"})

	res, err := f.svc.RegisterAttendees(context.Background(), RegisterAttendeesInput{
		EventID:    ev.ID,
		Attendees:  attendees(1),
		Contact:    contact("guest@example.com"),
		SuccessURL: "https://app.example/success",
		CancelURL:  "https://app.example/cancel",
	})
	require.NoError(t, err)

	reg := ev.FindRegistration(res.RegistrationID)
	require.NotNil(t, reg.CheckoutSessionID)

	require.NoError(t, f.svc.CompletePayment(context.Background(), *reg.CheckoutSessionID, "pay_123"))
	assert.Equal(t, RegistrationConfirmed, reg.Status)
	assert.Equal(t, PaymentCompleted, reg.PaymentStatus)

	// A webhook retry is a hard failure the caller can map to success.
	err = f.svc.CompletePayment(context.Background(), *reg.CheckoutSessionID, "pay_123")
	assert.ErrorIs(t, err, ErrPaymentAlreadyCompleted)
}

func TestCompletePaymentUnknownSession(t *testing.T) {
	f := newFixture(t)
	err := f.svc.CompletePayment(context.Background(), "cs_missing", "pay_123")
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
}

func TestAbandonExpiredCheckouts(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(t, &Money{Amount: 10, Currency: "USD"})

	res, err := f.svc.RegisterAttendees(context.Background(), RegisterAttendeesInput{
		EventID:    ev.ID,
		Attendees:  attendees(2),
		Contact:    contact("guest@example.com"),
		SuccessURL: "https://app.example/success",
		CancelURL:  "https://app.example/cancel",
	})
	require.NoError(t, err)

	reg := ev.FindRegistration(res.RegistrationID)
	past := time.Now().UTC().Add(-time.Hour)
	reg.CheckoutSessionExpiresAt = &past

	n, err := f.svc.AbandonExpiredCheckouts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, RegistrationAbandoned, reg.Status)
	assert.Equal(t, 0, ev.CurrentRegistrations())

	// Second sweep finds nothing.
	n, err = f.svc.AbandonExpiredCheckouts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

// --- anonymous sign-up commitments ---

func setupSignUp(t *testing.T, f *fixture) (*Event, uuid.UUID) {
	t.Helper()
	ev := f.addEvent(t, nil)
	list, err := NewSignUpList("food", "Potluck", "")
	require.NoError(t, err)
	item, err := list.AddItem("Rice", 10)
	require.NoError(t, err)
	itemID := item.ID
	require.NoError(t, ev.AddSignUpList(list))
	return ev, itemID
}

func TestCommitAnonymousMemberEmailGetsMemberAccountError(t *testing.T) {
	f := newFixture(t)
	ev, itemID := setupSignUp(t, f)
	f.members.emails["member@example.com"] = true

	err := f.svc.CommitToSignUpItemAnonymous(context.Background(), ev.ID, itemID, CommitmentInput{
		Quantity:     2,
		ContactEmail: "member@example.com",
	})
	var commitErr *CommitError
	require.ErrorAs(t, err, &commitErr)
	assert.Equal(t, CommitMemberAccount, commitErr.Kind)
	assert.Contains(t, err.Error(), "MEMBER_ACCOUNT:")
}

func TestCommitAnonymousUnregisteredEmailGetsNotRegisteredError(t *testing.T) {
	f := newFixture(t)
	ev, itemID := setupSignUp(t, f)

	err := f.svc.CommitToSignUpItemAnonymous(context.Background(), ev.ID, itemID, CommitmentInput{
		Quantity:     2,
		ContactEmail: "stranger@example.com",
	})
	var commitErr *CommitError
	require.ErrorAs(t, err, &commitErr)
	assert.Equal(t, CommitNotRegistered, commitErr.Kind)
	assert.Contains(t, err.Error(), "NOT_REGISTERED:")
}

func TestCommitAnonymousRegisteredEmailSucceeds(t *testing.T) {
	f := newFixture(t)
	ev, itemID := setupSignUp(t, f)

	_, err := f.svc.RegisterAttendees(context.Background(), RegisterAttendeesInput{
		EventID:   ev.ID,
		Attendees: attendees(1),
		Contact:   contact("guest@example.com"),
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.CommitToSignUpItemAnonymous(context.Background(), ev.ID, itemID, CommitmentInput{
		Quantity:     3,
		ContactName:  "Guest",
		ContactEmail: "Guest@Example.com",
	}))

	item := ev.GetItem(itemID)
	require.NotNil(t, item)
	c := item.CommitmentFor(AnonymousUserID("guest@example.com"))
	require.NotNil(t, c)
	assert.Equal(t, 3, c.Quantity)
	assert.Equal(t, "guest@example.com", c.ContactEmail)
}

func TestCommitAnonymousRepeatVisitUpdatesOwnCommitment(t *testing.T) {
	f := newFixture(t)
	ev, itemID := setupSignUp(t, f)

	_, err := f.svc.RegisterAttendees(context.Background(), RegisterAttendeesInput{
		EventID:   ev.ID,
		Attendees: attendees(1),
		Contact:   contact("guest@example.com"),
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.CommitToSignUpItemAnonymous(context.Background(), ev.ID, itemID, CommitmentInput{
		Quantity:     4,
		ContactEmail: "guest@example.com",
	}))
	// Same email again replaces the prior quantity instead of failing or
	// double-counting.
	require.NoError(t, f.svc.CommitToSignUpItemAnonymous(context.Background(), ev.ID, itemID, CommitmentInput{
		Quantity:     7,
		ContactEmail: "GUEST@example.com",
	}))

	item := ev.GetItem(itemID)
	require.NotNil(t, item)
	require.Len(t, item.Commitments, 1)
	assert.Equal(t, 7, item.Commitments[0].Quantity)
	assert.Equal(t, 3, item.RemainingQuantity())
}

// --- resend confirmation ---

func TestResendConfirmationBranchesOnPaymentStatus(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(t, nil)

	res, err := f.svc.RegisterAttendees(context.Background(), RegisterAttendeesInput{
		EventID:   ev.ID,
		Attendees: attendees(1),
		Contact:   contact("guest@example.com"),
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.ResendConfirmation(context.Background(), ev.ID, res.RegistrationID, ev.OrganizerID))
	assert.Equal(t, 1, f.emails.freeSent)
	assert.Zero(t, f.emails.paidSent)
}

func TestResendConfirmationPaidAttachesTicket(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(t, &Money{Amount: 10, Currency: "USD"})

	res, err := f.svc.RegisterAttendees(context.Background(), RegisterAttendeesInput{
		EventID:    ev.ID,
		Attendees:  attendees(1),
		Contact:    contact("guest@example.com"),
		SuccessURL: "https://app.example/success",
		CancelURL:  "https://app.example/cancel",
	})
	require.NoError(t, err)

	reg := ev.FindRegistration(res.RegistrationID)
	require.NoError(t, f.svc.CompletePayment(context.Background(), *reg.CheckoutSessionID, "pay_1"))

	require.NoError(t, f.svc.ResendConfirmation(context.Background(), ev.ID, res.RegistrationID, ev.OrganizerID))
	assert.Equal(t, 1, f.emails.paidSent)
	assert.Equal(t, []byte("%PDF-fake"), f.emails.lastPDF)
}

func TestResendConfirmationRejectsPendingPayment(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(t, &Money{Amount: 10, Currency: "USD"})

	res, err := f.svc.RegisterAttendees(context.Background(), RegisterAttendeesInput{
		EventID:    ev.ID,
		Attendees:  attendees(1),
		Contact:    contact("guest@example.com"),
		SuccessURL: "https://app.example/success",
		CancelURL:  "https://app.example/cancel",
	})
	require.NoError(t, err)

	err = f.svc.ResendConfirmation(context.Background(), ev.ID, res.RegistrationID, ev.OrganizerID)
	assert.ErrorIs(t, err, ErrCannotResendConfirmation)
}

func TestResendConfirmationRequiresOrganizer(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(t, nil)

	res, err := f.svc.RegisterAttendees(context.Background(), RegisterAttendeesInput{
		EventID:   ev.ID,
		Attendees: attendees(1),
		Contact:   contact("guest@example.com"),
	})
	require.NoError(t, err)

	err = f.svc.ResendConfirmation(context.Background(), ev.ID, res.RegistrationID, uuid.New())
	assert.ErrorIs(t, err, ErrNotOrganizer)
}

// --- exports ---

func TestExportRegistrationsCSV(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(t, nil)

	_, err := f.svc.RegisterAttendees(context.Background(), RegisterAttendeesInput{
		EventID:   ev.ID,
		Attendees: attendees(2),
		Contact:   contact("guest@example.com"),
	})
	require.NoError(t, err)

	data, filename, contentType, err := f.svc.ExportRegistrations(context.Background(), ev.ID, ev.OrganizerID, reports.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, filename, ".csv")
	assert.Contains(t, string(data), "guest@example.com")
}

func TestExportRegistrationsRequiresOrganizer(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(t, nil)

	_, _, _, err := f.svc.ExportRegistrations(context.Background(), ev.ID, uuid.New(), reports.FormatCSV)
	assert.ErrorIs(t, err, ErrNotOrganizer)
}
