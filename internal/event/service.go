package event

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lankaconnect/events-backend/internal/auditlog"
	"github.com/lankaconnect/events-backend/internal/reports"
	"github.com/lankaconnect/events-backend/utils"
)

// CheckoutSessionRequest is what the payment gateway needs to create a
// hosted checkout for a preliminary registration.
type CheckoutSessionRequest struct {
	EventID        uuid.UUID
	RegistrationID uuid.UUID
	EventTitle     string
	Amount         float64
	Currency       string
	SuccessURL     string
	CancelURL      string
	Metadata       map[string]string
}

// CheckoutSession is the gateway's answer: the session id stored on the
// registration and the URL the attendee is redirected to.
type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutService is implemented by the payments package.
type CheckoutService interface {
	CreateEventCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
}

// RevenueCalculator computes the fee breakdown for a paid registration.
// Failures are tolerated: registration proceeds with a degraded breakdown.
type RevenueCalculator interface {
	CalculateBreakdown(ctx context.Context, price Money, location *EventLocation) (RevenueBreakdown, error)
}

// TicketInfo identifies an issued ticket.
type TicketInfo struct {
	ID         uuid.UUID
	TicketCode string
}

// TicketService issues tickets and renders their PDFs for paid,
// payment-completed registrations.
type TicketService interface {
	GenerateTicket(ctx context.Context, ev *Event, reg *Registration) (TicketInfo, error)
	GetTicketPDF(ctx context.Context, ev *Event, reg *Registration) ([]byte, error)
	// FindTicketCode returns the empty string when no ticket exists yet.
	FindTicketCode(ctx context.Context, registrationID uuid.UUID) (string, error)
}

// ConfirmationEmailSender delivers registration confirmations. Paid
// confirmations carry the ticket PDF as an attachment.
type ConfirmationEmailSender interface {
	SendFreeConfirmation(ctx context.Context, ev *Event, reg *Registration) error
	SendPaidConfirmation(ctx context.Context, ev *Event, reg *Registration, ticketPDF []byte) error
}

// MemberDirectory answers whether an email already belongs to a member
// account. Anonymous flows use it to force members onto the signed-in path.
type MemberDirectory interface {
	ExistsWithEmail(ctx context.Context, email string) (bool, error)
}

// Locker serializes mutations of one event aggregate. The lock must be held
// across the whole load-check-mutate-save cycle.
type Locker interface {
	WithLock(ctx context.Context, eventID string, fn func() error) error
}

// LockerFunc adapts a function to the Locker interface.
type LockerFunc func(ctx context.Context, eventID string, fn func() error) error

func (f LockerFunc) WithLock(ctx context.Context, eventID string, fn func() error) error {
	return f(ctx, eventID, fn)
}

// CreateEventInput carries everything needed to create a draft event.
type CreateEventInput struct {
	Title       string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	OrganizerID uuid.UUID
	Capacity    int
	Category    string
	Location    *EventLocation
	TicketPrice *Money
}

// RegisterAttendeesInput is the multi-attendee registration request.
// UserID nil means an anonymous registration identified by contact email.
type RegisterAttendeesInput struct {
	EventID    uuid.UUID
	UserID     *uuid.UUID
	Attendees  []AttendeeDetails
	Contact    RegistrationContact
	SuccessURL string
	CancelURL  string
}

// RegistrationResult is what registration returns to the caller.
// CheckoutURL is nil for free events and set for paid ones.
type RegistrationResult struct {
	RegistrationID uuid.UUID
	Status         RegistrationStatus
	PaymentStatus  PaymentStatus
	TotalPrice     *Money
	CheckoutURL    *string
}

// SignUpItemInput is one item of a new sign-up list.
type SignUpItemInput struct {
	Name          string
	TotalQuantity int
}

// CommitmentInput carries the quantity and contact details of a pledge.
type CommitmentInput struct {
	Quantity     int
	Notes        string
	ContactName  string
	ContactEmail string
	ContactPhone string
}

type Service interface {
	CreateEvent(ctx context.Context, in CreateEventInput) (*Event, error)
	GetEvent(ctx context.Context, eventID uuid.UUID) (*Event, error)
	GetEventSummary(ctx context.Context, eventID uuid.UUID) (*EventSummary, error)
	PublishEvent(ctx context.Context, eventID, organizerID uuid.UUID) error
	SubmitEventForReview(ctx context.Context, eventID, organizerID uuid.UUID) error
	ApproveEvent(ctx context.Context, eventID, adminID uuid.UUID) error
	RejectEvent(ctx context.Context, eventID, adminID uuid.UUID, reason string) error
	CancelEvent(ctx context.Context, eventID, organizerID uuid.UUID, reason string) error
	PostponeEvent(ctx context.Context, eventID, organizerID uuid.UUID, reason string) error
	ArchiveEvent(ctx context.Context, eventID, organizerID uuid.UUID) error
	UpdateEventCapacity(ctx context.Context, eventID, organizerID uuid.UUID, newCapacity int) error

	RsvpToEvent(ctx context.Context, eventID, userID uuid.UUID, quantity int) (*Registration, error)
	RegisterAttendees(ctx context.Context, in RegisterAttendeesInput) (*RegistrationResult, error)
	CancelRegistration(ctx context.Context, eventID, userID uuid.UUID) error
	UpdateRegistrationQuantity(ctx context.Context, eventID, userID uuid.UUID, newQuantity int) error
	CheckInRegistration(ctx context.Context, eventID, registrationID, organizerID uuid.UUID) error
	ResendConfirmation(ctx context.Context, eventID, registrationID, organizerID uuid.UUID) error

	CompletePayment(ctx context.Context, checkoutSessionID, paymentRef string) error
	FailPayment(ctx context.Context, checkoutSessionID string) error
	AbandonExpiredCheckouts(ctx context.Context) (int, error)
	RequestRefund(ctx context.Context, eventID, registrationID uuid.UUID) error
	CompleteRefund(ctx context.Context, eventID, registrationID uuid.UUID, refundRef string) error

	AddSignUpList(ctx context.Context, eventID, organizerID uuid.UUID, category, title, description string, items []SignUpItemInput) (*SignUpList, error)
	RemoveSignUpList(ctx context.Context, eventID, organizerID, listID uuid.UUID) error
	CommitToSignUpItem(ctx context.Context, eventID, itemID, userID uuid.UUID, in CommitmentInput) error
	CommitToSignUpItemAnonymous(ctx context.Context, eventID, itemID uuid.UUID, in CommitmentInput) error
	UpdateCommitment(ctx context.Context, eventID, itemID, userID uuid.UUID, in CommitmentInput) error
	WithdrawCommitment(ctx context.Context, eventID, itemID, userID uuid.UUID) error
	WithdrawCommitmentAnonymous(ctx context.Context, eventID, itemID uuid.UUID, email string) error

	ExportRegistrations(ctx context.Context, eventID, organizerID uuid.UUID, format string) ([]byte, string, string, error)
	ExportCommitments(ctx context.Context, eventID, organizerID uuid.UUID, format string) ([]byte, string, string, error)
}

type service struct {
	repo     Repository
	members  MemberDirectory
	checkout CheckoutService
	revenue  RevenueCalculator
	tickets  TicketService
	emails   ConfirmationEmailSender
	audit    auditlog.Service
	locker   Locker
	cache    *SummaryCache
	exporter reports.Exporter
	logger   *zap.Logger
}

func NewService(
	repo Repository,
	members MemberDirectory,
	checkout CheckoutService,
	revenue RevenueCalculator,
	tickets TicketService,
	emails ConfirmationEmailSender,
	audit auditlog.Service,
	locker Locker,
	cache *SummaryCache,
	exporter reports.Exporter,
	logger *zap.Logger,
) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		repo:     repo,
		members:  members,
		checkout: checkout,
		revenue:  revenue,
		tickets:  tickets,
		emails:   emails,
		audit:    audit,
		locker:   locker,
		cache:    cache,
		exporter: exporter,
		logger:   logger,
	}
}

// logAudit is best effort: audit failures never fail the operation.
func (s *service) logAudit(ctx context.Context, userID, eventID *uuid.UUID, action string, details map[string]interface{}, status string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogAction(ctx, userID, eventID, action, details, status); err != nil {
		s.logger.Warn("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *service) invalidateSummary(ctx context.Context, eventID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, eventID); err != nil {
		s.logger.Warn("summary cache invalidation failed", zap.String("event_id", eventID.String()), zap.Error(err))
	}
}

// withEvent runs fn against a freshly loaded aggregate under the event lock
// and saves the aggregate when fn succeeds.
func (s *service) withEvent(ctx context.Context, eventID uuid.UUID, fn func(ev *Event) error) error {
	err := s.locker.WithLock(ctx, eventID.String(), func() error {
		ev, err := s.repo.GetByID(ctx, eventID)
		if err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
		return s.repo.Save(ctx, ev)
	})
	if err == nil {
		s.invalidateSummary(ctx, eventID)
	}
	return err
}

func (s *service) requireOrganizer(ev *Event, organizerID uuid.UUID) error {
	if ev.OrganizerID != organizerID {
		return ErrNotOrganizer
	}
	return nil
}

// --- event management ---

func (s *service) CreateEvent(ctx context.Context, in CreateEventInput) (*Event, error) {
	if in.TicketPrice != nil {
		price, err := NewMoney(in.TicketPrice.Amount, in.TicketPrice.Currency)
		if err != nil {
			return nil, err
		}
		in.TicketPrice = &price
	}
	ev, err := New(in.Title, in.Description, in.StartDate, in.EndDate, in.OrganizerID, in.Capacity, in.Category, in.Location, in.TicketPrice)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, ev); err != nil {
		return nil, err
	}
	s.logAudit(ctx, &in.OrganizerID, &ev.ID, "event_created", map[string]interface{}{
		"title":    ev.Title,
		"capacity": ev.Capacity,
	}, "success")
	return ev, nil
}

func (s *service) GetEvent(ctx context.Context, eventID uuid.UUID) (*Event, error) {
	return s.repo.GetByID(ctx, eventID)
}

// GetEventSummary serves the read-heavy listing path through the cache.
func (s *service) GetEventSummary(ctx context.Context, eventID uuid.UUID) (*EventSummary, error) {
	if s.cache != nil {
		if summary, err := s.cache.Get(ctx, eventID); err == nil && summary != nil {
			return summary, nil
		}
	}
	ev, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	summary := newEventSummary(ev)
	if s.cache != nil {
		if err := s.cache.Set(ctx, summary); err != nil {
			s.logger.Warn("summary cache write failed", zap.String("event_id", eventID.String()), zap.Error(err))
		}
	}
	return summary, nil
}

func (s *service) PublishEvent(ctx context.Context, eventID, organizerID uuid.UUID) error {
	err := s.withEvent(ctx, eventID, func(ev *Event) error {
		if err := s.requireOrganizer(ev, organizerID); err != nil {
			return err
		}
		return ev.Publish()
	})
	if err != nil {
		return err
	}
	s.logAudit(ctx, &organizerID, &eventID, "event_published", nil, "success")
	return nil
}

func (s *service) SubmitEventForReview(ctx context.Context, eventID, organizerID uuid.UUID) error {
	return s.withEvent(ctx, eventID, func(ev *Event) error {
		if err := s.requireOrganizer(ev, organizerID); err != nil {
			return err
		}
		return ev.SubmitForReview()
	})
}

func (s *service) ApproveEvent(ctx context.Context, eventID, adminID uuid.UUID) error {
	err := s.withEvent(ctx, eventID, func(ev *Event) error {
		return ev.Approve(adminID)
	})
	if err != nil {
		return err
	}
	s.logAudit(ctx, &adminID, &eventID, "event_approved", nil, "success")
	return nil
}

func (s *service) RejectEvent(ctx context.Context, eventID, adminID uuid.UUID, reason string) error {
	err := s.withEvent(ctx, eventID, func(ev *Event) error {
		return ev.Reject(adminID, reason)
	})
	if err != nil {
		return err
	}
	s.logAudit(ctx, &adminID, &eventID, "event_rejected", map[string]interface{}{"reason": reason}, "success")
	return nil
}

func (s *service) CancelEvent(ctx context.Context, eventID, organizerID uuid.UUID, reason string) error {
	err := s.withEvent(ctx, eventID, func(ev *Event) error {
		if err := s.requireOrganizer(ev, organizerID); err != nil {
			return err
		}
		return ev.Cancel(reason)
	})
	if err != nil {
		return err
	}
	s.logAudit(ctx, &organizerID, &eventID, "event_cancelled", map[string]interface{}{"reason": reason}, "success")
	return nil
}

func (s *service) PostponeEvent(ctx context.Context, eventID, organizerID uuid.UUID, reason string) error {
	return s.withEvent(ctx, eventID, func(ev *Event) error {
		if err := s.requireOrganizer(ev, organizerID); err != nil {
			return err
		}
		return ev.Postpone(reason)
	})
}

func (s *service) ArchiveEvent(ctx context.Context, eventID, organizerID uuid.UUID) error {
	return s.withEvent(ctx, eventID, func(ev *Event) error {
		if err := s.requireOrganizer(ev, organizerID); err != nil {
			return err
		}
		return ev.Archive()
	})
}

func (s *service) UpdateEventCapacity(ctx context.Context, eventID, organizerID uuid.UUID, newCapacity int) error {
	return s.withEvent(ctx, eventID, func(ev *Event) error {
		if err := s.requireOrganizer(ev, organizerID); err != nil {
			return err
		}
		return ev.UpdateCapacity(newCapacity)
	})
}

// --- registrations ---

// RsvpToEvent is the legacy single-user path: free, confirmed immediately.
func (s *service) RsvpToEvent(ctx context.Context, eventID, userID uuid.UUID, quantity int) (*Registration, error) {
	var out Registration
	err := s.withEvent(ctx, eventID, func(ev *Event) error {
		reg, err := ev.Register(userID, quantity)
		if err != nil {
			return err
		}
		out = *reg
		return nil
	})
	if err != nil {
		s.logAudit(ctx, &userID, &eventID, "event_rsvp", map[string]interface{}{"quantity": quantity, "error": err.Error()}, "failed")
		return nil, err
	}
	s.publishRegistrationConfirmed(ctx, eventID, &out)
	s.logAudit(ctx, &userID, &eventID, "event_rsvp", map[string]interface{}{"quantity": quantity}, "success")
	return &out, nil
}

// RegisterAttendees handles both signed-in and anonymous multi-attendee
// registrations. Anonymous requests are gated twice before any state
// changes: the email must not belong to a member account, and must not
// already hold a live registration for this event.
func (s *service) RegisterAttendees(ctx context.Context, in RegisterAttendeesInput) (*RegistrationResult, error) {
	validContact, err := NewRegistrationContact(in.Contact.Email, in.Contact.Phone, in.Contact.Address)
	if err != nil {
		return nil, err
	}
	in.Contact = validContact

	validAttendees := make([]AttendeeDetails, 0, len(in.Attendees))
	for _, a := range in.Attendees {
		att, err := NewAttendeeDetails(a.Name, string(a.AgeCategory), a.Gender)
		if err != nil {
			return nil, err
		}
		validAttendees = append(validAttendees, att)
	}
	in.Attendees = validAttendees

	email := strings.TrimSpace(strings.ToLower(in.Contact.Email))
	anonymous := in.UserID == nil

	var result RegistrationResult
	err = s.locker.WithLock(ctx, in.EventID.String(), func() error {
		ev, err := s.repo.GetByID(ctx, in.EventID)
		if err != nil {
			return err
		}

		if anonymous {
			exists, err := s.members.ExistsWithEmail(ctx, email)
			if err != nil {
				return err
			}
			if exists {
				return ErrMemberEmail
			}
			if ev.IsEmailRegistered(email) {
				return ErrEmailAlreadyInUse
			}
		}

		paid := !ev.IsFree()
		if paid && (in.SuccessURL == "" || in.CancelURL == "") {
			return ErrCheckoutURLsNeeded
		}

		reg, err := ev.RegisterWithAttendees(in.UserID, in.Attendees, in.Contact)
		if err != nil {
			return err
		}

		var checkoutURL *string
		if paid {
			// Breakdown is best effort: a calculator failure degrades the
			// registration instead of blocking it.
			breakdown, berr := s.revenue.CalculateBreakdown(ctx, *reg.TotalPrice, ev.Location)
			if berr != nil {
				s.logger.Warn("revenue breakdown failed",
					zap.String("event_id", ev.ID.String()),
					zap.String("registration_id", reg.ID.String()),
					zap.Error(berr))
				reg.MarkBreakdownDegraded()
			} else {
				reg.SetRevenueBreakdown(breakdown)
			}

			metadata := map[string]string{"contact_email": email}
			if in.UserID != nil {
				metadata["user_id"] = in.UserID.String()
			}
			session, serr := s.checkout.CreateEventCheckoutSession(ctx, CheckoutSessionRequest{
				EventID:        ev.ID,
				RegistrationID: reg.ID,
				EventTitle:     ev.Title,
				Amount:         reg.TotalPrice.Amount,
				Currency:       reg.TotalPrice.Currency,
				SuccessURL:     in.SuccessURL,
				CancelURL:      in.CancelURL,
				Metadata:       metadata,
			})
			if serr != nil {
				return serr
			}
			if err := reg.SetCheckoutSession(session.ID); err != nil {
				return err
			}
			url := session.URL
			checkoutURL = &url
		}

		if err := s.repo.Save(ctx, ev); err != nil {
			return err
		}

		result = RegistrationResult{
			RegistrationID: reg.ID,
			Status:         reg.Status,
			PaymentStatus:  reg.PaymentStatus,
			TotalPrice:     reg.TotalPrice,
			CheckoutURL:    checkoutURL,
		}
		if !paid {
			s.publishRegistrationConfirmed(ctx, ev.ID, reg)
		}
		return nil
	})
	if err != nil {
		s.logAudit(ctx, in.UserID, &in.EventID, "attendee_registration", map[string]interface{}{
			"email": email,
			"error": err.Error(),
		}, "failed")
		return nil, err
	}

	s.invalidateSummary(ctx, in.EventID)
	s.logAudit(ctx, in.UserID, &in.EventID, "attendee_registration", map[string]interface{}{
		"email":          email,
		"attendee_count": len(in.Attendees),
		"payment_status": string(result.PaymentStatus),
	}, "success")
	return &result, nil
}

func (s *service) CancelRegistration(ctx context.Context, eventID, userID uuid.UUID) error {
	err := s.withEvent(ctx, eventID, func(ev *Event) error {
		return ev.CancelRegistration(userID)
	})
	if err != nil {
		return err
	}
	s.logAudit(ctx, &userID, &eventID, "registration_cancelled", nil, "success")
	return nil
}

func (s *service) UpdateRegistrationQuantity(ctx context.Context, eventID, userID uuid.UUID, newQuantity int) error {
	return s.withEvent(ctx, eventID, func(ev *Event) error {
		return ev.UpdateRegistration(userID, newQuantity)
	})
}

func (s *service) CheckInRegistration(ctx context.Context, eventID, registrationID, organizerID uuid.UUID) error {
	return s.withEvent(ctx, eventID, func(ev *Event) error {
		if err := s.requireOrganizer(ev, organizerID); err != nil {
			return err
		}
		reg := ev.FindRegistration(registrationID)
		if reg == nil {
			return ErrRegistrationNotFound
		}
		return reg.CheckIn()
	})
}

// ResendConfirmation re-sends the confirmation email for a confirmed
// registration. The branch follows the payment status: completed payments
// get the ticket attached, free registrations get the plain confirmation,
// anything else is rejected.
func (s *service) ResendConfirmation(ctx context.Context, eventID, registrationID, organizerID uuid.UUID) error {
	ev, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if err := s.requireOrganizer(ev, organizerID); err != nil {
		return err
	}
	reg := ev.FindRegistration(registrationID)
	if reg == nil {
		return ErrRegistrationNotFound
	}
	if reg.Status != RegistrationConfirmed {
		return ErrCannotResendConfirmation
	}

	switch reg.PaymentStatus {
	case PaymentCompleted:
		pdf, err := s.tickets.GetTicketPDF(ctx, ev, reg)
		if err != nil {
			return err
		}
		err = s.emails.SendPaidConfirmation(ctx, ev, reg, pdf)
		if err != nil {
			return err
		}
	case PaymentNotRequired:
		if err := s.emails.SendFreeConfirmation(ctx, ev, reg); err != nil {
			return err
		}
	default:
		return ErrCannotResendConfirmation
	}

	s.logAudit(ctx, &organizerID, &eventID, "confirmation_resent", map[string]interface{}{
		"registration_id": registrationID.String(),
		"payment_status":  string(reg.PaymentStatus),
	}, "success")
	return nil
}

// --- payment lifecycle ---

// CompletePayment confirms the preliminary registration that owns the
// checkout session. The transition is idempotency-hostile on purpose: a
// second completion for the same session is a hard failure.
func (s *service) CompletePayment(ctx context.Context, checkoutSessionID, paymentRef string) error {
	ev, reg, err := s.repo.GetByCheckoutSession(ctx, checkoutSessionID)
	if err != nil {
		return err
	}

	err = s.locker.WithLock(ctx, ev.ID.String(), func() error {
		fresh, err := s.repo.GetByID(ctx, ev.ID)
		if err != nil {
			return err
		}
		target := fresh.FindRegistration(reg.ID)
		if target == nil {
			return ErrRegistrationNotFound
		}
		if err := target.CompletePayment(paymentRef); err != nil {
			return err
		}
		return s.repo.Save(ctx, fresh)
	})
	if err != nil {
		s.logAudit(ctx, reg.UserID, &ev.ID, "payment_completed", map[string]interface{}{
			"registration_id": reg.ID.String(),
			"error":           err.Error(),
		}, "failed")
		return err
	}

	s.invalidateSummary(ctx, ev.ID)
	s.publishPaymentCompleted(ctx, ev.ID, reg, paymentRef)
	s.logAudit(ctx, reg.UserID, &ev.ID, "payment_completed", map[string]interface{}{
		"registration_id": reg.ID.String(),
		"payment_ref":     paymentRef,
	}, "success")
	return nil
}

func (s *service) FailPayment(ctx context.Context, checkoutSessionID string) error {
	ev, reg, err := s.repo.GetByCheckoutSession(ctx, checkoutSessionID)
	if err != nil {
		return err
	}
	return s.withEvent(ctx, ev.ID, func(fresh *Event) error {
		target := fresh.FindRegistration(reg.ID)
		if target == nil {
			return ErrRegistrationNotFound
		}
		return target.FailPayment()
	})
}

// AbandonExpiredCheckouts sweeps preliminary registrations whose checkout
// session passed its expiry, releasing their seats. Returns the number of
// registrations abandoned.
func (s *service) AbandonExpiredCheckouts(ctx context.Context) (int, error) {
	expired, err := s.repo.ListExpiredPreliminary(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	abandoned := 0
	for i := range expired {
		regID := expired[i].ID
		eventID := expired[i].EventID
		err := s.withEvent(ctx, eventID, func(ev *Event) error {
			reg := ev.FindRegistration(regID)
			if reg == nil {
				return ErrRegistrationNotFound
			}
			return reg.MarkAbandoned(time.Now().UTC())
		})
		if err != nil {
			// Another writer may have completed or abandoned it since the
			// listing; skip and keep sweeping.
			if errors.Is(err, ErrCannotAbandon) || errors.Is(err, ErrRegistrationNotFound) {
				continue
			}
			s.logger.Warn("abandon sweep failed for registration",
				zap.String("registration_id", regID.String()),
				zap.String("event_id", eventID.String()),
				zap.Error(err))
			continue
		}
		abandoned++
	}
	if abandoned > 0 {
		s.logger.Info("abandoned expired checkouts", zap.Int("count", abandoned))
	}
	return abandoned, nil
}

func (s *service) RequestRefund(ctx context.Context, eventID, registrationID uuid.UUID) error {
	err := s.withEvent(ctx, eventID, func(ev *Event) error {
		reg := ev.FindRegistration(registrationID)
		if reg == nil {
			return ErrRegistrationNotFound
		}
		return reg.RequestRefund(time.Now().UTC())
	})
	if err != nil {
		return err
	}
	s.logAudit(ctx, nil, &eventID, "refund_requested", map[string]interface{}{
		"registration_id": registrationID.String(),
	}, "success")
	return nil
}

func (s *service) CompleteRefund(ctx context.Context, eventID, registrationID uuid.UUID, refundRef string) error {
	err := s.withEvent(ctx, eventID, func(ev *Event) error {
		reg := ev.FindRegistration(registrationID)
		if reg == nil {
			return ErrRegistrationNotFound
		}
		return reg.CompleteRefund(refundRef, time.Now().UTC())
	})
	if err != nil {
		return err
	}
	s.logAudit(ctx, nil, &eventID, "refund_completed", map[string]interface{}{
		"registration_id": registrationID.String(),
		"refund_ref":      refundRef,
	}, "success")
	return nil
}

// --- sign-up lists ---

func (s *service) AddSignUpList(ctx context.Context, eventID, organizerID uuid.UUID, category, title, description string, items []SignUpItemInput) (*SignUpList, error) {
	var out SignUpList
	err := s.withEvent(ctx, eventID, func(ev *Event) error {
		if err := s.requireOrganizer(ev, organizerID); err != nil {
			return err
		}
		list, err := NewSignUpList(category, title, description)
		if err != nil {
			return err
		}
		for _, item := range items {
			if _, err := list.AddItem(item.Name, item.TotalQuantity); err != nil {
				return err
			}
		}
		if err := ev.AddSignUpList(list); err != nil {
			return err
		}
		out = ev.SignUpLists[len(ev.SignUpLists)-1]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *service) RemoveSignUpList(ctx context.Context, eventID, organizerID, listID uuid.UUID) error {
	return s.withEvent(ctx, eventID, func(ev *Event) error {
		if err := s.requireOrganizer(ev, organizerID); err != nil {
			return err
		}
		return ev.RemoveSignUpList(listID)
	})
}

func (s *service) CommitToSignUpItem(ctx context.Context, eventID, itemID, userID uuid.UUID, in CommitmentInput) error {
	err := s.withEvent(ctx, eventID, func(ev *Event) error {
		item := ev.GetItem(itemID)
		if item == nil {
			return ErrSignUpItemNotFound
		}
		return item.AddCommitment(userID, in.Quantity, in.Notes, in.ContactName, in.ContactEmail, in.ContactPhone)
	})
	if err != nil {
		return err
	}
	s.logAudit(ctx, &userID, &eventID, "signup_commitment", map[string]interface{}{
		"item_id":  itemID.String(),
		"quantity": in.Quantity,
	}, "success")
	return nil
}

// CommitToSignUpItemAnonymous commits by contact email. Two gates run
// before any state changes: member emails are pushed to the signed-in path
// and non-registered emails are rejected outright. Both failures render as
// the prefixed wire strings the front end dispatches on.
func (s *service) CommitToSignUpItemAnonymous(ctx context.Context, eventID, itemID uuid.UUID, in CommitmentInput) error {
	email := strings.TrimSpace(strings.ToLower(in.ContactEmail))
	if email == "" {
		return &CommitError{Kind: CommitNotRegistered, Message: "a contact email is required"}
	}

	exists, err := s.members.ExistsWithEmail(ctx, email)
	if err != nil {
		return err
	}
	if exists {
		return &CommitError{Kind: CommitMemberAccount, Message: "this email belongs to a member account; please sign in to commit"}
	}

	return s.withEvent(ctx, eventID, func(ev *Event) error {
		if ev.FindLiveRegistrationByEmail(email) == nil {
			return &CommitError{Kind: CommitNotRegistered, Message: "no registration found for this email on this event"}
		}
		item := ev.GetItem(itemID)
		if item == nil {
			return ErrSignUpItemNotFound
		}
		// The deterministic id makes repeat visits by the same email an
		// update of their own commitment, not a duplicate.
		anonID := AnonymousUserID(email)
		if item.CommitmentFor(anonID) != nil {
			return item.UpdateCommitment(anonID, in.Quantity, in.Notes, in.ContactName, email, in.ContactPhone)
		}
		return item.AddCommitment(anonID, in.Quantity, in.Notes, in.ContactName, email, in.ContactPhone)
	})
}

func (s *service) UpdateCommitment(ctx context.Context, eventID, itemID, userID uuid.UUID, in CommitmentInput) error {
	return s.withEvent(ctx, eventID, func(ev *Event) error {
		item := ev.GetItem(itemID)
		if item == nil {
			return ErrSignUpItemNotFound
		}
		return item.UpdateCommitment(userID, in.Quantity, in.Notes, in.ContactName, in.ContactEmail, in.ContactPhone)
	})
}

func (s *service) WithdrawCommitment(ctx context.Context, eventID, itemID, userID uuid.UUID) error {
	return s.withEvent(ctx, eventID, func(ev *Event) error {
		item := ev.GetItem(itemID)
		if item == nil {
			return ErrSignUpItemNotFound
		}
		return item.RemoveCommitment(userID)
	})
}

func (s *service) WithdrawCommitmentAnonymous(ctx context.Context, eventID, itemID uuid.UUID, email string) error {
	return s.WithdrawCommitment(ctx, eventID, itemID, AnonymousUserID(email))
}

// --- exports ---

// ExportRegistrations renders the organizer's registration export. Ticket
// codes are looked up best effort; a registration without a ticket exports
// with an empty code.
func (s *service) ExportRegistrations(ctx context.Context, eventID, organizerID uuid.UUID, format string) ([]byte, string, string, error) {
	ev, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		return nil, "", "", err
	}
	if err := s.requireOrganizer(ev, organizerID); err != nil {
		return nil, "", "", err
	}

	rows := make([]reports.RegistrationReportRow, 0, len(ev.Registrations))
	for i := range ev.Registrations {
		reg := &ev.Registrations[i]
		row := reports.RegistrationReportRow{
			RegistrationID: reg.ID.String(),
			ContactEmail:   reg.ContactEmail(),
			AttendeeCount:  reg.AttendeeCount(),
			Status:         string(reg.Status),
			PaymentStatus:  string(reg.PaymentStatus),
			RegisteredAt:   reg.CreatedAt,
		}
		if reg.TotalPrice != nil {
			row.TotalAmount = reg.TotalPrice.Amount
			row.Currency = reg.TotalPrice.Currency
		}
		if s.tickets != nil && reg.PaymentStatus == PaymentCompleted {
			code, terr := s.tickets.FindTicketCode(ctx, reg.ID)
			if terr != nil {
				s.logger.Warn("ticket code lookup failed", zap.String("registration_id", reg.ID.String()), zap.Error(terr))
			} else {
				row.TicketCode = code
			}
		}
		rows = append(rows, row)
	}

	data, filename, contentType, err := s.exporter.ExportRegistrations(format, ev.Title, rows)
	if err != nil {
		return nil, "", "", err
	}
	s.logAudit(ctx, &organizerID, &eventID, "registrations_exported", map[string]interface{}{
		"format": format,
		"rows":   len(rows),
	}, "success")
	return data, filename, contentType, nil
}

// ExportCommitments renders the organizer's sign-up commitment export.
func (s *service) ExportCommitments(ctx context.Context, eventID, organizerID uuid.UUID, format string) ([]byte, string, string, error) {
	ev, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		return nil, "", "", err
	}
	if err := s.requireOrganizer(ev, organizerID); err != nil {
		return nil, "", "", err
	}

	var rows []reports.CommitmentReportRow
	for i := range ev.SignUpLists {
		list := &ev.SignUpLists[i]
		for j := range list.Items {
			item := &list.Items[j]
			for k := range item.Commitments {
				c := &item.Commitments[k]
				rows = append(rows, reports.CommitmentReportRow{
					ListCategory: list.Category,
					ItemName:     item.Name,
					ContactName:  c.ContactName,
					ContactEmail: c.ContactEmail,
					Quantity:     c.Quantity,
					Notes:        c.Notes,
					CommittedAt:  c.CreatedAt,
				})
			}
		}
	}

	return s.exporter.ExportCommitments(format, ev.Title, rows)
}

// --- messaging ---

func (s *service) publishRegistrationConfirmed(ctx context.Context, eventID uuid.UUID, reg *Registration) {
	evt := utils.RegistrationEvent{
		Type:           utils.EventRegistrationConfirmed,
		EventID:        eventID.String(),
		RegistrationID: reg.ID.String(),
		Email:          reg.ContactEmail(),
		AttendeeCount:  reg.AttendeeCount(),
		OccurredAt:     time.Now().UTC(),
	}
	if err := utils.PublishRegistrationEvent(ctx, evt); err != nil {
		s.logger.Warn("registration event publish failed", zap.String("registration_id", reg.ID.String()), zap.Error(err))
	}
}

func (s *service) publishPaymentCompleted(ctx context.Context, eventID uuid.UUID, reg *Registration, paymentRef string) {
	evt := utils.RegistrationEvent{
		Type:           utils.EventPaymentCompleted,
		EventID:        eventID.String(),
		RegistrationID: reg.ID.String(),
		Email:          reg.ContactEmail(),
		AttendeeCount:  reg.AttendeeCount(),
		PaymentRef:     paymentRef,
		OccurredAt:     time.Now().UTC(),
	}
	if reg.TotalPrice != nil {
		evt.AmountPaid = reg.TotalPrice.Amount
	}
	if err := utils.PublishRegistrationEvent(ctx, evt); err != nil {
		s.logger.Warn("payment event publish failed", zap.String("registration_id", reg.ID.String()), zap.Error(err))
	}
}
