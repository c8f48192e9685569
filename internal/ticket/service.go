package ticket

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lankaconnect/events-backend/internal/event"
)

// Service issues tickets for confirmed registrations and renders
// the printable PDF attached to paid confirmation emails.
type Service interface {
	GenerateTicket(ctx context.Context, ev *event.Event, reg *event.Registration) (event.TicketInfo, error)
	GetTicketByRegistration(ctx context.Context, registrationID uuid.UUID) (*Ticket, error)
	FindTicketCode(ctx context.Context, registrationID uuid.UUID) (string, error)
	GetTicketPDF(ctx context.Context, ev *event.Event, reg *event.Registration) ([]byte, error)
}

type service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) Service {
	return &service{repo: repo, logger: logger}
}

// GenerateTicket is idempotent: a registration that already holds a
// ticket gets the existing one back instead of a duplicate.
func (s *service) GenerateTicket(ctx context.Context, ev *event.Event, reg *event.Registration) (event.TicketInfo, error) {
	existing, err := s.repo.GetByRegistrationID(ctx, reg.ID)
	if err == nil {
		return event.TicketInfo{ID: existing.ID, TicketCode: existing.TicketCode}, nil
	}
	if !errors.Is(err, ErrTicketNotFound) {
		return event.TicketInfo{}, err
	}

	t := &Ticket{
		ID:             uuid.New(),
		RegistrationID: reg.ID,
		EventID:        ev.ID,
		TicketCode:     newTicketCode(),
		AttendeeCount:  reg.AttendeeCount(),
		IssuedAt:       time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return event.TicketInfo{}, err
	}
	s.logger.Info("ticket issued",
		zap.String("ticket_code", t.TicketCode),
		zap.String("registration_id", reg.ID.String()),
		zap.String("event_id", ev.ID.String()))
	return event.TicketInfo{ID: t.ID, TicketCode: t.TicketCode}, nil
}

func (s *service) GetTicketByRegistration(ctx context.Context, registrationID uuid.UUID) (*Ticket, error) {
	return s.repo.GetByRegistrationID(ctx, registrationID)
}

// FindTicketCode resolves to the empty string when the registration has no
// ticket yet.
func (s *service) FindTicketCode(ctx context.Context, registrationID uuid.UUID) (string, error) {
	t, err := s.repo.GetByRegistrationID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, ErrTicketNotFound) {
			return "", nil
		}
		return "", err
	}
	return t.TicketCode, nil
}

// GetTicketPDF renders the ticket for a registration, issuing one
// first if none exists yet.
func (s *service) GetTicketPDF(ctx context.Context, ev *event.Event, reg *event.Registration) ([]byte, error) {
	info, err := s.GenerateTicket(ctx, ev, reg)
	if err != nil {
		return nil, err
	}
	t, err := s.repo.GetByID(ctx, info.ID)
	if err != nil {
		return nil, err
	}
	return renderTicketPDF(ev, reg, t)
}

func newTicketCode() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("TKT-%d", time.Now().UnixNano())
	}
	return "TKT-" + strings.ToUpper(hex.EncodeToString(buf))
}
