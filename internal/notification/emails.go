package notification

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lankaconnect/events-backend/internal/event"
	"github.com/lankaconnect/events-backend/utils"
)

// EmailSender delivers registration confirmation emails over SMTP.
// It implements event.ConfirmationEmailSender.
type EmailSender struct {
	logger *zap.Logger
}

func NewEmailSender(logger *zap.Logger) *EmailSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailSender{logger: logger}
}

func (s *EmailSender) SendFreeConfirmation(ctx context.Context, ev *event.Event, reg *event.Registration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to := reg.ContactEmail()
	if to == "" {
		s.logger.Warn("registration has no contact email, skipping confirmation",
			zap.String("registration_id", reg.ID.String()))
		return nil
	}

	subject := fmt.Sprintf("You're registered: %s", ev.Title)
	body := fmt.Sprintf(
		"Your registration for %s is confirmed.\n\n"+
			"When: %s\n"+
			"Party size: %d\n\n"+
			"We look forward to seeing you there.\n",
		ev.Title,
		ev.StartDate.Format("Mon, 02 Jan 2006 3:04 PM"),
		reg.AttendeeCount(),
	)
	if ev.Location != nil && ev.Location.VenueName != "" {
		body += fmt.Sprintf("\nVenue: %s, %s, %s\n", ev.Location.VenueName, ev.Location.City, ev.Location.State)
	}

	if err := utils.SendEmail(to, subject, body); err != nil {
		return fmt.Errorf("free confirmation email failed: %w", err)
	}
	s.logger.Info("free confirmation sent",
		zap.String("registration_id", reg.ID.String()),
		zap.String("event_id", ev.ID.String()))
	return nil
}

func (s *EmailSender) SendPaidConfirmation(ctx context.Context, ev *event.Event, reg *event.Registration, ticketPDF []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to := reg.ContactEmail()
	if to == "" {
		s.logger.Warn("registration has no contact email, skipping confirmation",
			zap.String("registration_id", reg.ID.String()))
		return nil
	}

	subject := fmt.Sprintf("Payment received: %s", ev.Title)
	body := fmt.Sprintf(
		"Your payment for %s is complete and your registration is confirmed.\n\n"+
			"When: %s\n"+
			"Party size: %d\n\n"+
			"Your ticket is attached. Please present it at the entrance.\n",
		ev.Title,
		ev.StartDate.Format("Mon, 02 Jan 2006 3:04 PM"),
		reg.AttendeeCount(),
	)
	if reg.TotalPrice != nil {
		body += fmt.Sprintf("\nAmount paid: %.2f %s\n", reg.TotalPrice.Amount, reg.TotalPrice.Currency)
	}

	if err := utils.SendEmailWithAttachment(to, subject, body, "ticket.pdf", ticketPDF); err != nil {
		return fmt.Errorf("paid confirmation email failed: %w", err)
	}
	s.logger.Info("paid confirmation sent",
		zap.String("registration_id", reg.ID.String()),
		zap.String("event_id", ev.ID.String()))
	return nil
}
