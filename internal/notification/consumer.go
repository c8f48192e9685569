package notification

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/lankaconnect/events-backend/internal/event"
	"github.com/lankaconnect/events-backend/utils"
)

// Consumer drains the registration stream and sends the matching
// confirmation email for each message. Registration-confirmed messages get
// the plain confirmation; payment-completed messages get the ticket issued
// and attached.
type Consumer struct {
	reader  *kafka.Reader
	events  event.Repository
	tickets event.TicketService
	emails  event.ConfirmationEmailSender
	logger  *zap.Logger
}

func NewConsumer(reader *kafka.Reader, events event.Repository, tickets event.TicketService, emails event.ConfirmationEmailSender, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		reader:  reader,
		events:  events,
		tickets: tickets,
		emails:  emails,
		logger:  logger,
	}
}

// Run blocks until ctx is cancelled. Message handling is at-least-once:
// a failed email leaves the message committed and is only logged, because
// confirmations can be re-sent by the organizer.
func (c *Consumer) Run(ctx context.Context) error {
	if c.reader == nil {
		c.logger.Info("kafka reader not configured, notification consumer disabled")
		<-ctx.Done()
		return nil
	}

	c.logger.Info("notification consumer started")
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		if err := c.handle(ctx, msg.Value); err != nil {
			c.logger.Error("registration event handling failed",
				zap.ByteString("payload", msg.Value),
				zap.Error(err))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, payload []byte) error {
	var evt utils.RegistrationEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return err
	}

	eventID, err := uuid.Parse(evt.EventID)
	if err != nil {
		return err
	}
	regID, err := uuid.Parse(evt.RegistrationID)
	if err != nil {
		return err
	}

	ev, err := c.events.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	reg := ev.FindRegistration(regID)
	if reg == nil {
		return event.ErrRegistrationNotFound
	}

	switch evt.Type {
	case utils.EventRegistrationConfirmed:
		return c.emails.SendFreeConfirmation(ctx, ev, reg)
	case utils.EventPaymentCompleted:
		pdf, err := c.tickets.GetTicketPDF(ctx, ev, reg)
		if err != nil {
			return err
		}
		return c.emails.SendPaidConfirmation(ctx, ev, reg, pdf)
	default:
		c.logger.Warn("unknown registration event type", zap.String("type", evt.Type))
		return nil
	}
}

func (c *Consumer) Close() error {
	if c.reader == nil {
		return nil
	}
	return c.reader.Close()
}
