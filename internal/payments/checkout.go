package payments

import (
	"context"
	"errors"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"

	"github.com/lankaconnect/events-backend/config"
	"github.com/lankaconnect/events-backend/internal/event"
)

// CheckoutService creates hosted payment links for paid registrations. The
// returned URL is what the front end redirects to; the link id is stored on
// the registration as the checkout session id.
type CheckoutService struct {
	client *razorpay.Client
}

func NewCheckoutService(cfg *config.Config) *CheckoutService {
	return &CheckoutService{
		client: razorpay.NewClient(cfg.PaymentKey, cfg.PaymentSecret),
	}
}

// CreateEventCheckoutSession creates a payment link carrying the event,
// registration and user references in its notes so the completion callback
// can reconcile it.
func (s *CheckoutService) CreateEventCheckoutSession(ctx context.Context, req event.CheckoutSessionRequest) (event.CheckoutSession, error) {
	if err := ctx.Err(); err != nil {
		return event.CheckoutSession{}, err
	}

	amountMinor := int(req.Amount*100 + 0.5)
	if amountMinor <= 0 {
		return event.CheckoutSession{}, errors.New("checkout amount must be positive")
	}

	notes := map[string]interface{}{
		"event_id":        req.EventID.String(),
		"registration_id": req.RegistrationID.String(),
	}
	for k, v := range req.Metadata {
		notes[k] = v
	}

	data := map[string]interface{}{
		"amount":          amountMinor,
		"currency":        req.Currency,
		"description":     fmt.Sprintf("Registration for %s", req.EventTitle),
		"callback_url":    req.SuccessURL,
		"callback_method": "get",
		"notes":           notes,
	}

	link, err := s.client.PaymentLink.Create(data, nil)
	if err != nil {
		return event.CheckoutSession{}, fmt.Errorf("payment link creation failed: %w", err)
	}

	id, ok := link["id"].(string)
	if !ok {
		return event.CheckoutSession{}, errors.New("unable to extract id from payment link response")
	}
	url, ok := link["short_url"].(string)
	if !ok {
		return event.CheckoutSession{}, errors.New("unable to extract short_url from payment link response")
	}

	return event.CheckoutSession{ID: id, URL: url}, nil
}
