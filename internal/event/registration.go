package event

import (
	"time"

	"github.com/google/uuid"
)

type RegistrationStatus string

const (
	// RegistrationPreliminary is a paid registration waiting for payment.
	// It holds capacity but becomes Abandoned if checkout expires.
	RegistrationPreliminary RegistrationStatus = "preliminary"
	RegistrationConfirmed   RegistrationStatus = "confirmed"
	RegistrationCancelled   RegistrationStatus = "cancelled"
	RegistrationCheckedIn   RegistrationStatus = "checked_in"
	RegistrationAttended    RegistrationStatus = "attended"
	RegistrationRefundReq   RegistrationStatus = "refund_requested"
	RegistrationRefunded    RegistrationStatus = "refunded"
	RegistrationAbandoned   RegistrationStatus = "abandoned"
)

// PaymentStatus is deliberately tri-state plus terminal values: downstream
// flows (ticketing, confirmation emails) branch on NotRequired vs Pending vs
// Completed, so these values are load-bearing.
type PaymentStatus string

const (
	PaymentNotRequired PaymentStatus = "not_required"
	PaymentPending     PaymentStatus = "pending"
	PaymentCompleted   PaymentStatus = "completed"
	PaymentFailed      PaymentStatus = "failed"
	PaymentRefunded    PaymentStatus = "refunded"
)

const checkoutSessionTTL = 24 * time.Hour

// Registration is owned by an Event and mutated only through the Event's
// registration methods or its own payment-transition methods.
type Registration struct {
	ID      uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	EventID uuid.UUID  `gorm:"type:uuid;not null;index" json:"event_id"`
	UserID  *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"` // nil for anonymous registrations

	Quantity  int                  `gorm:"not null" json:"quantity"`
	Attendees []AttendeeDetails    `gorm:"serializer:json" json:"attendees,omitempty"`
	Contact   *RegistrationContact `gorm:"embedded;embeddedPrefix:contact_" json:"contact,omitempty"`

	TotalPrice *Money `gorm:"embedded;embeddedPrefix:total_" json:"total_price,omitempty"`

	Status        RegistrationStatus `gorm:"type:varchar(20);not null" json:"status"`
	PaymentStatus PaymentStatus      `gorm:"type:varchar(20);not null" json:"payment_status"`

	CheckoutSessionID *string `gorm:"index" json:"checkout_session_id,omitempty"`
	PaymentRef        *string `json:"payment_ref,omitempty"`
	RefundRef         *string `json:"refund_ref,omitempty"`

	CheckoutSessionExpiresAt *time.Time `json:"checkout_session_expires_at,omitempty"`
	AbandonedAt              *time.Time `json:"abandoned_at,omitempty"`
	RefundRequestedAt        *time.Time `json:"refund_requested_at,omitempty"`
	RefundCompletedAt        *time.Time `json:"refund_completed_at,omitempty"`

	// Revenue breakdown, stored as computed by the revenue calculator.
	// BreakdownDegraded records that the best-effort computation failed and
	// the registration proceeded without one.
	SalesTaxAmount           float64 `json:"sales_tax_amount"`
	ProcessorFeeAmount       float64 `json:"processor_fee_amount"`
	PlatformCommissionAmount float64 `json:"platform_commission_amount"`
	OrganizerPayoutAmount    float64 `json:"organizer_payout_amount"`
	SalesTaxRate             float64 `json:"sales_tax_rate"`
	BreakdownDegraded        bool    `json:"breakdown_degraded"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// newRegistration builds the legacy single-user record: always free,
// confirmed on creation.
func newRegistration(eventID, userID uuid.UUID, quantity int) (*Registration, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	uid := userID
	return &Registration{
		ID:            uuid.New(),
		EventID:       eventID,
		UserID:        &uid,
		Quantity:      quantity,
		Status:        RegistrationConfirmed,
		PaymentStatus: PaymentNotRequired,
	}, nil
}

// newRegistrationWithAttendees builds the multi-attendee record. Paid events
// start Preliminary with a pending payment and a checkout expiry; free events
// confirm immediately.
func newRegistrationWithAttendees(eventID uuid.UUID, userID *uuid.UUID, attendees []AttendeeDetails, contact RegistrationContact, totalPrice Money, paid bool) (*Registration, error) {
	if len(attendees) == 0 {
		return nil, ErrInvalidQuantity
	}
	if len(attendees) > 10 {
		return nil, ErrTooManyAttendees
	}

	reg := &Registration{
		ID:         uuid.New(),
		EventID:    eventID,
		UserID:     userID,
		Quantity:   len(attendees),
		Attendees:  attendees,
		Contact:    &contact,
		TotalPrice: &totalPrice,
	}

	if paid {
		reg.Status = RegistrationPreliminary
		reg.PaymentStatus = PaymentPending
		expires := time.Now().UTC().Add(checkoutSessionTTL)
		reg.CheckoutSessionExpiresAt = &expires
	} else {
		reg.Status = RegistrationConfirmed
		reg.PaymentStatus = PaymentNotRequired
	}

	return reg, nil
}

// AttendeeCount works for both the legacy quantity field and the
// multi-attendee format.
func (r *Registration) AttendeeCount() int {
	if len(r.Attendees) > 0 {
		return len(r.Attendees)
	}
	return r.Quantity
}

// countsTowardCapacity reports whether this registration consumes event
// capacity. Preliminary registrations hold their seats while payment is
// pending; abandoned, cancelled and refunded ones release them.
func (r *Registration) countsTowardCapacity() bool {
	switch r.Status {
	case RegistrationPreliminary, RegistrationConfirmed, RegistrationCheckedIn, RegistrationAttended, RegistrationRefundReq:
		return true
	default:
		return false
	}
}

// ContactEmail returns the registration's contact email, empty when the
// legacy record carries none.
func (r *Registration) ContactEmail() string {
	if r.Contact != nil {
		return r.Contact.Email
	}
	return ""
}

func (r *Registration) IsAnonymous() bool {
	return r.UserID == nil
}

func (r *Registration) Cancel() {
	if r.Status != RegistrationCancelled {
		r.Status = RegistrationCancelled
	}
}

func (r *Registration) CheckIn() error {
	if r.Status != RegistrationConfirmed {
		return ErrRegistrationNotFound
	}
	r.Status = RegistrationCheckedIn
	return nil
}

func (r *Registration) CompleteAttendance() error {
	if r.Status != RegistrationCheckedIn {
		return ErrRegistrationNotFound
	}
	r.Status = RegistrationAttended
	return nil
}

// SetCheckoutSession attaches the payment gateway's session reference. It
// must be stored before the registration is persisted so the completion
// callback can locate the record by session id.
func (r *Registration) SetCheckoutSession(sessionID string) error {
	if sessionID == "" {
		return ErrCheckoutSessionEmpty
	}
	if r.PaymentStatus != PaymentPending {
		return ErrPaymentNotPending
	}
	r.CheckoutSessionID = &sessionID
	return nil
}

// CompletePayment transitions Preliminary -> Confirmed. Calling it a second
// time is a hard failure, not a silent no-op: webhook retries should treat
// ErrPaymentAlreadyCompleted as success, and anything else is a real
// state-machine violation.
func (r *Registration) CompletePayment(paymentRef string) error {
	if paymentRef == "" {
		return ErrPaymentRefEmpty
	}
	if r.PaymentStatus == PaymentCompleted {
		return ErrPaymentAlreadyCompleted
	}
	if r.Status != RegistrationPreliminary {
		return ErrRegistrationNotPrelim
	}
	if r.PaymentStatus != PaymentPending {
		return ErrPaymentNotPending
	}

	r.PaymentRef = &paymentRef
	r.PaymentStatus = PaymentCompleted
	r.Status = RegistrationConfirmed
	r.CheckoutSessionExpiresAt = nil
	return nil
}

// FailPayment cancels the registration when the gateway reports a failed
// payment, releasing its capacity.
func (r *Registration) FailPayment() error {
	if r.PaymentStatus != PaymentPending {
		return ErrPaymentNotPending
	}
	r.PaymentStatus = PaymentFailed
	r.Status = RegistrationCancelled
	return nil
}

// MarkAbandoned handles an expired or user-cancelled checkout. Abandoned
// registrations stop consuming capacity and do not block the same email from
// registering again.
func (r *Registration) MarkAbandoned(now time.Time) error {
	if r.Status != RegistrationPreliminary {
		return ErrCannotAbandon
	}
	if r.PaymentStatus != PaymentPending {
		return ErrPaymentNotPending
	}
	r.Status = RegistrationAbandoned
	r.PaymentStatus = PaymentFailed
	at := now.UTC()
	r.AbandonedAt = &at
	return nil
}

// RequestRefund transitions Confirmed -> RefundRequested. Only completed
// payments with a stored payment reference qualify.
func (r *Registration) RequestRefund(now time.Time) error {
	if r.Status != RegistrationConfirmed || r.PaymentStatus != PaymentCompleted || r.PaymentRef == nil {
		return ErrRefundNotAllowed
	}
	r.Status = RegistrationRefundReq
	at := now.UTC()
	r.RefundRequestedAt = &at
	return nil
}

// WithdrawRefundRequest returns a RefundRequested registration to Confirmed.
func (r *Registration) WithdrawRefundRequest() error {
	if r.Status != RegistrationRefundReq {
		return ErrNoRefundRequested
	}
	r.Status = RegistrationConfirmed
	return nil
}

// CompleteRefund finalizes the refund once the gateway confirms it.
func (r *Registration) CompleteRefund(refundRef string, now time.Time) error {
	if refundRef == "" {
		return ErrPaymentRefEmpty
	}
	if r.Status != RegistrationRefundReq {
		return ErrNoRefundRequested
	}
	r.Status = RegistrationRefunded
	r.PaymentStatus = PaymentRefunded
	r.RefundRef = &refundRef
	at := now.UTC()
	r.RefundCompletedAt = &at
	return nil
}

// SetRevenueBreakdown stores the computed split. The registration does not
// compute it; the revenue calculator does.
func (r *Registration) SetRevenueBreakdown(b RevenueBreakdown) {
	r.SalesTaxAmount = b.SalesTax.Amount
	r.ProcessorFeeAmount = b.ProcessorFee.Amount
	r.PlatformCommissionAmount = b.PlatformCommission.Amount
	r.OrganizerPayoutAmount = b.OrganizerPayout.Amount
	r.SalesTaxRate = b.SalesTaxRate
	r.BreakdownDegraded = false
}

// MarkBreakdownDegraded records that breakdown computation failed and the
// registration proceeded without one.
func (r *Registration) MarkBreakdownDegraded() {
	r.BreakdownDegraded = true
}

// updateQuantity is called by the Event aggregate after its delta-aware
// capacity check.
func (r *Registration) updateQuantity(newQuantity int) error {
	if newQuantity <= 0 {
		return ErrInvalidQuantity
	}
	r.Quantity = newQuantity
	return nil
}
