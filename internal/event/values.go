package event

import (
	"errors"
	"strings"
)

// Money is an amount in a single currency. The zero value means "free".
type Money struct {
	Amount   float64 `gorm:"column:amount" json:"amount"`
	Currency string  `gorm:"column:currency;type:varchar(3)" json:"currency"`
}

func NewMoney(amount float64, currency string) (Money, error) {
	if amount < 0 {
		return Money{}, errors.New("amount cannot be negative")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "USD"
	}
	if len(currency) != 3 {
		return Money{}, errors.New("currency must be a 3-letter code")
	}
	return Money{Amount: amount, Currency: currency}, nil
}

func (m Money) IsZero() bool {
	return m.Amount == 0
}

// AgeCategory buckets attendees for reporting. All categories are charged
// the full ticket price.
type AgeCategory string

const (
	AgeAdult  AgeCategory = "adult"
	AgeChild  AgeCategory = "child"
	AgeSenior AgeCategory = "senior"
)

// AttendeeDetails describes one attendee on a multi-attendee registration.
type AttendeeDetails struct {
	Name        string      `json:"name"`
	AgeCategory AgeCategory `json:"age_category"`
	Gender      string      `json:"gender,omitempty"`
}

func NewAttendeeDetails(name string, ageCategory string, gender string) (AttendeeDetails, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return AttendeeDetails{}, errors.New("attendee name is required")
	}

	cat := AgeCategory(strings.ToLower(strings.TrimSpace(ageCategory)))
	switch cat {
	case AgeAdult, AgeChild, AgeSenior:
	default:
		return AttendeeDetails{}, errors.New("age category must be adult, child or senior")
	}

	return AttendeeDetails{
		Name:        name,
		AgeCategory: cat,
		Gender:      strings.TrimSpace(gender),
	}, nil
}

// RegistrationContact is the shared contact record for all attendees on a
// registration. Email is the only required field; for anonymous
// registrations it is also the identity used for duplicate detection.
type RegistrationContact struct {
	Email   string `gorm:"column:email" json:"email"`
	Phone   string `gorm:"column:phone" json:"phone,omitempty"`
	Address string `gorm:"column:address" json:"address,omitempty"`
}

func NewRegistrationContact(email, phone, address string) (RegistrationContact, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return RegistrationContact{}, errors.New("contact email is required")
	}
	at := strings.Index(email, "@")
	if at <= 0 || !strings.Contains(email[at+1:], ".") {
		return RegistrationContact{}, errors.New("contact email is not a valid email address")
	}
	return RegistrationContact{
		Email:   email,
		Phone:   strings.TrimSpace(phone),
		Address: strings.TrimSpace(address),
	}, nil
}

// EventLocation is the venue address. State drives sales-tax lookup in the
// revenue calculator.
type EventLocation struct {
	VenueName string `gorm:"column:venue" json:"venue_name"`
	City      string `gorm:"column:city" json:"city"`
	State     string `gorm:"column:state;type:varchar(2)" json:"state"`
}

// RevenueBreakdown is the computed split of a paid registration's gross
// price. It is produced by the revenue calculator and merely stored here.
type RevenueBreakdown struct {
	SalesTax           Money
	ProcessorFee       Money
	PlatformCommission Money
	OrganizerPayout    Money
	SalesTaxRate       float64
}
