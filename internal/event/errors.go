package event

import (
	"errors"
	"fmt"
)

var (
	ErrEventNotFound        = errors.New("event not found")
	ErrRegistrationNotFound = errors.New("registration not found")

	// Registration invariants
	ErrEventNotPublished  = errors.New("cannot register for unpublished event")
	ErrEventStarted       = errors.New("cannot register for an event that has already started")
	ErrCapacityExceeded   = errors.New("event is at full capacity")
	ErrAlreadyRegistered  = errors.New("user is already registered for this event")
	ErrEmailAlreadyInUse  = errors.New("this email is already registered for this event")
	ErrInvalidQuantity    = errors.New("quantity must be greater than 0")
	ErrTooManyAttendees   = errors.New("maximum 10 attendees per registration")
	ErrCheckoutURLsNeeded = errors.New("success and cancel URLs are required for paid events")
	ErrMemberEmail        = errors.New("this email belongs to a member account; please sign in to register")
	ErrNotOrganizer       = errors.New("user is not the organizer of this event")

	// Payment state machine
	ErrPaymentNotPending        = errors.New("payment is not pending")
	ErrPaymentAlreadyCompleted  = errors.New("payment has already been completed")
	ErrRegistrationNotPrelim    = errors.New("only preliminary registrations can complete payment")
	ErrCheckoutSessionEmpty     = errors.New("checkout session id cannot be empty")
	ErrPaymentRefEmpty          = errors.New("payment reference cannot be empty")
	ErrRefundNotAllowed         = errors.New("only confirmed paid registrations can request refunds")
	ErrNoRefundRequested        = errors.New("registration has no pending refund request")
	ErrCannotAbandon            = errors.New("only preliminary registrations can be abandoned")
	ErrCannotResendConfirmation = errors.New("cannot resend confirmation for this payment status")

	// Sign-up lists
	ErrSignUpListNotFound       = errors.New("sign-up list not found")
	ErrSignUpItemNotFound       = errors.New("sign-up item not found")
	ErrDuplicateSignUpCategory  = errors.New("a sign-up list with this category already exists")
	ErrSignUpListHasCommitments = errors.New("cannot remove sign-up list with existing commitments")
	ErrOverCommitted            = errors.New("requested quantity exceeds the item's remaining capacity")
	ErrAlreadyCommitted         = errors.New("user already has a commitment for this item")
	ErrCommitmentNotFound       = errors.New("commitment not found")
)

// CommitErrorKind classifies anonymous-commitment rejections so callers can
// dispatch on the reason instead of parsing the message.
type CommitErrorKind int

const (
	// CommitMemberAccount means the email belongs to a registered member who
	// must log in instead of committing anonymously.
	CommitMemberAccount CommitErrorKind = iota
	// CommitNotRegistered means the email has no registration for the event.
	CommitNotRegistered
)

// CommitError carries a machine-readable kind alongside the human message.
// Its rendered form is the wire contract the front end dispatches on:
// "MEMBER_ACCOUNT:<message>" or "NOT_REGISTERED:<message>".
type CommitError struct {
	Kind    CommitErrorKind
	Message string
}

func (e *CommitError) Error() string {
	switch e.Kind {
	case CommitMemberAccount:
		return fmt.Sprintf("MEMBER_ACCOUNT:%s", e.Message)
	case CommitNotRegistered:
		return fmt.Sprintf("NOT_REGISTERED:%s", e.Message)
	default:
		return e.Message
	}
}
