package event

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusDraft       Status = "draft"
	StatusUnderReview Status = "under_review"
	StatusPublished   Status = "published"
	StatusActive      Status = "active"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusPostponed   Status = "postponed"
	StatusArchived    Status = "archived"
)

// Event is the aggregate root. It owns its registrations and sign-up lists
// and is the single point of enforcement for capacity accounting; callers
// must never append to the owned collections directly.
type Event struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string    `gorm:"type:varchar(255);not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	StartDate   time.Time `gorm:"not null;index" json:"start_date"`
	EndDate     time.Time `gorm:"not null" json:"end_date"`
	OrganizerID uuid.UUID `gorm:"type:uuid;not null;index" json:"organizer_id"`
	Capacity    int       `gorm:"not null" json:"capacity"`
	Category    string    `gorm:"type:varchar(100)" json:"category"`
	Status      Status    `gorm:"type:varchar(20);not null" json:"status"`

	// StatusReason carries the organizer's reason for the last cancellation
	// or postponement.
	StatusReason string `gorm:"type:text" json:"status_reason,omitempty"`

	Location    *EventLocation `gorm:"embedded;embeddedPrefix:location_" json:"location,omitempty"`
	TicketPrice *Money         `gorm:"embedded;embeddedPrefix:price_" json:"ticket_price,omitempty"`

	Registrations []Registration `gorm:"foreignKey:EventID" json:"registrations,omitempty"`
	SignUpLists   []SignUpList   `gorm:"foreignKey:EventID" json:"sign_up_lists,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// New validates inputs and builds a draft event.
func New(title, description string, startDate, endDate time.Time, organizerID uuid.UUID, capacity int, category string, location *EventLocation, ticketPrice *Money) (*Event, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title is required")
	}
	if organizerID == uuid.Nil {
		return nil, errors.New("organizer id is required")
	}
	if !startDate.After(time.Now().UTC()) {
		return nil, errors.New("start date cannot be in the past")
	}
	if !endDate.After(startDate) {
		return nil, errors.New("end date must be after start date")
	}
	if capacity <= 0 {
		return nil, errors.New("capacity must be greater than 0")
	}

	return &Event{
		ID:          uuid.New(),
		Title:       title,
		Description: strings.TrimSpace(description),
		StartDate:   startDate,
		EndDate:     endDate,
		OrganizerID: organizerID,
		Capacity:    capacity,
		Category:    category,
		Status:      StatusDraft,
		Location:    location,
		TicketPrice: ticketPrice,
	}, nil
}

// CurrentRegistrations is the number of seats consumed by live
// registrations. Abandoned, cancelled and refunded registrations release
// their seats.
func (e *Event) CurrentRegistrations() int {
	total := 0
	for i := range e.Registrations {
		if e.Registrations[i].countsTowardCapacity() {
			total += e.Registrations[i].AttendeeCount()
		}
	}
	return total
}

func (e *Event) HasCapacityFor(quantity int) bool {
	return e.CurrentRegistrations()+quantity <= e.Capacity
}

func (e *Event) IsAtCapacity() bool {
	return e.CurrentRegistrations() >= e.Capacity
}

// IsFree reports whether the event requires no payment. A nil price and a
// zero price are both free; downstream flows branch on this.
func (e *Event) IsFree() bool {
	return e.TicketPrice == nil || e.TicketPrice.IsZero()
}

func (e *Event) IsUserRegistered(userID uuid.UUID) bool {
	for i := range e.Registrations {
		r := &e.Registrations[i]
		if r.UserID != nil && *r.UserID == userID && r.countsTowardCapacity() {
			return true
		}
	}
	return false
}

// FindLiveRegistrationByEmail returns the non-cancelled anonymous
// registration carrying the given contact email, if any. Used to stop the
// same email from registering twice.
func (e *Event) FindLiveRegistrationByEmail(email string) *Registration {
	for i := range e.Registrations {
		r := &e.Registrations[i]
		if !r.IsAnonymous() || !r.countsTowardCapacity() {
			continue
		}
		if strings.EqualFold(r.ContactEmail(), email) {
			return r
		}
	}
	return nil
}

// IsEmailRegistered reports whether any live registration (anonymous or
// authenticated) carries the given contact email.
func (e *Event) IsEmailRegistered(email string) bool {
	for i := range e.Registrations {
		r := &e.Registrations[i]
		if r.countsTowardCapacity() && strings.EqualFold(r.ContactEmail(), email) {
			return true
		}
	}
	return false
}

func (e *Event) FindRegistration(registrationID uuid.UUID) *Registration {
	for i := range e.Registrations {
		if e.Registrations[i].ID == registrationID {
			return &e.Registrations[i]
		}
	}
	return nil
}

func (e *Event) registrable() error {
	if e.Status != StatusPublished {
		return ErrEventNotPublished
	}
	if !time.Now().UTC().Before(e.StartDate) {
		return ErrEventStarted
	}
	return nil
}

// Register is the legacy single-user path: a free, immediately confirmed
// registration of `quantity` seats. Fails with no state change when the
// event is not registrable, the user already holds a registration, or the
// capacity check would be violated.
func (e *Event) Register(userID uuid.UUID, quantity int) (*Registration, error) {
	if err := e.registrable(); err != nil {
		return nil, err
	}
	if userID == uuid.Nil {
		return nil, errors.New("user id is required")
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if e.IsUserRegistered(userID) {
		return nil, ErrAlreadyRegistered
	}
	if !e.HasCapacityFor(quantity) {
		return nil, ErrCapacityExceeded
	}

	reg, err := newRegistration(e.ID, userID, quantity)
	if err != nil {
		return nil, err
	}
	e.Registrations = append(e.Registrations, *reg)
	return &e.Registrations[len(e.Registrations)-1], nil
}

// RegisterWithAttendees is the multi-attendee path. The capacity check is
// against the attendee count; for paid events the registration starts
// Preliminary with a pending payment, total price = ticket price x count.
func (e *Event) RegisterWithAttendees(userID *uuid.UUID, attendees []AttendeeDetails, contact RegistrationContact) (*Registration, error) {
	if err := e.registrable(); err != nil {
		return nil, err
	}
	if len(attendees) == 0 {
		return nil, errors.New("at least one attendee is required")
	}
	if userID != nil && e.IsUserRegistered(*userID) {
		return nil, ErrAlreadyRegistered
	}
	if !e.HasCapacityFor(len(attendees)) {
		return nil, ErrCapacityExceeded
	}

	total := Money{Currency: "USD"}
	paid := !e.IsFree()
	if paid {
		total = Money{
			Amount:   e.TicketPrice.Amount * float64(len(attendees)),
			Currency: e.TicketPrice.Currency,
		}
	}

	reg, err := newRegistrationWithAttendees(e.ID, userID, attendees, contact, total, paid)
	if err != nil {
		return nil, err
	}
	e.Registrations = append(e.Registrations, *reg)
	return &e.Registrations[len(e.Registrations)-1], nil
}

// CancelRegistration cancels a user's live registration, releasing its
// seats.
func (e *Event) CancelRegistration(userID uuid.UUID) error {
	for i := range e.Registrations {
		r := &e.Registrations[i]
		if r.UserID != nil && *r.UserID == userID && r.countsTowardCapacity() {
			r.Cancel()
			return nil
		}
	}
	return ErrRegistrationNotFound
}

// UpdateRegistration changes the seat count of a legacy registration. The
// capacity check is delta-aware: only an increase is checked, against the
// remaining seats.
func (e *Event) UpdateRegistration(userID uuid.UUID, newQuantity int) error {
	if newQuantity <= 0 {
		return ErrInvalidQuantity
	}

	var reg *Registration
	for i := range e.Registrations {
		r := &e.Registrations[i]
		if r.UserID != nil && *r.UserID == userID && r.Status == RegistrationConfirmed {
			reg = r
			break
		}
	}
	if reg == nil {
		return ErrRegistrationNotFound
	}

	delta := newQuantity - reg.Quantity
	if delta > 0 && !e.HasCapacityFor(delta) {
		return ErrCapacityExceeded
	}
	return reg.updateQuantity(newQuantity)
}

// --- lifecycle ---

func (e *Event) Publish() error {
	if e.Status == StatusPublished {
		return errors.New("event is already published")
	}
	if e.Status != StatusDraft {
		return errors.New("only draft events can be published")
	}
	e.Status = StatusPublished
	return nil
}

func (e *Event) SubmitForReview() error {
	if e.Status != StatusDraft {
		return errors.New("only draft events can be submitted for review")
	}
	e.Status = StatusUnderReview
	return nil
}

func (e *Event) Approve(adminID uuid.UUID) error {
	if e.Status != StatusUnderReview {
		return errors.New("only events under review can be approved")
	}
	if adminID == uuid.Nil {
		return errors.New("admin id is required")
	}
	e.Status = StatusPublished
	return nil
}

func (e *Event) Reject(adminID uuid.UUID, reason string) error {
	if e.Status != StatusUnderReview {
		return errors.New("only events under review can be rejected")
	}
	if adminID == uuid.Nil {
		return errors.New("admin id is required")
	}
	if strings.TrimSpace(reason) == "" {
		return errors.New("rejection reason is required")
	}
	// Back to draft for the organizer to amend.
	e.Status = StatusDraft
	return nil
}

func (e *Event) Cancel(reason string) error {
	if e.Status != StatusPublished {
		return errors.New("only published events can be cancelled")
	}
	if strings.TrimSpace(reason) == "" {
		return errors.New("cancellation reason is required")
	}
	e.Status = StatusCancelled
	e.StatusReason = strings.TrimSpace(reason)
	return nil
}

func (e *Event) Postpone(reason string) error {
	if e.Status != StatusPublished {
		return errors.New("only published events can be postponed")
	}
	if strings.TrimSpace(reason) == "" {
		return errors.New("postponement reason is required")
	}
	e.Status = StatusPostponed
	e.StatusReason = strings.TrimSpace(reason)
	return nil
}

func (e *Event) Activate(now time.Time) error {
	if e.Status != StatusPublished {
		return errors.New("only published events can be activated")
	}
	if now.Before(e.StartDate) {
		return errors.New("event cannot be activated before start date")
	}
	e.Status = StatusActive
	return nil
}

func (e *Event) Complete(now time.Time) {
	if (e.Status == StatusPublished || e.Status == StatusActive) && now.After(e.EndDate) {
		e.Status = StatusCompleted
	}
}

func (e *Event) Archive() error {
	if e.Status != StatusCompleted {
		return errors.New("only completed events can be archived")
	}
	e.Status = StatusArchived
	return nil
}

// UpdateCapacity grows or shrinks the event but never below the seats
// already taken.
func (e *Event) UpdateCapacity(newCapacity int) error {
	if newCapacity <= 0 {
		return errors.New("capacity must be greater than 0")
	}
	if newCapacity < e.CurrentRegistrations() {
		return errors.New("cannot reduce capacity below current registrations")
	}
	e.Capacity = newCapacity
	return nil
}

// --- sign-up lists ---

// AddSignUpList attaches a sign-up list; categories must be unique within
// the event.
func (e *Event) AddSignUpList(list SignUpList) error {
	for i := range e.SignUpLists {
		if strings.EqualFold(e.SignUpLists[i].Category, list.Category) {
			return ErrDuplicateSignUpCategory
		}
	}
	list.EventID = e.ID
	e.SignUpLists = append(e.SignUpLists, list)
	return nil
}

// RemoveSignUpList detaches a list; refused while commitments exist.
func (e *Event) RemoveSignUpList(listID uuid.UUID) error {
	for i := range e.SignUpLists {
		if e.SignUpLists[i].ID != listID {
			continue
		}
		if e.SignUpLists[i].HasCommitments() {
			return ErrSignUpListHasCommitments
		}
		e.SignUpLists = append(e.SignUpLists[:i], e.SignUpLists[i+1:]...)
		return nil
	}
	return ErrSignUpListNotFound
}

func (e *Event) GetSignUpList(listID uuid.UUID) *SignUpList {
	for i := range e.SignUpLists {
		if e.SignUpLists[i].ID == listID {
			return &e.SignUpLists[i]
		}
	}
	return nil
}

// GetItem finds a sign-up item across all of the event's lists.
func (e *Event) GetItem(itemID uuid.UUID) *SignUpItem {
	for i := range e.SignUpLists {
		if item := e.SignUpLists[i].GetItem(itemID); item != nil {
			return item
		}
	}
	return nil
}
