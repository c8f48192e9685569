package event

import (
	"crypto/sha256"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// anonNamespace prefixes the hash input for anonymous committer identities.
// Changing it would orphan every stored anonymous commitment, so it is
// effectively frozen.
const anonNamespace = "ANON_SIGNUP:"

// AnonymousUserID derives a stable pseudo-user id from an email address:
// the first 16 bytes of SHA-256(anonNamespace + lowercased email) as a UUID.
// The same email always maps to the same id, which is what makes
// "update my existing commitment" work without an account. These ids live
// in a hash-derived namespace distinct from real, randomly generated user
// ids (distinct probabilistically, not by construction).
func AnonymousUserID(email string) uuid.UUID {
	sum := sha256.Sum256([]byte(anonNamespace + strings.ToLower(email)))
	id, _ := uuid.FromBytes(sum[:16])
	return id
}

// SignUpList groups sign-up items under one category per event, e.g. a
// potluck list with one item per dish.
type SignUpList struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	EventID     uuid.UUID `gorm:"type:uuid;not null;index" json:"event_id"`
	Category    string    `gorm:"type:varchar(100);not null" json:"category"`
	Title       string    `gorm:"type:varchar(255);not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`

	Items []SignUpItem `gorm:"foreignKey:SignUpListID" json:"items,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewSignUpList validates and builds a list; the event id is assigned when
// the list is attached to an event.
func NewSignUpList(category, title, description string) (SignUpList, error) {
	category = strings.TrimSpace(category)
	title = strings.TrimSpace(title)
	if category == "" {
		return SignUpList{}, errors.New("sign-up list category is required")
	}
	if title == "" {
		title = category
	}
	return SignUpList{
		ID:          uuid.New(),
		Category:    category,
		Title:       title,
		Description: strings.TrimSpace(description),
	}, nil
}

func (l *SignUpList) HasCommitments() bool {
	for i := range l.Items {
		if len(l.Items[i].Commitments) > 0 {
			return true
		}
	}
	return false
}

func (l *SignUpList) GetItem(itemID uuid.UUID) *SignUpItem {
	for i := range l.Items {
		if l.Items[i].ID == itemID {
			return &l.Items[i]
		}
	}
	return nil
}

// AddItem appends a new item with the given quantity cap.
func (l *SignUpList) AddItem(name string, totalQuantity int) (*SignUpItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("sign-up item name is required")
	}
	if totalQuantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	l.Items = append(l.Items, SignUpItem{
		ID:            uuid.New(),
		SignUpListID:  l.ID,
		Name:          name,
		TotalQuantity: totalQuantity,
	})
	return &l.Items[len(l.Items)-1], nil
}

// SignUpItem tracks per-user commitments against a fixed quantity cap. The
// item owns its commitments; at most one commitment per user id.
type SignUpItem struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SignUpListID  uuid.UUID `gorm:"type:uuid;not null;index" json:"sign_up_list_id"`
	Name          string    `gorm:"type:varchar(255);not null" json:"name"`
	TotalQuantity int       `gorm:"not null" json:"total_quantity"`

	Commitments []Commitment `gorm:"foreignKey:SignUpItemID" json:"commitments,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Commitment is one user's pledge of quantity against a sign-up item.
// UserID may be a real user id or an AnonymousUserID-derived one.
type Commitment struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SignUpItemID uuid.UUID `gorm:"type:uuid;not null;index" json:"sign_up_item_id"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Quantity     int       `gorm:"not null" json:"quantity"`
	Notes        string    `gorm:"type:text" json:"notes,omitempty"`
	ContactName  string    `gorm:"type:varchar(255)" json:"contact_name,omitempty"`
	ContactEmail string    `gorm:"type:varchar(255)" json:"contact_email,omitempty"`
	ContactPhone string    `gorm:"type:varchar(50)" json:"contact_phone,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CommittedQuantity is the sum of all commitments, optionally excluding one
// user. Excluding the committer makes the capacity check delta-aware when a
// user replaces their own prior quantity.
func (i *SignUpItem) CommittedQuantity(excludeUser *uuid.UUID) int {
	total := 0
	for j := range i.Commitments {
		if excludeUser != nil && i.Commitments[j].UserID == *excludeUser {
			continue
		}
		total += i.Commitments[j].Quantity
	}
	return total
}

func (i *SignUpItem) RemainingQuantity() int {
	remaining := i.TotalQuantity - i.CommittedQuantity(nil)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CommitmentFor returns the user's commitment on this item, or nil.
func (i *SignUpItem) CommitmentFor(userID uuid.UUID) *Commitment {
	for j := range i.Commitments {
		if i.Commitments[j].UserID == userID {
			return &i.Commitments[j]
		}
	}
	return nil
}

// AddCommitment records a new commitment. Fails with ErrOverCommitted when
// existing commitments plus the requested quantity would exceed the cap, and
// with ErrAlreadyCommitted when the user already holds one (use
// UpdateCommitment instead).
func (i *SignUpItem) AddCommitment(userID uuid.UUID, quantity int, notes, contactName, contactEmail, contactPhone string) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if i.CommitmentFor(userID) != nil {
		return ErrAlreadyCommitted
	}
	if i.CommittedQuantity(nil)+quantity > i.TotalQuantity {
		return ErrOverCommitted
	}

	i.Commitments = append(i.Commitments, Commitment{
		ID:           uuid.New(),
		SignUpItemID: i.ID,
		UserID:       userID,
		Quantity:     quantity,
		Notes:        strings.TrimSpace(notes),
		ContactName:  strings.TrimSpace(contactName),
		ContactEmail: strings.TrimSpace(contactEmail),
		ContactPhone: strings.TrimSpace(contactPhone),
	})
	return nil
}

// UpdateCommitment replaces the user's existing commitment quantity. The
// capacity check excludes the user's own prior quantity so that lowering or
// keeping a commitment never double-counts it.
func (i *SignUpItem) UpdateCommitment(userID uuid.UUID, quantity int, notes, contactName, contactEmail, contactPhone string) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	existing := i.CommitmentFor(userID)
	if existing == nil {
		return ErrCommitmentNotFound
	}
	if i.CommittedQuantity(&userID)+quantity > i.TotalQuantity {
		return ErrOverCommitted
	}

	existing.Quantity = quantity
	existing.Notes = strings.TrimSpace(notes)
	if contactName != "" {
		existing.ContactName = strings.TrimSpace(contactName)
	}
	if contactEmail != "" {
		existing.ContactEmail = strings.TrimSpace(contactEmail)
	}
	if contactPhone != "" {
		existing.ContactPhone = strings.TrimSpace(contactPhone)
	}
	return nil
}

// RemoveCommitment deletes the user's commitment, freeing its quantity.
func (i *SignUpItem) RemoveCommitment(userID uuid.UUID) error {
	for j := range i.Commitments {
		if i.Commitments[j].UserID == userID {
			i.Commitments = append(i.Commitments[:j], i.Commitments[j+1:]...)
			return nil
		}
	}
	return ErrCommitmentNotFound
}
