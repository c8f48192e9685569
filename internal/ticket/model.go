package ticket

import (
	"time"

	"github.com/google/uuid"
)

// Ticket is the admission record issued once a registration's payment
// completes. One ticket covers every attendee on the registration.
type Ticket struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RegistrationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"registration_id"`
	EventID        uuid.UUID `gorm:"type:uuid;not null;index" json:"event_id"`
	TicketCode     string    `gorm:"type:varchar(40);not null;uniqueIndex" json:"ticket_code"`
	AttendeeCount  int       `gorm:"not null" json:"attendee_count"`
	IssuedAt       time.Time `gorm:"autoCreateTime" json:"issued_at"`
}
