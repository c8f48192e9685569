package auditlog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditLog is one recorded action against the registration workflow.
type AuditLog struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    *uuid.UUID     `gorm:"type:uuid;index" json:"user_id,omitempty"`
	EventID   *uuid.UUID     `gorm:"type:uuid;index" json:"event_id,omitempty"`
	Action    string         `gorm:"type:varchar(100);not null;index" json:"action"`
	Details   datatypes.JSON `gorm:"type:jsonb" json:"details"`
	Status    string         `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}

// Filter narrows audit log queries.
type Filter struct {
	EventID *uuid.UUID
	UserID  *uuid.UUID
	Action  string
	Status  string
	Page    int
	Limit   int
}
