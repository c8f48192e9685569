package user

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered member account. The registration core only needs
// identity and email; authentication and roles live elsewhere.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	FullName  string    `gorm:"type:varchar(255)" json:"full_name"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
