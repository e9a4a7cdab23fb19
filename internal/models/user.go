package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Principal roles. Super admins manage everything, owner admins operate
// within their own owner, consumers act only on their own consumer record.
const (
	RoleSuperAdmin = "super_admin"
	RoleOwnerAdmin = "owner_admin"
	RoleConsumer   = "consumer"
)

// User is a principal account that can authenticate against the API.
type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email    string    `gorm:"not null;size:255;uniqueIndex" json:"email"`
	Password string    `gorm:"not null" json:"-"`
	Role     string    `gorm:"size:20;not null;default:'consumer'" json:"role"`
	// OwnerID scopes owner admins and consumers; nil for super admins.
	OwnerID *uuid.UUID `gorm:"type:uuid;index" json:"owner_id,omitempty"`
	// ConsumerID links consumer-role users to their consumer record.
	ConsumerID *uuid.UUID     `gorm:"type:uuid;index" json:"consumer_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}
