package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entitlement records a consumer's granted share of a pool. Created
// atomically with the pool-quantity reservation; deleting it releases the
// reservation and revokes the attached certificates.
type Entitlement struct {
	ID           uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	PoolID       uuid.UUID     `gorm:"type:uuid;not null;index" json:"pool_id"`
	ConsumerID   uuid.UUID     `gorm:"type:uuid;not null;index" json:"consumer_id"`
	Quantity     int64         `gorm:"not null;default:1" json:"quantity"`
	StartDate    time.Time     `gorm:"not null" json:"start_date"`
	EndDate      time.Time     `gorm:"not null" json:"end_date"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Pool         Pool          `gorm:"foreignKey:PoolID" json:"-"`
	Consumer     Consumer      `gorm:"foreignKey:ConsumerID" json:"-"`
	Certificates []Certificate `gorm:"foreignKey:EntitlementID" json:"certificates,omitempty"`
}

func (e *Entitlement) String() string {
	return fmt.Sprintf("Entitlement[id=%s, pool=%s, consumer=%s, quantity=%d]",
		e.ID, e.PoolID, e.ConsumerID, e.Quantity)
}
