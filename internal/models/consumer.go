package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Consumer is a machine or system that entitlements are granted to.
type Consumer struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID   uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	// SystemUUID is the consumer-reported hardware identity used as the
	// certificate subject.
	SystemUUID string    `gorm:"size:36;index" json:"system_uuid"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Owner      Owner     `gorm:"foreignKey:OwnerID" json:"-"`
}

func (c *Consumer) String() string {
	return fmt.Sprintf("Consumer[id=%s, owner=%s, name=%s]", c.ID, c.OwnerID, c.Name)
}
