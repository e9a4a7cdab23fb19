package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Owner is the organization that subscriptions, pools and consumers belong to.
type Owner struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Key         string    `gorm:"size:255;not null;uniqueIndex" json:"key"`
	DisplayName string    `gorm:"size:255;not null" json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (o *Owner) String() string {
	return fmt.Sprintf("Owner[id=%s, key=%s]", o.ID, o.Key)
}
