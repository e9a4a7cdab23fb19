package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SystemLog stores structured error logs for operator querying.
type SystemLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Timestamp  time.Time      `gorm:"not null;index" json:"timestamp"`
	Level      string         `gorm:"size:10;not null;index" json:"level"`
	Message    string         `gorm:"type:text" json:"message"`
	OwnerID    string         `gorm:"size:36;index" json:"owner_id"`
	ConsumerID string         `gorm:"size:36;index" json:"consumer_id"`
	TraceID    string         `gorm:"size:36;index" json:"trace_id"`
	Action     string         `gorm:"size:100" json:"action"`
	Error      string         `gorm:"type:text" json:"error"`
	Extra      datatypes.JSON `gorm:"default:'{}'" json:"extra"`
	CreatedAt  time.Time      `json:"created_at"`
}
