package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CertificateSerial is the durable serial counter. A row is inserted (and
// committed) for every serial handed out, before any signing happens, so a
// crash between signing and certificate persistence abandons the serial
// rather than reusing it. Serials are never deleted.
type CertificateSerial struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Revoked    bool      `gorm:"not null;default:false" json:"revoked"`
	Expiration time.Time `json:"expiration"`
	CreatedAt  time.Time `json:"created_at"`
}

// Certificate is a signed attestation of a grant: PEM certificate and key
// bytes bound to a unique serial. EntitlementID is nil for certificates
// produced by the ad hoc issuance path.
type Certificate struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SerialID      int64      `gorm:"not null;uniqueIndex" json:"serial"`
	EntitlementID *uuid.UUID `gorm:"type:uuid;index" json:"entitlement_id,omitempty"`
	CertPEM       []byte     `gorm:"type:bytea" json:"cert"`
	KeyPEM        []byte     `gorm:"type:bytea" json:"key"`
	Revoked       bool       `gorm:"not null;default:false" json:"revoked"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Serial CertificateSerial `gorm:"foreignKey:SerialID" json:"-"`
}

func (c *Certificate) String() string {
	return fmt.Sprintf("Certificate[id=%s, serial=%d, revoked=%t]", c.ID, c.SerialID, c.Revoked)
}
