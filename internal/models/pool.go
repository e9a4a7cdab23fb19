package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Pool is the allocatable capacity unit entitlements draw from. Quantity is
// the total capacity; Consumed counts units currently reserved. The pool
// service owns all mutation of Consumed; nothing else writes these rows.
//
// Invariant enforced at the reservation statement: 0 <= consumed <= quantity.
type Pool struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID            uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_id"`
	ProductID          string         `gorm:"size:255;not null;index" json:"product_id"`
	// ProductName is cached at pool creation so listings don't join the
	// product table.
	ProductName        string         `gorm:"size:255" json:"product_name"`
	ProvidedProductIDs datatypes.JSON `gorm:"default:'[]'" json:"provided_product_ids"`
	Quantity           int64          `gorm:"not null" json:"quantity"`
	Consumed           int64          `gorm:"not null;default:0" json:"consumed"`
	StartDate          time.Time      `gorm:"not null;index" json:"start_date"`
	EndDate            time.Time      `gorm:"not null;index" json:"end_date"`
	// SubscriptionID is set when the pool was created from a subscription.
	SubscriptionID *uuid.UUID `gorm:"type:uuid;index" json:"subscription_id,omitempty"`
	// SourceEntitlementID is set when the pool was spawned by another
	// entitlement (sub-pool), and drives cascading revocation.
	SourceEntitlementID *uuid.UUID `gorm:"type:uuid;index" json:"source_entitlement_id,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	Owner               Owner      `gorm:"foreignKey:OwnerID" json:"-"`
}

// ActiveAt reports whether the pool's validity window covers the given time.
func (p *Pool) ActiveAt(t time.Time) bool {
	return !t.Before(p.StartDate) && t.Before(p.EndDate)
}

// Available returns the remaining allocatable quantity.
func (p *Pool) Available() int64 {
	return p.Quantity - p.Consumed
}

// ProvidedIDs decodes the provided-product set.
func (p *Pool) ProvidedIDs() []string {
	return productIDsFromJSON(p.ProvidedProductIDs)
}

// Provides reports whether productID is the pool's base product or a member
// of its provided-product set.
func (p *Pool) Provides(productID string) bool {
	if p.ProductID == productID {
		return true
	}
	for _, id := range p.ProvidedIDs() {
		if id == productID {
			return true
		}
	}
	return false
}

func (p *Pool) String() string {
	return fmt.Sprintf("Pool[id=%s, owner=%s, product=%s, quantity=%d, consumed=%d]",
		p.ID, p.OwnerID, p.ProductID, p.Quantity, p.Consumed)
}
