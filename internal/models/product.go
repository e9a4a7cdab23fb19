package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Product is catalog metadata for an entitlable product. The ID is the
// SKU-like identifier subscriptions and pools reference; it is assigned by
// the catalog, not generated here.
type Product struct {
	ID         string         `gorm:"size:255;primaryKey" json:"id"`
	Name       string         `gorm:"size:255;not null" json:"name"`
	Multiplier int64          `gorm:"not null;default:1" json:"multiplier"`
	Attributes datatypes.JSON `gorm:"default:'{}'" json:"attributes"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// EffectiveMultiplier returns the pool-quantity multiplier, defaulting to 1
// for unset or non-positive values. Negative multipliers are rejected at
// product creation; this is the read-side guard.
func (p *Product) EffectiveMultiplier() int64 {
	if p.Multiplier <= 0 {
		return 1
	}
	return p.Multiplier
}

func (p *Product) String() string {
	return fmt.Sprintf("Product[id=%s, name=%s, multiplier=%d]", p.ID, p.Name, p.Multiplier)
}
