package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Subscription is a purchased grant imported from the catalog: owner, base
// product, bundled provided products, quantity and validity window. Immutable
// once created except for renewal updates handled by the import side.
type Subscription struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID            uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_id"`
	ProductID          string         `gorm:"size:255;not null;index" json:"product_id"`
	ProvidedProductIDs datatypes.JSON `gorm:"default:'[]'" json:"provided_product_ids"`
	Quantity           int64          `gorm:"not null" json:"quantity"`
	StartDate          time.Time      `gorm:"not null" json:"start_date"`
	EndDate            time.Time      `gorm:"not null" json:"end_date"`
	ContractNumber     string         `gorm:"size:255" json:"contract_number"`
	AccountNumber      string         `gorm:"size:255" json:"account_number"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	Owner              Owner          `gorm:"foreignKey:OwnerID" json:"-"`
}

// ProvidedIDs decodes the provided-product set.
func (s *Subscription) ProvidedIDs() []string {
	return productIDsFromJSON(s.ProvidedProductIDs)
}

func (s *Subscription) String() string {
	return fmt.Sprintf("Subscription[id=%s, owner=%s, product=%s, quantity=%d]",
		s.ID, s.OwnerID, s.ProductID, s.Quantity)
}
