package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateOwnerRequest struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
}

type CreateConsumerRequest struct {
	Name       string `json:"name"`
	SystemUUID string `json:"system_uuid"`
}

type CreateProductRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Multiplier int64  `json:"multiplier"`
}

type CreateSubscriptionRequest struct {
	OwnerID            uuid.UUID `json:"owner_id"`
	ProductID          string    `json:"product_id"`
	ProvidedProductIDs []string  `json:"provided_product_ids"`
	Quantity           int64     `json:"quantity"`
	StartDate          time.Time `json:"start_date"`
	EndDate            time.Time `json:"end_date"`
	ContractNumber     string    `json:"contract_number"`
	AccountNumber      string    `json:"account_number"`
}

type BindRequest struct {
	ConsumerID uuid.UUID `json:"consumer_id"`
	ProductIDs []string  `json:"product_ids"`
}

type SpliceCertRequest struct {
	ProductIDs []string  `json:"product_ids"`
	RhicID     string    `json:"rhic_id"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
}
