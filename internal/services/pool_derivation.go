package services

import (
	"fmt"
	"time"

	"github.com/canopyhq/entitlement-backend/internal/models"
	"github.com/google/uuid"
)

// PoolFromSubscription derives pool attributes from a subscription: total
// capacity is subscription quantity scaled by the product multiplier, the
// validity window and provided-product set are copied verbatim.
//
// Non-positive multipliers are rejected at product creation; if a negative
// total still shows up here something upstream is broken and the derivation
// fails loudly.
func PoolFromSubscription(sub *models.Subscription, product *models.Product) (*models.Pool, error) {
	total := sub.Quantity * product.EffectiveMultiplier()
	if total < 0 {
		return nil, fmt.Errorf("%w: derived pool quantity %d for subscription %s",
			ErrInvariantViolation, total, sub.ID)
	}

	subID := sub.ID
	return &models.Pool{
		ID:                 uuid.New(),
		OwnerID:            sub.OwnerID,
		ProductID:          sub.ProductID,
		ProductName:        product.Name,
		ProvidedProductIDs: models.ProductIDSet(sub.ProvidedIDs()),
		Quantity:           total,
		StartDate:          sub.StartDate,
		EndDate:            sub.EndDate,
		SubscriptionID:     &subID,
	}, nil
}

// PoolFromSourceEntitlement derives a sub-pool spawned by an existing
// entitlement (a host entitlement unlocking guest capacity). The derived pool
// inherits the parent's owner, links back through SourceEntitlementID, and
// its window must sit inside the parent entitlement's window.
func PoolFromSourceEntitlement(ent *models.Entitlement, parent *models.Pool, total int64, start, end time.Time) (*models.Pool, error) {
	if total < 0 {
		return nil, fmt.Errorf("%w: derived pool quantity %d from entitlement %s",
			ErrInvariantViolation, total, ent.ID)
	}
	if start.Before(ent.StartDate) || end.After(ent.EndDate) || !start.Before(end) {
		return nil, fmt.Errorf("%w: derived pool window [%s, %s) outside entitlement window [%s, %s)",
			ErrInvariantViolation, start, end, ent.StartDate, ent.EndDate)
	}

	entID := ent.ID
	return &models.Pool{
		ID:                  uuid.New(),
		OwnerID:             parent.OwnerID,
		ProductID:           parent.ProductID,
		ProductName:         parent.ProductName,
		ProvidedProductIDs:  models.ProductIDSet(parent.ProvidedIDs()),
		Quantity:            total,
		StartDate:           start,
		EndDate:             end,
		SourceEntitlementID: &entID,
	}, nil
}
