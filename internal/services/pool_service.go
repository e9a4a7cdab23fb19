package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/canopyhq/entitlement-backend/internal/auth"
	"github.com/canopyhq/entitlement-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PoolService owns the authoritative pool set. All quantity mutation goes
// through Reserve and Release; nothing else writes the consumed counter.
type PoolService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewPoolService(db *gorm.DB) *PoolService {
	return &PoolService{db: db, now: time.Now}
}

// CreatePoolForSubscription derives and persists the pool backing a
// subscription.
func (s *PoolService) CreatePoolForSubscription(ctx context.Context, sub *models.Subscription) (*models.Pool, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", sub.ProductID).Error; err != nil {
		return nil, fmt.Errorf("product %s for subscription %s: %w", sub.ProductID, sub.ID, err)
	}

	pool, err := PoolFromSubscription(sub, &product)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(pool).Error; err != nil {
		return nil, fmt.Errorf("create pool for subscription %s: %w", sub.ID, err)
	}
	return pool, nil
}

// CreateDerivedPool persists a sub-pool spawned by an entitlement.
func (s *PoolService) CreateDerivedPool(ctx context.Context, ent *models.Entitlement, total int64, start, end time.Time) (*models.Pool, error) {
	var parent models.Pool
	if err := s.db.WithContext(ctx).First(&parent, "id = ?", ent.PoolID).Error; err != nil {
		return nil, fmt.Errorf("parent pool %s: %w", ent.PoolID, err)
	}

	pool, err := PoolFromSourceEntitlement(ent, &parent, total, start, end)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(pool).Error; err != nil {
		return nil, fmt.Errorf("create derived pool: %w", err)
	}
	return pool, nil
}

// Find returns a pool by id.
func (s *PoolService) Find(ctx context.Context, id uuid.UUID) (*models.Pool, error) {
	var pool models.Pool
	if err := s.db.WithContext(ctx).First(&pool, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPoolNotFound
		}
		return nil, err
	}
	return &pool, nil
}

// LookupBySubscription returns the pool created from a subscription.
func (s *PoolService) LookupBySubscription(ctx context.Context, subID uuid.UUID) (*models.Pool, error) {
	var pool models.Pool
	if err := s.db.WithContext(ctx).First(&pool, "subscription_id = ?", subID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPoolNotFound
		}
		return nil, err
	}
	return &pool, nil
}

// FindByOwnerAndProduct returns the owner's pools that cover the product,
// either as base product or through the provided-product set ("fuzzy" match).
// Provided sets are small, so membership is checked in memory rather than
// with dialect-specific JSON operators.
func (s *PoolService) FindByOwnerAndProduct(ctx context.Context, ownerID uuid.UUID, productID string) ([]models.Pool, error) {
	var pools []models.Pool
	if err := s.db.WithContext(ctx).Scopes(auth.ForOwner(ownerID)).Find(&pools).Error; err != nil {
		return nil, err
	}

	matched := make([]models.Pool, 0, len(pools))
	for _, p := range pools {
		if p.Provides(productID) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// ListByConsumer returns the active pools a consumer's owner holds. Pools
// outside their validity window are excluded.
func (s *PoolService) ListByConsumer(ctx context.Context, consumer *models.Consumer) ([]models.Pool, error) {
	now := s.now()
	var pools []models.Pool
	err := s.db.WithContext(ctx).
		Scopes(auth.ForOwner(consumer.OwnerID)).
		Where("start_date <= ? AND end_date > ?", now, now).
		Find(&pools).Error
	if err != nil {
		return nil, err
	}
	return pools, nil
}

// ListBySourceEntitlement returns pools spawned from the given entitlement,
// for cascading revocation.
func (s *PoolService) ListBySourceEntitlement(ctx context.Context, entitlementID uuid.UUID) ([]models.Pool, error) {
	var pools []models.Pool
	if err := s.db.WithContext(ctx).Where("source_entitlement_id = ?", entitlementID).Find(&pools).Error; err != nil {
		return nil, err
	}
	return pools, nil
}

// Reserve atomically consumes quantity from an active pool. The guard and the
// increment execute as one UPDATE, so two concurrent reservations that would
// jointly overrun the pool can never both succeed; the database serializes
// them per row.
func (s *PoolService) Reserve(ctx context.Context, poolID uuid.UUID, quantity int64) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: reserve quantity %d", ErrInvariantViolation, quantity)
	}

	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.Pool{}).
		Where("id = ? AND consumed + ? <= quantity AND start_date <= ? AND end_date > ?",
			poolID, quantity, now, now).
		Update("consumed", gorm.Expr("consumed + ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// The guarded update matched nothing; load the row to tell the caller why.
	pool, err := s.Find(ctx, poolID)
	if err != nil {
		return err
	}
	if !pool.ActiveAt(now) {
		return fmt.Errorf("%w: pool %s window [%s, %s)", ErrPoolInactive,
			pool.ID, pool.StartDate.Format(time.RFC3339), pool.EndDate.Format(time.RFC3339))
	}
	return fmt.Errorf("%w: pool %s has %d of %d available, requested %d",
		ErrInsufficientCapacity, pool.ID, pool.Available(), pool.Quantity, quantity)
}

// Release returns quantity to a pool, clamped at zero. Used when an
// entitlement is revoked or a grant is compensated after a failure.
func (s *PoolService) Release(ctx context.Context, poolID uuid.UUID, quantity int64) error {
	if quantity <= 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Pool{}).
		Where("id = ?", poolID).
		Update("consumed", gorm.Expr(
			"CASE WHEN consumed >= ? THEN consumed - ? ELSE 0 END", quantity, quantity)).
		Error
}
