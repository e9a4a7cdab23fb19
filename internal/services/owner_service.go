package services

import (
	"context"
	"fmt"

	"github.com/canopyhq/entitlement-backend/internal/auth"
	"github.com/canopyhq/entitlement-backend/internal/dto"
	"github.com/canopyhq/entitlement-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OwnerService manages owners, consumers and the catalog records the
// entitlement engine reads. Every mutation runs the access check first.
type OwnerService struct {
	db    *gorm.DB
	pools *PoolService
}

func NewOwnerService(db *gorm.DB, pools *PoolService) *OwnerService {
	return &OwnerService{db: db, pools: pools}
}

// CreateOwner is restricted to super admins.
func (s *OwnerService) CreateOwner(ctx context.Context, principal auth.Principal, req *dto.CreateOwnerRequest) (*models.Owner, error) {
	if err := auth.Check(principal, auth.VerbCreateOwner, auth.Target{}); err != nil {
		return nil, err
	}

	owner := &models.Owner{
		ID:          uuid.New(),
		Key:         req.Key,
		DisplayName: req.DisplayName,
	}
	if err := s.db.WithContext(ctx).Create(owner).Error; err != nil {
		return nil, fmt.Errorf("create owner: %w", err)
	}
	return owner, nil
}

func (s *OwnerService) CreateConsumer(ctx context.Context, principal auth.Principal, ownerID uuid.UUID, req *dto.CreateConsumerRequest) (*models.Consumer, error) {
	if err := auth.Check(principal, auth.VerbCreate, auth.Target{OwnerID: ownerID}); err != nil {
		return nil, err
	}

	consumer := &models.Consumer{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Name:       req.Name,
		SystemUUID: req.SystemUUID,
	}
	if err := s.db.WithContext(ctx).Create(consumer).Error; err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}
	return consumer, nil
}

// CreateProduct registers catalog metadata. Non-positive multipliers are
// rejected here so pool derivation can assume validated input.
func (s *OwnerService) CreateProduct(ctx context.Context, principal auth.Principal, req *dto.CreateProductRequest) (*models.Product, error) {
	if principal.Role != auth.RoleSuperAdmin {
		return nil, auth.ErrForbidden
	}
	if req.Multiplier < 0 {
		return nil, fmt.Errorf("product multiplier must not be negative")
	}

	multiplier := req.Multiplier
	if multiplier == 0 {
		multiplier = 1
	}
	product := &models.Product{
		ID:         req.ID,
		Name:       req.Name,
		Multiplier: multiplier,
	}
	if err := s.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return product, nil
}

// CreateSubscription records an already-sold subscription and immediately
// derives its pool.
func (s *OwnerService) CreateSubscription(ctx context.Context, principal auth.Principal, req *dto.CreateSubscriptionRequest) (*models.Subscription, error) {
	if err := auth.Check(principal, auth.VerbCreate, auth.Target{OwnerID: req.OwnerID}); err != nil {
		return nil, err
	}
	if req.Quantity < 0 {
		return nil, fmt.Errorf("subscription quantity must not be negative")
	}
	if !req.StartDate.Before(req.EndDate) {
		return nil, fmt.Errorf("subscription start date must precede end date")
	}

	sub := &models.Subscription{
		ID:                 uuid.New(),
		OwnerID:            req.OwnerID,
		ProductID:          req.ProductID,
		ProvidedProductIDs: models.ProductIDSet(req.ProvidedProductIDs),
		Quantity:           req.Quantity,
		StartDate:          req.StartDate,
		EndDate:            req.EndDate,
		ContractNumber:     req.ContractNumber,
		AccountNumber:      req.AccountNumber,
	}
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	if _, err := s.pools.CreatePoolForSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// FindOwner returns an owner by id.
func (s *OwnerService) FindOwner(ctx context.Context, id uuid.UUID) (*models.Owner, error) {
	var owner models.Owner
	if err := s.db.WithContext(ctx).First(&owner, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &owner, nil
}
