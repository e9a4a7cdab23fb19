package services

import (
	"context"
	"testing"

	"github.com/canopyhq/entitlement-backend/internal/auth"
	"github.com/canopyhq/entitlement-backend/internal/dto"
	"github.com/canopyhq/entitlement-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newOwnerService(db *gorm.DB) *OwnerService {
	return NewOwnerService(db, NewPoolService(db))
}

func TestCreateOwnerSuperAdminOnly(t *testing.T) {
	db := openTestDB(t)
	svc := newOwnerService(db)
	existing := createOwner(t, db)
	consumer := createConsumer(t, db, existing)

	req := &dto.CreateOwnerRequest{Key: "acme", DisplayName: "Acme Corp"}

	_, err := svc.CreateOwner(context.Background(), ownerAdmin(existing.ID), req)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = svc.CreateOwner(context.Background(), consumerPrincipal(consumer), req)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = svc.CreateOwner(context.Background(), auth.Anonymous, req)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	owner, err := svc.CreateOwner(context.Background(), superAdmin(), req)
	require.NoError(t, err)
	assert.Equal(t, "acme", owner.Key)
	assert.Equal(t, "Acme Corp", owner.DisplayName)
}

func TestCreateConsumerWithinOwner(t *testing.T) {
	db := openTestDB(t)
	svc := newOwnerService(db)
	owner := createOwner(t, db)
	otherOwner := createOwner(t, db)

	req := &dto.CreateConsumerRequest{Name: "web-01", SystemUUID: "abc-123"}

	consumer, err := svc.CreateConsumer(context.Background(), ownerAdmin(owner.ID), owner.ID, req)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, consumer.OwnerID)
	assert.Equal(t, "abc-123", consumer.SystemUUID)

	_, err = svc.CreateConsumer(context.Background(), ownerAdmin(otherOwner.ID), owner.ID, req)
	assert.ErrorIs(t, err, auth.ErrForbidden)
}

func TestCreateProductValidatesMultiplier(t *testing.T) {
	db := openTestDB(t)
	svc := newOwnerService(db)
	owner := createOwner(t, db)

	_, err := svc.CreateProduct(context.Background(), ownerAdmin(owner.ID),
		&dto.CreateProductRequest{ID: "p1", Name: "P1", Multiplier: 1})
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = svc.CreateProduct(context.Background(), superAdmin(),
		&dto.CreateProductRequest{ID: "p1", Name: "P1", Multiplier: -2})
	assert.Error(t, err)

	product, err := svc.CreateProduct(context.Background(), superAdmin(),
		&dto.CreateProductRequest{ID: "p1", Name: "P1", Multiplier: 0})
	require.NoError(t, err)
	assert.Equal(t, int64(1), product.Multiplier)
}

func TestCreateSubscriptionDerivesPool(t *testing.T) {
	db := openTestDB(t)
	svc := newOwnerService(db)
	owner := createOwner(t, db)
	createProduct(t, db, "rhel", "Enterprise Linux", 3)

	sub, err := svc.CreateSubscription(context.Background(), ownerAdmin(owner.ID),
		&dto.CreateSubscriptionRequest{
			OwnerID:            owner.ID,
			ProductID:          "rhel",
			ProvidedProductIDs: []string{"rhel-atom"},
			Quantity:           5,
			StartDate:          date(2020, 1, 1),
			EndDate:            date(2030, 1, 1),
			ContractNumber:     "contract-7",
			AccountNumber:      "account-9",
		})
	require.NoError(t, err)

	pool, err := svc.pools.LookupBySubscription(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15), pool.Quantity)
	assert.True(t, pool.Provides("rhel-atom"))
}

func TestCreateSubscriptionValidation(t *testing.T) {
	db := openTestDB(t)
	svc := newOwnerService(db)
	owner := createOwner(t, db)
	createProduct(t, db, "rhel", "Enterprise Linux", 1)

	_, err := svc.CreateSubscription(context.Background(), superAdmin(),
		&dto.CreateSubscriptionRequest{
			OwnerID:   owner.ID,
			ProductID: "rhel",
			Quantity:  -1,
			StartDate: date(2020, 1, 1),
			EndDate:   date(2030, 1, 1),
		})
	assert.Error(t, err)

	_, err = svc.CreateSubscription(context.Background(), superAdmin(),
		&dto.CreateSubscriptionRequest{
			OwnerID:   owner.ID,
			ProductID: "rhel",
			Quantity:  1,
			StartDate: date(2030, 1, 1),
			EndDate:   date(2020, 1, 1),
		})
	assert.Error(t, err)

	var subCount int64
	require.NoError(t, db.Model(&models.Subscription{}).Count(&subCount).Error)
	assert.Equal(t, int64(0), subCount)
}
