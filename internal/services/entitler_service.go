package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/canopyhq/entitlement-backend/internal/auth"
	"github.com/canopyhq/entitlement-backend/internal/models"
	"github.com/canopyhq/entitlement-backend/internal/pki"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EntitlerService orchestrates grant requests: access check, pool selection,
// reservation, entitlement creation and certificate issuance. It is the only
// component that creates or deletes entitlement rows.
//
// A grant moves through requested -> pool selected -> reserved -> certified;
// any failure after the reservation compensates with a release before the
// error surfaces, so pool counters never drift.
type EntitlerService struct {
	db    *gorm.DB
	pools *PoolService
	certs *CertificateService
	now   func() time.Time
}

func NewEntitlerService(db *gorm.DB, pools *PoolService, certs *CertificateService) *EntitlerService {
	return &EntitlerService{db: db, pools: pools, certs: certs, now: time.Now}
}

// BindByProducts grants the consumer one entitlement per requested product,
// each drawing one unit from the best-matching active pool. The whole request
// is a saga: if any product fails, every grant already made in this call is
// unwound before the error is returned.
func (s *EntitlerService) BindByProducts(ctx context.Context, principal auth.Principal, ownerID, consumerID uuid.UUID, productIDs []string) ([]models.Entitlement, error) {
	if err := auth.Check(principal, auth.VerbCreate, auth.Target{OwnerID: ownerID, ConsumerID: consumerID}); err != nil {
		return nil, err
	}

	consumer, err := s.findConsumer(ctx, ownerID, consumerID)
	if err != nil {
		return nil, err
	}

	granted := make([]models.Entitlement, 0, len(productIDs))
	for _, productID := range productIDs {
		ent, err := s.bindOne(ctx, consumer, productID)
		if err != nil {
			s.unwind(context.WithoutCancel(ctx), granted)
			return nil, err
		}
		granted = append(granted, *ent)
	}
	return granted, nil
}

// bindOne grants a single product: select pool, reserve, persist the
// entitlement, then sign. Reservation and the entitlement row are committed
// before the (slow) signing call, and rolled back if it fails or the caller
// has gone away.
func (s *EntitlerService) bindOne(ctx context.Context, consumer *models.Consumer, productID string) (*models.Entitlement, error) {
	pool, err := s.selectPool(ctx, consumer.OwnerID, productID)
	if err != nil {
		return nil, err
	}

	const quantity = 1
	if err := s.pools.Reserve(ctx, pool.ID, quantity); err != nil {
		return nil, err
	}

	ent := &models.Entitlement{
		ID:         uuid.New(),
		PoolID:     pool.ID,
		ConsumerID: consumer.ID,
		Quantity:   quantity,
		StartDate:  pool.StartDate,
		EndDate:    pool.EndDate,
	}
	if err := s.db.WithContext(ctx).Create(ent).Error; err != nil {
		// The insert may have failed because the caller cancelled; the
		// release must still go through.
		s.compensate(context.WithoutCancel(ctx), pool.ID, quantity)
		return nil, fmt.Errorf("create entitlement: %w", err)
	}

	cert, err := s.certify(ctx, ent, consumer, pool)
	if err != nil {
		// Compensation must run even when the failure was the caller's own
		// cancellation.
		cctx := context.WithoutCancel(ctx)
		s.db.WithContext(cctx).Delete(ent)
		s.compensate(cctx, pool.ID, quantity)
		return nil, err
	}

	ent.Certificates = []models.Certificate{*cert}
	slog.Info("entitlement granted",
		"owner_id", consumer.OwnerID.String(),
		"consumer_id", consumer.ID.String(),
		"pool_id", pool.ID.String(),
		"product_id", productID,
		"serial", cert.SerialID)
	return ent, nil
}

// selectPool picks the best active pool covering the product: an exact base
// product match beats a provided-product match, and within each class the
// pool closest to expiry wins so soon-to-expire capacity is not wasted.
func (s *EntitlerService) selectPool(ctx context.Context, ownerID uuid.UUID, productID string) (*models.Pool, error) {
	pools, err := s.pools.FindByOwnerAndProduct(ctx, ownerID, productID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	candidates := pools[:0]
	for _, p := range pools {
		if p.ActiveAt(now) && p.Available() > 0 {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoAvailablePool, productID)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		iExact := candidates[i].ProductID == productID
		jExact := candidates[j].ProductID == productID
		if iExact != jExact {
			return iExact
		}
		return candidates[i].EndDate.Before(candidates[j].EndDate)
	})
	return &candidates[0], nil
}

// certify issues the certificate for a fresh grant. The caller aborting
// counts as a failure: the grant is unwound the same way.
func (s *EntitlerService) certify(ctx context.Context, ent *models.Entitlement, consumer *models.Consumer, pool *models.Pool) (*models.Certificate, error) {
	order := pki.Order{
		Name:     pool.ProductName,
		SKU:      pool.ProductID,
		Quantity: ent.Quantity,
	}
	if pool.SubscriptionID != nil {
		var sub models.Subscription
		if err := s.db.WithContext(ctx).First(&sub, "id = ?", *pool.SubscriptionID).Error; err == nil {
			order.Number = sub.ContractNumber
			order.Regnum = sub.AccountNumber
		}
	}

	products, err := s.productEntries(ctx, pool)
	if err != nil {
		return nil, err
	}

	cert, err := s.certs.Issue(ctx, ent, certificateSubject(consumer), order, products)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		// Caller cancelled between signing and returning; treat like any
		// other post-reservation failure. The serial stays consumed.
		if rerr := s.certs.Revoke(context.WithoutCancel(ctx), cert.ID); rerr != nil {
			slog.Error("revoke after cancellation failed", "certificate_id", cert.ID.String(), "error", rerr)
		}
		return nil, err
	}
	return cert, nil
}

// productEntries resolves the base and provided products into certificate
// slots, falling back to bare ids for products missing from the catalog.
func (s *EntitlerService) productEntries(ctx context.Context, pool *models.Pool) ([]pki.ProductEntry, error) {
	ids := append([]string{pool.ProductID}, pool.ProvidedIDs()...)

	var known []models.Product
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&known).Error; err != nil {
		return nil, err
	}
	names := make(map[string]string, len(known))
	for _, p := range known {
		names[p.ID] = p.Name
	}

	entries := make([]pki.ProductEntry, 0, len(ids))
	for _, id := range ids {
		name := names[id]
		if name == "" {
			name = id
		}
		entries = append(entries, pki.ProductEntry{ID: id, Name: name})
	}
	return entries, nil
}

// RemoveAllEntitlements revokes every entitlement the consumer holds:
// certificates are revoked, pool quantity is released, and sub-pools spawned
// by a removed entitlement are cascaded away. Calling it again is a no-op.
func (s *EntitlerService) RemoveAllEntitlements(ctx context.Context, principal auth.Principal, ownerID, consumerID uuid.UUID) error {
	if err := auth.Check(principal, auth.VerbDelete, auth.Target{OwnerID: ownerID, ConsumerID: consumerID}); err != nil {
		return err
	}

	consumer, err := s.findConsumer(ctx, ownerID, consumerID)
	if err != nil {
		return err
	}

	var ents []models.Entitlement
	if err := s.db.WithContext(ctx).Where("consumer_id = ?", consumer.ID).Find(&ents).Error; err != nil {
		return err
	}
	for _, ent := range ents {
		if err := s.removeEntitlement(ctx, &ent); err != nil {
			return err
		}
	}
	return nil
}

// removeEntitlement tears down one entitlement, cascading into any derived
// pools first so their own entitlements are unwound before the pool goes.
func (s *EntitlerService) removeEntitlement(ctx context.Context, ent *models.Entitlement) error {
	derived, err := s.pools.ListBySourceEntitlement(ctx, ent.ID)
	if err != nil {
		return err
	}
	for _, pool := range derived {
		var dependents []models.Entitlement
		if err := s.db.WithContext(ctx).Where("pool_id = ?", pool.ID).Find(&dependents).Error; err != nil {
			return err
		}
		for _, dep := range dependents {
			if err := s.removeEntitlement(ctx, &dep); err != nil {
				return err
			}
		}
		if err := s.db.WithContext(ctx).Delete(&pool).Error; err != nil {
			return err
		}
	}

	if err := s.certs.RevokeForEntitlement(ctx, ent.ID); err != nil {
		return err
	}
	if err := s.pools.Release(ctx, ent.PoolID, ent.Quantity); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(ent).Error; err != nil {
		return err
	}

	slog.Info("entitlement removed", "entitlement_id", ent.ID.String(), "pool_id", ent.PoolID.String())
	return nil
}

// ListByConsumer returns a consumer's entitlements with certificates loaded.
func (s *EntitlerService) ListByConsumer(ctx context.Context, principal auth.Principal, ownerID, consumerID uuid.UUID) ([]models.Entitlement, error) {
	if err := auth.Check(principal, auth.VerbRead, auth.Target{OwnerID: ownerID, ConsumerID: consumerID}); err != nil {
		return nil, err
	}
	var ents []models.Entitlement
	err := s.db.WithContext(ctx).
		Preload("Certificates").
		Where("consumer_id = ?", consumerID).
		Find(&ents).Error
	if err != nil {
		return nil, err
	}
	return ents, nil
}

// IssueCertificateForProducts is the ad hoc single-shot issuance path: it
// signs a certificate for a product set without touching pool bookkeeping,
// returning a transient entitlement that only carries the certificate. The
// pool-backed path is authoritative; this one exists for out-of-band
// certificate requests. A zero window defaults to now..now+1h.
func (s *EntitlerService) IssueCertificateForProducts(ctx context.Context, principal auth.Principal, productIDs []string, rhicID string, start, end time.Time) (*models.Entitlement, error) {
	if principal.Role != auth.RoleSuperAdmin {
		return nil, auth.ErrForbidden
	}

	if start.IsZero() || end.IsZero() || !start.Before(end) {
		start = s.now()
		end = start.Add(time.Hour)
	}

	// Same fallback as the pool-backed path: products missing from the
	// catalog keep their slot with the bare id as name.
	var known []models.Product
	if err := s.db.WithContext(ctx).Where("id IN ?", productIDs).Find(&known).Error; err != nil {
		return nil, err
	}
	names := make(map[string]string, len(known))
	for _, p := range known {
		names[p.ID] = p.Name
	}
	entries := make([]pki.ProductEntry, 0, len(productIDs))
	for _, id := range productIDs {
		name := names[id]
		if name == "" {
			name = id
		}
		entries = append(entries, pki.ProductEntry{ID: id, Name: name})
	}

	order := pki.Order{Name: "ad hoc", Regnum: rhicID, Quantity: 1}
	cert, err := s.certs.IssueDetached(ctx, rhicID, order, entries, start, end)
	if err != nil {
		return nil, err
	}

	return &models.Entitlement{
		ID:           uuid.New(),
		Quantity:     1,
		StartDate:    start,
		EndDate:      end,
		Certificates: []models.Certificate{*cert},
	}, nil
}

func (s *EntitlerService) findConsumer(ctx context.Context, ownerID, consumerID uuid.UUID) (*models.Consumer, error) {
	var consumer models.Consumer
	err := s.db.WithContext(ctx).
		Scopes(auth.ForOwner(ownerID)).
		First(&consumer, "id = ?", consumerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConsumerNotFound
		}
		return nil, err
	}
	return &consumer, nil
}

// unwind reverses grants already made in a multi-product bind.
func (s *EntitlerService) unwind(ctx context.Context, granted []models.Entitlement) {
	for i := len(granted) - 1; i >= 0; i-- {
		ent := granted[i]
		if err := s.removeEntitlement(ctx, &ent); err != nil {
			slog.Error("grant rollback failed", "entitlement_id", ent.ID.String(), "error", err)
		}
	}
}

// compensate releases a reservation after a failure; release errors are
// logged, not surfaced, so the original failure wins.
func (s *EntitlerService) compensate(ctx context.Context, poolID uuid.UUID, quantity int64) {
	if err := s.pools.Release(ctx, poolID, quantity); err != nil {
		slog.Error("reservation release failed", "pool_id", poolID.String(), "quantity", quantity, "error", err)
	}
}

func certificateSubject(consumer *models.Consumer) string {
	if consumer.SystemUUID != "" {
		return consumer.SystemUUID
	}
	return consumer.ID.String()
}
