package services

import (
	"context"
	"sync"
	"testing"

	"github.com/canopyhq/entitlement-backend/internal/models"
	"github.com/canopyhq/entitlement-backend/internal/pki"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextSerialConcurrentUniqueness(t *testing.T) {
	db := openTestDB(t)
	certs := NewCertificateService(db, newFakeAuthority(t), 1)

	const workers = 20
	var wg sync.WaitGroup
	serials := make(chan int64, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serial, err := certs.NextSerial(context.Background(), date(2030, 1, 1))
			if err != nil {
				t.Errorf("next serial: %v", err)
				return
			}
			serials <- serial.ID
		}()
	}
	wg.Wait()
	close(serials)

	seen := make(map[int64]bool)
	for id := range serials {
		assert.False(t, seen[id], "serial %d allocated twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers)
}

func TestIssuePersistsCertificate(t *testing.T) {
	db := openTestDB(t)
	authority := newFakeAuthority(t)
	certs := NewCertificateService(db, authority, 1)

	ent := &models.Entitlement{
		ID:        uuid.New(),
		PoolID:    uuid.New(),
		Quantity:  1,
		StartDate: date(2020, 1, 1),
		EndDate:   date(2030, 1, 1),
	}
	order := pki.Order{Name: "Prod", Number: "order-1", SKU: "sku-1", Quantity: 1}

	cert, err := certs.Issue(context.Background(), ent, "system-uuid", order,
		[]pki.ProductEntry{{ID: "p1", Name: "Prod"}})
	require.NoError(t, err)
	assert.NotZero(t, cert.SerialID)
	require.NotNil(t, cert.EntitlementID)
	assert.Equal(t, ent.ID, *cert.EntitlementID)
	assert.Contains(t, string(cert.CertPEM), "CERT:")
	assert.False(t, cert.Revoked)

	listed, err := certs.ListForEntitlement(context.Background(), ent.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, cert.SerialID, listed[0].SerialID)
}

func TestIssueDetachedHasNoEntitlement(t *testing.T) {
	db := openTestDB(t)
	certs := NewCertificateService(db, newFakeAuthority(t), 1)

	cert, err := certs.IssueDetached(context.Background(), "rhic-42",
		pki.Order{Name: "ad hoc", Quantity: 1}, nil, date(2026, 1, 1), date(2026, 1, 2))
	require.NoError(t, err)
	assert.Nil(t, cert.EntitlementID)
}

func TestIssueRetriesTransientSignFailure(t *testing.T) {
	db := openTestDB(t)
	authority := newFakeAuthority(t)
	authority.failSigns = 2
	certs := NewCertificateService(db, authority, 3)

	ent := &models.Entitlement{
		ID:        uuid.New(),
		PoolID:    uuid.New(),
		Quantity:  1,
		StartDate: date(2020, 1, 1),
		EndDate:   date(2030, 1, 1),
	}

	cert, err := certs.Issue(context.Background(), ent, "cn", pki.Order{Quantity: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, authority.signCalls)
	assert.NotZero(t, cert.SerialID)
}

func TestIssueExhaustedRetriesAbandonsSerial(t *testing.T) {
	db := openTestDB(t)
	authority := newFakeAuthority(t)
	authority.failSigns = 10
	certs := NewCertificateService(db, authority, 2)

	ent := &models.Entitlement{
		ID:        uuid.New(),
		PoolID:    uuid.New(),
		Quantity:  1,
		StartDate: date(2020, 1, 1),
		EndDate:   date(2030, 1, 1),
	}

	_, err := certs.Issue(context.Background(), ent, "cn", pki.Order{Quantity: 1}, nil)
	require.ErrorIs(t, err, ErrSigningFailure)
	assert.Equal(t, 2, authority.signCalls)

	// The serial was committed before signing and stays consumed; no
	// certificate row exists for it.
	var serialCount, certCount int64
	require.NoError(t, db.Model(&models.CertificateSerial{}).Count(&serialCount).Error)
	require.NoError(t, db.Model(&models.Certificate{}).Count(&certCount).Error)
	assert.Equal(t, int64(1), serialCount)
	assert.Equal(t, int64(0), certCount)

	// The next issuance gets a fresh serial, never the abandoned one.
	authority.failSigns = 0
	cert, err := certs.Issue(context.Background(), ent, "cn", pki.Order{Quantity: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cert.SerialID)
}

func TestRevokeFlagsCertificateAndSerial(t *testing.T) {
	db := openTestDB(t)
	certs := NewCertificateService(db, newFakeAuthority(t), 1)

	ent := &models.Entitlement{
		ID:        uuid.New(),
		PoolID:    uuid.New(),
		Quantity:  1,
		StartDate: date(2020, 1, 1),
		EndDate:   date(2030, 1, 1),
	}
	cert, err := certs.Issue(context.Background(), ent, "cn", pki.Order{Quantity: 1}, nil)
	require.NoError(t, err)

	require.NoError(t, certs.Revoke(context.Background(), cert.ID))

	var stored models.Certificate
	require.NoError(t, db.First(&stored, "id = ?", cert.ID).Error)
	assert.True(t, stored.Revoked)

	var serial models.CertificateSerial
	require.NoError(t, db.First(&serial, "id = ?", cert.SerialID).Error)
	assert.True(t, serial.Revoked)
}

func TestRevokeForEntitlementRevokesAll(t *testing.T) {
	db := openTestDB(t)
	certs := NewCertificateService(db, newFakeAuthority(t), 1)

	ent := &models.Entitlement{
		ID:        uuid.New(),
		PoolID:    uuid.New(),
		Quantity:  1,
		StartDate: date(2020, 1, 1),
		EndDate:   date(2030, 1, 1),
	}
	for i := 0; i < 2; i++ {
		_, err := certs.Issue(context.Background(), ent, "cn", pki.Order{Quantity: 1}, nil)
		require.NoError(t, err)
	}

	require.NoError(t, certs.RevokeForEntitlement(context.Background(), ent.ID))

	var revoked int64
	require.NoError(t, db.Model(&models.Certificate{}).
		Where("entitlement_id = ? AND revoked = ?", ent.ID, true).
		Count(&revoked).Error)
	assert.Equal(t, int64(2), revoked)
}

func TestIssueCancelledContext(t *testing.T) {
	db := openTestDB(t)
	certs := NewCertificateService(db, newFakeAuthority(t), 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ent := &models.Entitlement{
		ID:        uuid.New(),
		PoolID:    uuid.New(),
		Quantity:  1,
		StartDate: date(2020, 1, 1),
		EndDate:   date(2030, 1, 1),
	}
	_, err := certs.Issue(ctx, ent, "cn", pki.Order{Quantity: 1}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
