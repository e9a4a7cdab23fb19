package services

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/canopyhq/entitlement-backend/internal/models"
	"github.com/canopyhq/entitlement-backend/internal/pki"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CertificateService issues and revokes entitlement certificates. Serials are
// allocated from a durable auto-increment table and committed before any
// signing happens: a crash after signing but before the certificate row lands
// abandons the serial, it is never reused.
type CertificateService struct {
	db        *gorm.DB
	authority pki.Authority
	// signRetries bounds retries of the external PKI calls; keygen and
	// signing can fail transiently.
	signRetries int
}

func NewCertificateService(db *gorm.DB, authority pki.Authority, signRetries int) *CertificateService {
	if signRetries < 1 {
		signRetries = 1
	}
	return &CertificateService{db: db, authority: authority, signRetries: signRetries}
}

// NextSerial durably allocates a new certificate serial. Uniqueness comes
// from the database's auto-increment, so it holds across concurrent callers
// and process restarts.
func (s *CertificateService) NextSerial(ctx context.Context, expiration time.Time) (*models.CertificateSerial, error) {
	serial := &models.CertificateSerial{Expiration: expiration}
	if err := s.db.WithContext(ctx).Create(serial).Error; err != nil {
		return nil, fmt.Errorf("allocate certificate serial: %w", err)
	}
	return serial, nil
}

// Issue signs a certificate for an entitlement grant and persists it bound to
// a fresh serial. Callers hold no pool row locks here; signing is slow.
func (s *CertificateService) Issue(ctx context.Context, ent *models.Entitlement, subjectCN string, order pki.Order, products []pki.ProductEntry) (*models.Certificate, error) {
	cert, err := s.issue(ctx, &ent.ID, subjectCN, order, products, ent.StartDate, ent.EndDate)
	if err != nil {
		return nil, err
	}
	return cert, nil
}

// IssueDetached signs a certificate that is not backed by an entitlement
// (the ad hoc issuance path). The serial is still allocated and tracked.
func (s *CertificateService) IssueDetached(ctx context.Context, subjectCN string, order pki.Order, products []pki.ProductEntry, start, end time.Time) (*models.Certificate, error) {
	return s.issue(ctx, nil, subjectCN, order, products, start, end)
}

func (s *CertificateService) issue(ctx context.Context, entitlementID *uuid.UUID, subjectCN string, order pki.Order, products []pki.ProductEntry, start, end time.Time) (*models.Certificate, error) {
	serial, err := s.NextSerial(ctx, end)
	if err != nil {
		return nil, err
	}

	pair, err := s.generateKey(ctx)
	if err != nil {
		return nil, err
	}

	extensions := append(pki.OrderExtensions(order), pki.ProductExtensions(products)...)
	req := &pki.Request{
		Serial:     big.NewInt(serial.ID),
		SubjectCN:  subjectCN,
		NotBefore:  start,
		NotAfter:   end,
		Extensions: extensions,
	}

	der, err := s.sign(ctx, req, pair)
	if err != nil {
		return nil, err
	}

	cert := &models.Certificate{
		ID:            uuid.New(),
		SerialID:      serial.ID,
		EntitlementID: entitlementID,
		CertPEM:       s.authority.PEMEncodeCert(der),
		KeyPEM:        s.authority.PEMEncodeKey(pair),
	}
	if err := s.db.WithContext(ctx).Create(cert).Error; err != nil {
		return nil, fmt.Errorf("persist certificate (serial %d): %w", serial.ID, err)
	}
	return cert, nil
}

// generateKey mints the per-certificate key pair with bounded retries.
// Failures here are NoSuchAlgorithm-class and usually transient.
func (s *CertificateService) generateKey(ctx context.Context) (key *rsa.PrivateKey, err error) {
	for attempt := 1; attempt <= s.signRetries; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		key, err = s.authority.GenerateKeyPair()
		if err == nil {
			return key, nil
		}
		slog.Warn("key pair generation failed", "attempt", attempt, "error", err)
	}
	return nil, fmt.Errorf("%w: generate key pair: %v", ErrSigningFailure, err)
}

// sign delegates to the authority with bounded retries.
func (s *CertificateService) sign(ctx context.Context, req *pki.Request, key *rsa.PrivateKey) (der []byte, err error) {
	for attempt := 1; attempt <= s.signRetries; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		der, err = s.authority.Sign(req, key)
		if err == nil {
			return der, nil
		}
		slog.Warn("certificate signing failed", "serial", req.Serial, "attempt", attempt, "error", err)
	}
	return nil, fmt.Errorf("%w: serial %s: %v", ErrSigningFailure, req.Serial, err)
}

// Revoke marks a certificate and its serial revoked. The serial stays
// consumed forever.
func (s *CertificateService) Revoke(ctx context.Context, certID uuid.UUID) error {
	var cert models.Certificate
	if err := s.db.WithContext(ctx).First(&cert, "id = ?", certID).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&cert).Update("revoked", true).Error; err != nil {
			return err
		}
		return tx.Model(&models.CertificateSerial{}).
			Where("id = ?", cert.SerialID).
			Update("revoked", true).Error
	})
}

// RevokeForEntitlement revokes every certificate attached to an entitlement.
func (s *CertificateService) RevokeForEntitlement(ctx context.Context, entitlementID uuid.UUID) error {
	var certs []models.Certificate
	if err := s.db.WithContext(ctx).Where("entitlement_id = ?", entitlementID).Find(&certs).Error; err != nil {
		return err
	}
	for _, cert := range certs {
		if err := s.Revoke(ctx, cert.ID); err != nil {
			return err
		}
	}
	return nil
}

// ListForEntitlement returns the certificates attached to an entitlement.
func (s *CertificateService) ListForEntitlement(ctx context.Context, entitlementID uuid.UUID) ([]models.Certificate, error) {
	var certs []models.Certificate
	if err := s.db.WithContext(ctx).Where("entitlement_id = ?", entitlementID).Find(&certs).Error; err != nil {
		return nil, err
	}
	return certs, nil
}
