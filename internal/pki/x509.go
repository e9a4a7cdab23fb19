package pki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"
)

const keyBits = 2048

// X509Authority signs entitlement certificates with an issuing CA held in
// memory.
type X509Authority struct {
	caCert *x509.Certificate
	caKey  *rsa.PrivateKey
}

var _ Authority = (*X509Authority)(nil)

// NewX509Authority builds an authority from CA certificate and key PEM bytes.
func NewX509Authority(certPEM, keyPEM []byte) (*X509Authority, error) {
	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil {
		return nil, errors.New("no PEM block in CA certificate")
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse CA certificate: %w", err)
	}

	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, errors.New("no PEM block in CA key")
	}
	key, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse CA key: %w", err)
	}

	return &X509Authority{caCert: cert, caKey: key}, nil
}

// LoadOrCreateCA reads the CA pair from disk, generating and persisting a
// self-signed CA on first start. A half-present pair is an error: silently
// regenerating would invalidate every certificate issued under the old CA.
func LoadOrCreateCA(certPath, keyPath string) (*X509Authority, error) {
	certPEM, certErr := os.ReadFile(certPath)
	keyPEM, keyErr := os.ReadFile(keyPath)
	switch {
	case certErr == nil && keyErr == nil:
		return NewX509Authority(certPEM, keyPEM)
	case certErr == nil:
		return nil, fmt.Errorf("CA certificate %s present but key unreadable: %w", certPath, keyErr)
	case keyErr == nil:
		return nil, fmt.Errorf("CA key %s present but certificate unreadable: %w", keyPath, certErr)
	}

	authority, certPEM, keyPEM, err := generateCA()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return nil, fmt.Errorf("write CA certificate: %w", err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return nil, fmt.Errorf("write CA key: %w", err)
	}
	return authority, nil
}

func generateCA() (*X509Authority, []byte, []byte, error) {
	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("generate CA key: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "entitlement issuing CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().AddDate(10, 0, 0),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("self-sign CA: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, nil, err
	}

	a := &X509Authority{caCert: cert, caKey: key}
	return a, a.PEMEncodeCert(der), a.PEMEncodeKey(key), nil
}

// GenerateKeyPair mints the per-certificate key. RSA keygen is slow; callers
// run it outside any reservation transaction.
func (a *X509Authority) GenerateKeyPair() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, keyBits)
}

// Sign issues a DER-encoded certificate for the request under the issuing CA.
func (a *X509Authority) Sign(req *Request, key *rsa.PrivateKey) ([]byte, error) {
	if req.Serial == nil || req.Serial.Sign() <= 0 {
		return nil, errors.New("certificate request needs a positive serial")
	}

	template := &x509.Certificate{
		SerialNumber:    req.Serial,
		Subject:         pkix.Name{CommonName: req.SubjectCN},
		NotBefore:       req.NotBefore,
		NotAfter:        req.NotAfter,
		KeyUsage:        x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:     []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		ExtraExtensions: req.Extensions,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, a.caCert, &key.PublicKey, a.caKey)
	if err != nil {
		return nil, fmt.Errorf("sign certificate: %w", err)
	}
	return der, nil
}

func (a *X509Authority) PEMEncodeCert(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func (a *X509Authority) PEMEncodeKey(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
}
