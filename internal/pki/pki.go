// Package pki is the signing capability consumed by certificate issuance.
// The engine depends on the Authority interface only; the X.509 authority in
// this package is the production implementation.
package pki

import (
	"crypto/rsa"
	"crypto/x509/pkix"
	"math/big"
	"time"
)

// Request is the certificate payload handed to the signer: subject identity,
// validity window, pre-allocated serial and the entitlement extensions.
type Request struct {
	Serial     *big.Int
	SubjectCN  string
	NotBefore  time.Time
	NotAfter   time.Time
	Extensions []pkix.Extension
}

// Authority signs entitlement certificates. Key generation may be slow
// (asymmetric keygen); callers must not hold pool reservations' row locks
// across these calls.
type Authority interface {
	GenerateKeyPair() (*rsa.PrivateKey, error)
	// Sign produces DER certificate bytes for the request.
	Sign(req *Request, key *rsa.PrivateKey) ([]byte, error)
	PEMEncodeCert(der []byte) []byte
	PEMEncodeKey(key *rsa.PrivateKey) []byte
}
