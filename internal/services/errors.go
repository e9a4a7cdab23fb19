package services

import "errors"

// Grant-path failure taxonomy. Handlers map these to HTTP statuses; anything
// else is a server error.
var (
	// ErrNoAvailablePool means no active pool covers a requested product.
	ErrNoAvailablePool = errors.New("no available pool for product")
	// ErrInsufficientCapacity means the pool exists but lacks remaining quantity.
	ErrInsufficientCapacity = errors.New("pool has insufficient capacity")
	// ErrPoolInactive means the pool is outside its validity window.
	ErrPoolInactive = errors.New("pool is not active")
	// ErrInvariantViolation is an internal consistency failure; the request is
	// aborted with no partial state committed.
	ErrInvariantViolation = errors.New("entitlement invariant violated")
	// ErrSigningFailure means the PKI call failed after bounded retries. The
	// reservation is compensated before this surfaces.
	ErrSigningFailure = errors.New("certificate signing failed")

	ErrPoolNotFound     = errors.New("pool not found")
	ErrConsumerNotFound = errors.New("consumer not found")
)
