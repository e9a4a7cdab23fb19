package auth

import (
	"errors"

	"github.com/google/uuid"
)

// ErrForbidden is returned when the principal may not perform the requested
// operation. Never retried.
var ErrForbidden = errors.New("access denied")

// Target identifies the entity an operation acts on. ConsumerID is zero for
// owner-level targets.
type Target struct {
	OwnerID    uuid.UUID
	ConsumerID uuid.UUID
}

// Check evaluates the access rule table and returns ErrForbidden on denial.
// It is called explicitly at the top of every mutating service operation,
// before any state changes.
//
//	SUPER_ADMIN: anything.
//	OWNER_ADMIN: anything within its own owner, but never owner creation.
//	CONSUMER:    its own consumer record only.
//	anonymous:   nothing.
func Check(p Principal, verb Verb, target Target) error {
	switch p.Role {
	case RoleSuperAdmin:
		return nil
	case RoleOwnerAdmin:
		if verb == VerbCreateOwner {
			return ErrForbidden
		}
		if p.OwnerID == target.OwnerID {
			return nil
		}
		return ErrForbidden
	case RoleConsumer:
		if verb == VerbCreateOwner {
			return ErrForbidden
		}
		if p.OwnerID == target.OwnerID && target.ConsumerID != uuid.Nil && p.ConsumerID == target.ConsumerID {
			return nil
		}
		return ErrForbidden
	default:
		return ErrForbidden
	}
}
