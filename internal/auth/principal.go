package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is the access level a principal carries.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleOwnerAdmin Role = "owner_admin"
	RoleConsumer   Role = "consumer"
	// RoleNone is an unauthenticated caller; denied everything.
	RoleNone Role = ""
)

// Verb is the kind of access a request needs.
type Verb string

const (
	VerbCreate Verb = "create"
	VerbRead   Verb = "read"
	VerbUpdate Verb = "update"
	VerbDelete Verb = "delete"
	// VerbCreateOwner is the one operation only super admins may perform.
	VerbCreateOwner Verb = "create_owner"
)

// Principal is the acting identity for a single request. Not persisted.
type Principal struct {
	UserID     uuid.UUID
	Role       Role
	OwnerID    uuid.UUID
	ConsumerID uuid.UUID
}

// Anonymous is the principal for requests with no resolved identity.
var Anonymous = Principal{Role: RoleNone}

const principalKey = "principal"

// SetPrincipal stores the resolved principal in Fiber context locals.
func SetPrincipal(c *fiber.Ctx, p Principal) {
	c.Locals(principalKey, p)
}

// GetPrincipal returns the principal resolved by the middleware, or
// Anonymous when none was set.
func GetPrincipal(c *fiber.Ctx) Principal {
	if p, ok := c.Locals(principalKey).(Principal); ok {
		return p
	}
	return Anonymous
}

// FromClaims builds a Principal from JWT claims (sub, role, owner_id,
// consumer_id).
func FromClaims(claims jwt.MapClaims) (Principal, error) {
	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return Anonymous, errors.New("missing or invalid sub claim")
	}

	role, _ := claims["role"].(string)
	p := Principal{UserID: userID, Role: Role(role)}

	if s, ok := claims["owner_id"].(string); ok && s != "" {
		if id, err := uuid.Parse(s); err == nil {
			p.OwnerID = id
		}
	}
	if s, ok := claims["consumer_id"].(string); ok && s != "" {
		if id, err := uuid.Parse(s); err == nil {
			p.ConsumerID = id
		}
	}
	return p, nil
}
