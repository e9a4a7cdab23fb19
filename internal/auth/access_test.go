package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	ownerA := uuid.New()
	ownerB := uuid.New()
	consumerX := uuid.New()
	consumerY := uuid.New()

	superAdmin := Principal{UserID: uuid.New(), Role: RoleSuperAdmin}
	adminA := Principal{UserID: uuid.New(), Role: RoleOwnerAdmin, OwnerID: ownerA}
	consumer := Principal{UserID: uuid.New(), Role: RoleConsumer, OwnerID: ownerA, ConsumerID: consumerX}

	tests := []struct {
		name      string
		principal Principal
		verb      Verb
		target    Target
		allowed   bool
	}{
		{"super admin creates owner", superAdmin, VerbCreateOwner, Target{}, true},
		{"super admin touches any owner", superAdmin, VerbDelete, Target{OwnerID: ownerB}, true},

		{"owner admin within own owner", adminA, VerbCreate, Target{OwnerID: ownerA}, true},
		{"owner admin reads own consumer", adminA, VerbRead, Target{OwnerID: ownerA, ConsumerID: consumerX}, true},
		{"owner admin crosses owner boundary", adminA, VerbRead, Target{OwnerID: ownerB}, false},
		{"owner admin never creates owners", adminA, VerbCreateOwner, Target{OwnerID: ownerA}, false},

		{"consumer reads own record", consumer, VerbRead, Target{OwnerID: ownerA, ConsumerID: consumerX}, true},
		{"consumer mutates own record", consumer, VerbDelete, Target{OwnerID: ownerA, ConsumerID: consumerX}, true},
		{"consumer reads sibling consumer", consumer, VerbRead, Target{OwnerID: ownerA, ConsumerID: consumerY}, false},
		{"consumer touches owner-level target", consumer, VerbCreate, Target{OwnerID: ownerA}, false},
		{"consumer crosses owner boundary", consumer, VerbRead, Target{OwnerID: ownerB, ConsumerID: consumerX}, false},
		{"consumer never creates owners", consumer, VerbCreateOwner, Target{}, false},

		{"anonymous denied read", Anonymous, VerbRead, Target{OwnerID: ownerA}, false},
		{"anonymous denied create", Anonymous, VerbCreate, Target{OwnerID: ownerA, ConsumerID: consumerX}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.principal, tt.verb, tt.target)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrForbidden)
			}
		})
	}
}

func TestFromClaims(t *testing.T) {
	userID := uuid.New()
	ownerID := uuid.New()
	consumerID := uuid.New()

	p, err := FromClaims(jwt.MapClaims{
		"sub":         userID.String(),
		"role":        "consumer",
		"owner_id":    ownerID.String(),
		"consumer_id": consumerID.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, userID, p.UserID)
	assert.Equal(t, RoleConsumer, p.Role)
	assert.Equal(t, ownerID, p.OwnerID)
	assert.Equal(t, consumerID, p.ConsumerID)

	p, err = FromClaims(jwt.MapClaims{
		"sub":  userID.String(),
		"role": "super_admin",
	})
	require.NoError(t, err)
	assert.Equal(t, RoleSuperAdmin, p.Role)
	assert.Equal(t, uuid.Nil, p.OwnerID)

	_, err = FromClaims(jwt.MapClaims{"role": "consumer"})
	assert.Error(t, err)

	_, err = FromClaims(jwt.MapClaims{"sub": "not-a-uuid"})
	assert.Error(t, err)
}
