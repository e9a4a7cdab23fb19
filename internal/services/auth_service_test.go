package services

import (
	"testing"
	"time"

	"github.com/canopyhq/entitlement-backend/internal/auth"
	"github.com/canopyhq/entitlement-backend/internal/config"
	"github.com/canopyhq/entitlement-backend/internal/dto"
	"github.com/canopyhq/entitlement-backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newAuthService(db *gorm.DB) *AuthService {
	return NewAuthService(db, &config.Config{
		JWTSecret:        "test-secret",
		JWTAccessExpiry:  15 * time.Minute,
		JWTRefreshExpiry: 24 * time.Hour,
	})
}

func parseAccessToken(t *testing.T, token string) jwt.MapClaims {
	t.Helper()
	parsed, err := jwt.Parse(token, func(tok *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	return claims
}

func TestRegisterConsumerAndLogin(t *testing.T) {
	db := openTestDB(t)
	svc := newAuthService(db)
	owner := createOwner(t, db)
	consumer := createConsumer(t, db, owner)

	resp, err := svc.RegisterConsumer(&dto.RegisterRequest{
		Email:    "system@example.com",
		Password: "long-enough-password",
	}, owner.ID, consumer.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, models.RoleConsumer, resp.User.Role)

	// The access token carries the claims the principal middleware reads.
	claims := parseAccessToken(t, resp.AccessToken)
	principal, err := auth.FromClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleConsumer, principal.Role)
	assert.Equal(t, owner.ID, principal.OwnerID)
	assert.Equal(t, consumer.ID, principal.ConsumerID)

	_, err = svc.RegisterConsumer(&dto.RegisterRequest{
		Email:    "system@example.com",
		Password: "long-enough-password",
	}, owner.ID, consumer.ID)
	assert.ErrorIs(t, err, ErrEmailTaken)

	login, err := svc.Login(&dto.LoginRequest{Email: "system@example.com", Password: "long-enough-password"})
	require.NoError(t, err)
	assert.NotEmpty(t, login.AccessToken)

	_, err = svc.Login(&dto.LoginRequest{Email: "system@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterConsumerRejectsShortPassword(t *testing.T) {
	db := openTestDB(t)
	svc := newAuthService(db)
	owner := createOwner(t, db)
	consumer := createConsumer(t, db, owner)

	_, err := svc.RegisterConsumer(&dto.RegisterRequest{
		Email:    "x@example.com",
		Password: "short",
	}, owner.ID, consumer.ID)
	assert.Error(t, err)
}

func TestRefreshRotatesToken(t *testing.T) {
	db := openTestDB(t)
	svc := newAuthService(db)
	owner := createOwner(t, db)
	consumer := createConsumer(t, db, owner)

	resp, err := svc.RegisterConsumer(&dto.RegisterRequest{
		Email:    "r@example.com",
		Password: "long-enough-password",
	}, owner.ID, consumer.ID)
	require.NoError(t, err)

	refreshed, err := svc.Refresh(&dto.RefreshRequest{RefreshToken: resp.RefreshToken})
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	// The old refresh token is single use.
	_, err = svc.Refresh(&dto.RefreshRequest{RefreshToken: resp.RefreshToken})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	db := openTestDB(t)
	svc := newAuthService(db)
	owner := createOwner(t, db)
	consumer := createConsumer(t, db, owner)

	resp, err := svc.RegisterConsumer(&dto.RegisterRequest{
		Email:    "l@example.com",
		Password: "long-enough-password",
	}, owner.ID, consumer.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(&dto.LogoutRequest{RefreshToken: resp.RefreshToken}))

	_, err = svc.Refresh(&dto.RefreshRequest{RefreshToken: resp.RefreshToken})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestEnsureSuperAdminIdempotent(t *testing.T) {
	db := openTestDB(t)
	svc := newAuthService(db)

	require.NoError(t, svc.EnsureSuperAdmin("admin@example.com", "bootstrap-password"))
	require.NoError(t, svc.EnsureSuperAdmin("admin@example.com", "bootstrap-password"))

	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("email = ?", "admin@example.com").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	resp, err := svc.Login(&dto.LoginRequest{Email: "admin@example.com", Password: "bootstrap-password"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleSuperAdmin, resp.User.Role)
}
