package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/matricula-api/internal/models"
	appErrors "github.com/noah-isme/matricula-api/pkg/errors"
)

func signToken(t *testing.T, secret string, claims *models.JWTClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims(role models.UserRole) *models.JWTClaims {
	return &models.JWTClaims{
		UserID: "user-1",
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "identity",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestTokenServiceValidateToken(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "identity"})

	claims, err := svc.ValidateToken(signToken(t, "secret", validClaims(models.RoleSecretary)))
	require.NoError(t, err)
	assert.Equal(t, models.Actor{ID: "user-1", Role: models.RoleSecretary}, claims.Actor())
}

func TestTokenServiceRejectsBadTokens(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "identity"})

	expired := validClaims(models.RoleAdmin)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	otherIssuer := validClaims(models.RoleAdmin)
	otherIssuer.Issuer = "elsewhere"
	noRole := validClaims("")

	for name, token := range map[string]string{
		"wrong secret": signToken(t, "other", validClaims(models.RoleAdmin)),
		"expired":      signToken(t, "secret", expired),
		"issuer":       signToken(t, "secret", otherIssuer),
		"role":         signToken(t, "secret", noRole),
		"garbage":      "not-a-token",
	} {
		_, err := svc.ValidateToken(token)
		assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code, name)
	}
}
