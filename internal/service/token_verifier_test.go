package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/pkg/config"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
)

func signTestToken(t *testing.T, method jwt.SigningMethod, secret string, claims models.JWTClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims() models.JWTClaims {
	now := time.Now()
	return models.JWTClaims{
		UserID:   "user-1",
		Role:     models.RoleAccountant,
		BranchID: "branch-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "academy-auth",
			Audience:  jwt.ClaimStrings{"academy-api"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestTokenVerifierAcceptsValidToken(t *testing.T) {
	verifier := NewTokenVerifier(config.JWTConfig{Secret: "s3cret", Issuer: "academy-auth", Audience: []string{"academy-api"}})

	claims, err := verifier.Verify(signTestToken(t, jwt.SigningMethodHS256, "s3cret", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleAccountant, claims.Role)
	assert.Equal(t, "branch-1", models.ScopeFromClaims(claims).BranchID)
}

func TestTokenVerifierRejections(t *testing.T) {
	verifier := NewTokenVerifier(config.JWTConfig{Secret: "s3cret", Issuer: "academy-auth", Audience: []string{"academy-api"}})

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	foreignIssuer := validClaims()
	foreignIssuer.Issuer = "someone-else"

	noRole := validClaims()
	noRole.Role = ""

	cases := map[string]string{
		"wrong secret":   signTestToken(t, jwt.SigningMethodHS256, "other", validClaims()),
		"wrong method":   signTestToken(t, jwt.SigningMethodHS384, "s3cret", validClaims()),
		"expired":        signTestToken(t, jwt.SigningMethodHS256, "s3cret", expired),
		"foreign issuer": signTestToken(t, jwt.SigningMethodHS256, "s3cret", foreignIssuer),
		"missing role":   signTestToken(t, jwt.SigningMethodHS256, "s3cret", noRole),
		"garbage":        "not-a-token",
	}
	for name, token := range cases {
		_, err := verifier.Verify(token)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code), name)
	}
}
