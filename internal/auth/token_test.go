package auth

import (
	"testing"
	"time"

	"github.com/BradenHooton/csm/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef-test-secret"

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour)

	token, issued, err := tm.GenerateAccessToken("admin", []string{models.RoleAdmin})
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.UserID)
	assert.Equal(t, []string{models.RoleAdmin}, claims.Roles)
	assert.Equal(t, issued.ID, claims.ID)
	assert.True(t, claims.HasRole(models.RoleAdmin))
}

func TestTokenManager_UniqueJTI(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour)
	_, a, err := tm.GenerateAccessToken("admin", nil)
	require.NoError(t, err)
	_, b, err := tm.GenerateAccessToken("admin", nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestTokenManager_Expired(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Minute)
	token, _, err := tm.GenerateAccessToken("admin", nil)
	require.NoError(t, err)

	tm.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = tm.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	token, _, err := NewTokenManager(testSecret, time.Hour).GenerateAccessToken("admin", nil)
	require.NoError(t, err)

	_, err = NewTokenManager("another-secret-another-secret-another", time.Hour).ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsOtherTokenTypes(t *testing.T) {
	claims := &models.TokenClaims{
		Type:   "refresh",
		UserID: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = NewTokenManager(testSecret, time.Hour).ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsNoneAlgorithm(t *testing.T) {
	claims := &models.TokenClaims{Type: models.TokenTypeAccess, UserID: "admin"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenManager(testSecret, time.Hour).ValidateToken(token)
	assert.Error(t, err)
}
