package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name          string
		password      string
		shouldFail    bool
		errorContains string
	}{
		{name: "valid strong password", password: "SecureP@ss123"},
		{name: "valid with multiple special chars", password: "Secure#P@ssw0rd"},
		{name: "too short", password: "Pa@1", shouldFail: true, errorContains: "at least 8"},
		{name: "missing uppercase", password: "securepass@123", shouldFail: true, errorContains: "upper and lower"},
		{name: "missing digit", password: "SecurePass@xyz", shouldFail: true, errorContains: "digit"},
		{name: "missing special character", password: "SecurePass123", shouldFail: true, errorContains: "special"},
		{name: "too long", password: "Aa1@" + strings.Repeat("x", 80), shouldFail: true, errorContains: "at most 72"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if !tt.shouldFail {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestValidatePassword_Common(t *testing.T) {
	err := ValidatePassword("Password123!")
	assert.NoError(t, err, "case variants of common passwords still pass when they meet the rules")

	err = ValidatePassword("password123!")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too common")
}

func TestHashAndComparePassword(t *testing.T) {
	Cost = bcrypt.MinCost
	t.Cleanup(func() { Cost = 12 })

	hash, err := HashPassword("x")
	require.NoError(t, err)
	assert.NotEqual(t, "x", hash)

	assert.NoError(t, ComparePassword(hash, "x"))
	assert.Error(t, ComparePassword(hash, "y"))
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)
}
