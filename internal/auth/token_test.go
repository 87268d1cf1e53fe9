package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/crypto/bcrypt"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 30)

	token, expiresAt, err := tm.GenerateToken("op-1", RoleOperator)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "op-1", claims.SubjectID)
	assert.Equal(t, RoleOperator, claims.Role)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	tm := NewTokenManager("test-secret", 30)
	other := NewTokenManager("other-secret", 30)

	token, _, err := tm.GenerateToken("op-1", RoleViewer)
	require.NoError(t, err)

	_, err = other.ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	tm := NewTokenManager("test-secret", 30)

	_, err := tm.ParseToken("not-a-token")
	assert.Error(t, err)
}

func TestOperatorKeyHashing(t *testing.T) {
	hash, err := HashOperatorKey("hunter2", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NoError(t, CompareOperatorKey(hash, "hunter2"))
	assert.Error(t, CompareOperatorKey(hash, "wrong"))
}
