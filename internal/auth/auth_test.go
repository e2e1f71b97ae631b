package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plumeworks/plume/internal/model"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("CorrectHorseBattery9")
	require.NoError(t, err)
	assert.NotContains(t, hash, "CorrectHorseBattery9")

	ok, err := VerifyPassword("CorrectHorseBattery9", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("WrongPassword1234", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashUniqueSalts(t *testing.T) {
	h1, err := HashPassword("SamePassword1234")
	require.NoError(t, err)
	h2, err := HashPassword("SamePassword1234")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	_, err := VerifyPassword("whatever", "not-a-valid-hash")
	assert.Error(t, err)

	_, err = VerifyPassword("whatever", "!!!$???")
	assert.Error(t, err)
}

func TestIssueAndValidateToken(t *testing.T) {
	mgr, err := NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour)
	require.NoError(t, err)

	user := model.User{ID: uuid.New(), Username: "admin"}
	token, exp, err := mgr.IssueToken(user, model.RoleAdmin)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	claims, err := mgr.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, model.RoleAdmin, claims.Role)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	mgr, err := NewTokenManager("secret-one-secret-one-secret-one", time.Hour)
	require.NoError(t, err)
	other, err := NewTokenManager("secret-two-secret-two-secret-two", time.Hour)
	require.NoError(t, err)

	token, _, err := mgr.IssueToken(model.User{ID: uuid.New(), Username: "admin"}, model.RoleAdmin)
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateExpiredToken(t *testing.T) {
	mgr, err := NewTokenManager("0123456789abcdef0123456789abcdef", -time.Minute)
	require.NoError(t, err)

	token, _, err := mgr.IssueToken(model.User{ID: uuid.New(), Username: "admin"}, model.RoleAdmin)
	require.NoError(t, err)

	_, err = mgr.ValidateToken(token)
	assert.Error(t, err)
}

func TestNewTokenManagerEmptySecret(t *testing.T) {
	_, err := NewTokenManager("", time.Hour)
	assert.Error(t, err)
}
