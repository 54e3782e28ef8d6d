package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaker_GenerateAndParse(t *testing.T) {
	maker := New("test-secret", time.Hour)

	token, err := maker.GenerateToken("alice", "user")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := maker.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "user", claims.Role)
}

func TestMaker_ExpiredToken(t *testing.T) {
	maker := New("test-secret", -time.Minute)

	token, err := maker.GenerateToken("alice", "user")
	require.NoError(t, err)

	_, err = maker.ParseToken(token)
	assert.Error(t, err)
}

func TestMaker_WrongSecret(t *testing.T) {
	maker := New("test-secret", time.Hour)
	other := New("other-secret", time.Hour)

	token, err := maker.GenerateToken("alice", "admin")
	require.NoError(t, err)

	_, err = other.ParseToken(token)
	assert.Error(t, err)
}
