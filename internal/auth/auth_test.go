package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWT_RoundTrip(t *testing.T) {
	tok, err := SignJWT("secret", 42, time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT("secret", tok)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), claims.UserID)
}

func TestJWT_Rejects(t *testing.T) {
	tok, err := SignJWT("secret", 42, time.Hour)
	require.NoError(t, err)

	_, err = ParseJWT("other", tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := SignJWT("secret", 42, -time.Minute)
	require.NoError(t, err)
	_, err = ParseJWT("secret", expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPassword(t *testing.T) {
	h, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, CheckPassword(h, "s3cret"))
	assert.False(t, CheckPassword(h, "nope"))
}
