package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	userID := uuid.New()

	token, err := GenerateAccessToken(userID, "test-secret", "social_rtc", time.Minute)
	require.NoError(t, err)

	got, err := ParseAccessToken(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestAccessTokenWrongSecret(t *testing.T) {
	token, err := GenerateAccessToken(uuid.New(), "test-secret", "social_rtc", time.Minute)
	require.NoError(t, err)

	_, err = ParseAccessToken(token, "other-secret")
	assert.Error(t, err)
}

func TestAccessTokenExpired(t *testing.T) {
	token, err := GenerateAccessToken(uuid.New(), "test-secret", "social_rtc", -time.Minute)
	require.NoError(t, err)

	_, err = ParseAccessToken(token, "test-secret")
	assert.Error(t, err)
}

func TestAccessTokenGarbage(t *testing.T) {
	_, err := ParseAccessToken("not-a-token", "test-secret")
	assert.Error(t, err)
}
