package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParseIdentity(t *testing.T) {
	tok, err := SignIdentity("access", "u-1", "a@example.com", time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), tok.Exp, 2*time.Second)

	claims, err := ParseIdentity("access", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.NotEmpty(t, claims.ID)
}

func TestParseIdentityRejectsOtherSecret(t *testing.T) {
	tok, err := SignIdentity("refresh", "u-1", "a@example.com", time.Minute)
	require.NoError(t, err)
	_, err = ParseIdentity("access", tok.Token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParseIdentityExpired(t *testing.T) {
	tok, err := SignIdentity("access", "u-1", "a@example.com", -time.Minute)
	require.NoError(t, err)
	_, err = ParseIdentity("access", tok.Token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseIdentityGarbage(t *testing.T) {
	_, err := ParseIdentity("access", "not-a-jwt")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokensAreUnique(t *testing.T) {
	a, err := SignIdentity("s", "u-1", "a@example.com", time.Hour)
	require.NoError(t, err)
	b, err := SignIdentity("s", "u-1", "a@example.com", time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, a.Token, b.Token)
	assert.NotEqual(t, HashToken(a.Token), HashToken(b.Token))
}

func TestInviteRoundTrip(t *testing.T) {
	tok, err := SignInvite("invite", "p-1", "b@example.com", "LEAD", time.Hour)
	require.NoError(t, err)
	claims, err := ParseInvite("invite", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "p-1", claims.ProjectID)
	assert.Equal(t, "LEAD", claims.Role)

	// an identity token is not an invitation
	id, err := SignIdentity("invite", "u-1", "b@example.com", time.Hour)
	require.NoError(t, err)
	_, err = ParseInvite("invite", id.Token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestHashesEqual(t *testing.T) {
	h := HashToken("raw")
	assert.True(t, HashesEqual(h, HashToken("raw")))
	assert.False(t, HashesEqual(h, HashToken("other")))
	assert.False(t, HashesEqual("", ""))
}

func TestPasswordHelpers(t *testing.T) {
	hash, err := HashPassword("s3cret", 4)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "s3cret"))
	assert.False(t, VerifyPassword(hash, "wrong"))
	assert.False(t, VerifyPassword("", "s3cret"))

	otp, err := NewOTP()
	require.NoError(t, err)
	assert.Len(t, otp, 6)

	tmp, err := RandomHex(4)
	require.NoError(t, err)
	assert.Len(t, tmp, 8)
}
