package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/taskflow/internal/apperr"
	"github.com/iliyamo/taskflow/internal/model"
	"github.com/iliyamo/taskflow/internal/utils"
)

func expiredAccess(t *testing.T, u model.User) string {
	t.Helper()
	tok, err := utils.SignIdentity(testAccessSecret, u.ID, u.Email, -time.Minute)
	require.NoError(t, err)
	return tok.Token
}

func TestGateRejectsWithoutCredentials(t *testing.T) {
	h := newHarness(t)
	d := h.gate.Evaluate(context.Background(), Credentials{})
	assert.Equal(t, Rejected, d.State)
	assert.Equal(t, NoCredential, d.Reason)
	assert.ErrorIs(t, d.Err(), apperr.Unauthorized)
}

func TestGateAcceptsValidAccess(t *testing.T) {
	h := newHarness(t)
	u := h.user(t, "Ada")
	pair, err := h.tokens.IssuePair(context.Background(), u.ID, u.Email)
	require.NoError(t, err)

	d := h.gate.Evaluate(context.Background(), Credentials{Access: pair.Access.Token})
	require.Equal(t, Authenticated, d.State)
	assert.Equal(t, u.ID, d.Identity.UserID)
	assert.Nil(t, d.Rotated)
	assert.NoError(t, d.Err())
}

func TestGateSilentRefresh(t *testing.T) {
	h := newHarness(t)
	u := h.user(t, "Ada")
	ctx := context.Background()
	pair, err := h.tokens.IssuePair(ctx, u.ID, u.Email)
	require.NoError(t, err)

	d := h.gate.Evaluate(ctx, Credentials{Access: expiredAccess(t, u), Refresh: pair.Refresh.Token})
	require.Equal(t, Authenticated, d.State)
	require.NotNil(t, d.Rotated)
	assert.Equal(t, u.ID, d.Identity.UserID)
	assert.NotEqual(t, pair.Refresh.Token, d.Rotated.Refresh.Token)

	// The rotated pair is coherent: its access token verifies and its
	// refresh token is the one now stored.
	_, err = h.tokens.VerifyAccess(d.Rotated.Access.Token)
	assert.NoError(t, err)
	assert.Equal(t, utils.HashToken(d.Rotated.Refresh.Token), h.db.users[u.ID].RefreshTokenHash)

	again := h.gate.Evaluate(ctx, Credentials{Access: expiredAccess(t, u), Refresh: pair.Refresh.Token})
	assert.Equal(t, InvalidSession, again.Reason)
}

func TestGateRefreshWithoutAccessCookie(t *testing.T) {
	h := newHarness(t)
	u := h.user(t, "Ada")
	pair, err := h.tokens.IssuePair(context.Background(), u.ID, u.Email)
	require.NoError(t, err)

	d := h.gate.Evaluate(context.Background(), Credentials{Refresh: pair.Refresh.Token})
	assert.Equal(t, Authenticated, d.State)
	assert.NotNil(t, d.Rotated)
}

func TestGateExpiredWithoutRefresh(t *testing.T) {
	h := newHarness(t)
	u := h.user(t, "Ada")
	d := h.gate.Evaluate(context.Background(), Credentials{Access: expiredAccess(t, u)})
	assert.Equal(t, SessionExpired, d.Reason)
}

func TestGateInvalidRefresh(t *testing.T) {
	h := newHarness(t)
	u := h.user(t, "Ada")
	d := h.gate.Evaluate(context.Background(), Credentials{Access: "junk", Refresh: "junk"})
	assert.Equal(t, InvalidSession, d.Reason)

	forged, err := utils.SignIdentity("other-secret", u.ID, u.Email, time.Hour)
	require.NoError(t, err)
	d = h.gate.Evaluate(context.Background(), Credentials{Refresh: forged.Token})
	assert.Equal(t, InvalidSession, d.Reason)
}

func TestGateDeactivatedMidSession(t *testing.T) {
	h := newHarness(t)
	u := h.user(t, "Ada")
	ctx := context.Background()
	pair, err := h.tokens.IssuePair(ctx, u.ID, u.Email)
	require.NoError(t, err)
	fakeUsers{h.db}.setStatus(u.ID, model.UserSuspended)

	d := h.gate.Evaluate(ctx, Credentials{Access: expiredAccess(t, u), Refresh: pair.Refresh.Token})
	assert.Equal(t, Rejected, d.State)
	assert.Equal(t, Reauthenticate, d.Reason)
	assert.Nil(t, d.Rotated)

	d = h.gate.Evaluate(ctx, Credentials{Access: pair.Access.Token})
	assert.Equal(t, AccountBlocked, d.Reason)
}

func TestGateVerifiedPolicy(t *testing.T) {
	h := newHarness(t)
	u := model.User{Name: "New", Email: "new@example.com", PasswordHash: "x"}
	require.NoError(t, fakeUsers{h.db}.Create(context.Background(), &u))
	pair, err := h.tokens.IssuePair(context.Background(), u.ID, u.Email)
	require.NoError(t, err)

	d := h.gate.Evaluate(context.Background(), Credentials{Access: pair.Access.Token})
	assert.Equal(t, Unverified, d.Reason)

	lax := NewAuthGate(h.tokens, fakeUsers{h.db}, false, nil)
	assert.Equal(t, Authenticated, lax.Evaluate(context.Background(), Credentials{Access: pair.Access.Token}).State)
}
