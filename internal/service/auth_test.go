package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/taskflow/internal/apperr"
	"github.com/iliyamo/taskflow/internal/model"
)

func TestRegisterVerifyLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	prof, err := h.auth.Register(ctx, "Dana", " Dana@Example.com ", "password123")
	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", prof.Email)
	assert.False(t, prof.Verified)

	_, _, err = h.auth.Login(ctx, "dana@example.com", "password123")
	assert.ErrorIs(t, err, apperr.Unauthorized, "unverified accounts cannot log in")

	code := h.mail.lastOTP(t)
	prof, pair, err := h.auth.VerifyEmail(ctx, "dana@example.com", code)
	require.NoError(t, err)
	assert.True(t, prof.Verified)
	assert.NotEmpty(t, pair.Access.Token)
	assert.NotEmpty(t, pair.Refresh.Token)

	d := h.gate.Evaluate(ctx, Credentials{Access: pair.Access.Token})
	require.Equal(t, Authenticated, d.State)
	assert.Equal(t, prof.ID, d.Identity.UserID)

	_, again, err := h.auth.Login(ctx, "DANA@example.com", "password123")
	require.NoError(t, err)
	assert.NotEqual(t, pair.Refresh.Token, again.Refresh.Token)

	_, _, err = h.auth.VerifyEmail(ctx, "dana@example.com", code)
	assert.ErrorIs(t, err, apperr.BadRequest, "a used code is gone")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h := newHarness(t)
	h.user(t, "Dana")
	_, err := h.auth.Register(context.Background(), "Dana", "dana@example.com", "password123")
	assert.ErrorIs(t, err, apperr.Conflict)

	_, err = h.auth.Register(context.Background(), "Eve", "eve@example.com", "short")
	assert.ErrorIs(t, err, apperr.BadRequest)
}

func TestVerifyEmailAttemptLimit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.auth.Register(ctx, "Dana", "dana@example.com", "password123")
	require.NoError(t, err)
	code := h.mail.lastOTP(t)

	for range otpMaxAttempts {
		_, _, err := h.auth.VerifyEmail(ctx, "dana@example.com", "000000x")
		assert.Equal(t, "invalid verification code", apperr.Message(err))
	}
	_, _, err = h.auth.VerifyEmail(ctx, "dana@example.com", code)
	assert.Equal(t, "too many attempts, request a new code", apperr.Message(err))

	require.NoError(t, h.auth.ResendOTP(ctx, "dana@example.com"))
	_, _, err = h.auth.VerifyEmail(ctx, "dana@example.com", h.mail.lastOTP(t))
	assert.NoError(t, err)
	assert.ErrorIs(t, h.auth.ResendOTP(ctx, "dana@example.com"), apperr.BadRequest)
}

func TestVerifyEmailExpiredCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.auth.Register(ctx, "Dana", "dana@example.com", "password123")
	require.NoError(t, err)
	code := h.mail.lastOTP(t)

	h.auth.now = func() time.Time { return time.Now().Add(otpTTL + time.Second) }
	_, _, err = h.auth.VerifyEmail(ctx, "dana@example.com", code)
	assert.Equal(t, "verification code expired", apperr.Message(err))
}

func TestLoginFailuresLookAlike(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.user(t, "Dana")

	_, _, errWrong := h.auth.Login(ctx, u.Email, "not-the-password")
	_, _, errMissing := h.auth.Login(ctx, "nobody@example.com", "password123")
	fakeUsers{h.db}.setStatus(u.ID, model.UserSuspended)
	_, _, errBlocked := h.auth.Login(ctx, u.Email, "password123")

	for _, err := range []error{errWrong, errMissing, errBlocked} {
		assert.ErrorIs(t, err, apperr.Unauthorized)
		assert.Equal(t, "invalid credentials", apperr.Message(err))
	}
}

func TestEmailIsNormalizedOnEveryEntryPoint(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.auth.Register(ctx, "Erin", "erin@example.com", "password123")
	require.NoError(t, err)

	require.NoError(t, h.auth.ResendOTP(ctx, "  Erin@Example.COM "))
	_, _, err = h.auth.VerifyEmail(ctx, " ERIN@example.com", h.mail.lastOTP(t))
	require.NoError(t, err)

	p, _, err := h.auth.Login(ctx, " Erin@EXAMPLE.com  ", "password123")
	require.NoError(t, err)
	assert.Equal(t, "erin@example.com", p.Email)
}

func TestRefreshAndLogout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.user(t, "Dana")
	_, pair, err := h.auth.Login(ctx, u.Email, "password123")
	require.NoError(t, err)

	next, err := h.auth.Refresh(ctx, pair.Refresh.Token)
	require.NoError(t, err)
	_, err = h.auth.Refresh(ctx, pair.Refresh.Token)
	assert.ErrorIs(t, err, apperr.Unauthorized, "a rotated token is spent")

	require.NoError(t, h.auth.Logout(ctx, next.Refresh.Token))
	_, err = h.auth.Refresh(ctx, next.Refresh.Token)
	assert.ErrorIs(t, err, apperr.Unauthorized)

	_, err = h.auth.Refresh(ctx, "")
	assert.ErrorIs(t, err, apperr.BadRequest)
	assert.NoError(t, h.auth.Logout(ctx, ""))
}

func TestRefreshRejectsInactiveOwner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.user(t, "Dana")
	_, pair, err := h.auth.Login(ctx, u.Email, "password123")
	require.NoError(t, err)

	fakeUsers{h.db}.setStatus(u.ID, model.UserSuspended)
	_, err = h.auth.Refresh(ctx, pair.Refresh.Token)
	assert.ErrorIs(t, err, apperr.Unauthorized)
	assert.Equal(t, string(Reauthenticate), apperr.Message(err))
}
