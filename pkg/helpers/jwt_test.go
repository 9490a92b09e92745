package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWT() *JWTManager {
	return NewJWTManager("access-secret", "refresh-secret", time.Hour, 24*time.Hour)
}

func TestJWT_SessionRoundTrip(t *testing.T) {
	m := newTestJWT()
	tok, exp, err := m.GenerateAccessToken("u1", "s1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	c, err := m.ParseAccessToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)
	assert.Equal(t, "s1", c.SessionID)
	assert.Equal(t, PurposeSession, c.Purpose)

	_, err = m.ParseRefreshToken(tok)
	assert.Error(t, err, "access token must not verify with the refresh secret")
}

func TestJWT_RecoveryPair(t *testing.T) {
	m := newTestJWT()
	access, refresh, _, err := m.GenerateRecoveryPair("u1", "r1", 30*time.Minute)
	require.NoError(t, err)

	c, err := m.ParseRecoveryPair(access, refresh)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)
	assert.Equal(t, "r1", c.SessionID)

	_, err = m.ParseRecoveryPair(refresh, access)
	assert.Error(t, err)
}

func TestJWT_RecoveryPairRejectsSessionTokens(t *testing.T) {
	m := newTestJWT()
	access, _, err := m.GenerateAccessToken("u1", "s1")
	require.NoError(t, err)
	refresh, _, err := m.GenerateRefreshToken("u1", "s1")
	require.NoError(t, err)

	_, err = m.ParseRecoveryPair(access, refresh)
	assert.ErrorIs(t, err, ErrTokenPurpose)
}

func TestJWT_RecoveryPairRejectsMixedSessions(t *testing.T) {
	m := newTestJWT()
	a1, _, _, err := m.GenerateRecoveryPair("u1", "r1", time.Minute)
	require.NoError(t, err)
	_, r2, _, err := m.GenerateRecoveryPair("u1", "r2", time.Minute)
	require.NoError(t, err)

	_, err = m.ParseRecoveryPair(a1, r2)
	assert.Error(t, err)
}

func TestJWT_Expired(t *testing.T) {
	m := NewJWTManager("a", "r", -time.Minute, time.Hour)
	tok, _, err := m.GenerateAccessToken("u1", "s1")
	require.NoError(t, err)
	_, err = m.ParseAccessToken(tok)
	assert.Error(t, err)
}

func TestNewJWTManager_Independent(t *testing.T) {
	a := NewJWTManager("access-a", "refresh-a", time.Minute, time.Hour)
	b := NewJWTManager("access-b", "refresh-b", time.Minute, time.Hour)

	tok, _, err := a.GenerateAccessToken("u1", "s1")
	require.NoError(t, err)
	_, err = a.ParseAccessToken(tok)
	require.NoError(t, err)
	_, err = b.ParseAccessToken(tok)
	assert.Error(t, err)
}
