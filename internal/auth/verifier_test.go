package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevTokens(t *testing.T) {
	v := NewVerifier("", "")
	p, err := v.Verify("alice:Admin")
	require.NoError(t, err)
	assert.Equal(t, Principal{Subject: "alice", Role: "admin"}, p)
	assert.True(t, p.IsAdmin())

	p, err = v.Verify("user")
	require.NoError(t, err)
	assert.Equal(t, Principal{Role: "user"}, p)

	_, err = v.Verify("alice:")
	assert.Error(t, err)
}

func TestHMACRoundTrip(t *testing.T) {
	v := NewVerifier("hmac", "s3cret")
	tok, err := v.Sign(map[string]any{"sub": "bob", "role": "user"})
	require.NoError(t, err)

	p, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "bob", p.Subject)
	assert.False(t, p.IsAdmin())

	other := NewVerifier("hmac", "different")
	_, err = other.Verify(tok)
	assert.ErrorIs(t, err, ErrBadSignature)

	_, err = v.Verify("not.a.jwt!")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHMACExpiry(t *testing.T) {
	v := NewVerifier("hmac", "s3cret")
	now := time.Unix(1_700_000_000, 0)
	v.now = func() time.Time { return now }

	tok, err := v.Sign(map[string]any{"sub": "bob", "role": "admin", "exp": now.Add(-time.Minute).Unix()})
	require.NoError(t, err)
	_, err = v.Verify(tok)
	assert.ErrorIs(t, err, ErrExpired)

	tok, err = v.Sign(map[string]any{"sub": "bob", "role": "admin", "exp": now.Add(time.Minute).Unix()})
	require.NoError(t, err)
	p, err := v.Verify(tok)
	require.NoError(t, err)
	assert.True(t, p.IsAdmin())
}
