package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetTokenIssuerIssue(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	issuer := NewResetTokenIssuer(30*time.Minute, clock)

	first, err := issuer.Issue()
	require.NoError(t, err)
	second, err := issuer.Issue()
	require.NoError(t, err)

	assert.Len(t, first.Secret, 43)
	assert.NotEqual(t, first.Secret, second.Secret)
	assert.NotEqual(t, first.Secret, first.Verifier)
	assert.Equal(t, issuer.Verifier(first.Secret), first.Verifier)
	assert.Equal(t, clock.now.Add(30*time.Minute), first.ExpiresAt)
}

func TestResetTokenIssuerDefaultTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	token, err := NewResetTokenIssuer(0, clock).Issue()
	require.NoError(t, err)
	assert.Equal(t, clock.now.Add(time.Hour), token.ExpiresAt)
}

func TestResetTokenIssuerEntropyFailure(t *testing.T) {
	issuer := NewResetTokenIssuer(time.Hour, nil)
	issuer.Random = func(int) (string, error) { return "", errors.New("no entropy") }

	_, err := issuer.Issue()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read entropy")
}
