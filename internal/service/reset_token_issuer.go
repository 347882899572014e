package service

import (
	"fmt"
	"time"

	"lostfound/internal/utils"
)

const (
	resetSecretBytes     = 32
	defaultResetTokenTTL = time.Hour
)

// ResetToken is an issued reset credential. Secret goes to the user only;
// Verifier and ExpiresAt are what gets stored.
type ResetToken struct {
	Secret    string
	Verifier  string
	ExpiresAt time.Time
}

type ResetTokenIssuer struct {
	TTL   time.Duration
	Clock Clock

	// Random returns n bytes of entropy encoded for transport.
	Random func(n int) (string, error)
}

func NewResetTokenIssuer(ttl time.Duration, clock Clock) *ResetTokenIssuer {
	return &ResetTokenIssuer{TTL: ttl, Clock: clock}
}

func (i *ResetTokenIssuer) Issue() (ResetToken, error) {
	random := i.Random
	if random == nil {
		random = utils.GenerateRandomToken
	}
	secret, err := random(resetSecretBytes)
	if err != nil {
		return ResetToken{}, fmt.Errorf("read entropy: %w", err)
	}
	return ResetToken{
		Secret:    secret,
		Verifier:  i.Verifier(secret),
		ExpiresAt: i.now().Add(i.ttl()),
	}, nil
}

// Verifier derives the stored form of a secret. The secret carries 256 bits of
// entropy, so a fast digest is sufficient here.
func (i *ResetTokenIssuer) Verifier(secret string) string {
	return utils.HashToken(secret)
}

func (i *ResetTokenIssuer) ttl() time.Duration {
	if i.TTL > 0 {
		return i.TTL
	}
	return defaultResetTokenTTL
}

func (i *ResetTokenIssuer) now() time.Time {
	if i.Clock == nil {
		return time.Now()
	}
	return i.Clock.Now()
}
