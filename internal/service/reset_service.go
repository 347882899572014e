package service

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"net/url"
	"strings"
	"time"

	"lostfound/internal/entity"
	"lostfound/internal/limiter"
	"lostfound/internal/mail"
	"lostfound/internal/repository"
	"lostfound/internal/utils"

	"github.com/sirupsen/logrus"
)

const resetPagePath = "/reset/complete-page/"

// ResetService owns the password-reset token lifecycle: issuing a token,
// persisting its verifier, notifying the account holder and consuming the
// token exactly once.
type ResetService struct {
	accounts     repository.AccountRepository
	securityLogs repository.SecurityLogRepository
	tokens       *ResetTokenIssuer
	notifier     ResetNotifier
	passwordHash PasswordHasher
	limiter      ResetRequestLimiter
	clock        Clock
	config       ResetConfig
	logger       logrus.FieldLogger
}

func NewResetService(
	accounts repository.AccountRepository,
	securityLogs repository.SecurityLogRepository,
	notifier ResetNotifier,
	passwordHash PasswordHasher,
	limiter ResetRequestLimiter,
	clock Clock,
	config ResetConfig,
	logger logrus.FieldLogger,
) *ResetService {
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ResetService{
		accounts:     accounts,
		securityLogs: securityLogs,
		tokens:       NewResetTokenIssuer(config.ResetTokenTTL, clock),
		notifier:     notifier,
		passwordHash: passwordHash,
		limiter:      limiter,
		clock:        clock,
		config:       config,
		logger:       logger,
	}
}

// RequestReset issues a fresh token for the account registered under email and
// mails the reset link. The token is persisted before delivery is attempted, so
// a transport failure leaves a valid token behind that a repeated request
// overwrites.
func (s *ResetService) RequestReset(ctx context.Context, email string, ipAddress *string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrInvalidInput
	}
	if addr, err := netmail.ParseAddress(email); err != nil || addr.Address != email {
		return ErrInvalidInput
	}
	email = utils.NormalizeEmail(email)

	if err := s.allow(ctx, email); err != nil {
		return err
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return persistenceError("find account by email", err)
	}
	if account == nil {
		return ErrAccountNotFound
	}

	token, err := s.tokens.Issue()
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}
	if err := s.accounts.SetResetToken(ctx, account.ID, token.Verifier, token.ExpiresAt); err != nil {
		return persistenceError("store reset token", err)
	}
	account.ResetVerifier = &token.Verifier
	account.ResetExpiresAt = &token.ExpiresAt

	if err := s.notifier.Send(ctx, account, s.resetURL(token.Secret)); err != nil {
		logSecurity(ctx, s.securityLogs, s.logger, &account.ID, ipAddress, entity.ResetRequested, map[string]any{
			"delivered": false,
			"failure":   failureKind(err),
		})
		return err
	}

	logSecurity(ctx, s.securityLogs, s.logger, &account.ID, ipAddress, entity.ResetRequested, map[string]any{
		"delivered":  true,
		"expires_at": token.ExpiresAt.UTC().Format(time.RFC3339),
	})
	return nil
}

// CompleteReset replaces the password of the account whose stored verifier
// matches rawSecret and clears the token in the same write.
func (s *ResetService) CompleteReset(
	ctx context.Context,
	rawSecret string,
	newPassword string,
	confirmPassword string,
	ipAddress *string,
) error {
	rawSecret = strings.TrimSpace(rawSecret)
	if rawSecret == "" || newPassword == "" || confirmPassword == "" {
		return ErrInvalidInput
	}
	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}

	verifier := s.tokens.Verifier(rawSecret)
	account, err := s.accounts.FindByResetVerifier(ctx, verifier)
	if err != nil {
		return persistenceError("find account by reset verifier", err)
	}
	if account == nil || account.ResetExpiresAt == nil {
		logSecurity(ctx, s.securityLogs, s.logger, nil, ipAddress, entity.ResetRejected, map[string]any{"reason": "not_found"})
		return ErrTokenNotFound
	}

	now := s.clock.Now()
	if !now.Before(*account.ResetExpiresAt) {
		logSecurity(ctx, s.securityLogs, s.logger, &account.ID, ipAddress, entity.ResetRejected, map[string]any{"reason": "expired"})
		return ErrTokenExpired
	}

	hash, err := s.passwordHash.Hash(newPassword)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			return err
		}
		return fmt.Errorf("hash password: %w", err)
	}

	consumed, err := s.accounts.ConsumeResetToken(ctx, account.ID, verifier, hash, now)
	if err != nil {
		return persistenceError("replace password", err)
	}
	if !consumed {
		return ErrTokenNotFound
	}

	logSecurity(ctx, s.securityLogs, s.logger, &account.ID, ipAddress, entity.ResetCompleted, nil)
	return nil
}

// PurgeExpiredResetTokens clears reset state whose expiry has passed. Expired
// tokens are rejected regardless; this only keeps the table tidy.
func (s *ResetService) PurgeExpiredResetTokens(ctx context.Context) (int64, error) {
	n, err := s.accounts.ClearExpiredResetTokens(ctx, s.clock.Now())
	if err != nil {
		return 0, persistenceError("clear expired reset tokens", err)
	}
	return n, nil
}

func (s *ResetService) allow(ctx context.Context, email string) error {
	if s.limiter == nil {
		return nil
	}
	err := s.limiter.Allow(ctx, email)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, limiter.ErrRateLimited):
		return ErrResetRateLimited
	default:
		// Fail open: the per-IP limiter at the router still applies.
		s.logger.WithError(err).Warn("reset limiter unavailable")
		return nil
	}
}

func (s *ResetService) resetURL(secret string) string {
	base := strings.TrimRight(s.config.AppBaseURL, "/")
	return base + resetPagePath + url.PathEscape(secret)
}

func failureKind(err error) string {
	var transportErr *mail.TransportError
	if errors.As(err, &transportErr) {
		return string(transportErr.Kind)
	}
	return string(mail.Unclassified)
}

// RunSweeper purges expired reset state every interval until ctx is done.
// A non-positive interval disables the sweeper.
func (s *ResetService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpiredResetTokens(ctx)
			if err != nil {
				s.logger.WithError(err).Warn("purge expired reset tokens")
				continue
			}
			if n > 0 {
				s.logger.WithField("cleared", n).Info("purged expired reset tokens")
			}
		}
	}
}
