package repository

import (
	"context"
	"errors"
	"time"

	"lostfound/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AccountRepository interface {
	Create(ctx context.Context, account *entity.Account) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Account, error)
	FindByEmail(ctx context.Context, email string) (*entity.Account, error)
	FindByResetVerifier(ctx context.Context, verifier string) (*entity.Account, error)
	// SetResetToken overwrites both reset fields of the account in one statement.
	SetResetToken(ctx context.Context, id uuid.UUID, verifier string, expiresAt time.Time) error
	// ConsumeResetToken replaces the password hash and clears both reset fields,
	// provided the stored verifier still matches and has not expired at now.
	// It reports false when no row satisfied the guard.
	ConsumeResetToken(ctx context.Context, id uuid.UUID, verifier string, passwordHash string, now time.Time) (bool, error)
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

var ErrDuplicateEmail = errors.New("duplicate email")

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *entity.Account) error {
	err := r.db.WithContext(ctx).Create(account).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *accountRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Account, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *accountRepository) FindByEmail(ctx context.Context, email string) (*entity.Account, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *accountRepository) FindByResetVerifier(ctx context.Context, verifier string) (*entity.Account, error) {
	return r.first(ctx, "reset_verifier = ?", verifier)
}

func (r *accountRepository) SetResetToken(ctx context.Context, id uuid.UUID, verifier string, expiresAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&entity.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"reset_verifier":   verifier,
			"reset_expires_at": expiresAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *accountRepository) ConsumeResetToken(
	ctx context.Context,
	id uuid.UUID,
	verifier string,
	passwordHash string,
	now time.Time,
) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.Account{}).
		Where("id = ? AND reset_verifier = ? AND reset_expires_at > ?", id, verifier, now).
		Updates(map[string]any{
			"password_hash":    passwordHash,
			"reset_verifier":   nil,
			"reset_expires_at": nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *accountRepository) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.Account{}).
		Where("reset_expires_at IS NOT NULL AND reset_expires_at <= ?", now).
		Updates(map[string]any{
			"reset_verifier":   nil,
			"reset_expires_at": nil,
		})
	return result.RowsAffected, result.Error
}

func (r *accountRepository) first(ctx context.Context, query string, args ...any) (*entity.Account, error) {
	var account entity.Account
	err := r.db.WithContext(ctx).
		Where(query, args...).
		First(&account).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}
