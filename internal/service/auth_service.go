package service

import (
	"context"
	"errors"
	"strings"

	"lostfound/internal/entity"
	"lostfound/internal/repository"
	"lostfound/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const dummyPasswordHash = "$2a$10$CwTycUXWue0Thq9StjUM0uJ8yQbWc1x9uxw2sQ2sXUNx5x9xJ9F2S"

type AuthService struct {
	accounts     repository.AccountRepository
	securityLogs repository.SecurityLogRepository

	passwordHash PasswordHasher
	accessTokens AccessTokenIssuer
	config       AuthConfig
	logger       logrus.FieldLogger
}

func NewAuthService(
	accounts repository.AccountRepository,
	securityLogs repository.SecurityLogRepository,
	passwordHash PasswordHasher,
	accessTokens AccessTokenIssuer,
	config AuthConfig,
	logger logrus.FieldLogger,
) *AuthService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuthService{
		accounts:     accounts,
		securityLogs: securityLogs,
		passwordHash: passwordHash,
		accessTokens: accessTokens,
		config:       config,
		logger:       logger,
	}
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*entity.Account, error) {
	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" || strings.TrimSpace(input.Email) == "" || input.Password == "" || input.ConfirmPassword == "" {
		return nil, ErrInvalidInput
	}
	if input.Password != input.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}

	email := utils.NormalizeEmail(input.Email)
	existing, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, persistenceError("find account by email", err)
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}

	hash, err := s.passwordHash.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	account := &entity.Account{
		Email:        email,
		FullName:     fullName,
		PasswordHash: hash,
	}
	if phone := strings.TrimSpace(input.Phone); phone != "" {
		account.Phone = &phone
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, persistenceError("create account", err)
	}
	return account, nil
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	if strings.TrimSpace(input.Email) == "" || input.Password == "" {
		return nil, ErrInvalidInput
	}

	email := utils.NormalizeEmail(input.Email)
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, persistenceError("find account by email", err)
	}
	if account == nil {
		_ = s.passwordHash.Verify(dummyPasswordHash, input.Password)
		logSecurity(ctx, s.securityLogs, s.logger, nil, input.IPAddress, entity.LoginFailed, map[string]any{"email": utils.MaskEmail(email)})
		return nil, ErrInvalidCredentials
	}

	if !s.passwordHash.Verify(account.PasswordHash, input.Password) {
		logSecurity(ctx, s.securityLogs, s.logger, &account.ID, input.IPAddress, entity.LoginFailed, nil)
		return nil, ErrInvalidCredentials
	}

	accessToken, expiresIn, err := s.accessTokens.IssueAccessToken(*account)
	if err != nil {
		return nil, err
	}

	logSecurity(ctx, s.securityLogs, s.logger, &account.ID, input.IPAddress, entity.LoginSuccess, nil)
	return &LoginResult{
		AccessToken: accessToken,
		ExpiresIn:   int64(expiresIn.Seconds()),
	}, nil
}

func (s *AuthService) GetAccount(ctx context.Context, accountID uuid.UUID) (*entity.Account, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, persistenceError("find account by id", err)
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}
