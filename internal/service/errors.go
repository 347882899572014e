package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrPasswordMismatch       = errors.New("passwords do not match")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrAccountNotFound        = errors.New("account not found")
	ErrTokenNotFound          = errors.New("reset token not found")
	ErrTokenExpired           = errors.New("reset token expired")
	ErrResetRateLimited       = errors.New("too many reset requests")
	ErrPersistence            = errors.New("persistence failure")
)

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
