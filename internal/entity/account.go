package entity

import (
	"time"

	"github.com/google/uuid"
)

type Account struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	FullName     string    `gorm:"type:varchar(255);not null"`
	Phone        *string   `gorm:"type:varchar(32)"`
	PasswordHash string    `gorm:"type:text;not null"`

	// ResetVerifier and ResetExpiresAt are written and cleared together.
	ResetVerifier  *string `gorm:"type:text;uniqueIndex"`
	ResetExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPendingReset reports whether a reset token has been issued and not yet consumed.
func (a Account) HasPendingReset() bool {
	return a.ResetVerifier != nil && a.ResetExpiresAt != nil
}
