package repository

import (
	"context"
	"fmt"

	"lostfound/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SecurityLogRepository is an append-only audit trail of reset and login events.
type SecurityLogRepository interface {
	Append(ctx context.Context, entry *entity.SecurityLog) error
}

type securityLogRepository struct {
	db *gorm.DB
}

func NewSecurityLogRepository(db *gorm.DB) SecurityLogRepository {
	return &securityLogRepository{db: db}
}

// Append inserts entry only. A loaded Account is never upserted alongside it.
func (r *securityLogRepository) Append(ctx context.Context, entry *entity.SecurityLog) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(entry).Error; err != nil {
		return fmt.Errorf("append %s security log: %w", entry.Action, err)
	}
	return nil
}
