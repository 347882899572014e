package service

import (
	"context"
	"encoding/json"

	"lostfound/internal/entity"
	"lostfound/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// logSecurity records an audit entry. Failures are logged and swallowed:
// the audit trail must never fail the request it describes.
func logSecurity(
	ctx context.Context,
	repo repository.SecurityLogRepository,
	logger logrus.FieldLogger,
	accountID *uuid.UUID,
	ipAddress *string,
	action entity.SecurityAction,
	metadata map[string]any,
) {
	if repo == nil {
		return
	}
	var payload datatypes.JSON
	if metadata != nil {
		bytes, err := json.Marshal(metadata)
		if err != nil {
			logger.WithError(err).WithField("action", action).Warn("encode security log metadata")
			return
		}
		payload = datatypes.JSON(bytes)
	}

	entry := &entity.SecurityLog{
		AccountID: accountID,
		IPAddress: ipAddress,
		Action:    action,
		Metadata:  payload,
	}
	if err := repo.Append(ctx, entry); err != nil {
		logger.WithError(err).WithField("action", action).Warn("write security log")
	}
}
