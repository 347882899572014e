package service

import (
	"lostfound/internal/entity"
	"lostfound/internal/utils"
	"time"
)

type JWTAccessIssuer struct {
	Manager *utils.JWTManager
}

func (j JWTAccessIssuer) IssueAccessToken(account entity.Account) (string, time.Duration, error) {
	if j.Manager == nil {
		return "", 0, utils.ErrInvalidToken
	}
	return j.Manager.IssueAccessToken(account.ID.String(), account.Email)
}
