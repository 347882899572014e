package handler

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"net/http"
	"time"

	"lostfound/internal/dto"
	"lostfound/internal/mail"
	"lostfound/internal/service"
	"lostfound/web"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	msgResetSent      = "Password reset link sent to your email"
	msgResetConcealed = "If an account exists for that email, a password reset link has been sent"
	msgResetComplete  = "Password has been reset successfully"
)

type ResetHandler struct {
	Service  *service.ResetService
	Validate *validator.Validate
	Logger   logrus.FieldLogger

	// ConcealUnknownEmail answers unknown addresses exactly like known ones,
	// after a short random delay.
	ConcealUnknownEmail bool
	Delay               func(ctx context.Context) error
}

func NewResetHandler(svc *service.ResetService, validate *validator.Validate, logger logrus.FieldLogger, conceal bool) *ResetHandler {
	return &ResetHandler{
		Service:             svc,
		Validate:            validate,
		Logger:              logger,
		ConcealUnknownEmail: conceal,
		Delay:               enumerationDelay,
	}
}

func (h *ResetHandler) Request(c echo.Context) error {
	var req dto.ResetRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err.Error())
	}
	if err := validate(h.Validate, req); err != nil {
		return writeError(c, http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	err := h.Service.RequestReset(ctx, req.Email, stringPtr(c.RealIP()))
	if h.ConcealUnknownEmail {
		var transportErr *mail.TransportError
		switch {
		case errors.Is(err, service.ErrAccountNotFound):
			if h.Delay != nil {
				if delayErr := h.Delay(ctx); delayErr != nil {
					return delayErr
				}
			}
			err = nil
		case errors.As(err, &transportErr):
			// Only known addresses reach the mailer, so a delivery failure
			// must look like success too.
			h.Logger.WithError(err).WithField("failure", transportErr.Kind).Error("reset email delivery failed")
			err = nil
		}
	}
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}

	message := msgResetSent
	if h.ConcealUnknownEmail {
		message = msgResetConcealed
	}
	return c.JSON(http.StatusAccepted, dto.MessageResponse{Message: message})
}

func (h *ResetHandler) Complete(c echo.Context) error {
	var req dto.ResetCompleteRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err.Error())
	}
	if err := validate(h.Validate, req); err != nil {
		return writeError(c, http.StatusBadRequest, err.Error())
	}
	err := h.Service.CompleteReset(
		c.Request().Context(),
		req.Token,
		req.NewPassword,
		req.ConfirmPassword,
		stringPtr(c.RealIP()),
	)
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, dto.MessageResponse{Message: msgResetComplete})
}

// CompletePage serves the static reset form. The token stays in the URL path
// and is read by the page itself; it is never logged or echoed by the server.
func (h *ResetHandler) CompletePage(c echo.Context) error {
	header := c.Response().Header()
	header.Set("Referrer-Policy", "no-referrer")
	header.Set(echo.HeaderCacheControl, "no-store")
	return c.HTMLBlob(http.StatusOK, web.ResetPage)
}

func enumerationDelay(ctx context.Context) error {
	const minMs, maxMs = 20, 40
	n, err := rand.Int(rand.Reader, big.NewInt(maxMs-minMs+1))
	if err != nil {
		return err
	}

	timer := time.NewTimer(time.Duration(minMs+n.Int64()) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
