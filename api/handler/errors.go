package handler

import (
	"errors"
	"net/http"

	"lostfound/internal/dto"
	"lostfound/internal/mail"
	"lostfound/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	msgInternal     = "internal server error"
	msgInvalidToken = "invalid or expired reset token"
)

var transportMessages = map[mail.FailureKind]string{
	mail.AuthFailure:       "email service rejected our credentials",
	mail.Timeout:           "email service timed out",
	mail.DNSFailure:        "email service host could not be resolved",
	mail.TransportRejected: "email service refused the message",
	mail.Unclassified:      "failed to send reset email",
}

func writeError(c echo.Context, status int, message string) error {
	return c.JSON(status, dto.ErrorResponse{Error: message})
}

// writeServiceError is the single place service errors become HTTP responses.
// 5xx causes are logged in full and never echoed to the client.
func writeServiceError(c echo.Context, logger logrus.FieldLogger, err error) error {
	var transportErr *mail.TransportError
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrPasswordMismatch):
		return writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrTokenNotFound), errors.Is(err, service.ErrTokenExpired):
		return writeError(c, http.StatusBadRequest, msgInvalidToken)
	case errors.Is(err, service.ErrAccountNotFound):
		return writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrResetRateLimited):
		return writeError(c, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		return writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		return writeError(c, http.StatusUnauthorized, err.Error())
	case errors.As(err, &transportErr):
		logger.WithError(err).WithField("failure", transportErr.Kind).Error("reset email delivery failed")
		message, ok := transportMessages[transportErr.Kind]
		if !ok {
			message = transportMessages[mail.Unclassified]
		}
		return writeError(c, http.StatusInternalServerError, message)
	}

	logger.WithError(err).WithField("path", c.Path()).Error("request failed")
	return writeError(c, http.StatusInternalServerError, msgInternal)
}

// HTTPErrorHandler renders echo's own errors (routing, middleware, recovered
// panics) with the same body shape as handler errors.
func HTTPErrorHandler(logger logrus.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		message := msgInternal
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			status = httpErr.Code
			if m, ok := httpErr.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(status)
			}
		}
		if status >= http.StatusInternalServerError {
			logger.WithError(err).WithField("path", c.Path()).Error("unhandled error")
			message = msgInternal
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = writeError(c, status, message)
		}
		if err != nil {
			logger.WithError(err).Warn("write error response")
		}
	}
}
