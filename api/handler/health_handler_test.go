package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func TestHealth(t *testing.T) {
	logger, hook := test.NewNullLogger()

	cases := []struct {
		name   string
		ping   func(context.Context) error
		status int
	}{
		{"no database check", nil, http.StatusOK},
		{"database up", func(context.Context) error { return nil }, http.StatusOK},
		{"database down", func(context.Context) error { return errors.New("connection refused") }, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			h := &HealthHandler{Ping: tc.ping, Logger: logger}
			e.GET("/healthz", h.Health)

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			assert.Equal(t, tc.status, rec.Code)
		})
	}
	assert.Len(t, hook.AllEntries(), 1)
}
