package main

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServe_DrainsInFlightRequestOnCancel(t *testing.T) {
	app := echo.New()
	app.HideBanner = true
	app.HidePort = true

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	app.Listener = ln
	url := "http://" + ln.Addr().String() + "/slow"

	entered := make(chan struct{})
	release := make(chan struct{})
	app.GET("/slow", func(c echo.Context) error {
		close(entered)
		<-release
		return c.String(http.StatusOK, "done")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() {
		served <- serve(ctx, app, &http.Server{ReadHeaderTimeout: time.Second}, 5*time.Second)
	}()

	client := &http.Client{Timeout: 5 * time.Second}
	status := make(chan int, 1)
	go func() {
		resp, err := client.Get(url)
		if err != nil {
			status <- 0
			return
		}
		resp.Body.Close()
		status <- resp.StatusCode
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("request never reached the handler")
	}
	cancel()
	time.Sleep(50 * time.Millisecond)
	close(release)

	assert.Equal(t, http.StatusOK, <-status)
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after shutdown")
	}

	_, err = client.Get(url)
	assert.Error(t, err)
}

func TestServe_ReturnsListenError(t *testing.T) {
	app := echo.New()
	app.HideBanner = true
	app.HidePort = true

	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	err = serve(context.Background(), app, &http.Server{Addr: taken.Addr().String()}, time.Second)
	assert.Error(t, err)
}
