package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/resend/resend-go"
)

const resendAPIHost = "api.resend.com"

type ResendTransport struct {
	APIKey string

	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	SocketTimeout    time.Duration

	// RoundTripper is the base HTTP transport; tests replace it.
	RoundTripper http.RoundTripper
}

func NewResendTransport(apiKey string) *ResendTransport {
	return &ResendTransport{
		APIKey:           apiKey,
		ConnectTimeout:   defaultMailTimeout,
		HandshakeTimeout: defaultMailTimeout,
		SocketTimeout:    15 * time.Second,
	}
}

// Verify dials the API host and completes a TLS handshake.
func (t *ResendTransport) Verify(ctx context.Context) error {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: orDefault(t.ConnectTimeout, defaultMailTimeout)},
		Config:    &tls.Config{ServerName: resendAPIHost, MinVersion: tls.VersionTLS12},
	}
	ctx, cancel := context.WithTimeout(ctx, orDefault(t.ConnectTimeout, defaultMailTimeout)+orDefault(t.HandshakeTimeout, defaultMailTimeout))
	defer cancel()
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(resendAPIHost, "443"))
	if err != nil {
		return Classify(err)
	}
	return conn.Close()
}

func (t *ResendTransport) Send(ctx context.Context, msg Message) error {
	recorder := &statusRecorder{next: t.baseTransport(), ctx: ctx}
	httpClient := &http.Client{
		Transport: recorder,
		Timeout:   orDefault(t.ConnectTimeout, defaultMailTimeout) + orDefault(t.HandshakeTimeout, defaultMailTimeout) + orDefault(t.SocketTimeout, defaultMailTimeout),
	}
	client := resend.NewCustomClient(httpClient, t.APIKey)

	done := make(chan error, 1)
	go func() {
		_, err := client.Emails.Send(&resend.SendEmailRequest{
			From:    msg.From,
			To:      []string{msg.To},
			Subject: msg.Subject,
			Html:    msg.HTML,
			Text:    msg.Text,
		})
		done <- err
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		return Classify(ctx.Err())
	}

	status, rtErr := recorder.result()
	switch {
	case rtErr != nil:
		return Classify(rtErr)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &TransportError{Kind: AuthFailure, Err: fmt.Errorf("resend responded %d: %w", status, errOrStatus(err, status))}
	case status >= http.StatusBadRequest:
		return &TransportError{Kind: TransportRejected, Err: fmt.Errorf("resend responded %d: %w", status, errOrStatus(err, status))}
	case err != nil:
		return Classify(err)
	}
	return nil
}

func (t *ResendTransport) baseTransport() http.RoundTripper {
	if t.RoundTripper != nil {
		return t.RoundTripper
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: orDefault(t.ConnectTimeout, defaultMailTimeout)}).DialContext,
		TLSHandshakeTimeout:   orDefault(t.HandshakeTimeout, defaultMailTimeout),
		ResponseHeaderTimeout: orDefault(t.SocketTimeout, defaultMailTimeout),
		IdleConnTimeout:       orDefault(t.SocketTimeout, defaultMailTimeout),
	}
}

func errOrStatus(err error, status int) error {
	if err != nil {
		return err
	}
	return errors.New(http.StatusText(status))
}

// statusRecorder remembers the outcome of the last round trip so failures can
// be classified independently of how the SDK reports them. The SDK call takes
// no context, so the recorder binds each request to ctx; cancelling the
// caller aborts the in-flight HTTP request instead of letting it deliver later.
type statusRecorder struct {
	next http.RoundTripper
	ctx  context.Context

	mu     sync.Mutex
	status int
	err    error
}

func (r *statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	if r.ctx != nil {
		req = req.Clone(r.ctx)
	}
	resp, err := r.next.RoundTrip(req)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
	if resp != nil {
		r.status = resp.StatusCode
	}
	return resp, err
}

func (r *statusRecorder) result() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, r.err
}
