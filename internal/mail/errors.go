package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"os"
	"syscall"
)

type FailureKind string

const (
	AuthFailure       FailureKind = "auth_failure"
	Timeout           FailureKind = "timeout"
	DNSFailure        FailureKind = "dns_failure"
	TransportRejected FailureKind = "transport_rejected"
	Unclassified      FailureKind = "unclassified"
)

// ErrTransport matches every *TransportError via errors.Is.
var ErrTransport = errors.New("mail transport failure")

type TransportError struct {
	Kind FailureKind
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mail transport %s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// Classify wraps err into a *TransportError. Errors that are already
// classified are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return err
	}
	return &TransportError{Kind: kindOf(err), Err: err}
}

func kindOf(err error) FailureKind {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return DNSFailure
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return Timeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return TransportRejected
	}
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return kindOfSMTPCode(protoErr.Code)
	}
	return Unclassified
}

func kindOfSMTPCode(code int) FailureKind {
	switch code {
	case 454, 530, 534, 535, 538:
		return AuthFailure
	}
	if code >= 400 && code < 600 {
		return TransportRejected
	}
	return Unclassified
}
