package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"dns", &net.OpError{Op: "dial", Err: &net.DNSError{Err: "no such host", Name: "smtp.invalid", IsNotFound: true}}, DNSFailure},
		{"dns timeout stays dns", &net.DNSError{Err: "i/o timeout", Name: "smtp.invalid", IsTimeout: true}, DNSFailure},
		{"context deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), Timeout},
		{"socket deadline", &net.OpError{Op: "read", Err: os.ErrDeadlineExceeded}, Timeout},
		{"connection refused", &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, TransportRejected},
		{"auth failed", &textproto.Error{Code: 535, Msg: "5.7.8 Authentication credentials invalid"}, AuthFailure},
		{"auth required", &textproto.Error{Code: 530, Msg: "5.7.0 Authentication required"}, AuthFailure},
		{"mailbox unavailable", &textproto.Error{Code: 550, Msg: "5.1.1 User unknown"}, TransportRejected},
		{"greylisted", &textproto.Error{Code: 451, Msg: "4.7.1 Try again later"}, TransportRejected},
		{"unknown", errors.New("boom"), Unclassified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify(tt.err)
			var te *TransportError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.want, te.Kind)
			assert.ErrorIs(t, err, ErrTransport)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestClassify_KeepsExistingClassification(t *testing.T) {
	orig := &TransportError{Kind: AuthFailure, Err: errors.New("nope")}
	assert.Same(t, orig, Classify(orig))
	assert.Nil(t, Classify(nil))
}

func TestAuthError_PromotesUnclassified(t *testing.T) {
	var te *TransportError
	require.ErrorAs(t, authError(errors.New("unencrypted connection")), &te)
	assert.Equal(t, AuthFailure, te.Kind)

	require.ErrorAs(t, authError(&net.OpError{Op: "read", Err: os.ErrDeadlineExceeded}), &te)
	assert.Equal(t, Timeout, te.Kind)
}
