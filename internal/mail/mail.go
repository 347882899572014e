// Package mail delivers transactional messages through an injected transport
// and reports delivery failures as a small, typed taxonomy.
package mail

import "context"

type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// Transport delivers a single message. Implementations classify every failure
// into a *TransportError.
type Transport interface {
	// Verify checks that the provider is reachable and accepts our credentials.
	Verify(ctx context.Context) error
	Send(ctx context.Context, msg Message) error
}
