package mail

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSMTPServer speaks just enough SMTP for net/smtp clients.
type fakeSMTPServer struct {
	listener net.Listener

	authReply   string
	rcptReply   string
	silent      bool
	offerAuth   bool
	mu          sync.Mutex
	data        strings.Builder
	commands    []string
	connections int
}

func newFakeSMTPServer(t *testing.T) *fakeSMTPServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeSMTPServer{
		listener:  ln,
		authReply: "235 2.7.0 Authentication successful",
		rcptReply: "250 OK",
		offerAuth: true,
	}
	t.Cleanup(func() { _ = ln.Close() })
	return s
}

func (s *fakeSMTPServer) start() {
	go func() {
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				return
			}
			go s.serve(conn)
		}
	}()
}

func (s *fakeSMTPServer) serve(conn net.Conn) {
	defer conn.Close()
	s.mu.Lock()
	s.connections++
	s.mu.Unlock()
	if s.silent {
		time.Sleep(2 * time.Second)
		return
	}

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	reply := func(lines ...string) {
		for _, l := range lines {
			_, _ = w.WriteString(l + "\r\n")
		}
		_ = w.Flush()
	}

	reply("220 127.0.0.1 ESMTP fake")
	inData := false
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if inData {
			if line == "." {
				inData = false
				reply("250 2.0.0 queued")
				continue
			}
			s.mu.Lock()
			s.data.WriteString(line + "\n")
			s.mu.Unlock()
			continue
		}

		s.mu.Lock()
		s.commands = append(s.commands, line)
		s.mu.Unlock()

		cmd := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
		switch cmd {
		case "EHLO", "HELO":
			if s.offerAuth {
				reply("250-127.0.0.1", "250 AUTH PLAIN")
			} else {
				reply("250 127.0.0.1")
			}
		case "AUTH":
			reply(s.authReply)
		case "MAIL":
			reply("250 OK")
		case "RCPT":
			reply(s.rcptReply)
		case "DATA":
			inData = true
			reply("354 End data with <CR><LF>.<CR><LF>")
		case "NOOP":
			reply("250 OK")
		case "QUIT":
			reply("221 Bye")
			return
		case "*":
			reply("501 5.0.0 Auth cancelled")
		default:
			reply("502 5.5.2 Command not recognized")
		}
	}
}

func (s *fakeSMTPServer) transport(t *testing.T, username string) *SMTPTransport {
	t.Helper()
	host, portStr, err := net.SplitHostPort(s.listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	tr := NewSMTPTransport(host, port, username, "password")
	tr.ConnectTimeout = time.Second
	tr.HandshakeTimeout = 300 * time.Millisecond
	tr.SocketTimeout = time.Second
	return tr
}

func (s *fakeSMTPServer) body() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.String()
}

func testMessage() Message {
	return Message{
		From:    "no-reply@lostfound.example",
		To:      "user@example.com",
		Subject: "Reset your password",
		HTML:    `<p>Hello Jane</p><a href="https://lostfound.example/reset/complete-page/abc">Reset</a>`,
		Text:    "Hello Jane\nhttps://lostfound.example/reset/complete-page/abc",
	}
}

func TestSMTPTransport_Send(t *testing.T) {
	srv := newFakeSMTPServer(t)
	srv.start()

	err := srv.transport(t, "mailer").Send(context.Background(), testMessage())
	require.NoError(t, err)

	body := srv.body()
	assert.Contains(t, body, "To: user@example.com")
	assert.Contains(t, body, "Subject: Reset your password")
	assert.Contains(t, body, "https://lostfound.example/reset/complete-page/abc")
	assert.Contains(t, body, "text/html")
}

func TestSMTPTransport_Verify(t *testing.T) {
	srv := newFakeSMTPServer(t)
	srv.start()

	require.NoError(t, srv.transport(t, "mailer").Verify(context.Background()))
}

func TestSMTPTransport_AuthFailure(t *testing.T) {
	srv := newFakeSMTPServer(t)
	srv.authReply = "535 5.7.8 Authentication credentials invalid"
	srv.start()

	err := srv.transport(t, "mailer").Send(context.Background(), testMessage())
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, AuthFailure, te.Kind)
	assert.Empty(t, srv.body())
}

func TestSMTPTransport_AuthNotOffered(t *testing.T) {
	srv := newFakeSMTPServer(t)
	srv.offerAuth = false
	srv.start()

	err := srv.transport(t, "mailer").Verify(context.Background())
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, AuthFailure, te.Kind)
}

func TestSMTPTransport_RecipientRejected(t *testing.T) {
	srv := newFakeSMTPServer(t)
	srv.rcptReply = "550 5.1.1 User unknown"
	srv.start()

	err := srv.transport(t, "").Send(context.Background(), testMessage())
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, TransportRejected, te.Kind)
}

func TestSMTPTransport_HandshakeTimeout(t *testing.T) {
	srv := newFakeSMTPServer(t)
	srv.silent = true
	srv.start()

	start := time.Now()
	err := srv.transport(t, "").Send(context.Background(), testMessage())
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, Timeout, te.Kind)
	assert.Less(t, time.Since(start), 1500*time.Millisecond)
}

func TestSMTPTransport_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	tr := NewSMTPTransport("127.0.0.1", addr.Port, "", "")
	tr.ConnectTimeout = time.Second

	err = tr.Send(context.Background(), testMessage())
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, TransportRejected, te.Kind)
}

func TestBuildMIME_NormalizesNewlines(t *testing.T) {
	raw, err := buildMIME(Message{From: "a@b.c", To: "d@e.f", Subject: "Hi", Text: "line1\nline2"})
	require.NoError(t, err)
	out := string(raw)
	assert.Contains(t, out, "line1\r\nline2")
	assert.NotContains(t, out, "text/html")
}
