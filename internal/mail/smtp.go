package mail

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

const defaultMailTimeout = 10 * time.Second

type SMTPTransport struct {
	Host        string
	Port        int
	Username    string
	Password    string
	ImplicitTLS bool
	LocalName   string

	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	SocketTimeout    time.Duration

	// TLSConfig overrides the default config built from Host.
	TLSConfig *tls.Config
}

func NewSMTPTransport(host string, port int, username string, password string) *SMTPTransport {
	return &SMTPTransport{
		Host:             host,
		Port:             port,
		Username:         username,
		Password:         password,
		ConnectTimeout:   defaultMailTimeout,
		HandshakeTimeout: defaultMailTimeout,
		SocketTimeout:    15 * time.Second,
	}
}

func (t *SMTPTransport) Verify(ctx context.Context) error {
	client, conn, err := t.handshake(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	t.touch(conn)
	if err := client.Noop(); err != nil {
		return Classify(err)
	}
	_ = client.Quit()
	return nil
}

func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	body, err := buildMIME(msg)
	if err != nil {
		return &TransportError{Kind: Unclassified, Err: err}
	}

	client, conn, err := t.handshake(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	t.touch(conn)
	if err := client.Mail(msg.From); err != nil {
		return Classify(err)
	}
	t.touch(conn)
	if err := client.Rcpt(msg.To); err != nil {
		return Classify(err)
	}
	t.touch(conn)
	w, err := client.Data()
	if err != nil {
		return Classify(err)
	}
	if _, err := w.Write(body); err != nil {
		return Classify(err)
	}
	t.touch(conn)
	if err := w.Close(); err != nil {
		return Classify(err)
	}
	t.touch(conn)
	_ = client.Quit()
	return nil
}

// handshake connects, reads the greeting, negotiates TLS and authenticates.
// The whole exchange is bounded by HandshakeTimeout.
func (t *SMTPTransport) handshake(ctx context.Context) (*smtp.Client, net.Conn, error) {
	addr := net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
	dialer := &net.Dialer{Timeout: orDefault(t.ConnectTimeout, defaultMailTimeout)}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, Classify(err)
	}

	deadline := time.Now().Add(orDefault(t.HandshakeTimeout, defaultMailTimeout))
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	if t.ImplicitTLS {
		tlsConn := tls.Client(conn, t.tlsConfig())
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, nil, Classify(err)
		}
		conn = tlsConn
	}

	client, err := smtp.NewClient(conn, t.Host)
	if err != nil {
		conn.Close()
		return nil, nil, Classify(err)
	}
	if err := client.Hello(t.localName()); err != nil {
		conn.Close()
		return nil, nil, Classify(err)
	}
	if !t.ImplicitTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(t.tlsConfig()); err != nil {
				conn.Close()
				return nil, nil, Classify(err)
			}
		}
	}
	if t.Username != "" {
		if ok, _ := client.Extension("AUTH"); !ok {
			conn.Close()
			return nil, nil, &TransportError{Kind: AuthFailure, Err: fmt.Errorf("server %s does not offer AUTH", t.Host)}
		}
		if err := client.Auth(smtp.PlainAuth("", t.Username, t.Password, t.Host)); err != nil {
			conn.Close()
			return nil, nil, authError(err)
		}
	}
	return client, conn, nil
}

// touch extends the connection deadline by one idle period.
func (t *SMTPTransport) touch(conn net.Conn) {
	_ = conn.SetDeadline(time.Now().Add(orDefault(t.SocketTimeout, defaultMailTimeout)))
}

func (t *SMTPTransport) tlsConfig() *tls.Config {
	if t.TLSConfig != nil {
		return t.TLSConfig
	}
	return &tls.Config{ServerName: t.Host, MinVersion: tls.VersionTLS12}
}

func (t *SMTPTransport) localName() string {
	if t.LocalName != "" {
		return t.LocalName
	}
	return "localhost"
}

// authError keeps network-level kinds and reports everything else from the
// AUTH exchange as an authentication failure.
func authError(err error) error {
	classified := Classify(err)
	if te, ok := classified.(*TransportError); ok && te.Kind == Unclassified {
		te.Kind = AuthFailure
	}
	return classified
}

func buildMIME(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	boundary, err := randomBoundary()
	if err != nil {
		return nil, err
	}

	header := textproto.MIMEHeader{}
	header.Set("From", msg.From)
	header.Set("To", msg.To)
	header.Set("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header.Set("Date", time.Now().Format(time.RFC1123Z))
	header.Set("MIME-Version", "1.0")
	header.Set("Content-Type", "multipart/alternative; boundary="+boundary)
	for _, key := range []string{"From", "To", "Subject", "Date", "MIME-Version", "Content-Type"} {
		fmt.Fprintf(&buf, "%s: %s\r\n", key, header.Get(key))
	}
	buf.WriteString("\r\n")

	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary(boundary); err != nil {
		return nil, err
	}
	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain; charset=utf-8", msg.Text},
		{"text/html; charset=utf-8", msg.HTML},
	}
	for _, p := range parts {
		if strings.TrimSpace(p.body) == "" {
			continue
		}
		part, err := w.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType},
			"Content-Transfer-Encoding": {"8bit"},
		})
		if err != nil {
			return nil, err
		}
		if _, err := part.Write([]byte(normalizeNewlines(p.body))); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func randomBoundary() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "lf-" + hex.EncodeToString(b), nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func orDefault(d time.Duration, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
