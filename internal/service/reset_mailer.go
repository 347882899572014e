package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"lostfound/internal/entity"
	"lostfound/internal/mail"
)

const resetSubject = "Reset your password"

var resetHTMLTemplate = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; line-height: 1.5;">
    <p>Hi {{.Name}},</p>
    <p>We received a request to reset the password for your Lost &amp; Found account.</p>
    <p><a href="{{.URL}}">Reset your password</a></p>
    <p>This link can be used once and expires in {{.ValidFor}}. If you did not ask for a reset, you can ignore this email.</p>
  </body>
</html>
`))

// ResetMailer renders the reset email and hands it to a mail transport.
type ResetMailer struct {
	transport mail.Transport
	from      string
	validFor  time.Duration
}

func NewResetMailer(transport mail.Transport, from string, validFor time.Duration) *ResetMailer {
	return &ResetMailer{transport: transport, from: from, validFor: validFor}
}

func (m *ResetMailer) Send(ctx context.Context, account *entity.Account, resetURL string) error {
	msg, err := m.compose(account, resetURL)
	if err != nil {
		return err
	}
	return mail.Classify(m.transport.Send(ctx, msg))
}

func (m *ResetMailer) compose(account *entity.Account, resetURL string) (mail.Message, error) {
	name := strings.TrimSpace(account.FullName)
	if name == "" {
		name = "there"
	}
	data := struct {
		Name     string
		URL      template.URL
		ValidFor string
	}{
		Name:     name,
		URL:      template.URL(resetURL),
		ValidFor: humanDuration(m.validFor),
	}

	var html bytes.Buffer
	if err := resetHTMLTemplate.Execute(&html, data); err != nil {
		return mail.Message{}, fmt.Errorf("render reset email: %w", err)
	}
	text := fmt.Sprintf(
		"Hi %s,\n\nReset your Lost & Found password using this link:\n%s\n\nThe link can be used once and expires in %s.\n",
		name, resetURL, data.ValidFor,
	)
	return mail.Message{
		From:    m.from,
		To:      account.Email,
		Subject: resetSubject,
		HTML:    html.String(),
		Text:    text,
	}, nil
}

func humanDuration(d time.Duration) string {
	if d <= 0 {
		d = defaultResetTokenTTL
	}
	switch {
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
	return d.String()
}
