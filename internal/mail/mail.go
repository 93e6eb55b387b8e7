// Package mail delivers the service's outbound email.
package mail

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

const DefaultFrom = "Clearly Gift <noreply@mail.clearly.gift>"

// Message is a single email to send.
type Message struct {
	To      string
	Subject string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// ResendMailer sends through the Resend HTTP API.
type ResendMailer struct {
	client *resend.Client
	from   string
}

func NewResendMailer(client *resend.Client, from string) ResendMailer {
	if from == "" {
		from = DefaultFrom
	}

	return ResendMailer{client: client, from: from}
}

func (m ResendMailer) Send(ctx context.Context, msg Message) error {
	sent, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("error sending email via resend: %w", err)
	}

	slog.DebugContext(ctx, "email sent", "resend_id", sent.Id)
	return nil
}

// LogMailer only logs what would have been sent. Used when no API key is configured.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) Send(ctx context.Context, msg Message) error {
	l := m.Logger
	if l == nil {
		l = slog.Default()
	}

	l.InfoContext(ctx, "not sending email, no transport configured",
		"to", msg.To,
		"subject", msg.Subject,
		"html_bytes", len(msg.HTML),
	)
	return nil
}

// New picks the transport for the process: Resend when there is an API key,
// otherwise a [LogMailer] for local development.
func New(apiKey, from string) Mailer {
	if apiKey == "" {
		slog.Warn("no resend api key configured, emails will only be logged")
		return LogMailer{}
	}

	return NewResendMailer(resend.NewClient(apiKey), from)
}

//go:embed templates/verify.html
var verifyHTML string

var verifyTmpl = template.Must(template.New("verify").Parse(verifyHTML))

// VerificationEmail builds the message asking to confirm a subscription to a list.
func VerificationEmail(to, listName, verifyURL string) (Message, error) {
	var buf bytes.Buffer
	if err := verifyTmpl.Execute(&buf, struct {
		ListName  string
		VerifyURL string
	}{ListName: listName, VerifyURL: verifyURL}); err != nil {
		return Message{}, fmt.Errorf("error rendering verification email: %w", err)
	}

	return Message{
		To:      to,
		Subject: fmt.Sprintf("Verify your subscription to %s", listName),
		HTML:    buf.String(),
	}, nil
}
