package email

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"strings"
	texttemplate "text/template"

	"github.com/wneessen/go-mail"

	"github.com/Romspopopoms/7Jours/internal/config"
)

//go:embed templates/*
var templatesFS embed.FS

const (
	fromName            = "Chrétien Réfléchi"
	confirmationSubject = "Bienvenue au parcours 7 Jours de Prière !"
	attachmentName      = "7-jours-de-priere.pdf"
)

// SendResult is the structured outcome of a send attempt. A failed send is
// an expected condition, not a fault: callers inspect Sent and move on.
type SendResult struct {
	Sent bool
	Err  error
}

// Diagnostics exposes non-secret configuration state for the diagnostic
// endpoint. User is "✓" when a user is set, never the value itself.
type Diagnostics struct {
	Host       string `json:"host,omitempty"`
	User       string `json:"user,omitempty"`
	Configured bool   `json:"configured"`
}

type Sender struct {
	client  *mail.Client
	cfg     config.SMTPConfig
	pdfPath string
	logger  *slog.Logger

	htmlTmpl *template.Template
	textTmpl *texttemplate.Template
}

// New builds the sender once at startup. Templates are always parsed; the
// SMTP client is only constructed when the configuration is complete, so an
// unconfigured deployment still starts and every send fails fast with a
// descriptive error.
func New(cfg config.SMTPConfig, pdfPath string, logger *slog.Logger) (*Sender, error) {
	htmlTmpl, err := template.ParseFS(templatesFS, "templates/confirmation.gohtml")
	if err != nil {
		return nil, fmt.Errorf("failed to parse html template: %w", err)
	}
	textTmpl, err := texttemplate.ParseFS(templatesFS, "templates/confirmation.gotxt")
	if err != nil {
		return nil, fmt.Errorf("failed to parse text template: %w", err)
	}

	s := &Sender{
		cfg:      cfg,
		pdfPath:  pdfPath,
		logger:   logger,
		htmlTmpl: htmlTmpl,
		textTmpl: textTmpl,
	}

	if !cfg.Configured() {
		return s, nil
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.User),
		mail.WithPassword(cfg.Password),
	}
	if cfg.Secure {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}
	s.client = client

	return s, nil
}

// SendConfirmation sends the welcome email with the PDF attached. Any
// failure is logged and returned as a structured result; it never reaches
// the caller as an error to propagate.
func (s *Sender) SendConfirmation(ctx context.Context, firstName, email string) SendResult {
	if s.client == nil {
		err := fmt.Errorf("smtp configuration incomplete (host=%q, user set=%t)", s.cfg.Host, s.cfg.User != "")
		s.logger.Error("cannot send confirmation email", "error", err)
		return SendResult{Err: err}
	}

	if _, err := os.Stat(s.pdfPath); err != nil {
		err = fmt.Errorf("pdf attachment unavailable at %s: %w", s.pdfPath, err)
		s.logger.Error("cannot send confirmation email", "error", err, "to", email)
		return SendResult{Err: err}
	}

	htmlBody, textBody, err := s.renderBodies(firstName)
	if err != nil {
		s.logger.Error("failed to render confirmation email", "error", err, "to", email)
		return SendResult{Err: err}
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(fromName, s.cfg.User); err != nil {
		s.logger.Error("invalid from address", "error", err, "from", s.cfg.User)
		return SendResult{Err: fmt.Errorf("invalid from address: %w", err)}
	}
	if err := msg.To(email); err != nil {
		s.logger.Error("invalid recipient address", "error", err, "to", email)
		return SendResult{Err: fmt.Errorf("invalid recipient address: %w", err)}
	}

	msg.Subject(confirmationSubject)
	msg.SetBodyString(mail.TypeTextPlain, textBody)
	msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)
	msg.AttachFile(s.pdfPath, mail.WithFileName(attachmentName))

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		s.logger.Error("failed to send confirmation email", "error", err, "to", email, "host", s.cfg.Host)
		return SendResult{Err: fmt.Errorf("failed to send email: %w", err)}
	}

	s.logger.Info("confirmation email sent", "to", email)
	return SendResult{Sent: true}
}

// Verify performs an SMTP handshake without sending mail.
func (s *Sender) Verify(ctx context.Context) bool {
	if s.client == nil {
		return false
	}

	if err := s.client.DialWithContext(ctx); err != nil {
		s.logger.Error("smtp verification failed", "error", err, "host", s.cfg.Host)
		return false
	}
	if err := s.client.Close(); err != nil {
		s.logger.Warn("failed to close smtp connection", "error", err)
	}

	return true
}

func (s *Sender) Diagnostics() Diagnostics {
	d := Diagnostics{
		Host:       s.cfg.Host,
		Configured: s.cfg.Configured(),
	}
	if s.cfg.User != "" {
		d.User = "✓"
	}
	return d
}

func (s *Sender) renderBodies(firstName string) (html string, text string, err error) {
	data := struct{ FirstName string }{FirstName: firstName}

	var htmlBuf strings.Builder
	if err := s.htmlTmpl.Execute(&htmlBuf, data); err != nil {
		return "", "", fmt.Errorf("executing html template: %w", err)
	}

	var textBuf strings.Builder
	if err := s.textTmpl.Execute(&textBuf, data); err != nil {
		return "", "", fmt.Errorf("executing text template: %w", err)
	}

	return htmlBuf.String(), textBuf.String(), nil
}
