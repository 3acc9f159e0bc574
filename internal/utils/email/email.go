package email

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/Dan9191/institute-service/internal/config"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Message is a plain-text notification mail
type Message struct {
	To      string
	Subject string
	Text    string
}

// Mailer delivers one message
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// NewMailer builds the mailer selected by EMAIL_BACKEND
func NewMailer(cfg *config.Config, logger *logrus.Logger) (Mailer, error) {
	switch cfg.EmailBackend {
	case "smtp":
		return NewSender(cfg, logger), nil
	case "sendgrid":
		return NewSendGridMailer(cfg, logger), nil
	case "log", "":
		return NewLogMailer(logger), nil
	}
	return nil, fmt.Errorf("unknown email backend %q", cfg.EmailBackend)
}

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new SMTP email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

func (s *Sender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{msg.To}
	e.Subject = msg.Subject
	e.Text = []byte(msg.Text)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}
	if err := e.Send(addr, auth); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", msg.To, msg.Subject)
	return nil
}

// LogMailer writes messages to the log instead of sending them
type LogMailer struct {
	logger *logrus.Logger
}

func NewLogMailer(logger *logrus.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info(msg.Text)
	return nil
}
