package email

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Dan9191/institute-service/internal/config"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
)

var (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendGridMailer sends messages through the SendGrid v3 API
type SendGridMailer struct {
	key    string
	host   string
	from   *sgmail.Email
	logger *logrus.Logger
}

func NewSendGridMailer(cfg *config.Config, logger *logrus.Logger) *SendGridMailer {
	return &SendGridMailer{
		key:    cfg.SendGridAPIKey,
		host:   sendgridHost,
		from:   sgmail.NewEmail("Institute Accounts", cfg.SenderEmail),
		logger: logger,
	}
}

func (m *SendGridMailer) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail("", msg.To))

	v3 := sgmail.NewV3Mail()
	v3.SetFrom(m.from)
	v3.AddPersonalizations(p)
	v3.AddContent(sgmail.NewContent("text/plain", msg.Text))
	return v3
}

func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := sendgrid.GetRequest(m.key, sendgridEndpoint, m.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid request failed: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid rejected message with status %d: %s", res.StatusCode, res.Body)
	}

	m.logger.Infof("Email sent to %s via SendGrid: %s", msg.To, msg.Subject)
	return nil
}
