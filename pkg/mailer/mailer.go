package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// ErrMissingRecipient is returned when a message has no destination address.
var ErrMissingRecipient = errors.New("mail recipient is required")

// Message is a single transactional email.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	Text    string
}

// Mailer sends transactional email and returns the provider message id.
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

type sendClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridClient delivers messages through the SendGrid v3 API.
type SendGridClient struct {
	client sendClient
	from   *mail.Email
	logger *zap.Logger
}

// NewSendGridClient builds a client for apiKey sending as fromName <fromAddress>.
func NewSendGridClient(apiKey, fromAddress, fromName string, logger *zap.Logger) (*SendGridClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	if strings.TrimSpace(fromAddress) == "" {
		return nil, fmt.Errorf("mail from address is required")
	}
	return newSendGridClient(sendgrid.NewSendClient(apiKey), fromAddress, fromName, logger), nil
}

func newSendGridClient(client sendClient, fromAddress, fromName string, logger *zap.Logger) *SendGridClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SendGridClient{client: client, from: mail.NewEmail(fromName, fromAddress), logger: logger}
}

// Send delivers msg. Non-2xx responses are returned as errors.
func (c *SendGridClient) Send(ctx context.Context, msg Message) (string, error) {
	if strings.TrimSpace(msg.To) == "" {
		return "", ErrMissingRecipient
	}
	to := mail.NewEmail(msg.ToName, msg.To)
	email := mail.NewSingleEmail(c.from, msg.Subject, to, msg.Text, msg.HTML)

	resp, err := c.client.SendWithContext(ctx, email)
	if err != nil {
		return "", fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("sendgrid status %d: %s", resp.StatusCode, resp.Body)
	}
	id := ""
	if values := resp.Headers["X-Message-Id"]; len(values) > 0 {
		id = values[0]
	}
	c.logger.Debug("mail sent", zap.String("to", msg.To), zap.String("subject", msg.Subject), zap.String("message_id", id))
	return id, nil
}

// NopMailer discards messages; used when mail delivery is disabled.
type NopMailer struct {
	Logger *zap.Logger
}

// Send logs the message and reports success.
func (n NopMailer) Send(_ context.Context, msg Message) (string, error) {
	if n.Logger != nil {
		n.Logger.Info("mail disabled, message dropped", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	}
	return "", nil
}
