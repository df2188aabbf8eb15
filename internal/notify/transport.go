package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/sentinel-access/sentinel/server/internal/sentinel/types"
)

var ErrNoRecipient = errors.New("notification has no recipient")

type Message struct {
	To      string
	From    string
	Subject string
	Body    string
}

// Transport delivers one message. Implementations must honour ctx.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// LogTransport writes messages to the log instead of sending them. It is
// used when no relay host is configured.
type LogTransport struct {
	Logger *zap.Logger
}

func (t LogTransport) Send(_ context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	t.Logger.Info("notification (no relay configured)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// SMTPTransport relays through the host in the notification settings.
// STARTTLS is used whenever the server offers it; credentials are only sent
// over TLS or to localhost.
type SMTPTransport struct {
	Relay   types.SMTPRelay
	Timeout time.Duration
}

func (t SMTPTransport) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	port := 587
	if t.Relay.Port != "" {
		p, err := strconv.Atoi(t.Relay.Port)
		if err != nil {
			return fmt.Errorf("smtp port %q: %w", t.Relay.Port, err)
		}
		port = p
	}
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	from := msg.From
	if from == "" {
		from = t.Relay.From
	}
	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return fmt.Errorf("sender %q: %w", from, err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(timeout),
	}
	if t.Relay.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(t.Relay.User),
			mail.WithPassword(t.Relay.Pass),
		)
	}
	c, err := mail.NewClient(t.Relay.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send via %s: %w", t.Relay.Host, err)
	}
	return nil
}
