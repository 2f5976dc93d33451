package mailman

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/postale/postale/internal/model"
)

// SMTPSender delivers composed messages through the mailbox's SMTP server.
type SMTPSender struct {
	imap   model.IMAPConfig
	smtp   model.SMTPConfig
	now    func() time.Time
	logger *zap.Logger
}

// NewSMTPSender creates a sender. The IMAP settings are needed to derive
// the SMTP host when none is configured. A nil logger discards output.
func NewSMTPSender(imapCfg model.IMAPConfig, smtpCfg model.SMTPConfig, logger *zap.Logger) *SMTPSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPSender{imap: imapCfg, smtp: smtpCfg, now: time.Now, logger: logger}
}

// smtpSession is the part of *smtp.Client used to deliver one message.
type smtpSession interface {
	Auth(a sasl.Client) error
	SendMail(from string, to []string, r io.Reader) error
	Quit() error
}

// Send composes msg and submits it from mb. The message sender must be the
// mailbox address.
func (s *SMTPSender) Send(ctx context.Context, mb model.Mailbox, msg model.Message) error {
	if msg.Sender != mb.Address {
		return fmt.Errorf("message sender %s does not match mailbox %s", msg.Sender, mb.Address)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := Compose(msg, s.now())
	if err != nil {
		return err
	}

	ep, err := SMTPEndpoint(mb, s.imap, s.smtp)
	if err != nil {
		return err
	}

	client, err := dialSMTP(ep)
	if err != nil {
		return err
	}
	defer client.Close()

	return s.deliver(client, ep, mb, msg, body)
}

// deliver authenticates and submits body. Once SendMail returns the server
// has accepted the message, so a failed QUIT is only logged.
func (s *SMTPSender) deliver(c smtpSession, ep Endpoint, mb model.Mailbox, msg model.Message, body []byte) error {
	if err := c.Auth(sasl.NewPlainClient("", mb.Address, mb.Password)); err != nil {
		return &AuthError{Protocol: "smtp", Address: mb.Address, Err: err}
	}

	if err := c.SendMail(msg.Sender, msg.Recipients, bytes.NewReader(body)); err != nil {
		return fmt.Errorf("sending message via %s: %w", ep.Addr(), err)
	}

	if err := c.Quit(); err != nil {
		s.logger.Warn("closing SMTP session after delivery",
			zap.String("server", ep.Addr()),
			zap.Error(err),
		)
	}
	return nil
}

// dialSMTP opens an implicit TLS or STARTTLS connection to ep.
func dialSMTP(ep Endpoint) (*smtp.Client, error) {
	tlsConfig := &tls.Config{ServerName: ep.Host}

	var client *smtp.Client
	var err error
	if ep.TLS {
		client, err = smtp.DialTLS(ep.Addr(), tlsConfig)
	} else {
		client, err = smtp.DialStartTLS(ep.Addr(), tlsConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to SMTP %s: %w", ep.Addr(), err)
	}
	return client, nil
}
