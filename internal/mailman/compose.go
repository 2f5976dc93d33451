package mailman

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"github.com/postale/postale/internal/model"
)

// ErrNoRecipients is returned when composing a message nobody would receive.
var ErrNoRecipients = errors.New("message has no recipients")

// Compose renders msg as a single-part text/plain RFC 5322 message.
func Compose(msg model.Message, date time.Time) ([]byte, error) {
	if msg.Sender == "" {
		return nil, errors.New("message has no sender")
	}
	if len(msg.Recipients) == 0 {
		return nil, ErrNoRecipients
	}

	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{{Address: msg.Sender}})
	to := make([]*mail.Address, 0, len(msg.Recipients))
	for _, r := range msg.Recipients {
		to = append(to, &mail.Address{Address: r})
	}
	h.SetAddressList("To", to)
	h.SetSubject(msg.Subject)
	h.SetMessageID(messageID(msg.Sender))
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := io.WriteString(w, msg.Content); err != nil {
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message body: %w", err)
	}
	return buf.Bytes(), nil
}

// messageID returns a fresh Message-ID in the sender's domain.
func messageID(sender string) string {
	domain := "postale.local"
	if i := strings.LastIndex(sender, "@"); i >= 0 && i < len(sender)-1 {
		domain = sender[i+1:]
	}
	return uuid.NewString() + "@" + domain
}
