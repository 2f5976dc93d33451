package mailman

import (
	"bytes"
	"html"
	"io"
	"strings"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/microcosm-cc/bluemonday"

	"github.com/postale/postale/internal/model"
)

// Envelope holds the addressing data of a fetched message.
type Envelope struct {
	MessageID  string
	Subject    string
	From       string
	Recipients []string
	UID        uint32
}

// toMessage builds a stored message from an envelope and the raw RFC 5322
// body. Headers in the body fill in whatever the envelope lacks.
func toMessage(env Envelope, raw []byte) model.Message {
	msg := model.Message{
		Sender:     env.From,
		Recipients: append([]string(nil), env.Recipients...),
		Subject:    env.Subject,
	}
	if raw == nil {
		if msg.Recipients == nil {
			msg.Recipients = []string{}
		}
		return msg
	}

	parsed := ParseMessage(raw)
	if msg.Sender == "" {
		msg.Sender = parsed.Sender
	}
	if len(msg.Recipients) == 0 {
		msg.Recipients = parsed.Recipients
	}
	if msg.Subject == "" {
		msg.Subject = parsed.Subject
	}
	msg.Content = parsed.Content
	return msg
}

// ParseMessage parses a raw RFC 5322 message. Recipients are To followed
// by Cc. The content is the text/plain part, or the text/html part reduced
// to plain text when no plain part exists.
func ParseMessage(raw []byte) model.Message {
	msg := model.Message{Recipients: []string{}}

	// An unknown charset still yields a usable reader.
	mr, _ := mail.CreateReader(bytes.NewReader(raw))
	if mr == nil {
		msg.Content = string(raw)
		return msg
	}
	defer mr.Close()

	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		msg.Sender = from[0].Address
	}
	for _, key := range []string{"To", "Cc"} {
		addrs, err := mr.Header.AddressList(key)
		if err != nil {
			continue
		}
		for _, a := range addrs {
			msg.Recipients = append(msg.Recipients, a.Address)
		}
	}
	msg.Subject, _ = mr.Header.Subject()

	textBody, htmlBody := parseMIMEBody(mr)
	msg.Content = textBody
	if msg.Content == "" && htmlBody != "" {
		msg.Content = htmlToText(htmlBody)
	}
	return msg
}

// parseMIMEBody walks the parts of mr and returns the first text/plain and
// text/html bodies. Attachments are skipped.
func parseMIMEBody(mr *mail.Reader) (textBody, htmlBody string) {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain") && textBody == "":
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
			htmlBody = string(body)
		}
	}
	return textBody, htmlBody
}

var (
	textPolicy    = bluemonday.StrictPolicy()
	blockReplacer = strings.NewReplacer(
		"<br>", "\n", "<br/>", "\n", "<br />", "\n",
		"</p>", "\n", "</div>", "\n", "</li>", "\n",
	)
)

// htmlToText strips every tag from s and decodes entities.
func htmlToText(s string) string {
	if s == "" {
		return ""
	}

	result := textPolicy.Sanitize(blockReplacer.Replace(s))
	result = html.UnescapeString(result)
	result = strings.ReplaceAll(result, "\u00a0", " ")

	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(result)
}
