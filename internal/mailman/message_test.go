package mailman

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postale/postale/internal/model"
)

func TestComposeThenParse(t *testing.T) {
	in := model.Message{
		Sender:     "me@example.com",
		Recipients: []string{"a@example.com", "b@example.org"},
		Subject:    "Lunch on Friday",
		Content:    "Are you free at noon?",
	}

	raw, err := Compose(in, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	text := string(raw)
	assert.Contains(t, text, "Message-Id: <")
	assert.Contains(t, text, "@example.com>")
	assert.Contains(t, text, "Date: Fri, 01 Mar 2024 12:00:00 +0000")

	out := ParseMessage(raw)
	assert.Equal(t, in.Sender, out.Sender)
	assert.Equal(t, in.Recipients, out.Recipients)
	assert.Equal(t, in.Subject, out.Subject)
	assert.Equal(t, in.Content, strings.TrimRight(out.Content, "\r\n"))
	assert.False(t, out.IsDraft)
}

func TestComposeEncodesNonASCII(t *testing.T) {
	in := model.Message{
		Sender:     "me@example.com",
		Recipients: []string{"a@example.com"},
		Subject:    "Café ☕",
		Content:    "À bientôt",
	}

	raw, err := Compose(in, time.Now())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Subject: Café")

	out := ParseMessage(raw)
	assert.Equal(t, in.Subject, out.Subject)
	assert.Equal(t, in.Content, strings.TrimRight(out.Content, "\r\n"))
}

func TestComposeRejectsIncompleteMessages(t *testing.T) {
	_, err := Compose(model.Message{Sender: "me@example.com"}, time.Now())
	assert.ErrorIs(t, err, ErrNoRecipients)

	_, err = Compose(model.Message{Recipients: []string{"a@example.com"}}, time.Now())
	assert.Error(t, err)
}

func TestMessageIDUsesSenderDomain(t *testing.T) {
	assert.True(t, strings.HasSuffix(messageID("me@example.com"), "@example.com"))
	assert.True(t, strings.HasSuffix(messageID("broken"), "@postale.local"))
	assert.NotEqual(t, messageID("me@example.com"), messageID("me@example.com"))
}

const multipartMessage = "From: Alice <alice@example.com>\r\n" +
	"To: bob@example.com\r\n" +
	"Cc: carol@example.com, dave@example.com\r\n" +
	"Subject: Report\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=outer\r\n" +
	"\r\n" +
	"--outer\r\n" +
	"Content-Type: multipart/alternative; boundary=inner\r\n" +
	"\r\n" +
	"--inner\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Plain body\r\n" +
	"--inner\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>HTML body</p>\r\n" +
	"--inner--\r\n" +
	"--outer\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Disposition: attachment; filename=report.pdf\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"JVBERi0xLjQK\r\n" +
	"--outer--\r\n"

func TestParseMessageMultipart(t *testing.T) {
	msg := ParseMessage([]byte(multipartMessage))

	assert.Equal(t, "alice@example.com", msg.Sender)
	assert.Equal(t, []string{"bob@example.com", "carol@example.com", "dave@example.com"}, msg.Recipients)
	assert.Equal(t, "Report", msg.Subject)
	assert.Equal(t, "Plain body", msg.Content)
}

func TestParseMessageHTMLOnly(t *testing.T) {
	raw := "From: alice@example.com\r\n" +
		"To: bob@example.com\r\n" +
		"Subject: News\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<html><body><p>Hello &amp; welcome</p><script>alert(1)</script><div>Second<br>line</div></body></html>"

	msg := ParseMessage([]byte(raw))
	assert.Equal(t, "Hello & welcome\nSecond\nline", msg.Content)
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "no tags", "no tags"},
		{"entities", "a &lt;b&gt; &quot;c&quot;", `a <b> "c"`},
		{"collapses blank lines", "<p>one</p><p></p><p></p><p>two</p>", "one\n\ntwo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, htmlToText(tt.in))
		})
	}
}

func TestToMessagePrefersEnvelope(t *testing.T) {
	env := Envelope{
		From:       "envelope@example.com",
		Recipients: []string{"x@example.com"},
		Subject:    "From envelope",
	}

	msg := toMessage(env, []byte(multipartMessage))
	assert.Equal(t, "envelope@example.com", msg.Sender)
	assert.Equal(t, []string{"x@example.com"}, msg.Recipients)
	assert.Equal(t, "From envelope", msg.Subject)
	assert.Equal(t, "Plain body", msg.Content)

	bare := toMessage(Envelope{From: "a@example.com"}, nil)
	assert.Equal(t, []string{}, bare.Recipients)
	assert.Empty(t, bare.Content)

	filled := toMessage(Envelope{}, []byte(multipartMessage))
	assert.Equal(t, "alice@example.com", filled.Sender)
	assert.Len(t, filled.Recipients, 3)
}
