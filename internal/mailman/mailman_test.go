package mailman

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postale/postale/internal/model"
)

func TestParseEndpoint(t *testing.T) {
	fallback := Endpoint{Port: "993", TLS: true}

	tests := []struct {
		name string
		raw  string
		want Endpoint
	}{
		{"bare host", "imap.example.com", Endpoint{"imap.example.com", "993", true}},
		{"host and port", "imap.example.com:1143", Endpoint{"imap.example.com", "1143", true}},
		{"imaps scheme", "imaps://mail.example.com", Endpoint{"mail.example.com", "993", true}},
		{"imap scheme", "imap://mail.example.com", Endpoint{"mail.example.com", "143", false}},
		{"scheme with port", "imap://mail.example.com:2143", Endpoint{"mail.example.com", "2143", false}},
		{"smtps scheme", "smtps://smtp.example.com", Endpoint{"smtp.example.com", "465", true}},
		{"surrounding space", "  imap.example.com ", Endpoint{"imap.example.com", "993", true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEndpoint(tt.raw, fallback)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEndpointErrors(t *testing.T) {
	for _, raw := range []string{"", "   ", "ftp://example.com", "imap://", ":993"} {
		t.Run(fmt.Sprintf("%q", raw), func(t *testing.T) {
			_, err := ParseEndpoint(raw, Endpoint{Port: "993"})
			assert.Error(t, err)
		})
	}
}

func TestEndpointAddr(t *testing.T) {
	assert.Equal(t, "imap.example.com:993", Endpoint{Host: "imap.example.com", Port: "993"}.Addr())
}

func TestSMTPEndpoint(t *testing.T) {
	imapCfg := model.IMAPConfig{Port: "993", TLS: true}

	t.Run("derived from imap host", func(t *testing.T) {
		mb := model.Mailbox{URL: "imap.example.com", Address: "u@example.com"}
		ep, err := SMTPEndpoint(mb, imapCfg, model.SMTPConfig{Port: "587"})
		require.NoError(t, err)
		assert.Equal(t, Endpoint{Host: "smtp.example.com", Port: "587"}, ep)
	})

	t.Run("non imap prefix kept", func(t *testing.T) {
		mb := model.Mailbox{URL: "imaps://mail.example.com", Address: "u@example.com"}
		ep, err := SMTPEndpoint(mb, imapCfg, model.SMTPConfig{Port: "465", TLS: true})
		require.NoError(t, err)
		assert.Equal(t, Endpoint{Host: "mail.example.com", Port: "465", TLS: true}, ep)
	})

	t.Run("configured host wins", func(t *testing.T) {
		mb := model.Mailbox{URL: "bad url ::", Address: "u@example.com"}
		ep, err := SMTPEndpoint(mb, imapCfg, model.SMTPConfig{Host: "relay.example.com", Port: "25"})
		require.NoError(t, err)
		assert.Equal(t, Endpoint{Host: "relay.example.com", Port: "25"}, ep)
	})
}

func TestEndpointsDefaultPorts(t *testing.T) {
	mb := model.Mailbox{URL: "imap.example.com"}

	in, err := IMAPEndpoint(mb, model.IMAPConfig{TLS: true})
	require.NoError(t, err)
	assert.Equal(t, "993", in.Port)

	in, err = IMAPEndpoint(mb, model.IMAPConfig{})
	require.NoError(t, err)
	assert.Equal(t, "143", in.Port)

	out, err := SMTPEndpoint(mb, model.IMAPConfig{}, model.SMTPConfig{TLS: true})
	require.NoError(t, err)
	assert.Equal(t, Endpoint{Host: "smtp.example.com", Port: "465", TLS: true}, out)
}

func TestAuthError(t *testing.T) {
	cause := errors.New("NO [AUTHENTICATIONFAILED]")
	err := fmt.Errorf("login: %w", &AuthError{Protocol: "imap", Address: "u@example.com", Err: cause})

	assert.True(t, IsAuthError(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "u@example.com")
	assert.False(t, IsAuthError(cause))
}
