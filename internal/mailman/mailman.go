// Package mailman talks to mail servers on behalf of stored mailboxes:
// IMAP for fetching, SMTP for sending, go-message for the MIME in between.
package mailman

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/postale/postale/internal/model"
)

// AuthError indicates that a mail server rejected the mailbox credentials.
type AuthError struct {
	Protocol string
	Address  string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): authentication failed for %s: %v", e.Protocol, e.Address, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Endpoint is a resolved mail server address.
type Endpoint struct {
	Host string
	Port string
	// TLS selects implicit TLS; otherwise the connection is upgraded with STARTTLS.
	TLS bool
}

// Addr returns host:port.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, e.Port)
}

var schemeDefaults = map[string]Endpoint{
	"imap":  {Port: "143", TLS: false},
	"imaps": {Port: "993", TLS: true},
	"smtp":  {Port: "587", TLS: false},
	"smtps": {Port: "465", TLS: true},
}

// ParseEndpoint resolves a mailbox server URL. Accepted forms are "host",
// "host:port" and "scheme://host[:port]" with scheme imap, imaps, smtp or
// smtps. Bare hosts take the fallback port and TLS mode.
func ParseEndpoint(raw string, fallback Endpoint) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Endpoint{}, errors.New("empty server url")
	}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return Endpoint{}, fmt.Errorf("parsing server url %q: %w", raw, err)
		}
		def, ok := schemeDefaults[strings.ToLower(u.Scheme)]
		if !ok {
			return Endpoint{}, fmt.Errorf("unsupported scheme %q in %q", u.Scheme, raw)
		}
		if u.Hostname() == "" {
			return Endpoint{}, fmt.Errorf("missing host in %q", raw)
		}
		ep := Endpoint{Host: u.Hostname(), Port: def.Port, TLS: def.TLS}
		if p := u.Port(); p != "" {
			ep.Port = p
		}
		return ep, nil
	}

	ep := Endpoint{Host: raw, Port: fallback.Port, TLS: fallback.TLS}
	if strings.Contains(raw, ":") {
		host, port, err := net.SplitHostPort(raw)
		if err != nil {
			return Endpoint{}, fmt.Errorf("parsing server address %q: %w", raw, err)
		}
		ep.Host, ep.Port = host, port
	}
	if ep.Host == "" {
		return Endpoint{}, fmt.Errorf("missing host in %q", raw)
	}
	return ep, nil
}

// IMAPEndpoint resolves where to fetch mail for mb.
func IMAPEndpoint(mb model.Mailbox, cfg model.IMAPConfig) (Endpoint, error) {
	fallback := Endpoint{Port: cfg.Port, TLS: cfg.TLS}
	if fallback.Port == "" {
		fallback.Port = defaultPort("imap", cfg.TLS)
	}
	return ParseEndpoint(mb.URL, fallback)
}

// SMTPEndpoint resolves where to send mail for mb. A configured smtp host
// wins; otherwise the IMAP host is reused with a leading "imap." swapped
// for "smtp.".
func SMTPEndpoint(mb model.Mailbox, imapCfg model.IMAPConfig, cfg model.SMTPConfig) (Endpoint, error) {
	ep := Endpoint{Host: cfg.Host, Port: cfg.Port, TLS: cfg.TLS}
	if ep.Port == "" {
		ep.Port = defaultPort("smtp", cfg.TLS)
	}
	if ep.Host != "" {
		return ep, nil
	}

	in, err := IMAPEndpoint(mb, imapCfg)
	if err != nil {
		return Endpoint{}, err
	}
	ep.Host = in.Host
	if strings.HasPrefix(strings.ToLower(in.Host), "imap.") {
		ep.Host = "smtp." + in.Host[len("imap."):]
	}
	return ep, nil
}

// defaultPort returns the well-known port for protocol, "imap" or "smtp".
func defaultPort(protocol string, tls bool) string {
	if tls {
		protocol += "s"
	}
	return schemeDefaults[protocol].Port
}
