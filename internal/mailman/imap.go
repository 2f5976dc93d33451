package mailman

import (
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/postale/postale/internal/model"
)

// FetchOptions selects which messages FetchMessages returns.
type FetchOptions struct {
	Folder string
	// Limit caps the number of messages, keeping the most recent. Zero means no cap.
	Limit int
	// SinceDays restricts the search to the last N days. Zero means all.
	SinceDays int
}

// FetchOptionsFromConfig maps the fetch section of the configuration.
func FetchOptionsFromConfig(cfg model.FetchConfig) FetchOptions {
	return FetchOptions{Folder: cfg.Folder, Limit: cfg.Limit, SinceDays: cfg.SinceDays}
}

// IMAPClient wraps go-imap v2 for one mailbox account.
type IMAPClient struct {
	endpoint Endpoint
	username string
	password string
}

// NewIMAPClient creates a client for mb using the IMAP defaults in cfg.
func NewIMAPClient(mb model.Mailbox, cfg model.IMAPConfig) (*IMAPClient, error) {
	ep, err := IMAPEndpoint(mb, cfg)
	if err != nil {
		return nil, err
	}
	return &IMAPClient{endpoint: ep, username: mb.Address, password: mb.Password}, nil
}

// Connect dials the server and logs in. The caller must Logout the
// returned client.
func (c *IMAPClient) Connect(ctx context.Context) (*imapclient.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addr := c.endpoint.Addr()

	var client *imapclient.Client
	var err error
	if c.endpoint.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Close()
		return nil, &AuthError{Protocol: "imap", Address: c.username, Err: err}
	}
	return client, nil
}

// Authenticate checks that the credentials are accepted.
func (c *IMAPClient) Authenticate(ctx context.Context) error {
	client, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	return client.Logout().Wait()
}

// FetchMessages selects the folder, searches for recent messages and
// returns them parsed. Fetched messages are never drafts.
func (c *IMAPClient) FetchMessages(ctx context.Context, opts FetchOptions) ([]model.Message, error) {
	client, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	folder := opts.Folder
	if folder == "" {
		folder = "INBOX"
	}
	if _, err := client.Select(folder, nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting %s: %w", folder, err)
	}

	criteria := &imap.SearchCriteria{}
	if opts.SinceDays > 0 {
		criteria.Since = time.Now().AddDate(0, 0, -opts.SinceDays)
	}
	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return []model.Message{}, nil
	}
	if opts.Limit > 0 && len(uids) > opts.Limit {
		uids = uids[len(uids)-opts.Limit:]
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	messages := make([]model.Message, 0, len(uids))
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		messages = append(messages, toMessage(envelopeFromBuffer(buf), buf.FindBodySection(bodySection)))
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, fmt.Errorf("fetching messages: %w", err)
	}
	return messages, nil
}

// envelopeFromBuffer extracts the addressing data from a fetch response.
func envelopeFromBuffer(buf *imapclient.FetchMessageBuffer) Envelope {
	env := Envelope{UID: uint32(buf.UID)}
	if buf.Envelope == nil {
		return env
	}

	env.MessageID = buf.Envelope.MessageID
	env.Subject = buf.Envelope.Subject
	if len(buf.Envelope.From) > 0 {
		env.From = buf.Envelope.From[0].Addr()
	}
	for _, to := range buf.Envelope.To {
		env.Recipients = append(env.Recipients, to.Addr())
	}
	for _, cc := range buf.Envelope.Cc {
		env.Recipients = append(env.Recipients, cc.Addr())
	}
	return env
}
