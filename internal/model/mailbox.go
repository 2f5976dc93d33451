package model

import "fmt"

// Mailbox is a mail account the client polls and sends from.
// Mailboxes are never updated in place; replace one by deleting it and
// writing a new one.
type Mailbox struct {
	// ID is assigned by the store on insert and is zero until then.
	ID int64 `json:"id"`

	// URL is the incoming mail server, e.g. "imap.example.com" or
	// "imaps://imap.example.com:993".
	URL string `json:"url"`

	// Address is the account's email address, also used as the login name.
	Address string `json:"address"`

	// Password is the account credential.
	Password string `json:"-"`
}

// String renders the mailbox without its password.
func (m Mailbox) String() string {
	return fmt.Sprintf("%s: %s", m.URL, m.Address)
}
