package store

import (
	"context"

	"github.com/postale/postale/internal/model"
)

// MailboxFilter narrows GetMailboxes. Nil fields match everything; set
// fields are combined with AND.
type MailboxFilter struct {
	ID       *int64
	URL      *string
	Address  *string
	Password *string
}

// MessageFilter narrows GetMessages. Empty fields match everything; set
// fields are combined with AND.
type MessageFilter struct {
	// IDs restricts results to these identifiers.
	IDs []int64

	// Mailboxes keeps messages sent from or addressed to any of these
	// account addresses.
	Mailboxes []string

	// Senders keeps messages whose sender is one of these addresses.
	Senders []string

	// Recipients keeps messages addressed to any of these addresses.
	Recipients []string

	IsDraft *bool

	// Query searches subject and content.
	Query *string
}

// Store defines the persistence interface for mailboxes and messages.
// Implementations assume a single caller; operations are not safe for
// concurrent use.
type Store interface {
	// === Mailboxes ===

	GetMailboxes(ctx context.Context, filter MailboxFilter) ([]model.Mailbox, error)
	GetMailboxByID(ctx context.Context, id int64) (model.Mailbox, bool, error)
	WriteMailbox(ctx context.Context, mailbox model.Mailbox) (int64, error)
	DeleteMailbox(ctx context.Context, mailbox model.Mailbox) error

	// === Messages ===

	GetMessages(ctx context.Context, filter MessageFilter) ([]model.Message, error)
	GetMessageByID(ctx context.Context, id int64) (model.Message, bool, error)
	WriteMessage(ctx context.Context, message model.Message) (int64, error)
	WriteMessages(ctx context.Context, messages []model.Message) ([]int64, error)
	DeleteMessage(ctx context.Context, message model.Message) error
}
