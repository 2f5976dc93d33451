package store

import (
	"fmt"

	"github.com/postale/postale/internal/model"
)

// The functions below convert between entities and the flat values of
// their table, in the schema's column order. They perform no I/O.

// exportMailbox returns (url, address, password).
func exportMailbox(m model.Mailbox) []any {
	return []any{m.URL, m.Address, m.Password}
}

// mailboxFromData rebuilds a Mailbox from (url, address, password).
func mailboxFromData(id int64, data []any) (model.Mailbox, error) {
	if len(data) != 3 {
		return model.Mailbox{}, fmt.Errorf("mailbox row has %d values, want 3", len(data))
	}

	var (
		m   = model.Mailbox{ID: id}
		err error
	)
	if m.URL, err = asString(data[0]); err != nil {
		return model.Mailbox{}, fmt.Errorf("mailbox url: %w", err)
	}
	if m.Address, err = asString(data[1]); err != nil {
		return model.Mailbox{}, fmt.Errorf("mailbox address: %w", err)
	}
	if m.Password, err = asString(data[2]); err != nil {
		return model.Mailbox{}, fmt.Errorf("mailbox password: %w", err)
	}

	return m, nil
}

// exportMessage returns (sender, subject, content, is_draft). Recipients
// live in their own table and are not part of the row.
func exportMessage(m model.Message) []any {
	return []any{m.Sender, m.Subject, m.Content, boolToInt(m.IsDraft)}
}

// messageFromData rebuilds a Message from (sender, subject, content,
// is_draft) and its recipient addresses. The draft flag is set only when
// the stored value equals 1.
func messageFromData(id int64, data []any, recipients []string) (model.Message, error) {
	if len(data) != 4 {
		return model.Message{}, fmt.Errorf("message row has %d values, want 4", len(data))
	}

	var (
		m   = model.Message{ID: id, Recipients: recipients}
		err error
	)
	if m.Sender, err = asString(data[0]); err != nil {
		return model.Message{}, fmt.Errorf("message sender: %w", err)
	}
	if m.Subject, err = asString(data[1]); err != nil {
		return model.Message{}, fmt.Errorf("message subject: %w", err)
	}
	if m.Content, err = asString(data[2]); err != nil {
		return model.Message{}, fmt.Errorf("message content: %w", err)
	}

	draft, err := asInt64(data[3])
	if err != nil {
		return model.Message{}, fmt.Errorf("message is_draft: %w", err)
	}
	m.IsDraft = draft == 1

	if m.Recipients == nil {
		m.Recipients = []string{}
	}

	return m, nil
}

// asString accepts the TEXT representations drivers hand back.
func asString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unexpected type %T", v)
	}
}

// asInt64 accepts the INTEGER representations drivers hand back.
func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case bool:
		return int64(boolToInt(n)), nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// exportRecipient returns (message, address) for one recipient row.
func exportRecipient(messageID int64, address string) []any {
	return []any{messageID, address}
}
