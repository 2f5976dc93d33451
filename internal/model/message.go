package model

import "slices"

// Message is a stored email, either received or a draft written locally.
type Message struct {
	// ID is assigned by the store on insert. A non-zero ID makes a write
	// update the existing row instead of inserting a new one.
	ID int64 `json:"id"`

	// Sender is the From address.
	Sender string `json:"sender"`

	// Recipients holds the To/Cc addresses. Order carries no meaning.
	Recipients []string `json:"recipients"`

	Subject string `json:"subject"`
	Content string `json:"content"`

	// IsDraft marks messages composed locally and not yet sent.
	IsDraft bool `json:"is_draft"`
}

// HasRecipient reports whether addr is one of the message's recipients.
func (m Message) HasRecipient(addr string) bool {
	return slices.Contains(m.Recipients, addr)
}

// SameContent reports whether two messages carry the same fields,
// ignoring the identifier and recipient order.
func (m Message) SameContent(o Message) bool {
	if m.Sender != o.Sender || m.Subject != o.Subject ||
		m.Content != o.Content || m.IsDraft != o.IsDraft {
		return false
	}
	a := slices.Clone(m.Recipients)
	b := slices.Clone(o.Recipients)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}
