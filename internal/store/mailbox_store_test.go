package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postale/postale/internal/model"
)

func TestWriteMailboxThenGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.WriteMailbox(ctx, model.Mailbox{
		URL: "imap.example.com", Address: "u@example.com", Password: "p",
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	got, err := s.GetMailboxes(ctx, MailboxFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, model.Mailbox{
		ID: id, URL: "imap.example.com", Address: "u@example.com", Password: "p",
	}, got[0])
}

func TestGetMailboxesEmpty(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetMailboxes(context.Background(), MailboxFilter{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestGetMailboxesFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.WriteMailbox(ctx, model.Mailbox{URL: "imap.a.com", Address: "u@a.com", Password: "1"})
	require.NoError(t, err)
	_, err = s.WriteMailbox(ctx, model.Mailbox{URL: "imap.b.com", Address: "u@b.com", Password: "2"})
	require.NoError(t, err)
	_, err = s.WriteMailbox(ctx, model.Mailbox{URL: "imap.b.com", Address: "v@b.com", Password: "2"})
	require.NoError(t, err)

	url := "imap.b.com"
	got, err := s.GetMailboxes(ctx, MailboxFilter{URL: &url})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	addr := "v@b.com"
	got, err = s.GetMailboxes(ctx, MailboxFilter{URL: &url, Address: &addr})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "v@b.com", got[0].Address)

	pw := "1"
	got, err = s.GetMailboxes(ctx, MailboxFilter{Password: &pw})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, first, got[0].ID)

	none := "nobody@x.com"
	got, err = s.GetMailboxes(ctx, MailboxFilter{Address: &none})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDuplicateMailboxesAreAllowed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mb := model.Mailbox{URL: "imap.a.com", Address: "u@a.com", Password: "1"}
	a, err := s.WriteMailbox(ctx, mb)
	require.NoError(t, err)
	b, err := s.WriteMailbox(ctx, mb)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestGetMailboxByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.WriteMailbox(ctx, model.Mailbox{URL: "imap.a.com", Address: "u@a.com"})
	require.NoError(t, err)

	got, ok, err := s.GetMailboxByID(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "u@a.com", got.Address)

	_, ok, err = s.GetMailboxByID(ctx, id+100)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteMailbox(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.WriteMailbox(ctx, model.Mailbox{URL: "imap.a.com", Address: "u@a.com"})
	require.NoError(t, err)
	_, err = s.WriteMessage(ctx, model.Message{Sender: "u@a.com", Recipients: []string{"v@b.com"}})
	require.NoError(t, err)

	require.NoError(t, s.DeleteMailbox(ctx, model.Mailbox{ID: id}))

	got, err := s.GetMailboxes(ctx, MailboxFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)

	// Messages outlive their mailbox.
	msgs, err := s.GetMessages(ctx, MessageFilter{})
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	err = s.DeleteMailbox(ctx, model.Mailbox{ID: id})
	assert.True(t, IsNotFound(err))

	err = s.DeleteMailbox(ctx, model.Mailbox{})
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestIdentifiersAreNotReused(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.WriteMailbox(ctx, model.Mailbox{Address: "a"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteMailbox(ctx, model.Mailbox{ID: first}))

	second, err := s.WriteMailbox(ctx, model.Mailbox{Address: "b"})
	require.NoError(t, err)
	assert.Greater(t, second, first)
}
