package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postale/postale/internal/model"
)

func TestWriteMessageThenGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := model.Message{
		Sender:     "u@example.com",
		Recipients: []string{"a@x.com", "b@x.com"},
		Subject:    "hi",
		Content:    "hello",
	}
	id, err := s.WriteMessage(ctx, in)
	require.NoError(t, err)

	got, err := s.GetMessages(ctx, MessageFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, id, got[0].ID)
	assert.ElementsMatch(t, []string{"a@x.com", "b@x.com"}, got[0].Recipients)
	assert.True(t, in.SameContent(got[0]))
}

func TestWriteMessageWithoutRecipients(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.WriteMessage(ctx, model.Message{Sender: "u@x.com", IsDraft: true})
	require.NoError(t, err)

	got, ok, err := s.GetMessageByID(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{}, got.Recipients)
	assert.True(t, got.IsDraft)
}

func TestGetMessageByIDMissing(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.GetMessageByID(context.Background(), 12)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteMessageUpdatesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.WriteMessage(ctx, model.Message{
		Sender: "u@x.com", Recipients: []string{"a@x.com", "b@x.com"}, Subject: "draft", IsDraft: true,
	})
	require.NoError(t, err)

	updated := model.Message{
		ID: id, Sender: "u@x.com", Recipients: []string{"c@x.com"}, Subject: "sent",
	}
	gotID, err := s.WriteMessage(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, id, gotID)

	all, err := s.GetMessages(ctx, MessageFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, updated.SameContent(all[0]))

	assert.Equal(t, 1, countRows(t, s.db, "SELECT COUNT(*) FROM recipient"))
}

func TestWriteMessageUpdateMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.WriteMessage(context.Background(), model.Message{ID: 99, Sender: "u@x.com"})
	assert.True(t, IsNotFound(err))
	assert.True(t, IsWriteFailed(err))
}

func TestWriteMessageRollsBackOnRecipientFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.db.Exec("DROP TABLE recipient")
	require.NoError(t, err)

	_, err = s.WriteMessage(ctx, model.Message{Sender: "u@x.com", Recipients: []string{"a@x.com"}})
	require.Error(t, err)
	assert.True(t, IsWriteFailed(err))

	assert.Zero(t, countRows(t, s.db, "SELECT COUNT(*) FROM message"))
}

func TestWriteMessagesIsAllOrNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ids, err := s.WriteMessages(ctx, []model.Message{
		{Sender: "a@x.com", Recipients: []string{"b@x.com"}},
		{Sender: "c@x.com", Recipients: []string{"d@x.com", "e@x.com"}},
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Less(t, ids[0], ids[1])

	// The second message updates a row that does not exist, so the
	// first must not be kept either.
	_, err = s.WriteMessages(ctx, []model.Message{
		{Sender: "f@x.com"},
		{ID: 999, Sender: "g@x.com"},
	})
	assert.True(t, IsWriteFailed(err))

	got, err := s.GetMessages(ctx, MessageFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 3, countRows(t, s.db, "SELECT COUNT(*) FROM recipient"))
}

func TestWriteMessagesEmpty(t *testing.T) {
	s := newTestStore(t)

	ids, err := s.WriteMessages(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestDeleteMessageRemovesRecipients(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	keep, err := s.WriteMessage(ctx, model.Message{Sender: "u@x.com", Recipients: []string{"k@x.com"}})
	require.NoError(t, err)
	gone, err := s.WriteMessage(ctx, model.Message{Sender: "u@x.com", Recipients: []string{"a@x.com", "b@x.com"}})
	require.NoError(t, err)

	require.NoError(t, s.DeleteMessage(ctx, model.Message{ID: gone}))

	got, err := s.GetMessages(ctx, MessageFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, keep, got[0].ID)

	assert.Zero(t, countRows(t, s.db, "SELECT COUNT(*) FROM recipient WHERE message = ?", gone))
	assert.Equal(t, 1, countRows(t, s.db, "SELECT COUNT(*) FROM recipient WHERE message = ?", keep))
}

func TestDeleteMessageErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.DeleteMessage(ctx, model.Message{}), ErrInvalidID)
	assert.True(t, IsNotFound(s.DeleteMessage(ctx, model.Message{ID: 5})))
}

func TestGetMessagesFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ids, err := s.WriteMessages(ctx, []model.Message{
		{Sender: "me@x.com", Recipients: []string{"you@y.com"}, Subject: "lunch", Content: "noon?"},
		{Sender: "you@y.com", Recipients: []string{"me@x.com", "other@z.com"}, Subject: "re: lunch", Content: "sure"},
		{Sender: "me@x.com", Recipients: []string{"boss@x.com"}, Subject: "report", Content: "draft text", IsDraft: true},
		{Sender: "spam@z.com", Recipients: []string{"other@z.com"}, Subject: "win", Content: "prize"},
	})
	require.NoError(t, err)

	draft := true
	notDraft := false
	lunch := "lunch"
	prize := "PRIZE"

	tests := []struct {
		name   string
		filter MessageFilter
		want   []int64
	}{
		{"all", MessageFilter{}, ids},
		{"ids", MessageFilter{IDs: []int64{ids[1], ids[3]}}, []int64{ids[1], ids[3]}},
		{"mailbox", MessageFilter{Mailboxes: []string{"me@x.com"}}, ids[:3]},
		{"mailbox drafts", MessageFilter{Mailboxes: []string{"me@x.com"}, IsDraft: &draft}, []int64{ids[2]}},
		{"senders", MessageFilter{Senders: []string{"me@x.com"}, IsDraft: &notDraft}, []int64{ids[0]}},
		{"recipients", MessageFilter{Recipients: []string{"other@z.com"}}, []int64{ids[1], ids[3]}},
		{"query", MessageFilter{Query: &lunch}, []int64{ids[0], ids[1]}},
		{"query is case-insensitive", MessageFilter{Query: &prize}, []int64{ids[3]}},
		{"no match", MessageFilter{Senders: []string{"nobody@x.com"}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.GetMessages(ctx, tt.filter)
			require.NoError(t, err)
			require.NotNil(t, got)

			var gotIDs []int64
			for _, m := range got {
				gotIDs = append(gotIDs, m.ID)
			}
			assert.Equal(t, tt.want, gotIDs)
		})
	}
}
