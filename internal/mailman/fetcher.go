package mailman

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/postale/postale/internal/model"
	"github.com/postale/postale/internal/store"
)

// Source fetches messages for one mailbox.
type Source interface {
	FetchMessages(ctx context.Context, opts FetchOptions) ([]model.Message, error)
}

// SourceFactory opens a Source for a mailbox.
type SourceFactory func(mb model.Mailbox) (Source, error)

// IMAPSources returns a SourceFactory backed by IMAPClient.
func IMAPSources(cfg model.IMAPConfig) SourceFactory {
	return func(mb model.Mailbox) (Source, error) {
		return NewIMAPClient(mb, cfg)
	}
}

// MessageStore is the slice of the store a Fetcher writes through.
type MessageStore interface {
	GetMessages(ctx context.Context, filter store.MessageFilter) ([]model.Message, error)
	WriteMessages(ctx context.Context, msgs []model.Message) ([]int64, error)
}

// Fetcher downloads mail for mailboxes and saves what is new.
type Fetcher struct {
	store   MessageStore
	sources SourceFactory
	opts    FetchOptions
	logger  *zap.Logger
}

// NewFetcher creates a Fetcher. A nil logger is replaced with a no-op one.
func NewFetcher(s MessageStore, sources SourceFactory, opts FetchOptions, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{store: s, sources: sources, opts: opts, logger: logger}
}

// Collect downloads the messages of mb without touching the store, so
// several mailboxes can be collected concurrently.
func (f *Fetcher) Collect(ctx context.Context, mb model.Mailbox) ([]model.Message, error) {
	src, err := f.sources(mb)
	if err != nil {
		return nil, fmt.Errorf("opening source for %s: %w", mb.Address, err)
	}
	msgs, err := src.FetchMessages(ctx, f.opts)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", mb.Address, err)
	}
	return msgs, nil
}

// Save writes the messages collected for mb that the store does not hold
// yet and returns how many were written. A message is already held when a
// stored message involving mb has the same content.
func (f *Fetcher) Save(ctx context.Context, mb model.Mailbox, msgs []model.Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	existing, err := f.store.GetMessages(ctx, store.MessageFilter{Mailboxes: []string{mb.Address}})
	if err != nil {
		return 0, fmt.Errorf("loading messages of %s: %w", mb.Address, err)
	}

	fresh := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		m.ID = 0
		m.IsDraft = false
		if containsMessage(existing, m) || containsMessage(fresh, m) {
			continue
		}
		fresh = append(fresh, m)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	if _, err := f.store.WriteMessages(ctx, fresh); err != nil {
		return 0, fmt.Errorf("saving messages of %s: %w", mb.Address, err)
	}
	f.logger.Info("saved fetched messages",
		zap.String("mailbox", mb.Address),
		zap.Int("fetched", len(msgs)),
		zap.Int("saved", len(fresh)),
	)
	return len(fresh), nil
}

// Fetch collects and saves every mailbox in order. It keeps going past a
// failing mailbox and returns the first error once all were attempted.
func (f *Fetcher) Fetch(ctx context.Context, mailboxes []model.Mailbox) (map[string]int, error) {
	saved := make(map[string]int, len(mailboxes))
	var firstErr error
	for _, mb := range mailboxes {
		n, err := f.fetchOne(ctx, mb)
		if err != nil {
			f.logger.Warn("fetch failed", zap.String("mailbox", mb.Address), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		saved[mb.Address] = n
	}
	return saved, firstErr
}

func (f *Fetcher) fetchOne(ctx context.Context, mb model.Mailbox) (int, error) {
	msgs, err := f.Collect(ctx, mb)
	if err != nil {
		return 0, err
	}
	return f.Save(ctx, mb, msgs)
}

func containsMessage(list []model.Message, m model.Message) bool {
	for _, other := range list {
		if other.SameContent(m) {
			return true
		}
	}
	return false
}
