package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/postale/postale/internal/credential"
	"github.com/postale/postale/internal/model"
	"github.com/postale/postale/internal/store"
)

// mailboxByAddress returns the mailbox registered for addr.
func (a *App) mailboxByAddress(ctx context.Context, addr string) (model.Mailbox, bool, error) {
	mbs, err := a.store.GetMailboxes(ctx, store.MailboxFilter{Address: &addr})
	if err != nil {
		return model.Mailbox{}, false, fmt.Errorf("loading mailbox %s: %w", addr, err)
	}
	if len(mbs) == 0 {
		return model.Mailbox{}, false, nil
	}
	return mbs[0], true, nil
}

// resolveAddresses returns args when every address is a known mailbox, or
// all mailbox addresses when args is empty.
func (a *App) resolveAddresses(ctx context.Context, args []string) ([]string, error) {
	mbs, err := a.store.GetMailboxes(ctx, store.MailboxFilter{})
	if err != nil {
		return nil, fmt.Errorf("loading mailboxes: %w", err)
	}

	known := make(map[string]bool, len(mbs))
	all := make([]string, 0, len(mbs))
	for _, mb := range mbs {
		if !known[mb.Address] {
			known[mb.Address] = true
			all = append(all, mb.Address)
		}
	}
	if len(args) == 0 {
		return all, nil
	}

	for _, addr := range args {
		if !known[addr] {
			return nil, fmt.Errorf("unknown mailbox %q", addr)
		}
	}
	return args, nil
}

// withPassword fills in a keyring-held password for mailboxes stored
// without one.
func (a *App) withPassword(mb model.Mailbox) (model.Mailbox, error) {
	if mb.Password != "" || a.creds == nil {
		return mb, nil
	}

	pw, err := a.creds.Get(mb.Address)
	if errors.Is(err, credential.ErrNotFound) {
		return mb, nil
	}
	if err != nil {
		return mb, fmt.Errorf("loading password for %s: %w", mb.Address, err)
	}
	mb.Password = pw
	return mb, nil
}

// credentialLister lists mailboxes with their keyring passwords resolved.
type credentialLister struct {
	app    *App
	logger *zap.Logger
}

func (l credentialLister) GetMailboxes(ctx context.Context, filter store.MailboxFilter) ([]model.Mailbox, error) {
	mbs, err := l.app.store.GetMailboxes(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range mbs {
		mb, err := l.app.withPassword(mbs[i])
		if err != nil {
			l.logger.Warn("skipping keyring password", zap.String("mailbox", mbs[i].Address), zap.Error(err))
			continue
		}
		mbs[i] = mb
	}
	return mbs, nil
}
