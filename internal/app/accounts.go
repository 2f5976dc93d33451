package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/postale/postale/internal/model"
	"github.com/postale/postale/internal/render"
	"github.com/postale/postale/internal/store"
)

func (a *App) login(ctx context.Context, args []string) error {
	fs := a.newFlagSet("login")
	password := fs.StringP("password", "p", "", "mailbox password (prompted when omitted)")
	useKeyring := fs.Bool("keyring", false, "keep the password in the OS keyring instead of the database")
	noVerify := fs.Bool("no-verify", false, "skip the IMAP login check")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("%w: login <url> <address>", ErrUsage)
	}

	mb := model.Mailbox{
		URL:     strings.TrimSpace(fs.Arg(0)),
		Address: strings.TrimSpace(fs.Arg(1)),
	}
	if !strings.Contains(mb.Address, "@") {
		return fmt.Errorf("%w: %q is not an email address", ErrUsage, mb.Address)
	}

	if _, ok, err := a.mailboxByAddress(ctx, mb.Address); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("already logged in as %s", mb.Address)
	}

	mb.Password = *password
	if mb.Password == "" {
		pw, err := a.prompt.Password(mb.Address)
		if err != nil {
			return err
		}
		mb.Password = pw
	}

	if !*noVerify {
		if err := a.auth(ctx, mb); err != nil {
			return fmt.Errorf("verifying %s: %w", mb.Address, err)
		}
	}

	if *useKeyring {
		if a.creds == nil {
			return errors.New("keyring is not available")
		}
		if err := a.creds.Set(mb.Address, mb.Password); err != nil {
			return fmt.Errorf("saving password for %s: %w", mb.Address, err)
		}
		mb.Password = ""
	}

	id, err := a.store.WriteMailbox(ctx, mb)
	if err != nil {
		return fmt.Errorf("saving mailbox %s: %w", mb.Address, err)
	}
	fmt.Fprintf(a.out, "Logged in as %s (mailbox %d)\n", mb.Address, id)
	return nil
}

func (a *App) logout(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: logout <address>", ErrUsage)
	}
	addr := args[0]

	mbs, err := a.store.GetMailboxes(ctx, store.MailboxFilter{Address: &addr})
	if err != nil {
		return fmt.Errorf("loading mailbox %s: %w", addr, err)
	}
	if len(mbs) == 0 {
		return fmt.Errorf("unknown mailbox %q", addr)
	}

	for _, mb := range mbs {
		if err := a.store.DeleteMailbox(ctx, mb); err != nil {
			return fmt.Errorf("removing mailbox %s: %w", addr, err)
		}
	}
	if a.creds != nil {
		if err := a.creds.Delete(addr); err != nil {
			return fmt.Errorf("removing password for %s: %w", addr, err)
		}
	}

	fmt.Fprintf(a.out, "Logged out of %s\n", addr)
	return nil
}

func (a *App) mailboxes(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: mailboxes takes no arguments", ErrUsage)
	}
	mbs, err := a.store.GetMailboxes(ctx, store.MailboxFilter{})
	if err != nil {
		return fmt.Errorf("loading mailboxes: %w", err)
	}
	fmt.Fprint(a.out, render.Mailboxes(mbs))
	return nil
}
