package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/postale/postale/internal/model"
	"github.com/postale/postale/internal/render"
	"github.com/postale/postale/internal/store"
)

// listKind selects which side of the conversation a listing shows.
type listKind int

const (
	listInbox listKind = iota
	listOutbox
	listDrafts
)

var listTitles = map[listKind]string{
	listInbox:  "Inbox",
	listOutbox: "Outbox",
	listDrafts: "Drafts",
}

func (a *App) inbox(ctx context.Context, args []string) error {
	return a.listMessages(ctx, "inbox", listInbox, args)
}

func (a *App) outbox(ctx context.Context, args []string) error {
	return a.listMessages(ctx, "outbox", listOutbox, args)
}

func (a *App) drafts(ctx context.Context, args []string) error {
	return a.listMessages(ctx, "drafts", listDrafts, args)
}

func (a *App) listMessages(ctx context.Context, name string, kind listKind, args []string) error {
	fs := a.newFlagSet(name)
	search := fs.StringP("search", "s", "", "only messages whose subject or body contains this text")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	addrs, err := a.resolveAddresses(ctx, fs.Args())
	if err != nil {
		return err
	}

	title := listTitles[kind]
	if len(addrs) == 0 {
		fmt.Fprint(a.out, render.Messages(title, nil, nil))
		return nil
	}

	draft := kind == listDrafts
	filter := store.MessageFilter{IsDraft: &draft}
	switch kind {
	case listInbox:
		filter.Recipients = addrs
	default:
		filter.Senders = addrs
	}
	if *search != "" {
		filter.Query = search
	}

	msgs, err := a.store.GetMessages(ctx, filter)
	if err != nil {
		return fmt.Errorf("loading %s: %w", strings.ToLower(title), err)
	}
	fmt.Fprint(a.out, render.Messages(title, msgs, addrs))
	return nil
}

func (a *App) view(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: view <id>", ErrUsage)
	}
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	msg, err := a.messageByID(ctx, ids[0])
	if err != nil {
		return err
	}
	fmt.Fprint(a.out, render.Message(msg))
	return nil
}

func (a *App) deleteMessages(ctx context.Context, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	for _, id := range ids {
		msg, err := a.messageByID(ctx, id)
		if err != nil {
			return err
		}
		if err := a.store.DeleteMessage(ctx, msg); err != nil {
			return fmt.Errorf("deleting message %d: %w", id, err)
		}
		fmt.Fprintf(a.out, "Deleted message %d\n", id)
	}
	return nil
}

func (a *App) draft(ctx context.Context, args []string) error {
	fs := a.newFlagSet("draft")
	to := fs.StringSlice("to", nil, "comma separated recipients")
	subject := fs.String("subject", "", "subject line")
	body := fs.String("body", "", "message body")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: draft <address>", ErrUsage)
	}

	addr := fs.Arg(0)
	if _, ok, err := a.mailboxByAddress(ctx, addr); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("unknown mailbox %q", addr)
	}

	in := DraftInput{Recipients: *to, Subject: *subject, Content: *body}
	if !fs.Changed("to") && !fs.Changed("subject") && !fs.Changed("body") {
		if err := a.prompt.Draft(addr, &in); err != nil {
			return err
		}
	}

	msg := model.Message{
		Sender:     addr,
		Recipients: cleanAddresses(in.Recipients),
		Subject:    in.Subject,
		Content:    in.Content,
		IsDraft:    true,
	}
	id, err := a.store.WriteMessage(ctx, msg)
	if err != nil {
		return fmt.Errorf("saving draft: %w", err)
	}
	fmt.Fprintf(a.out, "Saved draft %d\n", id)
	return nil
}

// messageByID loads a message or reports that it does not exist.
func (a *App) messageByID(ctx context.Context, id int64) (model.Message, error) {
	msg, ok, err := a.store.GetMessageByID(ctx, id)
	if err != nil {
		return model.Message{}, fmt.Errorf("loading message %d: %w", id, err)
	}
	if !ok {
		return model.Message{}, fmt.Errorf("message %d: %w", id, store.ErrNotFound)
	}
	return msg, nil
}

// cleanAddresses trims entries, splits comma separated ones and drops
// blanks and duplicates.
func cleanAddresses(in []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, entry := range in {
		for _, addr := range strings.Split(entry, ",") {
			addr = strings.TrimSpace(addr)
			if addr == "" || seen[addr] {
				continue
			}
			seen[addr] = true
			out = append(out, addr)
		}
	}
	return out
}
