package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/postale/postale/internal/mailman"
	"github.com/postale/postale/internal/render"
	"github.com/postale/postale/internal/sync"
)

func (a *App) fetch(ctx context.Context, args []string) error {
	fs := a.newFlagSet("fetch")
	watch := fs.BoolP("watch", "w", false, "keep fetching every fetch.interval_sec until interrupted")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	addrs, err := a.resolveAddresses(ctx, fs.Args())
	if err != nil {
		return err
	}
	if len(addrs) == 0 {
		fmt.Fprintln(a.out, "No mailboxes to fetch.")
		return nil
	}

	log := a.fetchLogger(*watch)
	fetcher := mailman.NewFetcher(a.store, a.sources, mailman.FetchOptionsFromConfig(a.cfg.Fetch), log)
	poller := sync.New(credentialLister{app: a, logger: log}, fetcher,
		sync.WithAddresses(addrs...),
		sync.WithInterval(time.Duration(a.cfg.Fetch.IntervalSec)*time.Second),
		sync.WithLogger(log),
	)

	if !*watch {
		results, err := poller.Poll(ctx)
		if err != nil {
			return fmt.Errorf("fetching mail: %w", err)
		}
		fmt.Fprint(a.out, render.SyncResults(results))
		return failedResults(results)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	if a.interactive {
		err := a.runWatchView(ctx, poller)
		cancel()
		if runErr := <-done; err == nil {
			err = runErr
		}
		return err
	}

	for {
		select {
		case res := <-poller.Results():
			fmt.Fprint(a.out, render.SyncResults([]sync.SyncResult{res}))
		case err := <-done:
			return err
		}
	}
}

// fetchLogger keeps console logging off the screen while the watch view
// is drawing.
func (a *App) fetchLogger(watch bool) *zap.Logger {
	if watch && a.interactive {
		return a.viewLogger
	}
	return a.logger
}

// failedResults joins the errors of failed mailboxes.
func failedResults(results []sync.SyncResult) error {
	var errs []error
	for _, r := range results {
		if r.Error != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Address, r.Error))
		}
	}
	return errors.Join(errs...)
}

func (a *App) send(ctx context.Context, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	var errs []error
	for _, id := range ids {
		if err := a.sendOne(ctx, id); err != nil {
			a.logger.Warn("send failed", zap.Int64("message", id), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(a.out, "Sent message %d\n", id)
	}
	return errors.Join(errs...)
}

// sendOne delivers draft id and then marks it sent. The message stays a
// draft when delivery fails.
func (a *App) sendOne(ctx context.Context, id int64) error {
	msg, err := a.messageByID(ctx, id)
	if err != nil {
		return err
	}
	if !msg.IsDraft {
		return fmt.Errorf("message %d is not a draft", id)
	}
	if len(msg.Recipients) == 0 {
		return fmt.Errorf("message %d: %w", id, mailman.ErrNoRecipients)
	}

	mb, ok, err := a.mailboxByAddress(ctx, msg.Sender)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("message %d: no mailbox for sender %s", id, msg.Sender)
	}
	if mb, err = a.withPassword(mb); err != nil {
		return err
	}

	if err := a.sender.Send(ctx, mb, msg); err != nil {
		return fmt.Errorf("sending message %d: %w", id, err)
	}

	msg.IsDraft = false
	if _, err := a.store.WriteMessage(ctx, msg); err != nil {
		return fmt.Errorf("marking message %d sent: %w", id, err)
	}
	return nil
}
