// Package sync keeps the local store up to date by fetching every mailbox
// in the background.
package sync

import (
	"context"
	"slices"
	"strings"
	gosync "sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/postale/postale/internal/mailman"
	"github.com/postale/postale/internal/model"
	"github.com/postale/postale/internal/store"
)

// SyncState represents the current state of a mailbox sync.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	default:
		return "idle"
	}
}

// SyncStatus holds the sync state for a single mailbox.
type SyncStatus struct {
	Address  string
	State    SyncState
	LastSync time.Time
	Error    error
}

// SyncResult reports the outcome of fetching one mailbox.
type SyncResult struct {
	Address  string
	Saved    int
	Error    error
	AuthFail bool
}

// MailboxLister lists the mailboxes to poll.
type MailboxLister interface {
	GetMailboxes(ctx context.Context, filter store.MailboxFilter) ([]model.Mailbox, error)
}

// MailFetcher downloads and saves mail. Collect may run concurrently for
// different mailboxes; Save is only ever called from one goroutine.
type MailFetcher interface {
	Collect(ctx context.Context, mb model.Mailbox) ([]model.Message, error)
	Save(ctx context.Context, mb model.Mailbox, msgs []model.Message) (int, error)
}

var _ MailFetcher = (*mailman.Fetcher)(nil)

const (
	// fetchTimeout is the maximum time allowed for a single mailbox fetch.
	fetchTimeout = 30 * time.Second

	defaultInterval = 300 * time.Second
	maxConcurrent   = 4
)

// Poller fetches every mailbox on an interval.
type Poller struct {
	mailboxes MailboxLister
	fetcher   MailFetcher
	interval  time.Duration
	addresses []string
	logger    *zap.Logger

	statuses  map[string]*SyncStatus
	resultCh  chan SyncResult
	triggerCh chan struct{}
	mu        gosync.Mutex
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the time between polls.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithAddresses restricts polling to the given mailbox addresses.
func WithAddresses(addrs ...string) Option {
	return func(p *Poller) { p.addresses = addrs }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// New creates a Poller reading mailboxes from m and fetching through f.
func New(m MailboxLister, f MailFetcher, opts ...Option) *Poller {
	p := &Poller{
		mailboxes: m,
		fetcher:   f,
		interval:  defaultInterval,
		logger:    zap.NewNop(),
		statuses:  make(map[string]*SyncStatus),
		resultCh:  make(chan SyncResult, 16),
		triggerCh: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls immediately and then on every tick or Trigger until ctx is
// cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("poll failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-p.triggerCh:
		}
	}
}

// Trigger requests an immediate poll from a running Run loop.
func (p *Poller) Trigger() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A poll is already pending.
	}
}

// Results delivers one SyncResult per mailbox per poll. Results are
// dropped when nobody reads them.
func (p *Poller) Results() <-chan SyncResult {
	return p.resultCh
}

// Statuses returns the sync status of every mailbox seen so far, ordered
// by address.
func (p *Poller) Statuses() []SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(p.statuses))
	for _, s := range p.statuses {
		statuses = append(statuses, *s)
	}
	slices.SortFunc(statuses, func(a, b SyncStatus) int {
		return strings.Compare(a.Address, b.Address)
	})
	return statuses
}

// Poll fetches all mailboxes once. Downloads run concurrently; saves run
// one after another because the store holds a single connection. Only a
// failure to list mailboxes is returned; per-mailbox failures are reported
// through the results.
func (p *Poller) Poll(ctx context.Context) ([]SyncResult, error) {
	mbs, err := p.listMailboxes(ctx)
	if err != nil {
		return nil, err
	}

	collected := make([][]model.Message, len(mbs))
	errs := make([]error, len(mbs))

	var g errgroup.Group
	g.SetLimit(maxConcurrent)
	for i, mb := range mbs {
		p.setStatus(mb.Address, SyncRunning, nil)
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
			defer cancel()
			collected[i], errs[i] = p.fetcher.Collect(fctx, mb)
			return nil
		})
	}
	_ = g.Wait()

	results := make([]SyncResult, 0, len(mbs))
	for i, mb := range mbs {
		res := SyncResult{Address: mb.Address, Error: errs[i]}
		if res.Error == nil {
			res.Saved, res.Error = p.fetcher.Save(ctx, mb, collected[i])
		}
		res.AuthFail = mailman.IsAuthError(res.Error)

		if res.Error != nil {
			p.setStatus(mb.Address, SyncError, res.Error)
			p.logger.Warn("mailbox sync failed", zap.String("mailbox", mb.Address), zap.Error(res.Error))
		} else {
			p.setStatus(mb.Address, SyncIdle, nil)
		}
		p.sendResult(res)
		results = append(results, res)
	}
	return results, nil
}

func (p *Poller) listMailboxes(ctx context.Context) ([]model.Mailbox, error) {
	mbs, err := p.mailboxes.GetMailboxes(ctx, store.MailboxFilter{})
	if err != nil {
		return nil, err
	}
	if len(p.addresses) == 0 {
		return mbs, nil
	}
	return slices.DeleteFunc(mbs, func(mb model.Mailbox) bool {
		return !slices.Contains(p.addresses, mb.Address)
	}), nil
}

// setStatus updates the sync status for a mailbox.
func (p *Poller) setStatus(addr string, state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[addr]
	if !ok {
		status = &SyncStatus{Address: addr}
		p.statuses[addr] = status
	}

	status.State = state
	status.Error = err
	if state == SyncIdle {
		status.LastSync = time.Now()
	}
}

// sendResult sends a SyncResult without blocking.
func (p *Poller) sendResult(res SyncResult) {
	select {
	case p.resultCh <- res:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}
