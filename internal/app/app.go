// Package app implements the postale commands on top of the store and the
// mail collaborators.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/postale/postale/internal/mailman"
	"github.com/postale/postale/internal/model"
	"github.com/postale/postale/internal/store"
)

// ErrUsage marks errors caused by malformed command lines.
var ErrUsage = errors.New("usage error")

// Credentials stores mailbox passwords outside the database.
type Credentials interface {
	Get(address string) (string, error)
	Set(address, password string) error
	Delete(address string) error
}

// Sender delivers a message from a mailbox.
type Sender interface {
	Send(ctx context.Context, mb model.Mailbox, msg model.Message) error
}

// Authenticator checks mailbox credentials against the mail server.
type Authenticator func(ctx context.Context, mb model.Mailbox) error

// App runs postale commands. It is not safe for concurrent use.
type App struct {
	cfg     *model.AppConfig
	store   store.Store
	out     io.Writer
	logger  *zap.Logger
	creds   Credentials
	prompt  Prompter
	auth    Authenticator
	sender  Sender
	sources mailman.SourceFactory

	// interactive enables terminal views such as the fetch --watch status screen.
	interactive bool

	// viewLogger replaces logger while a terminal view is drawing.
	viewLogger *zap.Logger
}

// Option configures an App.
type Option func(*App)

// WithOutput sets where command output is written.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

// WithInteractive enables full-screen views when output is a terminal.
func WithInteractive(on bool) Option {
	return func(a *App) { a.interactive = on }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithViewLogger sets the logger used while a full-screen view owns the
// terminal. It should not write to the console.
func WithViewLogger(l *zap.Logger) Option {
	return func(a *App) { a.viewLogger = l }
}

// WithCredentials enables keyring-backed passwords.
func WithCredentials(c Credentials) Option {
	return func(a *App) { a.creds = c }
}

// WithPrompter replaces the interactive prompts.
func WithPrompter(p Prompter) Option {
	return func(a *App) { a.prompt = p }
}

// WithAuthenticator replaces the IMAP login check.
func WithAuthenticator(f Authenticator) Option {
	return func(a *App) { a.auth = f }
}

// WithSender replaces the SMTP sender.
func WithSender(s Sender) Option {
	return func(a *App) { a.sender = s }
}

// WithSources replaces the IMAP message sources.
func WithSources(f mailman.SourceFactory) Option {
	return func(a *App) { a.sources = f }
}

// New creates an App over s. Network collaborators default to IMAP and
// SMTP configured from cfg.
func New(cfg *model.AppConfig, s store.Store, opts ...Option) *App {
	a := &App{
		cfg:     cfg,
		store:   s,
		out:        io.Discard,
		logger:     zap.NewNop(),
		viewLogger: zap.NewNop(),
		prompt:     huhPrompter{},
		sources:    mailman.IMAPSources(cfg.IMAP),
	}
	a.auth = func(ctx context.Context, mb model.Mailbox) error {
		client, err := mailman.NewIMAPClient(mb, cfg.IMAP)
		if err != nil {
			return err
		}
		return client.Authenticate(ctx)
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.sender == nil {
		a.sender = mailman.NewSMTPSender(cfg.IMAP, cfg.SMTP, a.logger)
	}
	return a
}

type command struct {
	name    string
	args    string
	summary string
	run     func(a *App, ctx context.Context, args []string) error
}

var commands = []command{
	{"login", "<url> <address> [--password p] [--keyring] [--no-verify]", "add a mailbox", (*App).login},
	{"logout", "<address>", "remove a mailbox", (*App).logout},
	{"mailboxes", "", "list mailboxes", (*App).mailboxes},
	{"inbox", "[address...] [--search q]", "list received messages", (*App).inbox},
	{"outbox", "[address...] [--search q]", "list sent messages", (*App).outbox},
	{"drafts", "[address...] [--search q]", "list drafts", (*App).drafts},
	{"view", "<id>", "show a message", (*App).view},
	{"fetch", "[address...] [--watch]", "download new mail", (*App).fetch},
	{"draft", "<address> [--to a,b] [--subject s] [--body b]", "write a new draft", (*App).draft},
	{"send", "<id...>", "send drafts", (*App).send},
	{"delete", "<id...>", "delete messages", (*App).deleteMessages},
}

// Run dispatches args[0] to its command.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		a.usage()
		return nil
	}

	i := slices.IndexFunc(commands, func(c command) bool { return c.name == args[0] })
	if i < 0 {
		a.usage()
		return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}

	cmd := commands[i]
	a.logger.Debug("running command", zap.String("command", cmd.name), zap.Int("args", len(args)-1))
	return cmd.run(a, ctx, args[1:])
}

func (a *App) usage() {
	fmt.Fprintln(a.out, "usage: postale <command> [arguments]")
	fmt.Fprintln(a.out)
	for _, c := range commands {
		fmt.Fprintf(a.out, "  %-10s %-50s %s\n", c.name, c.args, c.summary)
	}
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func (a *App) newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func parseFlags(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUsage, fs.Name(), err)
	}
	return nil
}

func parseIDs(args []string) ([]int64, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: at least one message id is required", ErrUsage)
	}
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: invalid message id %q", ErrUsage, arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
