package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/postale/postale/internal/model"
)

// DBFileName is the name of the database file inside the data directory.
const DBFileName = model.DatabaseFile

// Compile-time check
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements the Store interface on a local SQLite database.
// It holds a single connection for its whole lifetime.
type SQLiteStore struct {
	db     *sqlx.DB
	schema Schema
	logger *zap.Logger

	mailboxes  Table
	messages   Table
	recipients Table

	report Report
}

// Option configures Open.
type Option func(*options)

type options struct {
	schema Schema
	logger *zap.Logger
}

// WithLogger sets the logger used by the store and its reconciler.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSchema replaces the table declarations. The mailbox, message and
// recipient tables must still be present; Open fails otherwise.
func WithSchema(schema Schema) Option {
	return func(o *options) {
		o.schema = schema
	}
}

// Open opens (or creates) the SQLite database at dbPath and reconciles its
// tables with the schema before returning. Any failure here is fatal: the
// store is unusable without a reconciled database.
func Open(ctx context.Context, dbPath string, opts ...Option) (*SQLiteStore, error) {
	o := options{schema: DefaultSchema(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	tables := make(map[string]Table, 3)
	for _, name := range []string{TableMailbox, TableMessage, TableRecipient} {
		t, ok := o.schema.Table(name)
		if !ok {
			return nil, fmt.Errorf("schema has no %s table", name)
		}
		tables[name] = t
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// One connection: callers are serial, and an in-memory database only
	// lives as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s: %w", dbPath, err)
	}

	s := &SQLiteStore{
		db:         db,
		schema:     o.schema,
		logger:     o.logger,
		mailboxes:  tables[TableMailbox],
		messages:   tables[TableMessage],
		recipients: tables[TableRecipient],
	}

	report, err := NewReconciler(o.schema, o.logger).EnsureSchema(ctx, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("reconciling schema: %w", err)
	}
	s.report = report

	o.logger.Debug("store opened", zap.String("path", dbPath))
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SchemaReport returns what reconciliation did when the store was opened.
func (s *SQLiteStore) SchemaReport() Report {
	return s.report
}
