package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Action records what reconciliation did to a table.
type Action string

const (
	ActionUnchanged Action = "unchanged"
	ActionCreated   Action = "created"
	ActionRebuilt   Action = "rebuilt"
)

// TableResult is the outcome of reconciling one table.
type TableResult struct {
	Table  string
	Action Action

	// Diff lists the differences that caused a rebuild.
	Diff []string
}

// Report is the per-table outcome of EnsureSchema, in schema order.
type Report []TableResult

// Changed reports whether any table was created or rebuilt.
func (r Report) Changed() bool {
	for _, t := range r {
		if t.Action != ActionUnchanged {
			return true
		}
	}
	return false
}

// Reconciler brings the live database in line with a Schema.
//
// Reconciliation is destructive: a table whose live columns differ from
// the declaration in any way is dropped and recreated, and its rows are
// lost. There is no versioning or data migration.
type Reconciler struct {
	schema Schema
	logger *zap.Logger
}

// NewReconciler returns a Reconciler for schema. A nil logger discards
// output.
func NewReconciler(schema Schema, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{schema: schema, logger: logger}
}

// liveColumn is one row of pragma_table_info.
type liveColumn struct {
	Name string `db:"name"`
	Type string `db:"type"`
	PK   int    `db:"pk"`
}

// EnsureSchema checks every declared table in order. Missing tables are
// created; tables whose columns differ are dropped and recreated.
func (r *Reconciler) EnsureSchema(ctx context.Context, db *sqlx.DB) (Report, error) {
	report := make(Report, 0, len(r.schema))

	for _, table := range r.schema {
		result, err := r.reconcileTable(ctx, db, table)
		if err != nil {
			return report, err
		}
		report = append(report, result)
	}

	return report, nil
}

func (r *Reconciler) reconcileTable(
	ctx context.Context,
	db *sqlx.DB,
	table Table,
) (TableResult, error) {
	result := TableResult{Table: table.Name, Action: ActionUnchanged}

	var tableCount int
	err := db.GetContext(ctx, &tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = ?",
		table.Name,
	)
	if err != nil {
		return result, fmt.Errorf("checking %s table: %w", table.Name, err)
	}

	if tableCount == 0 {
		if err := r.replaceTable(ctx, db, table, false); err != nil {
			return result, err
		}
		r.logger.Info("created table", zap.String("table", table.Name))
		result.Action = ActionCreated
		return result, nil
	}

	var live []liveColumn
	err = db.SelectContext(ctx, &live,
		"SELECT name, type, pk FROM pragma_table_info(?)", table.Name,
	)
	if err != nil {
		return result, fmt.Errorf("reading %s schema: %w", table.Name, err)
	}

	diff := diffColumns(table, live)
	if len(diff) == 0 {
		return result, nil
	}

	r.logger.Warn("table schema mismatch, rebuilding and discarding rows",
		zap.String("table", table.Name),
		zap.Strings("diff", diff),
	)

	if err := r.replaceTable(ctx, db, table, true); err != nil {
		return result, err
	}

	result.Action = ActionRebuilt
	result.Diff = diff
	return result, nil
}

// replaceTable creates table, dropping the old one first when drop is
// set, and deletes rows of dependent tables that no longer have an owner.
// All of it happens in one transaction.
func (r *Reconciler) replaceTable(ctx context.Context, db *sqlx.DB, table Table, drop bool) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if drop {
		if _, err := tx.ExecContext(ctx, "DROP TABLE "+table.Name); err != nil {
			return fmt.Errorf("dropping %s table: %w", table.Name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, table.createSQL()); err != nil {
		return fmt.Errorf("creating %s table: %w", table.Name, err)
	}

	for _, dep := range r.schema.dependents(table.Name) {
		if err := r.dropOrphans(ctx, tx, table, dep); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// dropOrphans deletes rows of dep whose owner row is not in owner.
// Identifiers restart after a rebuild, so leftover rows would otherwise be
// picked up by the next owner written with the same id.
func (r *Reconciler) dropOrphans(ctx context.Context, tx *sqlx.Tx, owner, dep Table) error {
	var exists int
	err := tx.GetContext(ctx, &exists,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = ?",
		dep.Name,
	)
	if err != nil {
		return fmt.Errorf("checking %s table: %w", dep.Name, err)
	}
	if exists == 0 {
		return nil
	}

	res, err := tx.ExecContext(ctx, fmt.Sprintf(
		"DELETE FROM %s WHERE %s NOT IN (SELECT %s FROM %s)",
		dep.Name, dep.OwnerColumn, owner.Key, owner.Name,
	))
	if err != nil {
		return fmt.Errorf("deleting orphaned %s rows: %w", dep.Name, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		r.logger.Warn("deleted orphaned rows",
			zap.String("table", dep.Name),
			zap.Int64("rows", n),
		)
	}
	return nil
}

// diffColumns compares live columns to the declaration by name. Column
// order is not compared.
func diffColumns(table Table, live []liveColumn) []string {
	want := make(map[string]string, len(table.Columns)+1)
	want[table.Key] = "INTEGER"
	for _, c := range table.Columns {
		want[c.Name] = c.Type
	}

	var diff []string
	seen := make(map[string]bool, len(live))

	for _, col := range live {
		seen[col.Name] = true

		wantType, ok := want[col.Name]
		if !ok {
			diff = append(diff, fmt.Sprintf("unexpected column %s", col.Name))
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(col.Type), wantType) {
			diff = append(diff, fmt.Sprintf(
				"column %s has type %q, want %q", col.Name, col.Type, wantType,
			))
		}

		isKey := col.Name == table.Key
		if isKey != (col.PK > 0) {
			diff = append(diff, fmt.Sprintf("column %s key mismatch", col.Name))
		}
	}

	var missing []string
	for name := range want {
		if !seen[name] {
			missing = append(missing, fmt.Sprintf("missing column %s", name))
		}
	}
	sort.Strings(missing)

	return append(diff, missing...)
}
