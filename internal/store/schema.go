package store

import (
	"fmt"
	"strings"
)

// Table and column names. SQL text is generated from the Schema; these
// constants exist so filters can name a column without spelling it twice.
const (
	TableMailbox   = "mailbox"
	TableMessage   = "message"
	TableRecipient = "recipient"

	ColID = "id"

	ColMailboxURL      = "url"
	ColMailboxAddress  = "address"
	ColMailboxPassword = "password"

	ColMessageSender  = "sender"
	ColMessageSubject = "subject"
	ColMessageContent = "content"
	ColMessageIsDraft = "is_draft"

	ColRecipientMessage = "message"
	ColRecipientAddress = "address"
)

// keyType is the declaration of every table's identifier column.
const keyType = "INTEGER PRIMARY KEY AUTOINCREMENT"

// Column is a single column declaration.
type Column struct {
	Name string
	Type string
}

// Table declares one table: its identifier column followed by its data
// columns in a fixed order. The Record Mapper relies on that order.
type Table struct {
	Name    string
	Key     string
	Columns []Column

	// Owner names the table whose rows own this table's rows through
	// OwnerColumn. When the owner is created or rebuilt, rows pointing at
	// a missing owner are deleted.
	Owner       string
	OwnerColumn string
}

// Schema is the ordered set of tables the store expects on disk.
type Schema []Table

// DefaultSchema returns the tables backing mailboxes, messages and their
// recipients.
func DefaultSchema() Schema {
	return Schema{
		{
			Name: TableMailbox,
			Key:  ColID,
			Columns: []Column{
				{Name: ColMailboxURL, Type: "VARCHAR(255)"},
				{Name: ColMailboxAddress, Type: "VARCHAR(255)"},
				{Name: ColMailboxPassword, Type: "VARCHAR(255)"},
			},
		},
		{
			Name: TableMessage,
			Key:  ColID,
			Columns: []Column{
				{Name: ColMessageSender, Type: "VARCHAR(255)"},
				{Name: ColMessageSubject, Type: "VARCHAR(998)"},
				{Name: ColMessageContent, Type: "VARCHAR(65536)"},
				{Name: ColMessageIsDraft, Type: "INTEGER"},
			},
		},
		{
			Name: TableRecipient,
			Key:  ColID,
			Columns: []Column{
				{Name: ColRecipientMessage, Type: "INTEGER"},
				{Name: ColRecipientAddress, Type: "VARCHAR(255)"},
			},
			Owner:       TableMessage,
			OwnerColumn: ColRecipientMessage,
		},
	}
}

// Table looks up a table declaration by name.
func (s Schema) Table(name string) (Table, bool) {
	for _, t := range s {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// dependents returns the tables owned by the named table.
func (s Schema) dependents(name string) []Table {
	var out []Table
	for _, t := range s {
		if t.Owner == name {
			out = append(out, t)
		}
	}
	return out
}

// ColumnNames returns the data column names in declared order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// createSQL renders the CREATE TABLE statement for t.
func (t Table) createSQL() string {
	defs := make([]string, 0, len(t.Columns)+1)
	defs = append(defs, fmt.Sprintf("%s %s", t.Key, keyType))
	for _, c := range t.Columns {
		defs = append(defs, fmt.Sprintf("%s %s", c.Name, c.Type))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", t.Name, strings.Join(defs, ",\n\t"))
}

// insertSQL renders an INSERT over the data columns.
func (t Table) insertSQL() string {
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		t.Name,
		strings.Join(t.ColumnNames(), ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(t.Columns)), ", "),
	)
}

// updateSQL renders an UPDATE of every data column keyed by identifier.
func (t Table) updateSQL() string {
	sets := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		sets[i] = c.Name + " = ?"
	}
	return fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = ?",
		t.Name, strings.Join(sets, ", "), t.Key,
	)
}

// selectSQL renders a SELECT of the identifier followed by the data
// columns, in declared order.
func (t Table) selectSQL() string {
	return fmt.Sprintf(
		"SELECT %s, %s FROM %s",
		t.Key, strings.Join(t.ColumnNames(), ", "), t.Name,
	)
}
