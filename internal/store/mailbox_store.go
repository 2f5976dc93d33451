package store

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/postale/postale/internal/model"
)

// GetMailboxes retrieves mailboxes matching filter, ordered by identifier.
// No match yields an empty slice.
func (s *SQLiteStore) GetMailboxes(
	ctx context.Context,
	filter MailboxFilter,
) ([]model.Mailbox, error) {
	var conditions []string
	var args []interface{}

	if filter.ID != nil {
		conditions = append(conditions, s.mailboxes.Key+" = ?")
		args = append(args, *filter.ID)
	}
	if filter.URL != nil {
		conditions = append(conditions, ColMailboxURL+" = ?")
		args = append(args, *filter.URL)
	}
	if filter.Address != nil {
		conditions = append(conditions, ColMailboxAddress+" = ?")
		args = append(args, *filter.Address)
	}
	if filter.Password != nil {
		conditions = append(conditions, ColMailboxPassword+" = ?")
		args = append(args, *filter.Password)
	}

	query := s.mailboxes.selectSQL()
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY " + s.mailboxes.Key

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying mailboxes: %w", err)
	}
	defer rows.Close()

	mailboxes := []model.Mailbox{}
	for rows.Next() {
		id, data, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning mailbox row: %w", err)
		}
		m, err := mailboxFromData(id, data)
		if err != nil {
			return nil, err
		}
		mailboxes = append(mailboxes, m)
	}

	return mailboxes, rows.Err()
}

// GetMailboxByID retrieves a single mailbox. The boolean is false when no
// mailbox has that identifier.
func (s *SQLiteStore) GetMailboxByID(
	ctx context.Context,
	id int64,
) (model.Mailbox, bool, error) {
	mailboxes, err := s.GetMailboxes(ctx, MailboxFilter{ID: &id})
	if err != nil {
		return model.Mailbox{}, false, fmt.Errorf("getting mailbox %d: %w", id, err)
	}
	if len(mailboxes) == 0 {
		return model.Mailbox{}, false, nil
	}
	return mailboxes[0], true, nil
}

// WriteMailbox inserts a new mailbox and returns its identifier. Any ID
// already set on mailbox is ignored; mailboxes are not updated in place.
// Address and URL are not required to be unique.
func (s *SQLiteStore) WriteMailbox(
	ctx context.Context,
	mailbox model.Mailbox,
) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		s.mailboxes.insertSQL(), exportMailbox(mailbox)...,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting mailbox %s: %w", mailbox.Address, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading mailbox id: %w", err)
	}

	s.logger.Debug("mailbox written",
		zap.Int64("id", id), zap.String("address", mailbox.Address))
	return id, nil
}

// DeleteMailbox removes the mailbox with mailbox.ID. Messages sent from or
// to the account are kept.
func (s *SQLiteStore) DeleteMailbox(
	ctx context.Context,
	mailbox model.Mailbox,
) error {
	if mailbox.ID == 0 {
		return fmt.Errorf("deleting mailbox %s: %w", mailbox.Address, ErrInvalidID)
	}

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM "+s.mailboxes.Name+" WHERE "+s.mailboxes.Key+" = ?",
		mailbox.ID,
	)
	if err != nil {
		return fmt.Errorf("deleting mailbox %d: %w", mailbox.ID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("mailbox %d: %w", mailbox.ID, ErrNotFound)
	}
	return nil
}
