package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/postale/postale/internal/model"
)

// GetMessages retrieves messages matching filter, ordered by identifier,
// each with its full recipient list. Message rows and their recipients are
// read in one transaction.
func (s *SQLiteStore) GetMessages(
	ctx context.Context,
	filter MessageFilter,
) ([]model.Message, error) {
	query, args, err := s.messageQuery(filter)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	type messageRow struct {
		id   int64
		data []any
	}

	rows, err := tx.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}

	var found []messageRow
	for rows.Next() {
		id, data, err := scanRow(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		found = append(found, messageRow{id: id, data: data})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	rows.Close()

	messages := make([]model.Message, 0, len(found))
	for _, row := range found {
		recipients, err := s.recipientsFor(ctx, tx, row.id)
		if err != nil {
			return nil, err
		}
		m, err := messageFromData(row.id, row.data, recipients)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing message read: %w", err)
	}

	return messages, nil
}

// messageQuery turns filter into a SELECT over the message table.
func (s *SQLiteStore) messageQuery(filter MessageFilter) (string, []interface{}, error) {
	var conditions []string
	var args []interface{}

	recipientIn := fmt.Sprintf(
		"%s IN (SELECT %s FROM %s WHERE %s IN (?))",
		s.messages.Key, ColRecipientMessage, s.recipients.Name, ColRecipientAddress,
	)

	if len(filter.IDs) > 0 {
		conditions = append(conditions, s.messages.Key+" IN (?)")
		args = append(args, filter.IDs)
	}
	if len(filter.Mailboxes) > 0 {
		conditions = append(conditions,
			"("+ColMessageSender+" IN (?) OR "+recipientIn+")")
		args = append(args, filter.Mailboxes, filter.Mailboxes)
	}
	if len(filter.Senders) > 0 {
		conditions = append(conditions, ColMessageSender+" IN (?)")
		args = append(args, filter.Senders)
	}
	if len(filter.Recipients) > 0 {
		conditions = append(conditions, recipientIn)
		args = append(args, filter.Recipients)
	}
	if filter.IsDraft != nil {
		conditions = append(conditions, ColMessageIsDraft+" = ?")
		args = append(args, boolToInt(*filter.IsDraft))
	}
	if filter.Query != nil && *filter.Query != "" {
		conditions = append(conditions,
			"("+ColMessageSubject+" LIKE ? OR "+ColMessageContent+" LIKE ?)")
		q := "%" + *filter.Query + "%"
		args = append(args, q, q)
	}

	query := s.messages.selectSQL()
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY " + s.messages.Key

	if len(args) == 0 {
		return query, nil, nil
	}

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, fmt.Errorf("building message query: %w", err)
	}
	return s.db.Rebind(query), args, nil
}

// GetMessageByID retrieves a single message with its recipients. The
// boolean is false when no message has that identifier.
func (s *SQLiteStore) GetMessageByID(
	ctx context.Context,
	id int64,
) (model.Message, bool, error) {
	messages, err := s.GetMessages(ctx, MessageFilter{IDs: []int64{id}})
	if err != nil {
		return model.Message{}, false, fmt.Errorf("getting message %d: %w", id, err)
	}
	if len(messages) == 0 {
		return model.Message{}, false, nil
	}
	return messages[0], true, nil
}

// WriteMessage saves message and its recipients in one transaction and
// returns the message identifier. A zero ID inserts a new row; a non-zero
// ID updates that row and replaces its recipient set, failing with
// ErrNotFound if the row does not exist. On any failure nothing is kept
// and the error wraps ErrWriteFailed.
func (s *SQLiteStore) WriteMessage(
	ctx context.Context,
	message model.Message,
) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: beginning transaction: %w", ErrWriteFailed, err)
	}
	defer tx.Rollback()

	id, err := s.writeMessage(ctx, tx, message)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: committing message: %w", ErrWriteFailed, err)
	}

	s.logger.Debug("message written",
		zap.Int64("id", id), zap.Int("recipients", len(message.Recipients)))
	return id, nil
}

// WriteMessages saves every message in a single transaction and returns
// their identifiers in input order. Either all messages are saved or none.
func (s *SQLiteStore) WriteMessages(
	ctx context.Context,
	messages []model.Message,
) ([]int64, error) {
	if len(messages) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: beginning transaction: %w", ErrWriteFailed, err)
	}
	defer tx.Rollback()

	ids := make([]int64, 0, len(messages))
	for i, m := range messages {
		id, err := s.writeMessage(ctx, tx, m)
		if err != nil {
			return nil, fmt.Errorf("%w: message %d of %d: %w",
				ErrWriteFailed, i+1, len(messages), err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: committing messages: %w", ErrWriteFailed, err)
	}

	s.logger.Debug("messages written", zap.Int("count", len(ids)))
	return ids, nil
}

// writeMessage inserts or updates the message row, then writes the
// recipient rows under its identifier.
func (s *SQLiteStore) writeMessage(
	ctx context.Context,
	tx *sqlx.Tx,
	message model.Message,
) (int64, error) {
	id := message.ID

	if id == 0 {
		result, err := tx.ExecContext(ctx,
			s.messages.insertSQL(), exportMessage(message)...,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting message: %w", err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return 0, fmt.Errorf("reading message id: %w", err)
		}
	} else {
		args := append(exportMessage(message), id)
		result, err := tx.ExecContext(ctx, s.messages.updateSQL(), args...)
		if err != nil {
			return 0, fmt.Errorf("updating message %d: %w", id, err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return 0, fmt.Errorf("message %d: %w", id, ErrNotFound)
		}
		if err := s.deleteRecipientsFor(ctx, tx, id); err != nil {
			return 0, err
		}
	}

	if err := s.writeRecipientsFor(ctx, tx, id, message.Recipients); err != nil {
		return 0, err
	}

	return id, nil
}

// DeleteMessage removes the message row and every recipient row that
// references it, in one transaction.
func (s *SQLiteStore) DeleteMessage(
	ctx context.Context,
	message model.Message,
) error {
	if message.ID == 0 {
		return fmt.Errorf("deleting message: %w", ErrInvalidID)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", ErrWriteFailed, err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		"DELETE FROM "+s.messages.Name+" WHERE "+s.messages.Key+" = ?",
		message.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: deleting message %d: %w", ErrWriteFailed, message.ID, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("message %d: %w", message.ID, ErrNotFound)
	}

	if err := s.deleteRecipientsFor(ctx, tx, message.ID); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing delete: %w", ErrWriteFailed, err)
	}

	s.logger.Debug("message deleted", zap.Int64("id", message.ID))
	return nil
}

// recipientsFor returns the addresses stored for a message.
func (s *SQLiteStore) recipientsFor(
	ctx context.Context,
	q sqlx.QueryerContext,
	messageID int64,
) ([]string, error) {
	addresses := []string{}
	err := sqlx.SelectContext(ctx, q, &addresses,
		"SELECT "+ColRecipientAddress+" FROM "+s.recipients.Name+
			" WHERE "+ColRecipientMessage+" = ? ORDER BY "+s.recipients.Key,
		messageID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recipients for message %d: %w", messageID, err)
	}
	return addresses, nil
}

// writeRecipientsFor inserts one recipient row per address.
func (s *SQLiteStore) writeRecipientsFor(
	ctx context.Context,
	e sqlx.ExecerContext,
	messageID int64,
	addresses []string,
) error {
	query := s.recipients.insertSQL()
	for _, addr := range addresses {
		if _, err := e.ExecContext(ctx, query, exportRecipient(messageID, addr)...); err != nil {
			return fmt.Errorf("inserting recipient %s for message %d: %w", addr, messageID, err)
		}
	}
	return nil
}

// deleteRecipientsFor removes every recipient row of a message.
func (s *SQLiteStore) deleteRecipientsFor(
	ctx context.Context,
	e sqlx.ExecerContext,
	messageID int64,
) error {
	_, err := e.ExecContext(ctx,
		"DELETE FROM "+s.recipients.Name+" WHERE "+ColRecipientMessage+" = ?",
		messageID,
	)
	if err != nil {
		return fmt.Errorf("deleting recipients for message %d: %w", messageID, err)
	}
	return nil
}

// scanRow reads the identifier and the data columns of one row.
func scanRow(rows *sqlx.Rows) (int64, []any, error) {
	values, err := rows.SliceScan()
	if err != nil {
		return 0, nil, err
	}
	if len(values) == 0 {
		return 0, nil, fmt.Errorf("empty row")
	}
	id, err := asInt64(values[0])
	if err != nil {
		return 0, nil, fmt.Errorf("row id: %w", err)
	}
	return id, values[1:], nil
}
