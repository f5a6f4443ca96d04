package message

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Repository handles message persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new message repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const messageColumns = `id, group_id, user_id, content, is_ai, reply_to_id, created_at, updated_at`

func scanMessage(row interface{ Scan(...interface{}) error }) (*Message, error) {
	msg := &Message{}
	err := row.Scan(
		&msg.ID,
		&msg.GroupID,
		&msg.UserID,
		&msg.Content,
		&msg.IsAI,
		&msg.ReplyToID,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListByGroup retrieves all messages for a group in creation order.
// Insertion order is display order; no client-side re-sorting happens.
func (r *Repository) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]*Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE group_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// GetByID retrieves a message by its ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	msg, err := scanMessage(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

// GetByIDs retrieves a set of messages in one query, keyed by ID
func (r *Repository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Message, error) {
	messages := make(map[uuid.UUID]*Message, len(ids))
	if len(ids) == 0 {
		return messages, nil
	}

	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(strIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages[msg.ID] = msg
	}

	return messages, rows.Err()
}

// Create inserts a new message row
func (r *Repository) Create(ctx context.Context, groupID, userID uuid.UUID, content string, isAI bool, replyToID *uuid.UUID) (*Message, error) {
	query := `
		INSERT INTO messages (group_id, user_id, content, is_ai, reply_to_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + messageColumns

	msg, err := scanMessage(r.db.QueryRowContext(ctx, query, groupID, userID, content, isAI, replyToID))
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	return msg, nil
}

// Delete removes a message row
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMessageNotFound
	}

	return nil
}
