package messages

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/chatrelay/internal/dbx"
	"github.com/dmitrijs2005/chatrelay/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Save(ctx context.Context, sender, receiver, content string) (*models.Message, error) {

	query :=
		`INSERT INTO messages (sender, receiver, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, sent_at
		 `

	msg := &models.Message{Sender: sender, Receiver: receiver, Content: content}
	err := r.db.QueryRowContext(ctx, query, sender, receiver, content).
		Scan(&msg.ID, &msg.SentAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return msg, nil
}

// History selects the newest rows and reverses them in memory, so the
// caller sees chronological order while LIMIT still prunes old traffic.
// Ordering is by id: ids are assigned in insertion order, which also
// breaks timestamp ties.
func (r *PostgresRepository) History(ctx context.Context, username string, limit int) ([]*models.Message, error) {

	query :=
		`SELECT id, sender, receiver, content, sent_at, delivered FROM messages
		 WHERE sender = $1 OR receiver = $1
		 ORDER BY id DESC
		 LIMIT $2
		 `

	rows, err := r.db.QueryContext(ctx, query, username, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *PostgresRepository) Undelivered(ctx context.Context, username string) ([]*models.Message, error) {

	query :=
		`SELECT id, sender, receiver, content, sent_at, delivered FROM messages
		 WHERE receiver = $1 AND NOT delivered
		 ORDER BY id
		 `

	rows, err := r.db.QueryContext(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (r *PostgresRepository) MarkDelivered(ctx context.Context, username string) error {

	query :=
		`UPDATE messages SET delivered = TRUE
		 WHERE receiver = $1 AND NOT delivered
		 `

	if _, err := r.db.ExecContext(ctx, query, username); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Stats(ctx context.Context, username string) (*models.UserStats, error) {

	query :=
		`SELECT COUNT(*), MAX(sent_at) FROM messages
		 WHERE sender = $1
		 `

	stats := &models.UserStats{}
	var last sql.NullTime
	err := r.db.QueryRowContext(ctx, query, username).Scan(&stats.SentCount, &last)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if last.Valid {
		stats.LastSent = last.Time
	}

	return stats, nil
}

func scanMessages(rows *sql.Rows) ([]*models.Message, error) {
	var out []*models.Message
	for rows.Next() {
		m := &models.Message{}
		if err := rows.Scan(&m.ID, &m.Sender, &m.Receiver, &m.Content, &m.SentAt, &m.Delivered); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
