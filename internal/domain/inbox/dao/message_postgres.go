package dao

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vadim/lead-metric/internal/domain/inbox/entity"
)

// MessagePostgres implements message repository for PostgreSQL.
// Messages carry no upstream identifier, so the position within the
// thread (seq) is part of the key.
type MessagePostgres struct {
	pool *pgxpool.Pool
}

// NewMessagePostgres creates a new PostgreSQL message repository
func NewMessagePostgres(pool *pgxpool.Pool) *MessagePostgres {
	return &MessagePostgres{pool: pool}
}

const messageUpsertQuery = `
	INSERT INTO inbox_messages (thread_id, seq, sender, text, timestamp, local_time)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (thread_id, seq) DO UPDATE SET
		sender = EXCLUDED.sender,
		text = EXCLUDED.text,
		timestamp = EXCLUDED.timestamp,
		local_time = EXCLUDED.local_time
`

// UpsertBatch replaces the stored messages of a thread with msgs,
// preserving insertion order
func (r *MessagePostgres) UpsertBatch(ctx context.Context, threadID string, msgs []entity.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, msg := range msgs {
		batch.Queue(messageUpsertQuery,
			threadID,
			i,
			msg.Sender,
			msg.Text,
			msg.Timestamp,
			msg.LocalTime,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range msgs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("executing batch upsert: %w", err)
		}
	}
	return nil
}

// ListByThreadIDs retrieves the messages of each thread in insertion order
func (r *MessagePostgres) ListByThreadIDs(ctx context.Context, threadIDs []string) (map[string][]entity.Message, error) {
	out := make(map[string][]entity.Message, len(threadIDs))
	if len(threadIDs) == 0 {
		return out, nil
	}

	query := `
		SELECT thread_id, sender, text, timestamp, local_time
		FROM inbox_messages
		WHERE thread_id = ANY($1)
		ORDER BY thread_id, seq
	`

	rows, err := r.pool.Query(ctx, query, threadIDs)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var threadID string
		var msg entity.Message
		err := rows.Scan(
			&threadID,
			&msg.Sender,
			&msg.Text,
			&msg.Timestamp,
			&msg.LocalTime,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		out[threadID] = append(out[threadID], msg)
	}
	return out, nil
}

// DeleteByThreadID removes all messages of a thread
func (r *MessagePostgres) DeleteByThreadID(ctx context.Context, threadID string) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM inbox_messages WHERE thread_id = $1", threadID)
	if err != nil {
		return fmt.Errorf("deleting messages: %w", err)
	}
	return nil
}
