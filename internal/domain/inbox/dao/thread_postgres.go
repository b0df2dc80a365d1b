package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vadim/lead-metric/internal/domain/inbox/entity"
)

// ThreadPostgres implements thread repository for PostgreSQL
type ThreadPostgres struct {
	pool *pgxpool.Pool
}

// NewThreadPostgres creates a new PostgreSQL thread repository
func NewThreadPostgres(pool *pgxpool.Pool) *ThreadPostgres {
	return &ThreadPostgres{pool: pool}
}

const threadUpsertQuery = `
	INSERT INTO inbox_threads (
		id, account_id, lead_name, status, created_at, last_activity_at, synced_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE SET
		lead_name = EXCLUDED.lead_name,
		status = EXCLUDED.status,
		last_activity_at = EXCLUDED.last_activity_at,
		synced_at = EXCLUDED.synced_at
`

// Upsert inserts or updates a thread
func (r *ThreadPostgres) Upsert(ctx context.Context, th *entity.Thread) error {
	_, err := r.pool.Exec(ctx, threadUpsertQuery,
		th.ID,
		th.AccountID,
		th.LeadName,
		th.Status,
		th.CreatedAt,
		th.LastActivityAt,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("upserting thread: %w", err)
	}
	return nil
}

// UpsertBatch inserts or updates multiple threads
func (r *ThreadPostgres) UpsertBatch(ctx context.Context, threads []entity.Thread) error {
	if len(threads) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	now := time.Now()
	for _, th := range threads {
		batch.Queue(threadUpsertQuery,
			th.ID,
			th.AccountID,
			th.LeadName,
			th.Status,
			th.CreatedAt,
			th.LastActivityAt,
			now,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range threads {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("executing batch upsert: %w", err)
		}
	}
	return nil
}

// GetByID retrieves a thread by ID
func (r *ThreadPostgres) GetByID(ctx context.Context, id string) (*entity.Thread, error) {
	query := `
		SELECT id, account_id, lead_name, status, created_at, last_activity_at
		FROM inbox_threads
		WHERE id = $1
	`

	var th entity.Thread
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&th.ID,
		&th.AccountID,
		&th.LeadName,
		&th.Status,
		&th.CreatedAt,
		&th.LastActivityAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning thread: %w", err)
	}
	return &th, nil
}

// ListByAccount retrieves threads for an account with pagination,
// newest activity first
func (r *ThreadPostgres) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]entity.Thread, error) {
	query := `
		SELECT id, account_id, lead_name, status, created_at, last_activity_at
		FROM inbox_threads
		WHERE account_id = $1
		ORDER BY COALESCE(last_activity_at, created_at) DESC NULLS LAST
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying threads: %w", err)
	}
	defer rows.Close()

	return scanThreads(rows)
}

// ListByAccountBetween retrieves threads for an account whose activity or
// creation timestamp falls within [from, to]. Used by trend computation,
// which needs the comparison window as well as the reporting window.
func (r *ThreadPostgres) ListByAccountBetween(ctx context.Context, accountID string, from, to time.Time) ([]entity.Thread, error) {
	query := `
		SELECT id, account_id, lead_name, status, created_at, last_activity_at
		FROM inbox_threads
		WHERE account_id = $1
		  AND (
			COALESCE(last_activity_at, created_at) BETWEEN $2 AND $3
			OR created_at BETWEEN $2 AND $3
		  )
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying threads by range: %w", err)
	}
	defer rows.Close()

	return scanThreads(rows)
}

// Count returns the total count of threads for an account
func (r *ThreadPostgres) Count(ctx context.Context, accountID string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM inbox_threads WHERE account_id = $1", accountID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting threads: %w", err)
	}
	return count, nil
}

// Delete removes a thread
func (r *ThreadPostgres) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM inbox_threads WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting thread: %w", err)
	}
	return nil
}

func scanThreads(rows pgx.Rows) ([]entity.Thread, error) {
	var threads []entity.Thread
	for rows.Next() {
		var th entity.Thread
		err := rows.Scan(
			&th.ID,
			&th.AccountID,
			&th.LeadName,
			&th.Status,
			&th.CreatedAt,
			&th.LastActivityAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning thread row: %w", err)
		}
		threads = append(threads, th)
	}
	return threads, nil
}
