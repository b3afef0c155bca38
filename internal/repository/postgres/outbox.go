package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dtroode/heirkeeper-server/internal/model"
)

var _ model.OutboxStore = (*OutboxRepository)(nil)

const outboxColumns = `id, actor_type, actor_id, target_type, target_id, event_type, event_version, payload,
	occurred_at, processed_at, retry_count, status, error`

type OutboxRepository struct {
	db Querier
}

func NewOutboxRepository(db Querier) *OutboxRepository {
	return &OutboxRepository{
		db: db,
	}
}

func (r *OutboxRepository) Insert(ctx context.Context, item model.OutboxItem) error {
	query := `INSERT INTO audit_outbox (id, actor_type, actor_id, target_type, target_id, event_type,
			  event_version, payload, occurred_at, retry_count, status)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(ctx, query,
		item.ID, string(item.ActorType), item.ActorID, string(item.TargetType), item.TargetID,
		string(item.EventType), item.EventVersion, []byte(item.Payload), item.OccurredAt,
		item.RetryCount, string(item.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox item: %w", err)
	}

	return nil
}

func (r *OutboxRepository) FetchPending(ctx context.Context, limit int, maxRetries int) ([]uuid.UUID, error) {
	query := `SELECT id FROM audit_outbox
			  WHERE status = 'pending' AND retry_count < $2
			  ORDER BY occurred_at, id
			  LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit, maxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending outbox items: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

// GetForUpdate locks the item. Items locked by a concurrent processor are skipped and reported as not found.
func (r *OutboxRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (model.OutboxItem, error) {
	query := `SELECT ` + outboxColumns + ` FROM audit_outbox WHERE id = $1 FOR UPDATE SKIP LOCKED`

	item, err := scanOutboxItem(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.OutboxItem{}, model.ErrNotFound
		}
		return model.OutboxItem{}, fmt.Errorf("failed to get outbox item: %w", err)
	}

	return item, nil
}

func (r *OutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	query := `UPDATE audit_outbox SET status = 'processed', processed_at = $2, error = NULL WHERE id = $1`

	cmd, err := r.db.Exec(ctx, query, id, processedAt)
	if err != nil {
		return fmt.Errorf("failed to mark outbox item processed: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}

func (r *OutboxRepository) RecordFailure(ctx context.Context, id uuid.UUID, retryCount int, status model.OutboxStatus, errMsg string) error {
	query := `UPDATE audit_outbox SET retry_count = $2, status = $3, error = $4 WHERE id = $1`

	cmd, err := r.db.Exec(ctx, query, id, retryCount, string(status), errMsg)
	if err != nil {
		return fmt.Errorf("failed to record outbox failure: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}

func (r *OutboxRepository) ListFailed(ctx context.Context, limit int) ([]model.OutboxItem, error) {
	query := `SELECT ` + outboxColumns + ` FROM audit_outbox WHERE status = 'failed' ORDER BY occurred_at LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed outbox items: %w", err)
	}
	defer rows.Close()

	var items []model.OutboxItem
	for rows.Next() {
		item, err := scanOutboxItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *OutboxRepository) Requeue(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE audit_outbox SET status = 'pending', retry_count = 0, error = NULL
			  WHERE id = $1 AND status = 'failed'`

	cmd, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to requeue outbox item: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}

func scanOutboxItem(row scanner) (model.OutboxItem, error) {
	var (
		item    model.OutboxItem
		payload []byte
	)
	err := row.Scan(
		&item.ID, &item.ActorType, &item.ActorID, &item.TargetType, &item.TargetID, &item.EventType,
		&item.EventVersion, &payload, &item.OccurredAt, &item.ProcessedAt, &item.RetryCount, &item.Status,
		&item.Error,
	)
	item.Payload = payload
	return item, err
}
