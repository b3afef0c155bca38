package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtroode/heirkeeper-server/internal/model"
)

var _ model.AuditLogStore = (*AuditLogRepository)(nil)

type AuditLogRepository struct {
	db Querier
}

func NewAuditLogRepository(db Querier) *AuditLogRepository {
	return &AuditLogRepository{
		db: db,
	}
}

// Create inserts the entry. It returns false if the outbox item was already promoted.
func (r *AuditLogRepository) Create(ctx context.Context, e model.AuditLogEntry) (bool, error) {
	query := `INSERT INTO audit_log (id, outbox_item_id, actor_type, actor_id, target_type, target_id,
			  event_type, event_version, summary, payload, occurred_at, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			  ON CONFLICT (outbox_item_id) DO NOTHING`

	cmd, err := r.db.Exec(ctx, query,
		e.ID, e.OutboxItemID, string(e.ActorType), e.ActorID, string(e.TargetType), e.TargetID,
		string(e.EventType), e.EventVersion, e.Summary, []byte(e.Payload), e.OccurredAt, e.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create audit log entry: %w", err)
	}

	return cmd.RowsAffected() > 0, nil
}

func (r *AuditLogRepository) ListByTarget(ctx context.Context, targetType model.TargetType, targetID uuid.UUID, limit int) ([]model.AuditLogEntry, error) {
	query := `SELECT id, outbox_item_id, actor_type, actor_id, target_type, target_id, event_type,
			  event_version, summary, payload, occurred_at, created_at
			  FROM audit_log WHERE target_type = $1 AND target_id = $2
			  ORDER BY occurred_at DESC, id
			  LIMIT $3`

	rows, err := r.db.Query(ctx, query, string(targetType), targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log: %w", err)
	}
	defer rows.Close()

	var entries []model.AuditLogEntry
	for rows.Next() {
		var (
			e       model.AuditLogEntry
			payload []byte
		)
		err := rows.Scan(
			&e.ID, &e.OutboxItemID, &e.ActorType, &e.ActorID, &e.TargetType, &e.TargetID, &e.EventType,
			&e.EventVersion, &e.Summary, &payload, &e.OccurredAt, &e.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		e.Payload = payload
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}
