package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/heirkeeper-server/internal/logger"
	"github.com/dtroode/heirkeeper-server/internal/model"
)

const (
	defaultDeadLetterLimit = 100
	maxListLimit           = 500
)

// LogIntent queues an audit event in tx. It must run in the same transaction as the mutation it documents.
func LogIntent(ctx context.Context, tx model.Tx, event model.AuditEvent, now time.Time) error {
	payload := json.RawMessage(`{}`)
	if event.Payload != nil {
		raw, err := json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal audit payload: %w", err)
		}
		payload = raw
	}

	version := event.EventVersion
	if version == 0 {
		version = 1
	}

	item := model.OutboxItem{
		ID:           uuid.New(),
		ActorType:    event.ActorType,
		ActorID:      event.ActorID,
		TargetType:   event.TargetType,
		TargetID:     event.TargetID,
		EventType:    event.EventType,
		EventVersion: version,
		Payload:      payload,
		OccurredAt:   now,
		Status:       model.OutboxStatusPending,
	}

	if err := tx.Outbox().Insert(ctx, item); err != nil {
		return fmt.Errorf("failed to log audit intent: %w", err)
	}

	return nil
}

var eventSummaries = map[model.EventType]string{
	model.EventVaultCreated:        "created the vault",
	model.EventVaultUnlockAttested: "attested liveness",
	model.EventVaultUnlockFailed:   "reported a failed unlock",
	model.EventVaultGraceEntered:   "moved the vault to GRACE",
	model.EventVaultInheritable:    "made the vault INHERITABLE",
	model.EventVaultHeirKeyShared:  "shared the vault key with a heir",
	model.EventVaultClaimInitiated: "initiated a claim",
	model.EventVaultClaimed:        "claimed the vault",
	model.EventVaultAssetsAccessed: "accessed the claimed assets",
	model.EventAssetCreated:        "created an asset",
	model.EventHeirKeysSetUp:       "set up heir keys",
	model.EventHeirVerified:        "verified the heir email",
	model.EventOutboxItemRequeued:  "requeued a dead-lettered audit item",
}

// Summarize renders the human-readable summary of an outbox item. It depends only on the item.
func Summarize(item model.OutboxItem) string {
	action, ok := eventSummaries[item.EventType]
	if !ok {
		action = "performed " + string(item.EventType)
	}

	return fmt.Sprintf("%s %s %s (%s %s, v%d)",
		item.ActorType, item.ActorID, action, item.TargetType, item.TargetID, item.EventVersion)
}

// AuditProcessor promotes outbox items to the audit log.
type AuditProcessor struct {
	transactor model.Transactor
	clock      Clock
	logger     *logger.Logger
}

func NewAuditProcessor(transactor model.Transactor, clock Clock, logger *logger.Logger) *AuditProcessor {
	return &AuditProcessor{
		transactor: transactor,
		clock:      clock,
		logger:     logger,
	}
}

// ProcessOutbox promotes up to batchSize pending items, each in its own transaction.
// A failed item gets its retry count incremented and is marked failed once it reaches MaxOutboxRetries.
func (p *AuditProcessor) ProcessOutbox(ctx context.Context, batchSize int) (model.ProcessStats, error) {
	var stats model.ProcessStats

	var ids []uuid.UUID
	err := p.transactor.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		var err error
		ids, err = tx.Outbox().FetchPending(ctx, batchSize, model.MaxOutboxRetries)
		return err
	})
	if err != nil {
		return stats, fmt.Errorf("failed to fetch pending outbox items: %w", err)
	}
	stats.Fetched = len(ids)

	for _, id := range ids {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		promoted, err := p.promote(ctx, id)
		if err == nil {
			if promoted {
				stats.Processed++
			}
			continue
		}

		stats.Failed++
		p.logger.Warn("Audit processor: failed to promote outbox item", "outbox_item_id", id, "error", err)

		deadLettered, recErr := p.recordFailure(ctx, id, err)
		if recErr != nil {
			p.logger.Error("Audit processor: failed to record outbox failure", "outbox_item_id", id, "error", recErr)
			continue
		}
		if deadLettered {
			stats.DeadLettered++
			p.logger.Error("Audit processor: outbox item dead-lettered", "outbox_item_id", id)
		}
	}

	return stats, nil
}

func (p *AuditProcessor) promote(ctx context.Context, id uuid.UUID) (bool, error) {
	promoted := false

	err := p.transactor.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		item, err := tx.Outbox().GetForUpdate(ctx, id)
		if errors.Is(err, model.ErrNotFound) {
			// Taken by a concurrent processor.
			return nil
		}
		if err != nil {
			return err
		}
		if item.Status != model.OutboxStatusPending {
			return nil
		}

		now := p.clock.Now()
		entry := model.AuditLogEntry{
			ID:           uuid.New(),
			OutboxItemID: item.ID,
			ActorType:    item.ActorType,
			ActorID:      item.ActorID,
			TargetType:   item.TargetType,
			TargetID:     item.TargetID,
			EventType:    item.EventType,
			EventVersion: item.EventVersion,
			Summary:      Summarize(item),
			Payload:      item.Payload,
			OccurredAt:   item.OccurredAt,
			CreatedAt:    now,
		}

		if _, err := tx.AuditLog().Create(ctx, entry); err != nil {
			return err
		}
		if err := tx.Outbox().MarkProcessed(ctx, item.ID, now); err != nil {
			return err
		}

		promoted = true
		return nil
	})

	return promoted, err
}

func (p *AuditProcessor) recordFailure(ctx context.Context, id uuid.UUID, cause error) (bool, error) {
	deadLettered := false

	err := p.transactor.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		item, err := tx.Outbox().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		retries := item.RetryCount + 1
		status := model.OutboxStatusPending
		if retries >= model.MaxOutboxRetries {
			status = model.OutboxStatusFailed
			deadLettered = true
		}

		return tx.Outbox().RecordFailure(ctx, id, retries, status, cause.Error())
	})

	return deadLettered, err
}

// ListDeadLetters returns outbox items that exhausted their retries.
func (p *AuditProcessor) ListDeadLetters(ctx context.Context, limit int) ([]model.OutboxItem, error) {
	limit = clampLimit(limit, defaultDeadLetterLimit)

	var items []model.OutboxItem
	err := p.transactor.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		var err error
		items, err = tx.Outbox().ListFailed(ctx, limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}

	return items, nil
}

// Requeue returns a dead-lettered item to the pending queue with a fresh retry budget.
func (p *AuditProcessor) Requeue(ctx context.Context, adminID uuid.UUID, id uuid.UUID) error {
	err := p.transactor.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		if err := tx.Outbox().Requeue(ctx, id); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return model.NewErrNotFound(fmt.Errorf("dead-lettered outbox item %s not found", id))
			}
			return err
		}

		return LogIntent(ctx, tx, model.AuditEvent{
			ActorType:  model.ActorAdmin,
			ActorID:    adminID,
			TargetType: model.TargetOutboxItem,
			TargetID:   id,
			EventType:  model.EventOutboxItemRequeued,
		}, p.clock.Now())
	})
	if err != nil {
		return err
	}

	p.logger.Info("Audit processor: outbox item requeued", "outbox_item_id", id, "admin_id", adminID)
	return nil
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
