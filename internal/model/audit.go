package model

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MaxOutboxRetries is how many failed promotions an outbox item tolerates before it is dead-lettered.
const MaxOutboxRetries = 5

// OutboxStatus is the processing status of an outbox item.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// ActorType identifies who performed an audited action.
type ActorType string

const (
	ActorOwner  ActorType = "owner"
	ActorHeir   ActorType = "heir"
	ActorSystem ActorType = "system"
	ActorAdmin  ActorType = "admin"
)

// TargetType identifies what an audited action touched.
type TargetType string

const (
	TargetVault      TargetType = "vault"
	TargetHeir       TargetType = "heir"
	TargetAsset      TargetType = "asset"
	TargetOutboxItem TargetType = "outbox_item"
)

// EventType names an audited action.
type EventType string

const (
	EventVaultCreated        EventType = "vault.created"
	EventVaultUnlockAttested EventType = "vault.unlock_attested"
	EventVaultUnlockFailed   EventType = "vault.unlock_failed"
	EventVaultGraceEntered   EventType = "vault.grace_entered"
	EventVaultInheritable    EventType = "vault.inheritable"
	EventVaultHeirKeyShared  EventType = "vault.heir_key_shared"
	EventVaultClaimInitiated EventType = "vault.claim_initiated"
	EventVaultClaimed        EventType = "vault.claimed"
	EventVaultAssetsAccessed EventType = "vault.assets_accessed"
	EventAssetCreated        EventType = "asset.created"
	EventHeirKeysSetUp       EventType = "heir.keys_set_up"
	EventHeirVerified        EventType = "heir.verified"
	EventOutboxItemRequeued  EventType = "audit.outbox_requeued"
)

// SystemActorID is used as actor id for scheduler-driven events.
var SystemActorID = uuid.Nil

// AuditEvent is an audit intent recorded next to the mutation it documents.
type AuditEvent struct {
	ActorType    ActorType
	ActorID      uuid.UUID
	TargetType   TargetType
	TargetID     uuid.UUID
	EventType    EventType
	EventVersion int
	Payload      any
}

// OutboxStore persists audit intents.
//
// FetchPending returns ids only; each item is then locked and promoted in its own transaction.
type OutboxStore interface {
	Insert(ctx context.Context, item OutboxItem) error
	FetchPending(ctx context.Context, limit int, maxRetries int) ([]uuid.UUID, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (OutboxItem, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error
	RecordFailure(ctx context.Context, id uuid.UUID, retryCount int, status OutboxStatus, errMsg string) error
	ListFailed(ctx context.Context, limit int) ([]OutboxItem, error)
	Requeue(ctx context.Context, id uuid.UUID) error
}

// OutboxItem is an unpromoted (or dead-lettered) audit intent.
type OutboxItem struct {
	ID           uuid.UUID
	ActorType    ActorType
	ActorID      uuid.UUID
	TargetType   TargetType
	TargetID     uuid.UUID
	EventType    EventType
	EventVersion int
	Payload      json.RawMessage
	OccurredAt   time.Time
	ProcessedAt  *time.Time
	RetryCount   int
	Status       OutboxStatus
	Error        *string
}

// AuditLogStore persists promoted audit entries.
type AuditLogStore interface {
	// Create inserts the entry unless one already exists for the same outbox item.
	Create(ctx context.Context, entry AuditLogEntry) (bool, error)
	ListByTarget(ctx context.Context, targetType TargetType, targetID uuid.UUID, limit int) ([]AuditLogEntry, error)
}

// AuditLogEntry is the immutable projection of a processed outbox item.
type AuditLogEntry struct {
	ID           uuid.UUID
	OutboxItemID uuid.UUID
	ActorType    ActorType
	ActorID      uuid.UUID
	TargetType   TargetType
	TargetID     uuid.UUID
	EventType    EventType
	EventVersion int
	Summary      string
	Payload      json.RawMessage
	OccurredAt   time.Time
	CreatedAt    time.Time
}

// ProcessStats summarizes one outbox processing pass.
type ProcessStats struct {
	Fetched      int
	Processed    int
	Failed       int
	DeadLettered int
}
