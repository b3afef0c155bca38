package model

import "context"

// Tx exposes stores bound to one database transaction.
type Tx interface {
	Vaults() VaultStore
	Heirs() HeirStore
	Challenges() ChallengeStore
	Attestations() AttestationStore
	Assets() AssetStore
	Outbox() OutboxStore
	AuditLog() AuditLogStore
	Registrations() PendingRegistrationStore
}

// Transactor runs fn inside a transaction. The transaction commits if fn returns nil
// and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
