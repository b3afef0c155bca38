package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// VaultState is a node of the vault lifecycle graph.
type VaultState string

const (
	// VaultStateActive means the owner has proven liveness recently enough.
	VaultStateActive VaultState = "ACTIVE"
	// VaultStateGrace means the owner missed enough intervals and is being warned.
	VaultStateGrace VaultState = "GRACE"
	// VaultStateInheritable means heirs may start the claim protocol.
	VaultStateInheritable VaultState = "INHERITABLE"
	// VaultStateClaimed is terminal: custody was transferred to an heir.
	VaultStateClaimed VaultState = "CLAIMED"
)

// DefaultInactivityPeriodDays is used when the owner does not choose a period.
const DefaultInactivityPeriodDays = 30

// VaultStore defines persistence operations for vaults.
//
// GetForUpdate and GetByOwnerIDForUpdate lock the row until the surrounding transaction ends.
type VaultStore interface {
	Create(ctx context.Context, vault Vault) error
	GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (Vault, error)
	GetByOwnerIDForUpdate(ctx context.Context, ownerID uuid.UUID) (Vault, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (Vault, error)
	ListIDsByState(ctx context.Context, states ...VaultState) ([]uuid.UUID, error)
	Update(ctx context.Context, vault Vault) error
}

// Vault holds the owner's wrapped key material and liveness bookkeeping.
type Vault struct {
	ID                   uuid.UUID
	OwnerID              uuid.UUID
	State                VaultState
	EncryptedVaultKey    string
	EncryptedRecoveryKey string
	// EncryptedVaultKeyByHeir is a sealed envelope around a JSON map heirID -> heir-wrapped vault key.
	EncryptedVaultKeyByHeir string
	Salt                    string
	InactivityPeriodDays    int
	UnlockCounter           int64
	LastSuccessfulUnlockAt  *time.Time
	MissedIntervals         int
	GraceStartedAt          *time.Time
	UnlockFailureCount      int
	LastFailureAt           *time.Time
	ClaimedAt               *time.Time
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// AcceptsOwnerChanges reports whether the owner may still change key shares or assets.
func (v Vault) AcceptsOwnerChanges() bool {
	return v.State == VaultStateActive || v.State == VaultStateGrace
}

// CreateVaultParams contains parameters to provision a vault.
type CreateVaultParams struct {
	OwnerID              uuid.UUID
	EncryptedVaultKey    string
	EncryptedRecoveryKey string
	Salt                 string
	InactivityPeriodDays int
}

// VaultBanner is the owner-facing liveness hint derived from state and missed intervals.
type VaultBanner string

const (
	BannerNone        VaultBanner = "none"
	BannerReminder    VaultBanner = "reminder"
	BannerGrace       VaultBanner = "grace"
	BannerInheritable VaultBanner = "inheritable"
	BannerClaimed     VaultBanner = "claimed"
)

// VaultStatus is the owner dashboard view of a vault.
type VaultStatus struct {
	VaultID                uuid.UUID
	State                  VaultState
	Banner                 VaultBanner
	UnlockCounter          int64
	MissedIntervals        int
	InactivityPeriodDays   int
	LastSuccessfulUnlockAt *time.Time
	GraceStartedAt         *time.Time
	ClaimedAt              *time.Time
}

// SweepReport summarizes one liveness sweep.
type SweepReport struct {
	Scanned           int
	Skipped           int
	Reminded          int
	EnteredGrace      int
	BecameInheritable int
	Failed            int
}
