package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	// ChallengeTTL is how long an issued challenge may be answered.
	ChallengeTTL = 5 * time.Minute
	// ChallengeSize is the nonce length in bytes.
	ChallengeSize = 32
	// MaxAttestationSize bounds opaque attestation and proof blobs.
	MaxAttestationSize = 64 * 1024
)

// ChallengePurpose binds a challenge to the protocol that issued it.
type ChallengePurpose string

const (
	ChallengePurposeUnlock ChallengePurpose = "unlock"
	ChallengePurposeClaim  ChallengePurpose = "claim"
)

// ChallengeStore persists single-use unlock challenges.
type ChallengeStore interface {
	Create(ctx context.Context, challenge UnlockChallenge) error
	GetForUpdate(ctx context.Context, id uuid.UUID) (UnlockChallenge, error)
	MarkUsed(ctx context.Context, id uuid.UUID) error
}

// UnlockChallenge is a random nonce a client must bind its proof to.
type UnlockChallenge struct {
	ID        uuid.UUID
	VaultID   uuid.UUID
	IssuedTo  uuid.UUID
	Purpose   ChallengePurpose
	Challenge string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// IssuedChallenge is returned to the owner when a challenge is issued.
type IssuedChallenge struct {
	ChallengeID          uuid.UUID
	Challenge            string
	ExpiresAt            time.Time
	CurrentUnlockCounter int64
}

// AttestationKind tells which protocol produced an attestation.
type AttestationKind string

const (
	AttestationKindUnlock AttestationKind = "unlock"
	AttestationKindClaim  AttestationKind = "claim"
)

// AttestationStore appends attestation records.
type AttestationStore interface {
	Create(ctx context.Context, attestation UnlockAttestation) error
}

// UnlockAttestation is a write-once record of a submitted proof. The blob is never parsed.
type UnlockAttestation struct {
	ID              uuid.UUID
	VaultID         uuid.UUID
	ChallengeID     uuid.UUID
	ActorID         uuid.UUID
	Kind            AttestationKind
	AttestationBlob []byte
	IPAddress       string
	UserAgent       string
	CreatedAt       time.Time
}

// RequestMeta is request metadata recorded next to attestations.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// SubmitAttestationParams contains an owner's liveness proof.
type SubmitAttestationParams struct {
	OwnerID       uuid.UUID
	ChallengeID   uuid.UUID
	UnlockCounter int64
	Attestation   string
	Meta          RequestMeta
}

// AttestationResult is returned after an accepted attestation.
type AttestationResult struct {
	UnlockCounter          int64
	State                  VaultState
	LastSuccessfulUnlockAt time.Time
}

// FailureReport is returned after a failed local unlock is reported.
type FailureReport struct {
	FailureCount  int
	RateLimited   bool
	CooldownUntil *time.Time
}
