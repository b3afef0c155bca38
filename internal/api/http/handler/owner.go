package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dtroode/heirkeeper-server/internal/api/http/response"
	"github.com/dtroode/heirkeeper-server/internal/logger"
	"github.com/dtroode/heirkeeper-server/internal/model"
)

// VaultService defines owner-side vault operations.
type VaultService interface {
	Provision(ctx context.Context, params model.CreateVaultParams) (model.Vault, error)
	Status(ctx context.Context, ownerID uuid.UUID) (model.VaultStatus, error)
	ShareHeirKey(ctx context.Context, params model.ShareHeirKeyParams) error
	AuditTrail(ctx context.Context, ownerID uuid.UUID, limit int) ([]model.AuditLogEntry, error)
}

// UnlockService defines the liveness challenge protocol.
type UnlockService interface {
	IssueChallenge(ctx context.Context, ownerID uuid.UUID) (model.IssuedChallenge, error)
	SubmitAttestation(ctx context.Context, params model.SubmitAttestationParams) (model.AttestationResult, error)
	ReportFailure(ctx context.Context, ownerID uuid.UUID) (model.FailureReport, error)
}

// AssetService defines encrypted asset storage.
type AssetService interface {
	CreateAsset(ctx context.Context, params model.CreateAssetParams) (model.Asset, error)
}

// Owner handles the owner dashboard endpoints.
type Owner struct {
	vaults         VaultService
	unlock         UnlockService
	assets         AssetService
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewOwner creates a new Owner handler.
func NewOwner(vaults VaultService, unlock UnlockService, assets AssetService, contextManager model.ContextManager, logger *logger.Logger) *Owner {
	return &Owner{
		vaults:         vaults,
		unlock:         unlock,
		assets:         assets,
		contextManager: contextManager,
		logger:         logger,
	}
}

type createVaultRequest struct {
	EncryptedVaultKey    string `json:"encryptedVaultKey"`
	EncryptedRecoveryKey string `json:"encryptedRecoveryKey"`
	Salt                 string `json:"salt"`
	InactivityPeriodDays int    `json:"inactivityPeriodDays"`
}

type vaultResponse struct {
	VaultID              uuid.UUID        `json:"vaultId"`
	State                model.VaultState `json:"state"`
	InactivityPeriodDays int              `json:"inactivityPeriodDays"`
	UnlockCounter        int64            `json:"unlockCounter"`
	CreatedAt            time.Time        `json:"createdAt"`
}

// CreateVault provisions the owner's vault.
func (h *Owner) CreateVault(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.contextManager)
	if !ok {
		return
	}

	var req createVaultRequest
	if err := decodeJSON(w, r, maxBodySize, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	vault, err := h.vaults.Provision(r.Context(), model.CreateVaultParams{
		OwnerID:              principal.ID,
		EncryptedVaultKey:    req.EncryptedVaultKey,
		EncryptedRecoveryKey: req.EncryptedRecoveryKey,
		Salt:                 req.Salt,
		InactivityPeriodDays: req.InactivityPeriodDays,
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	response.JSON(w, http.StatusCreated, vaultResponse{
		VaultID:              vault.ID,
		State:                vault.State,
		InactivityPeriodDays: vault.InactivityPeriodDays,
		UnlockCounter:        vault.UnlockCounter,
		CreatedAt:            vault.CreatedAt,
	})
}

type vaultStatusResponse struct {
	VaultID                uuid.UUID         `json:"vaultId"`
	State                  model.VaultState  `json:"state"`
	Banner                 model.VaultBanner `json:"banner"`
	UnlockCounter          int64             `json:"unlockCounter"`
	MissedIntervals        int               `json:"missedIntervals"`
	InactivityPeriodDays   int               `json:"inactivityPeriodDays"`
	LastSuccessfulUnlockAt *time.Time        `json:"lastSuccessfulUnlockAt"`
	GraceStartedAt         *time.Time        `json:"graceStartedAt"`
	ClaimedAt              *time.Time        `json:"claimedAt"`
}

// GetVault returns the dashboard status of the owner's vault.
func (h *Owner) GetVault(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.contextManager)
	if !ok {
		return
	}

	status, err := h.vaults.Status(r.Context(), principal.ID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	response.JSON(w, http.StatusOK, vaultStatusResponse{
		VaultID:                status.VaultID,
		State:                  status.State,
		Banner:                 status.Banner,
		UnlockCounter:          status.UnlockCounter,
		MissedIntervals:        status.MissedIntervals,
		InactivityPeriodDays:   status.InactivityPeriodDays,
		LastSuccessfulUnlockAt: status.LastSuccessfulUnlockAt,
		GraceStartedAt:         status.GraceStartedAt,
		ClaimedAt:              status.ClaimedAt,
	})
}

type challengeResponse struct {
	ChallengeID          uuid.UUID `json:"challengeId"`
	Challenge            string    `json:"challenge"`
	ExpiresAt            time.Time `json:"expiresAt"`
	CurrentUnlockCounter int64     `json:"currentUnlockCounter"`
}

// IssueChallenge issues a single-use liveness challenge.
func (h *Owner) IssueChallenge(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.contextManager)
	if !ok {
		return
	}

	issued, err := h.unlock.IssueChallenge(r.Context(), principal.ID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	response.JSON(w, http.StatusOK, challengeResponse{
		ChallengeID:          issued.ChallengeID,
		Challenge:            issued.Challenge,
		ExpiresAt:            issued.ExpiresAt,
		CurrentUnlockCounter: issued.CurrentUnlockCounter,
	})
}

type attestationRequest struct {
	ChallengeID   uuid.UUID `json:"challengeId"`
	UnlockCounter *int64    `json:"unlockCounter"`
	Attestation   string    `json:"attestation"`
}

type attestationResponse struct {
	UnlockCounter          int64            `json:"unlockCounter"`
	State                  model.VaultState `json:"state"`
	LastSuccessfulUnlockAt time.Time        `json:"lastSuccessfulUnlockAt"`
}

// SubmitAttestation accepts a liveness proof bound to a challenge and counter.
func (h *Owner) SubmitAttestation(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.contextManager)
	if !ok {
		return
	}

	var req attestationRequest
	if err := decodeJSON(w, r, maxBodySize, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if req.ChallengeID == uuid.Nil {
		handleError(w, r, h.logger, model.NewErrValidation("challengeId is required"))
		return
	}
	if req.UnlockCounter == nil {
		handleError(w, r, h.logger, model.NewErrValidation("unlockCounter is required"))
		return
	}

	result, err := h.unlock.SubmitAttestation(r.Context(), model.SubmitAttestationParams{
		OwnerID:       principal.ID,
		ChallengeID:   req.ChallengeID,
		UnlockCounter: *req.UnlockCounter,
		Attestation:   req.Attestation,
		Meta:          requestMeta(r),
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	response.JSON(w, http.StatusOK, attestationResponse{
		UnlockCounter:          result.UnlockCounter,
		State:                  result.State,
		LastSuccessfulUnlockAt: result.LastSuccessfulUnlockAt,
	})
}

type failureResponse struct {
	FailureCount  int        `json:"failureCount"`
	RateLimited   bool       `json:"rateLimited"`
	CooldownUntil *time.Time `json:"cooldownUntil,omitempty"`
}

// ReportFailure records a failed local decryption. It answers 429 once the owner is rate limited.
func (h *Owner) ReportFailure(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.contextManager)
	if !ok {
		return
	}

	report, err := h.unlock.ReportFailure(r.Context(), principal.ID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	status := http.StatusOK
	if report.RateLimited {
		status = http.StatusTooManyRequests
		if report.CooldownUntil != nil {
			setRetryAfter(w, *report.CooldownUntil)
		}
	}

	response.JSON(w, status, failureResponse{
		FailureCount:  report.FailureCount,
		RateLimited:   report.RateLimited,
		CooldownUntil: report.CooldownUntil,
	})
}

type shareHeirKeyRequest struct {
	WrappedVaultKey string `json:"wrappedVaultKey"`
}

// ShareHeirKey stores the vault key wrapped for one heir.
func (h *Owner) ShareHeirKey(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.contextManager)
	if !ok {
		return
	}

	heirID, err := uuid.Parse(chi.URLParam(r, "heirId"))
	if err != nil {
		handleError(w, r, h.logger, model.NewErrValidation("heirId must be a UUID"))
		return
	}

	var req shareHeirKeyRequest
	if err := decodeJSON(w, r, maxBodySize, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	err = h.vaults.ShareHeirKey(r.Context(), model.ShareHeirKeyParams{
		OwnerID:         principal.ID,
		HeirID:          heirID,
		WrappedVaultKey: req.WrappedVaultKey,
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type createAssetRequest struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Alg           string `json:"alg"`
	EncryptedData []byte `json:"encryptedData"`
}

type assetResponse struct {
	AssetID   uuid.UUID `json:"assetId"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Alg       string    `json:"alg"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateAsset stores an encrypted asset in the owner's vault.
func (h *Owner) CreateAsset(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.contextManager)
	if !ok {
		return
	}

	var req createAssetRequest
	if err := decodeJSON(w, r, maxAssetBodySize, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	asset, err := h.assets.CreateAsset(r.Context(), model.CreateAssetParams{
		OwnerID:       principal.ID,
		Name:          req.Name,
		Type:          req.Type,
		Alg:           req.Alg,
		EncryptedData: req.EncryptedData,
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	response.JSON(w, http.StatusCreated, assetResponse{
		AssetID:   asset.ID,
		Name:      asset.Name,
		Type:      asset.Type,
		Alg:       asset.Alg,
		Size:      asset.Size,
		CreatedAt: asset.CreatedAt,
	})
}

type auditEntryResponse struct {
	ID           uuid.UUID        `json:"id"`
	EventType    model.EventType  `json:"eventType"`
	EventVersion int              `json:"eventVersion"`
	ActorType    model.ActorType  `json:"actorType"`
	ActorID      uuid.UUID        `json:"actorId"`
	TargetType   model.TargetType `json:"targetType"`
	TargetID     uuid.UUID        `json:"targetId"`
	Summary      string           `json:"summary"`
	Payload      json.RawMessage  `json:"payload"`
	OccurredAt   time.Time        `json:"occurredAt"`
}

type auditTrailResponse struct {
	Entries []auditEntryResponse `json:"entries"`
}

// AuditTrail lists audit entries targeting the owner's vault, newest first.
func (h *Owner) AuditTrail(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.contextManager)
	if !ok {
		return
	}

	limit, err := limitParam(r)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	entries, err := h.vaults.AuditTrail(r.Context(), principal.ID, limit)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	resp := auditTrailResponse{Entries: make([]auditEntryResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, auditEntryResponse{
			ID:           e.ID,
			EventType:    e.EventType,
			EventVersion: e.EventVersion,
			ActorType:    e.ActorType,
			ActorID:      e.ActorID,
			TargetType:   e.TargetType,
			TargetID:     e.TargetID,
			Summary:      e.Summary,
			Payload:      e.Payload,
			OccurredAt:   e.OccurredAt,
		})
	}

	response.JSON(w, http.StatusOK, resp)
}
