package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/heirkeeper-server/internal/api/http/response"
	"github.com/dtroode/heirkeeper-server/internal/logger"
	"github.com/dtroode/heirkeeper-server/internal/model"
)

// HeirKeysService defines heir key setup.
type HeirKeysService interface {
	SetupKeys(ctx context.Context, params model.HeirKeySetupParams) error
}

// VerificationService defines heir email verification.
type VerificationService interface {
	Begin(ctx context.Context, heirID uuid.UUID) error
	Confirm(ctx context.Context, heirID uuid.UUID, code string) error
}

// ClaimService defines the heir claim protocol.
type ClaimService interface {
	Initiate(ctx context.Context, heirID uuid.UUID) (model.ClaimInitiation, error)
	Claim(ctx context.Context, params model.SubmitClaimParams) (model.ClaimResult, error)
	Assets(ctx context.Context, heirID uuid.UUID) (model.HeirAssets, error)
}

// Heir handles heir endpoints.
type Heir struct {
	keys           HeirKeysService
	verification   VerificationService
	claims         ClaimService
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewHeir creates a new Heir handler.
func NewHeir(keys HeirKeysService, verification VerificationService, claims ClaimService, contextManager model.ContextManager, logger *logger.Logger) *Heir {
	return &Heir{
		keys:           keys,
		verification:   verification,
		claims:         claims,
		contextManager: contextManager,
		logger:         logger,
	}
}

type setupKeysRequest struct {
	PublicKey           string `json:"publicKey"`
	EncryptedPrivateKey string `json:"encryptedPrivateKey"`
	Salt                string `json:"salt"`
}

// SetupKeys stores the heir's key pair material.
func (h *Heir) SetupKeys(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.contextManager)
	if !ok {
		return
	}

	var req setupKeysRequest
	if err := decodeJSON(w, r, maxBodySize, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	err := h.keys.SetupKeys(r.Context(), model.HeirKeySetupParams{
		HeirID:              principal.ID,
		PublicKey:           req.PublicKey,
		EncryptedPrivateKey: req.EncryptedPrivateKey,
		Salt:                req.Salt,
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// BeginVerification sends a verification code to the heir's email.
func (h *Heir) BeginVerification(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.contextManager)
	if !ok {
		return
	}

	if err := h.verification.Begin(r.Context(), principal.ID); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

type confirmVerificationRequest struct {
	Code string `json:"code"`
}

// ConfirmVerification checks the code and marks the heir verified.
func (h *Heir) ConfirmVerification(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.contextManager)
	if !ok {
		return
	}

	var req confirmVerificationRequest
	if err := decodeJSON(w, r, maxBodySize, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	if err := h.verification.Confirm(r.Context(), principal.ID, req.Code); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type keyMaterialResponse struct {
	EncryptedVaultKeyForHeir string `json:"encryptedVaultKeyForHeir"`
	Salt                     string `json:"salt"`
	EncryptedPrivateKey      string `json:"encryptedPrivateKey"`
}

type initiateClaimResponse struct {
	keyMaterialResponse
	ChallengeID uuid.UUID `json:"challengeId"`
	Challenge   string    `json:"challenge"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func keyMaterial(m model.ClaimKeyMaterial) keyMaterialResponse {
	return keyMaterialResponse{
		EncryptedVaultKeyForHeir: m.EncryptedVaultKeyForHeir,
		Salt:                     m.Salt,
		EncryptedPrivateKey:      m.EncryptedPrivateKey,
	}
}

// InitiateClaim starts a claim and returns the heir's key material with a claim challenge.
func (h *Heir) InitiateClaim(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.contextManager)
	if !ok {
		return
	}

	initiation, err := h.claims.Initiate(r.Context(), principal.ID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	response.JSON(w, http.StatusOK, initiateClaimResponse{
		keyMaterialResponse: keyMaterial(initiation.ClaimKeyMaterial),
		ChallengeID:         initiation.ChallengeID,
		Challenge:           initiation.Challenge,
		ExpiresAt:           initiation.ExpiresAt,
	})
}

type claimRequest struct {
	ChallengeID uuid.UUID `json:"challengeId"`
	Proof       string    `json:"proof"`
}

type claimResponse struct {
	VaultID   uuid.UUID        `json:"vaultId"`
	State     model.VaultState `json:"state"`
	ClaimedAt time.Time        `json:"claimedAt"`
}

// Claim submits the heir's proof and transfers custody of the vault.
func (h *Heir) Claim(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.contextManager)
	if !ok {
		return
	}

	var req claimRequest
	if err := decodeJSON(w, r, maxBodySize, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if req.ChallengeID == uuid.Nil {
		handleError(w, r, h.logger, model.NewErrValidation("challengeId is required"))
		return
	}

	result, err := h.claims.Claim(r.Context(), model.SubmitClaimParams{
		HeirID:      principal.ID,
		ChallengeID: req.ChallengeID,
		Proof:       req.Proof,
		Meta:        requestMeta(r),
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	response.JSON(w, http.StatusOK, claimResponse{
		VaultID:   result.VaultID,
		State:     result.State,
		ClaimedAt: result.ClaimedAt,
	})
}

type heirAssetResponse struct {
	assetResponse
	EncryptedData []byte `json:"encryptedData"`
}

type heirAssetsResponse struct {
	keyMaterialResponse
	VaultID uuid.UUID           `json:"vaultId"`
	Assets  []heirAssetResponse `json:"assets"`
}

// Assets returns the claimed vault's encrypted assets and key material.
func (h *Heir) Assets(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.contextManager)
	if !ok {
		return
	}

	out, err := h.claims.Assets(r.Context(), principal.ID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	resp := heirAssetsResponse{
		keyMaterialResponse: keyMaterial(out.ClaimKeyMaterial),
		VaultID:             out.VaultID,
		Assets:              make([]heirAssetResponse, 0, len(out.Assets)),
	}
	for _, a := range out.Assets {
		resp.Assets = append(resp.Assets, heirAssetResponse{
			assetResponse: assetResponse{
				AssetID:   a.ID,
				Name:      a.Name,
				Type:      a.Type,
				Alg:       a.Alg,
				Size:      a.Size,
				CreatedAt: a.CreatedAt,
			},
			EncryptedData: a.EncryptedData,
		})
	}

	response.JSON(w, http.StatusOK, resp)
}
