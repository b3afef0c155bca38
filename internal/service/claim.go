package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/dtroode/heirkeeper-server/internal/envelope"
	"github.com/dtroode/heirkeeper-server/internal/logger"
	"github.com/dtroode/heirkeeper-server/internal/model"
	"github.com/dtroode/heirkeeper-server/internal/vaultstate"
)

// Claim implements the heir custody hand-off: initiate, claim and asset access.
//
// The server removes only its own envelope layer from key material. The client layer
// (heir password and RSA wrapping) is returned untouched.
type Claim struct {
	transactor model.Transactor
	sealer     *envelope.Sealer
	storage    model.BlobStorage
	clock      Clock
	logger     *logger.Logger
}

func NewClaim(transactor model.Transactor, sealer *envelope.Sealer, storage model.BlobStorage, clock Clock, logger *logger.Logger) *Claim {
	return &Claim{
		transactor: transactor,
		sealer:     sealer,
		storage:    storage,
		clock:      clock,
		logger:     logger,
	}
}

// Initiate issues a claim challenge to a verified heir of an INHERITABLE vault.
func (s *Claim) Initiate(ctx context.Context, heirID uuid.UUID) (model.ClaimInitiation, error) {
	var initiation model.ClaimInitiation

	err := s.transactor.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		now := s.clock.Now()

		heir, vault, err := s.lockHeirVault(ctx, tx, heirID)
		if err != nil {
			return err
		}
		if vault.State != model.VaultStateInheritable {
			return model.NewErrStateViolation(model.ErrVaultNotClaimable)
		}
		if !heir.IsVerified {
			return model.NewErrStateViolation(model.ErrHeirNotVerified)
		}

		material, err := s.keyMaterial(heir, vault)
		if err != nil {
			return err
		}

		challenge, err := issueChallenge(ctx, tx, vault.ID, heir.ID, model.ChallengePurposeClaim, now)
		if err != nil {
			return err
		}

		err = LogIntent(ctx, tx, model.AuditEvent{
			ActorType:  model.ActorHeir,
			ActorID:    heir.ID,
			TargetType: model.TargetVault,
			TargetID:   vault.ID,
			EventType:  model.EventVaultClaimInitiated,
			Payload:    map[string]any{"challengeId": challenge.ID},
		}, now)
		if err != nil {
			return err
		}

		initiation = model.ClaimInitiation{
			ClaimKeyMaterial: material,
			ChallengeID:      challenge.ID,
			Challenge:        challenge.Challenge,
			ExpiresAt:        challenge.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		return model.ClaimInitiation{}, err
	}

	s.logger.Info("Claim service: claim initiated", "heir_id", heirID, "challenge_id", initiation.ChallengeID)
	return initiation, nil
}

// Claim consumes a claim challenge and moves the vault to CLAIMED. The proof is stored opaque.
// When two heirs race, the row lock orders them and the later one gets a conflict.
func (s *Claim) Claim(ctx context.Context, params model.SubmitClaimParams) (model.ClaimResult, error) {
	proof, err := decodeOpaque("proof", params.Proof)
	if err != nil {
		return model.ClaimResult{}, err
	}

	var result model.ClaimResult

	err = s.transactor.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		now := s.clock.Now()

		heir, vault, err := s.lockHeirVault(ctx, tx, params.HeirID)
		if err != nil {
			return err
		}
		if vault.State == model.VaultStateClaimed {
			return model.NewErrConflict(model.ErrVaultAlreadyClaimed)
		}

		challenge, err := checkChallenge(ctx, tx, params.ChallengeID, vault.ID, heir.ID, model.ChallengePurposeClaim, now)
		if err != nil {
			return err
		}
		if err := vaultstate.Transition(vault.State, model.VaultStateClaimed); err != nil {
			return err
		}

		if err := tx.Challenges().MarkUsed(ctx, challenge.ID); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return model.NewErrReplayRejected(model.ErrChallengeUsed)
			}
			return fmt.Errorf("failed to mark challenge used: %w", err)
		}

		err = tx.Attestations().Create(ctx, model.UnlockAttestation{
			ID:              uuid.New(),
			VaultID:         vault.ID,
			ChallengeID:     challenge.ID,
			ActorID:         heir.ID,
			Kind:            model.AttestationKindClaim,
			AttestationBlob: proof,
			IPAddress:       params.Meta.IPAddress,
			UserAgent:       params.Meta.UserAgent,
			CreatedAt:       now,
		})
		if errors.Is(err, model.ErrChallengeUsed) {
			return model.NewErrReplayRejected(err)
		}
		if err != nil {
			return fmt.Errorf("failed to record claim proof: %w", err)
		}

		from := vault.State
		vault.State = model.VaultStateClaimed
		vault.ClaimedAt = &now
		vault.UpdatedAt = now
		if err := tx.Vaults().Update(ctx, vault); err != nil {
			return fmt.Errorf("failed to update vault: %w", err)
		}

		err = LogIntent(ctx, tx, model.AuditEvent{
			ActorType:  model.ActorHeir,
			ActorID:    heir.ID,
			TargetType: model.TargetVault,
			TargetID:   vault.ID,
			EventType:  model.EventVaultClaimed,
			Payload: map[string]any{
				"from":        from,
				"to":          vault.State,
				"challengeId": challenge.ID,
			},
		}, now)
		if err != nil {
			return err
		}

		result = model.ClaimResult{
			VaultID:   vault.ID,
			State:     vault.State,
			ClaimedAt: now,
		}
		return nil
	})
	if err != nil {
		return model.ClaimResult{}, err
	}

	s.logger.Info("Claim service: vault claimed", "heir_id", params.HeirID, "vault_id", result.VaultID)
	return result, nil
}

// Assets returns the encrypted assets and the heir's key material of a CLAIMED vault.
func (s *Claim) Assets(ctx context.Context, heirID uuid.UUID) (model.HeirAssets, error) {
	var (
		out    model.HeirAssets
		assets []model.Asset
	)

	err := s.transactor.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		heir, vault, err := s.lockHeirVault(ctx, tx, heirID)
		if err != nil {
			return err
		}
		if vault.State != model.VaultStateClaimed {
			return model.NewErrStateViolation(model.ErrVaultNotClaimed)
		}

		material, err := s.keyMaterial(heir, vault)
		if err != nil {
			return err
		}

		assets, err = tx.Assets().ListByVaultID(ctx, vault.ID)
		if err != nil {
			return fmt.Errorf("failed to list assets: %w", err)
		}

		out = model.HeirAssets{ClaimKeyMaterial: material, VaultID: vault.ID}

		return LogIntent(ctx, tx, model.AuditEvent{
			ActorType:  model.ActorHeir,
			ActorID:    heir.ID,
			TargetType: model.TargetVault,
			TargetID:   vault.ID,
			EventType:  model.EventVaultAssetsAccessed,
			Payload:    map[string]any{"assets": len(assets)},
		}, s.clock.Now())
	})
	if err != nil {
		return model.HeirAssets{}, err
	}

	out.Assets = make([]model.AssetBlob, 0, len(assets))
	for _, asset := range assets {
		data, err := s.download(ctx, asset.S3Key)
		if err != nil {
			return model.HeirAssets{}, fmt.Errorf("failed to download asset %s: %w", asset.ID, err)
		}
		out.Assets = append(out.Assets, model.AssetBlob{Asset: asset, EncryptedData: data})
	}

	return out, nil
}

func (s *Claim) download(ctx context.Context, key string) ([]byte, error) {
	reader, err := s.storage.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

// lockHeirVault loads the heir and locks the vault of its linked owner.
func (s *Claim) lockHeirVault(ctx context.Context, tx model.Tx, heirID uuid.UUID) (model.Heir, model.Vault, error) {
	heir, err := getHeir(ctx, tx, heirID)
	if err != nil {
		return model.Heir{}, model.Vault{}, err
	}
	if heir.OwnerID == nil {
		return model.Heir{}, model.Vault{}, model.NewErrNotFound(model.ErrVaultNotFound)
	}

	vault, err := lockOwnerVault(ctx, tx, *heir.OwnerID)
	if err != nil {
		return model.Heir{}, model.Vault{}, err
	}

	return heir, vault, nil
}

// keyMaterial opens the server layer of the heir's salt, private key and vault key share.
func (s *Claim) keyMaterial(heir model.Heir, vault model.Vault) (model.ClaimKeyMaterial, error) {
	if !heir.HasKeys() || vault.EncryptedVaultKeyByHeir == "" {
		return model.ClaimKeyMaterial{}, model.NewErrStateViolation(model.ErrHeirKeyMissing)
	}

	salt, err := s.sealer.OpenString(heir.Salt)
	if err != nil {
		return model.ClaimKeyMaterial{}, fmt.Errorf("failed to open heir salt: %w", err)
	}
	privateKey, err := s.sealer.OpenString(heir.EncryptedPrivateKey)
	if err != nil {
		return model.ClaimKeyMaterial{}, fmt.Errorf("failed to open heir private key: %w", err)
	}

	var shares map[string]string
	if err := s.sealer.OpenJSON(vault.EncryptedVaultKeyByHeir, &shares); err != nil {
		return model.ClaimKeyMaterial{}, fmt.Errorf("failed to open heir key map: %w", err)
	}
	share, ok := shares[heir.ID.String()]
	if !ok {
		return model.ClaimKeyMaterial{}, model.NewErrStateViolation(model.ErrHeirKeyMissing)
	}

	return model.ClaimKeyMaterial{
		EncryptedVaultKeyForHeir: share,
		Salt:                     salt,
		EncryptedPrivateKey:      privateKey,
	}, nil
}
