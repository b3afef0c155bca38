package service

import (
	"context"
	"fmt"

	"github.com/dtroode/heirkeeper-server/internal/envelope"
	"github.com/dtroode/heirkeeper-server/internal/logger"
	"github.com/dtroode/heirkeeper-server/internal/model"
)

// HeirKeys stores heir key material under the server envelope layer.
type HeirKeys struct {
	transactor model.Transactor
	sealer     *envelope.Sealer
	clock      Clock
	logger     *logger.Logger
}

func NewHeirKeys(transactor model.Transactor, sealer *envelope.Sealer, clock Clock, logger *logger.Logger) *HeirKeys {
	return &HeirKeys{
		transactor: transactor,
		sealer:     sealer,
		clock:      clock,
		logger:     logger,
	}
}

// SetupKeys seals the client-encrypted private key and salt and replaces any earlier material.
func (s *HeirKeys) SetupKeys(ctx context.Context, params model.HeirKeySetupParams) error {
	if params.PublicKey == "" {
		return model.NewErrValidation("publicKey is required")
	}
	if err := requireCanonical("encryptedPrivateKey", params.EncryptedPrivateKey); err != nil {
		return err
	}
	if err := requireCanonical("salt", params.Salt); err != nil {
		return err
	}

	sealedKey, err := s.sealer.SealString(params.EncryptedPrivateKey)
	if err != nil {
		return fmt.Errorf("failed to seal private key: %w", err)
	}
	sealedSalt, err := s.sealer.SealString(params.Salt)
	if err != nil {
		return fmt.Errorf("failed to seal salt: %w", err)
	}

	err = s.transactor.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		if _, err := getHeir(ctx, tx, params.HeirID); err != nil {
			return err
		}

		keys := model.HeirKeys{
			PublicKey:           params.PublicKey,
			EncryptedPrivateKey: sealedKey,
			Salt:                sealedSalt,
		}
		if err := tx.Heirs().UpdateKeys(ctx, params.HeirID, keys); err != nil {
			return fmt.Errorf("failed to update heir keys: %w", err)
		}

		return LogIntent(ctx, tx, model.AuditEvent{
			ActorType:  model.ActorHeir,
			ActorID:    params.HeirID,
			TargetType: model.TargetHeir,
			TargetID:   params.HeirID,
			EventType:  model.EventHeirKeysSetUp,
		}, s.clock.Now())
	})
	if err != nil {
		return err
	}

	s.logger.Info("Heir keys service: keys set up", "heir_id", params.HeirID)
	return nil
}
