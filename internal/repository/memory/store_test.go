package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/heirkeeper-server/internal/model"
)

func testVault() model.Vault {
	return model.Vault{
		ID:                   uuid.New(),
		OwnerID:              uuid.New(),
		State:                model.VaultStateActive,
		EncryptedVaultKey:    "evk",
		EncryptedRecoveryKey: "erk",
		Salt:                 "salt",
		InactivityPeriodDays: model.DefaultInactivityPeriodDays,
		CreatedAt:            time.Now(),
	}
}

func TestStore_WithinTx_Commit(t *testing.T) {
	s := NewStore()
	v := testVault()

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx model.Tx) error {
		return tx.Vaults().Create(ctx, v)
	})
	require.NoError(t, err)

	got, ok := s.Vault(v.ID)
	require.True(t, ok)
	assert.Equal(t, v.OwnerID, got.OwnerID)
}

func TestStore_WithinTx_RollbackOnError(t *testing.T) {
	s := NewStore()
	v := testVault()
	boom := errors.New("boom")

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx model.Tx) error {
		if err := tx.Vaults().Create(ctx, v); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, ok := s.Vault(v.ID)
	assert.False(t, ok)
}

func TestStore_WithinTx_CancelledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestVaultStore_CreateDuplicateOwner(t *testing.T) {
	s := NewStore()
	v := testVault()
	ctx := context.Background()

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		return tx.Vaults().Create(ctx, v)
	}))

	dup := testVault()
	dup.OwnerID = v.OwnerID
	err := s.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		return tx.Vaults().Create(ctx, dup)
	})
	assert.ErrorIs(t, err, model.ErrVaultExists)
}

func TestVaultStore_UpdateKeepsKeyMaterial(t *testing.T) {
	s := NewStore()
	v := testVault()
	ctx := context.Background()

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		if err := tx.Vaults().Create(ctx, v); err != nil {
			return err
		}
		changed := v
		changed.EncryptedVaultKey = "other"
		changed.State = model.VaultStateGrace
		return tx.Vaults().Update(ctx, changed)
	}))

	got, _ := s.Vault(v.ID)
	assert.Equal(t, "evk", got.EncryptedVaultKey)
	assert.Equal(t, model.VaultStateGrace, got.State)
}

func TestVaultStore_ListIDsByState(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	active := testVault()
	grace := testVault()
	grace.State = model.VaultStateGrace
	claimed := testVault()
	claimed.State = model.VaultStateClaimed

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		for _, v := range []model.Vault{active, grace, claimed} {
			if err := tx.Vaults().Create(ctx, v); err != nil {
				return err
			}
		}
		ids, err := tx.Vaults().ListIDsByState(ctx, model.VaultStateActive, model.VaultStateGrace)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{active.ID, grace.ID}, ids)
		return nil
	}))
}

func TestChallengeStore_MarkUsedOnce(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	c := model.UnlockChallenge{ID: uuid.New(), VaultID: uuid.New(), Purpose: model.ChallengePurposeUnlock}

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		if err := tx.Challenges().Create(ctx, c); err != nil {
			return err
		}
		return tx.Challenges().MarkUsed(ctx, c.ID)
	}))

	err := s.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		return tx.Challenges().MarkUsed(ctx, c.ID)
	})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestOutboxStore_PendingOrderAndDeadLetter(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Now()
	first := model.OutboxItem{ID: uuid.New(), OccurredAt: now, Status: model.OutboxStatusPending}
	second := model.OutboxItem{ID: uuid.New(), OccurredAt: now, Status: model.OutboxStatusPending}
	third := model.OutboxItem{ID: uuid.New(), OccurredAt: now.Add(time.Second), Status: model.OutboxStatusPending}

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		for _, item := range []model.OutboxItem{third, first, second} {
			if err := tx.Outbox().Insert(ctx, item); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		ids, err := tx.Outbox().FetchPending(ctx, 10, model.MaxOutboxRetries)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{first.ID, second.ID, third.ID}, ids)

		ids, err = tx.Outbox().FetchPending(ctx, 1, model.MaxOutboxRetries)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{first.ID}, ids)

		return tx.Outbox().RecordFailure(ctx, first.ID, model.MaxOutboxRetries, model.OutboxStatusFailed, "boom")
	}))

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		failed, err := tx.Outbox().ListFailed(ctx, 10)
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, "boom", *failed[0].Error)

		require.NoError(t, tx.Outbox().Requeue(ctx, first.ID))
		assert.ErrorIs(t, tx.Outbox().Requeue(ctx, first.ID), model.ErrNotFound)
		return nil
	}))
}

func TestAuditLogStore_CreateIsIdempotent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	outboxID := uuid.New()
	target := uuid.New()

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		created, err := tx.AuditLog().Create(ctx, model.AuditLogEntry{ID: uuid.New(), OutboxItemID: outboxID, TargetType: model.TargetVault, TargetID: target})
		require.NoError(t, err)
		assert.True(t, created)

		created, err = tx.AuditLog().Create(ctx, model.AuditLogEntry{ID: uuid.New(), OutboxItemID: outboxID, TargetType: model.TargetVault, TargetID: target})
		require.NoError(t, err)
		assert.False(t, created)

		entries, err := tx.AuditLog().ListByTarget(ctx, model.TargetVault, target, 10)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
		return nil
	}))

	assert.Len(t, s.AuditEntries(), 1)
}

func TestRegistrationStore_Consume(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		if err := tx.Registrations().Upsert(ctx, model.PendingRegistration{Email: "a@example.com"}); err != nil {
			return err
		}
		if err := tx.Registrations().Consume(ctx, "a@example.com"); err != nil {
			return err
		}
		assert.ErrorIs(t, tx.Registrations().Consume(ctx, "a@example.com"), model.ErrNotFound)
		_, err := tx.Registrations().GetByEmail(ctx, "b@example.com")
		assert.ErrorIs(t, err, model.ErrNotFound)
		return nil
	}))
}

func TestRegistrationStore_RecordFailedAttempt(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		regs := tx.Registrations()
		if err := regs.Upsert(ctx, model.PendingRegistration{Email: "a@example.com"}); err != nil {
			return err
		}

		for want := 1; want <= 3; want++ {
			got, err := regs.RecordFailedAttempt(ctx, "a@example.com")
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}

		p, err := regs.GetByEmail(ctx, "a@example.com")
		require.NoError(t, err)
		assert.Equal(t, 3, p.Attempts)

		require.NoError(t, regs.Consume(ctx, "a@example.com"))
		_, err = regs.RecordFailedAttempt(ctx, "a@example.com")
		assert.ErrorIs(t, err, model.ErrNotFound)

		require.NoError(t, regs.Upsert(ctx, model.PendingRegistration{Email: "a@example.com"}))
		p, err = regs.GetByEmail(ctx, "a@example.com")
		require.NoError(t, err)
		assert.Zero(t, p.Attempts)
		return nil
	}))
}
