package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/heirkeeper-server/internal/mocks"
	"github.com/dtroode/heirkeeper-server/internal/model"
	"github.com/dtroode/heirkeeper-server/internal/testutil"
)

func assetParams(ownerID uuid.UUID) model.CreateAssetParams {
	return model.CreateAssetParams{
		OwnerID:       ownerID,
		Name:          "seed phrase",
		Type:          "note",
		Alg:           "AES-256-GCM",
		EncryptedData: []byte("ciphertext"),
	}
}

func TestAsset_CreateAsset(t *testing.T) {
	f := newFixture(t)
	vault := f.seedVault(t, nil)

	storage := mocks.NewBlobStorage(t)
	storage.On("Upload", mock.Anything, mock.MatchedBy(func(key string) bool {
		return len(key) > 0
	}), mock.Anything, int64(len("ciphertext"))).Return(nil).Once()

	asset, err := NewAsset(f.store, storage, f.clock, testutil.MakeNoopLogger()).CreateAsset(context.Background(), assetParams(vault.OwnerID))
	require.NoError(t, err)

	assert.Equal(t, vault.ID, asset.VaultID)
	assert.Equal(t, AssetKey(vault.ID, asset.ID), asset.S3Key)
	assert.Equal(t, int64(10), asset.Size)
	storage.AssertCalled(t, "Upload", mock.Anything, asset.S3Key, mock.Anything, int64(10))

	items := f.store.OutboxItems()
	require.Len(t, items, 1)
	assert.Equal(t, model.EventAssetCreated, items[0].EventType)
	assert.Equal(t, model.TargetAsset, items[0].TargetType)
	assert.Equal(t, asset.ID, items[0].TargetID)
}

func TestAsset_CreateAsset_ExactlyOneAuditEntry(t *testing.T) {
	f := newFixture(t)
	vault := f.seedVault(t, nil)
	ctx := context.Background()

	storage := mocks.NewBlobStorage(t)
	storage.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	asset, err := NewAsset(f.store, storage, f.clock, testutil.MakeNoopLogger()).CreateAsset(ctx, assetParams(vault.OwnerID))
	require.NoError(t, err)

	processor := NewAuditProcessor(f.store, f.clock, testutil.MakeNoopLogger())
	for i := 0; i < 3; i++ {
		_, err := processor.ProcessOutbox(ctx, 10)
		require.NoError(t, err)
	}

	entries := f.store.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, asset.ID, entries[0].TargetID)
}

func TestAsset_CreateAsset_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		state  model.VaultState
		mutate func(p *model.CreateAssetParams)
		kind   model.ErrorKind
	}{
		{name: "missing name", state: model.VaultStateActive, mutate: func(p *model.CreateAssetParams) { p.Name = "" }, kind: model.KindValidation},
		{name: "missing data", state: model.VaultStateActive, mutate: func(p *model.CreateAssetParams) { p.EncryptedData = nil }, kind: model.KindValidation},
		{name: "unknown owner", state: model.VaultStateActive, mutate: func(p *model.CreateAssetParams) { p.OwnerID = uuid.New() }, kind: model.KindNotFound},
		{name: "inheritable vault", state: model.VaultStateInheritable, mutate: func(p *model.CreateAssetParams) {}, kind: model.KindStateViolation},
		{name: "claimed vault", state: model.VaultStateClaimed, mutate: func(p *model.CreateAssetParams) {}, kind: model.KindStateViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			vault := f.seedVault(t, func(v *model.Vault) { v.State = tt.state })
			params := assetParams(vault.OwnerID)
			tt.mutate(&params)

			_, err := NewAsset(f.store, mocks.NewBlobStorage(t), f.clock, testutil.MakeNoopLogger()).CreateAsset(context.Background(), params)

			require.Error(t, err)
			assert.Equal(t, tt.kind, model.KindOf(err))
			assert.Empty(t, f.store.OutboxItems())
		})
	}
}

func TestAsset_CreateAsset_RemovesBlobWhenMetadataFails(t *testing.T) {
	f := newFixture(t)
	vault := f.seedVault(t, nil)

	storage := mocks.NewBlobStorage(t)
	storage.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	storage.On("Delete", mock.Anything, mock.Anything).Return(nil).Once()

	transactor := faultyTransactor{
		inner: f.store,
		wrap: func(tx model.Tx) model.Tx {
			return assetFaultTx{Tx: tx, err: errors.New("disk full")}
		},
	}

	_, err := NewAsset(transactor, storage, f.clock, testutil.MakeNoopLogger()).CreateAsset(context.Background(), assetParams(vault.OwnerID))

	require.Error(t, err)
	assert.Equal(t, model.KindInternal, model.KindOf(err))
	assert.Empty(t, f.store.OutboxItems())
}

func TestAsset_CreateAsset_UploadFailure(t *testing.T) {
	f := newFixture(t)
	vault := f.seedVault(t, nil)

	storage := mocks.NewBlobStorage(t)
	storage.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("bucket missing")).Once()

	_, err := NewAsset(f.store, storage, f.clock, testutil.MakeNoopLogger()).CreateAsset(context.Background(), assetParams(vault.OwnerID))

	require.Error(t, err)
	assert.Empty(t, f.store.OutboxItems())
}
