package service

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/heirkeeper-server/internal/envelope"
	"github.com/dtroode/heirkeeper-server/internal/model"
	"github.com/dtroode/heirkeeper-server/internal/repository/memory"
	"github.com/dtroode/heirkeeper-server/internal/testutil"
)

var baseTime = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store  *memory.Store
	clock  *testutil.Clock
	sealer *envelope.Sealer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	sealer, err := envelope.NewSealer([]byte("service-test-secret"))
	require.NoError(t, err)

	return &fixture{
		store:  memory.NewStore(),
		clock:  testutil.NewClock(baseTime),
		sealer: sealer,
	}
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// seedVault stores an ACTIVE vault for a fresh owner, applying mutate before insertion.
func (f *fixture) seedVault(t *testing.T, mutate func(v *model.Vault)) model.Vault {
	t.Helper()

	vault := model.Vault{
		ID:                   uuid.New(),
		OwnerID:              uuid.New(),
		State:                model.VaultStateActive,
		EncryptedVaultKey:    b64("vault-key"),
		EncryptedRecoveryKey: b64("recovery-key"),
		Salt:                 b64("salt"),
		InactivityPeriodDays: model.DefaultInactivityPeriodDays,
		CreatedAt:            f.clock.Now(),
		UpdatedAt:            f.clock.Now(),
	}
	if mutate != nil {
		mutate(&vault)
	}

	err := f.store.WithinTx(context.Background(), func(ctx context.Context, tx model.Tx) error {
		return tx.Vaults().Create(ctx, vault)
	})
	require.NoError(t, err)

	return vault
}

func (f *fixture) updateVault(t *testing.T, vault model.Vault) {
	t.Helper()

	err := f.store.WithinTx(context.Background(), func(ctx context.Context, tx model.Tx) error {
		return tx.Vaults().Update(ctx, vault)
	})
	require.NoError(t, err)
}

func (f *fixture) vault(t *testing.T, id uuid.UUID) model.Vault {
	t.Helper()

	v, ok := f.store.Vault(id)
	require.True(t, ok)
	return v
}

// seedHeir links a heir to ownerID. Key material is sealed the way HeirKeys.SetupKeys stores it.
func (f *fixture) seedHeir(t *testing.T, ownerID uuid.UUID, verified, withKeys bool) model.Heir {
	t.Helper()

	id := uuid.New()
	heir := model.Heir{
		ID:         id,
		OwnerID:    &ownerID,
		Email:      id.String() + "@example.com",
		IsVerified: verified,
		CreatedAt:  f.clock.Now(),
		UpdatedAt:  f.clock.Now(),
	}
	if withKeys {
		var err error
		heir.PublicKey = "heir-public-key"
		heir.EncryptedPrivateKey, err = f.sealer.SealString(b64("private-key"))
		require.NoError(t, err)
		heir.Salt, err = f.sealer.SealString(b64("heir-salt"))
		require.NoError(t, err)
	}

	f.store.PutHeir(heir)
	return heir
}

// shareKeys seals a heir map with one entry per heir into the vault.
func (f *fixture) shareKeys(t *testing.T, vault model.Vault, heirs ...model.Heir) model.Vault {
	t.Helper()

	shares := map[string]string{}
	for _, h := range heirs {
		shares[h.ID.String()] = b64("share-" + h.ID.String())
	}
	sealed, err := f.sealer.SealJSON(shares)
	require.NoError(t, err)

	vault.EncryptedVaultKeyByHeir = sealed
	f.updateVault(t, vault)
	return vault
}

func (f *fixture) seedChallenge(t *testing.T, c model.UnlockChallenge) model.UnlockChallenge {
	t.Helper()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Challenge == "" {
		c.Challenge = b64("nonce")
	}
	if c.ExpiresAt.IsZero() {
		c.ExpiresAt = f.clock.Now().Add(model.ChallengeTTL)
	}

	err := f.store.WithinTx(context.Background(), func(ctx context.Context, tx model.Tx) error {
		return tx.Challenges().Create(ctx, c)
	})
	require.NoError(t, err)
	return c
}

func eventTypes(items []model.OutboxItem) []model.EventType {
	out := make([]model.EventType, 0, len(items))
	for _, item := range items {
		out = append(out, item.EventType)
	}
	return out
}

// faultyTransactor wraps every transaction handle before handing it to the callback.
type faultyTransactor struct {
	inner model.Transactor
	wrap  func(tx model.Tx) model.Tx
}

func (f faultyTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx model.Tx) error) error {
	return f.inner.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		return fn(ctx, f.wrap(tx))
	})
}

type auditLogFaultTx struct {
	model.Tx
	err error
}

func (t auditLogFaultTx) AuditLog() model.AuditLogStore {
	return failingAuditLog{AuditLogStore: t.Tx.AuditLog(), err: t.err}
}

type failingAuditLog struct {
	model.AuditLogStore
	err error
}

func (s failingAuditLog) Create(ctx context.Context, entry model.AuditLogEntry) (bool, error) {
	return false, s.err
}

type vaultFaultTx struct {
	model.Tx
	failID uuid.UUID
	err    error
}

func (t vaultFaultTx) Vaults() model.VaultStore {
	return failingVaults{VaultStore: t.Tx.Vaults(), failID: t.failID, err: t.err}
}

type failingVaults struct {
	model.VaultStore
	failID uuid.UUID
	err    error
}

func (s failingVaults) GetForUpdate(ctx context.Context, id uuid.UUID) (model.Vault, error) {
	if id == s.failID {
		return model.Vault{}, s.err
	}
	return s.VaultStore.GetForUpdate(ctx, id)
}

type assetFaultTx struct {
	model.Tx
	err error
}

func (t assetFaultTx) Assets() model.AssetStore {
	return failingAssets{AssetStore: t.Tx.Assets(), err: t.err}
}

type failingAssets struct {
	model.AssetStore
	err error
}

func (s failingAssets) Create(ctx context.Context, asset model.Asset) error {
	return s.err
}
