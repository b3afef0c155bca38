//go:build integration

package postgres_test

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/heirkeeper-server/internal/envelope"
	"github.com/dtroode/heirkeeper-server/internal/mocks"
	"github.com/dtroode/heirkeeper-server/internal/model"
	repo "github.com/dtroode/heirkeeper-server/internal/repository/postgres"
	"github.com/dtroode/heirkeeper-server/internal/service"
	"github.com/dtroode/heirkeeper-server/internal/testutil"
)

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// insertHeir stores a verified heir of ownerID with key material sealed by sealer.
func insertHeir(t *testing.T, conn *repo.Connection, sealer *envelope.Sealer, ownerID uuid.UUID) uuid.UUID {
	t.Helper()

	privateKey, err := sealer.SealString(b64("private-key"))
	require.NoError(t, err)
	salt, err := sealer.SealString(b64("heir-salt"))
	require.NoError(t, err)

	id := uuid.New()
	_, err = conn.Exec(context.Background(),
		`INSERT INTO heirs (id, owner_id, email, public_key, encrypted_private_key, salt, is_verified)
		 VALUES ($1, $2, $3, $4, $5, $6, TRUE)`,
		id, ownerID, id.String()+"@example.com", "heir-public-key", privateKey, salt)
	require.NoError(t, err)
	return id
}

func TestClaim_ConcurrentHeirsOnPostgres(t *testing.T) {
	ctx := context.Background()
	conn, err := repo.NewConection(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	sealer, err := envelope.NewSealer([]byte("integration-secret"))
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Microsecond)
	vault := newVault(now)
	vault.State = model.VaultStateInheritable

	heirs := []uuid.UUID{
		insertHeir(t, conn, sealer, vault.OwnerID),
		insertHeir(t, conn, sealer, vault.OwnerID),
	}
	shares := map[string]string{}
	for _, id := range heirs {
		shares[id.String()] = b64("share-" + id.String())
	}
	vault.EncryptedVaultKeyByHeir, err = sealer.SealJSON(shares)
	require.NoError(t, err)

	err = conn.WithinTx(ctx, func(ctx context.Context, tx model.Tx) error {
		return tx.Vaults().Create(ctx, vault)
	})
	require.NoError(t, err)

	svc := service.NewClaim(conn, sealer, mocks.NewBlobStorage(t), testutil.NewClock(now), testutil.MakeNoopLogger())

	challenges := make([]uuid.UUID, len(heirs))
	for i, id := range heirs {
		initiation, err := svc.Initiate(ctx, id)
		require.NoError(t, err)
		challenges[i] = initiation.ChallengeID
	}

	start := make(chan struct{})
	errs := make([]error, len(heirs))
	var wg sync.WaitGroup
	for i, id := range heirs {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.Claim(ctx, model.SubmitClaimParams{HeirID: id, ChallengeID: challenges[i], Proof: b64("proof")})
		}(i, id)
	}
	close(start)
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case model.KindOf(err) == model.KindConflict:
			conflicts++
		default:
			t.Errorf("unexpected claim error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflicts)

	got, err := repo.NewVaultRepository(conn).GetByOwnerID(ctx, vault.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, model.VaultStateClaimed, got.State)
	assert.NotNil(t, got.ClaimedAt)

	var attestations int
	err = conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM unlock_attestations WHERE vault_id = $1 AND kind = 'claim'`, vault.ID).Scan(&attestations)
	require.NoError(t, err)
	assert.Equal(t, 1, attestations)
}
