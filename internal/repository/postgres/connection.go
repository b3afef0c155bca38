package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dtroode/heirkeeper-server/database"
	"github.com/dtroode/heirkeeper-server/internal/model"
)

// Querier is the subset of pgx used by repositories.
// Both *pgxpool.Pool and pgx.Tx satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ model.Transactor = (*Connection)(nil)

type Connection struct {
	*pgxpool.Pool
}

func NewConection(ctx context.Context, dsn string) (*Connection, error) {
	conf, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection pool: %w", err)
	}

	if err := database.Migrate(ctx, dsn); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &Connection{
		Pool: pool,
	}, nil
}

func (s *Connection) Close() error {
	if s.Pool != nil {
		s.Pool.Close()
	}
	return nil
}

func (s *Connection) Ping(ctx context.Context) error {
	if s.Pool == nil {
		return fmt.Errorf("connection pool is nil")
	}
	return s.Pool.Ping(ctx)
}

// WithinTx begins a read-committed transaction, runs fn with repositories bound to it, and commits
// on success or rolls back on error or panic. Panics are rethrown.
//
// Mutators read rows with SELECT ... FOR UPDATE, so concurrent transactions on the same vault are
// serialized by the row lock.
func (s *Connection) WithinTx(ctx context.Context, fn func(ctx context.Context, tx model.Tx) error) (err error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", commitErr)
		}
	}()

	err = fn(ctx, NewTx(tx))
	return err
}

// Tx binds every repository to one Querier.
type Tx struct {
	db Querier
}

var _ model.Tx = (*Tx)(nil)

// NewTx returns repositories bound to db, which is usually a pgx.Tx.
func NewTx(db Querier) *Tx {
	return &Tx{db: db}
}

func (t *Tx) Vaults() model.VaultStore {
	return NewVaultRepository(t.db)
}

func (t *Tx) Heirs() model.HeirStore {
	return NewHeirRepository(t.db)
}

func (t *Tx) Challenges() model.ChallengeStore {
	return NewChallengeRepository(t.db)
}

func (t *Tx) Attestations() model.AttestationStore {
	return NewAttestationRepository(t.db)
}

func (t *Tx) Assets() model.AssetStore {
	return NewAssetRepository(t.db)
}

func (t *Tx) Outbox() model.OutboxStore {
	return NewOutboxRepository(t.db)
}

func (t *Tx) AuditLog() model.AuditLogStore {
	return NewAuditLogRepository(t.db)
}

func (t *Tx) Registrations() model.PendingRegistrationStore {
	return NewRegistrationRepository(t.db)
}
