// Package memory implements the storage interfaces in process memory.
//
// Transactions are serialized by a single mutex and operate on a copy of the data that replaces
// the committed state only when the callback succeeds.
package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dtroode/heirkeeper-server/internal/model"
)

var (
	_ model.Transactor = (*Store)(nil)
	_ model.Tx         = (*tx)(nil)
)

type data struct {
	vaults        map[uuid.UUID]model.Vault
	heirs         map[uuid.UUID]model.Heir
	challenges    map[uuid.UUID]model.UnlockChallenge
	attestations  []model.UnlockAttestation
	assets        []model.Asset
	outbox        map[uuid.UUID]model.OutboxItem
	outboxSeq     map[uuid.UUID]int
	auditLog      []model.AuditLogEntry
	registrations map[string]model.PendingRegistration
	seq           int
}

func newData() *data {
	return &data{
		vaults:        make(map[uuid.UUID]model.Vault),
		heirs:         make(map[uuid.UUID]model.Heir),
		challenges:    make(map[uuid.UUID]model.UnlockChallenge),
		outbox:        make(map[uuid.UUID]model.OutboxItem),
		outboxSeq:     make(map[uuid.UUID]int),
		registrations: make(map[string]model.PendingRegistration),
	}
}

func (d *data) clone() *data {
	return &data{
		vaults:        maps.Clone(d.vaults),
		heirs:         maps.Clone(d.heirs),
		challenges:    maps.Clone(d.challenges),
		attestations:  slices.Clone(d.attestations),
		assets:        slices.Clone(d.assets),
		outbox:        maps.Clone(d.outbox),
		outboxSeq:     maps.Clone(d.outboxSeq),
		auditLog:      slices.Clone(d.auditLog),
		registrations: maps.Clone(d.registrations),
		seq:           d.seq,
	}
}

// Store is an in-memory Transactor.
type Store struct {
	mu   sync.Mutex
	data *data
}

func NewStore() *Store {
	return &Store{
		data: newData(),
	}
}

// WithinTx runs fn on a private copy of the data and publishes the copy if fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx model.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.data.clone()
	if err := fn(ctx, &tx{d: work}); err != nil {
		return err
	}
	s.data = work

	return nil
}

// Ping reports whether the store can serve requests.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// PutHeir inserts or replaces a heir. Heirs are created by the auth collaborator.
func (s *Store) PutHeir(heir model.Heir) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.heirs[heir.ID] = heir
}

// Vault returns the committed vault with the given id.
func (s *Store) Vault(id uuid.UUID) (model.Vault, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data.vaults[id]
	return v, ok
}

// Heir returns the committed heir with the given id.
func (s *Store) Heir(id uuid.UUID) (model.Heir, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.data.heirs[id]
	return h, ok
}

// Challenges returns committed challenges of a vault.
func (s *Store) Challenges(vaultID uuid.UUID) []model.UnlockChallenge {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.UnlockChallenge
	for _, c := range s.data.challenges {
		if c.VaultID == vaultID {
			out = append(out, c)
		}
	}
	return out
}

// Attestations returns committed attestations in insertion order.
func (s *Store) Attestations() []model.UnlockAttestation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.data.attestations)
}

// OutboxItems returns committed outbox items in processing order.
func (s *Store) OutboxItems() []model.OutboxItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.orderedOutbox(func(model.OutboxItem) bool { return true })
}

// AuditEntries returns committed audit log entries in insertion order.
func (s *Store) AuditEntries() []model.AuditLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.data.auditLog)
}

func (d *data) orderedOutbox(keep func(model.OutboxItem) bool) []model.OutboxItem {
	var items []model.OutboxItem
	for _, item := range d.outbox {
		if keep(item) {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].OccurredAt.Equal(items[j].OccurredAt) {
			return items[i].OccurredAt.Before(items[j].OccurredAt)
		}
		return d.outboxSeq[items[i].ID] < d.outboxSeq[items[j].ID]
	})
	return items
}

type tx struct {
	d *data
}

func (t *tx) Vaults() model.VaultStore                      { return vaultStore{t.d} }
func (t *tx) Heirs() model.HeirStore                        { return heirStore{t.d} }
func (t *tx) Challenges() model.ChallengeStore              { return challengeStore{t.d} }
func (t *tx) Attestations() model.AttestationStore          { return attestationStore{t.d} }
func (t *tx) Assets() model.AssetStore                      { return assetStore{t.d} }
func (t *tx) Outbox() model.OutboxStore                     { return outboxStore{t.d} }
func (t *tx) AuditLog() model.AuditLogStore                 { return auditLogStore{t.d} }
func (t *tx) Registrations() model.PendingRegistrationStore { return registrationStore{t.d} }
