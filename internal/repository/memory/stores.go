package memory

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/heirkeeper-server/internal/model"
)

type vaultStore struct{ d *data }

func (s vaultStore) Create(ctx context.Context, vault model.Vault) error {
	for _, v := range s.d.vaults {
		if v.OwnerID == vault.OwnerID {
			return model.ErrVaultExists
		}
	}
	s.d.vaults[vault.ID] = vault
	return nil
}

func (s vaultStore) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (model.Vault, error) {
	for _, v := range s.d.vaults {
		if v.OwnerID == ownerID {
			return v, nil
		}
	}
	return model.Vault{}, model.ErrNotFound
}

func (s vaultStore) GetByOwnerIDForUpdate(ctx context.Context, ownerID uuid.UUID) (model.Vault, error) {
	return s.GetByOwnerID(ctx, ownerID)
}

func (s vaultStore) GetForUpdate(ctx context.Context, id uuid.UUID) (model.Vault, error) {
	v, ok := s.d.vaults[id]
	if !ok {
		return model.Vault{}, model.ErrNotFound
	}
	return v, nil
}

func (s vaultStore) ListIDsByState(ctx context.Context, states ...model.VaultState) ([]uuid.UUID, error) {
	var vaults []model.Vault
	for _, v := range s.d.vaults {
		if slices.Contains(states, v.State) {
			vaults = append(vaults, v)
		}
	}
	slices.SortFunc(vaults, func(a, b model.Vault) int { return a.CreatedAt.Compare(b.CreatedAt) })

	ids := make([]uuid.UUID, 0, len(vaults))
	for _, v := range vaults {
		ids = append(ids, v.ID)
	}
	return ids, nil
}

func (s vaultStore) Update(ctx context.Context, vault model.Vault) error {
	current, ok := s.d.vaults[vault.ID]
	if !ok {
		return model.ErrNotFound
	}
	// Key material columns are immutable after creation.
	vault.OwnerID = current.OwnerID
	vault.EncryptedVaultKey = current.EncryptedVaultKey
	vault.EncryptedRecoveryKey = current.EncryptedRecoveryKey
	vault.Salt = current.Salt
	vault.InactivityPeriodDays = current.InactivityPeriodDays
	vault.CreatedAt = current.CreatedAt
	s.d.vaults[vault.ID] = vault
	return nil
}

type heirStore struct{ d *data }

func (s heirStore) GetByID(ctx context.Context, id uuid.UUID) (model.Heir, error) {
	h, ok := s.d.heirs[id]
	if !ok {
		return model.Heir{}, model.ErrNotFound
	}
	return h, nil
}

func (s heirStore) ListByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]model.Heir, error) {
	var heirs []model.Heir
	for _, h := range s.d.heirs {
		if h.OwnerID != nil && *h.OwnerID == ownerID {
			heirs = append(heirs, h)
		}
	}
	slices.SortFunc(heirs, func(a, b model.Heir) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return heirs, nil
}

func (s heirStore) UpdateKeys(ctx context.Context, id uuid.UUID, keys model.HeirKeys) error {
	h, ok := s.d.heirs[id]
	if !ok {
		return model.ErrNotFound
	}
	h.PublicKey = keys.PublicKey
	h.EncryptedPrivateKey = keys.EncryptedPrivateKey
	h.Salt = keys.Salt
	s.d.heirs[id] = h
	return nil
}

func (s heirStore) MarkVerified(ctx context.Context, id uuid.UUID) error {
	h, ok := s.d.heirs[id]
	if !ok {
		return model.ErrNotFound
	}
	h.IsVerified = true
	s.d.heirs[id] = h
	return nil
}

type challengeStore struct{ d *data }

func (s challengeStore) Create(ctx context.Context, c model.UnlockChallenge) error {
	s.d.challenges[c.ID] = c
	return nil
}

func (s challengeStore) GetForUpdate(ctx context.Context, id uuid.UUID) (model.UnlockChallenge, error) {
	c, ok := s.d.challenges[id]
	if !ok {
		return model.UnlockChallenge{}, model.ErrNotFound
	}
	return c, nil
}

func (s challengeStore) MarkUsed(ctx context.Context, id uuid.UUID) error {
	c, ok := s.d.challenges[id]
	if !ok || c.Used {
		return model.ErrNotFound
	}
	c.Used = true
	s.d.challenges[id] = c
	return nil
}

type attestationStore struct{ d *data }

func (s attestationStore) Create(ctx context.Context, a model.UnlockAttestation) error {
	for _, existing := range s.d.attestations {
		if existing.ChallengeID == a.ChallengeID {
			return model.ErrChallengeUsed
		}
	}
	a.AttestationBlob = slices.Clone(a.AttestationBlob)
	s.d.attestations = append(s.d.attestations, a)
	return nil
}

type assetStore struct{ d *data }

func (s assetStore) Create(ctx context.Context, a model.Asset) error {
	s.d.assets = append(s.d.assets, a)
	return nil
}

func (s assetStore) ListByVaultID(ctx context.Context, vaultID uuid.UUID) ([]model.Asset, error) {
	var assets []model.Asset
	for _, a := range s.d.assets {
		if a.VaultID == vaultID {
			assets = append(assets, a)
		}
	}
	return assets, nil
}

type outboxStore struct{ d *data }

func (s outboxStore) Insert(ctx context.Context, item model.OutboxItem) error {
	s.d.seq++
	item.Payload = slices.Clone(item.Payload)
	s.d.outbox[item.ID] = item
	s.d.outboxSeq[item.ID] = s.d.seq
	return nil
}

func (s outboxStore) FetchPending(ctx context.Context, limit int, maxRetries int) ([]uuid.UUID, error) {
	items := s.d.orderedOutbox(func(item model.OutboxItem) bool {
		return item.Status == model.OutboxStatusPending && item.RetryCount < maxRetries
	})
	if len(items) > limit {
		items = items[:limit]
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids, nil
}

func (s outboxStore) GetForUpdate(ctx context.Context, id uuid.UUID) (model.OutboxItem, error) {
	item, ok := s.d.outbox[id]
	if !ok {
		return model.OutboxItem{}, model.ErrNotFound
	}
	return item, nil
}

func (s outboxStore) MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	item, ok := s.d.outbox[id]
	if !ok {
		return model.ErrNotFound
	}
	item.Status = model.OutboxStatusProcessed
	item.ProcessedAt = &processedAt
	item.Error = nil
	s.d.outbox[id] = item
	return nil
}

func (s outboxStore) RecordFailure(ctx context.Context, id uuid.UUID, retryCount int, status model.OutboxStatus, errMsg string) error {
	item, ok := s.d.outbox[id]
	if !ok {
		return model.ErrNotFound
	}
	item.RetryCount = retryCount
	item.Status = status
	item.Error = &errMsg
	s.d.outbox[id] = item
	return nil
}

func (s outboxStore) ListFailed(ctx context.Context, limit int) ([]model.OutboxItem, error) {
	items := s.d.orderedOutbox(func(item model.OutboxItem) bool {
		return item.Status == model.OutboxStatusFailed
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s outboxStore) Requeue(ctx context.Context, id uuid.UUID) error {
	item, ok := s.d.outbox[id]
	if !ok || item.Status != model.OutboxStatusFailed {
		return model.ErrNotFound
	}
	item.Status = model.OutboxStatusPending
	item.RetryCount = 0
	item.Error = nil
	s.d.outbox[id] = item
	return nil
}

type auditLogStore struct{ d *data }

func (s auditLogStore) Create(ctx context.Context, entry model.AuditLogEntry) (bool, error) {
	for _, e := range s.d.auditLog {
		if e.OutboxItemID == entry.OutboxItemID {
			return false, nil
		}
	}
	entry.Payload = slices.Clone(entry.Payload)
	s.d.auditLog = append(s.d.auditLog, entry)
	return true, nil
}

func (s auditLogStore) ListByTarget(ctx context.Context, targetType model.TargetType, targetID uuid.UUID, limit int) ([]model.AuditLogEntry, error) {
	var entries []model.AuditLogEntry
	for i := len(s.d.auditLog) - 1; i >= 0 && len(entries) < limit; i-- {
		e := s.d.auditLog[i]
		if e.TargetType == targetType && e.TargetID == targetID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

type registrationStore struct{ d *data }

func (s registrationStore) Upsert(ctx context.Context, p model.PendingRegistration) error {
	s.d.registrations[p.Email] = p
	return nil
}

func (s registrationStore) GetByEmail(ctx context.Context, email string) (model.PendingRegistration, error) {
	p, ok := s.d.registrations[email]
	if !ok {
		return model.PendingRegistration{}, model.ErrNotFound
	}
	return p, nil
}

func (s registrationStore) Consume(ctx context.Context, email string) error {
	p, ok := s.d.registrations[email]
	if !ok || p.Consumed {
		return model.ErrNotFound
	}
	p.Consumed = true
	s.d.registrations[email] = p
	return nil
}

func (s registrationStore) RecordFailedAttempt(ctx context.Context, email string) (int, error) {
	p, ok := s.d.registrations[email]
	if !ok || p.Consumed {
		return 0, model.ErrNotFound
	}
	p.Attempts++
	s.d.registrations[email] = p
	return p.Attempts, nil
}
