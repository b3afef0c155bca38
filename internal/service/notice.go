package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/dtroode/heirkeeper-server/internal/logger"
	"github.com/dtroode/heirkeeper-server/internal/model"
)

// outgoing is a notice collected inside a transaction and sent after it commits.
type outgoing struct {
	ownerID uuid.UUID
	heir    *model.Heir
	notice  model.Notice
}

func ownerNotice(ownerID uuid.UUID, notice model.Notice) outgoing {
	return outgoing{ownerID: ownerID, notice: notice}
}

func heirNotices(heirs []model.Heir, notice model.Notice) []outgoing {
	out := make([]outgoing, 0, len(heirs))
	for i := range heirs {
		out = append(out, outgoing{heir: &heirs[i], notice: notice})
	}
	return out
}

// dispatch sends notices best effort. Delivery failures are logged and never roll back state.
func dispatch(ctx context.Context, notifier model.Notifier, log *logger.Logger, notices []outgoing) {
	for _, n := range notices {
		var err error
		if n.heir != nil {
			err = notifier.NotifyHeir(ctx, *n.heir, n.notice)
		} else {
			err = notifier.NotifyOwner(ctx, n.ownerID, n.notice)
		}
		if err != nil {
			log.Warn("Notification failed", "kind", n.notice.Kind, "vault_id", n.notice.VaultID, "error", err)
		}
	}
}
