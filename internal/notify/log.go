package notify

import (
	"context"

	"github.com/google/uuid"

	"github.com/dtroode/heirkeeper-server/internal/logger"
	"github.com/dtroode/heirkeeper-server/internal/model"
)

var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes notices to the structured log instead of delivering them.
type LogNotifier struct {
	logger      *logger.Logger
	revealCodes bool
}

// NewLogNotifier creates a LogNotifier. With revealCodes unset verification codes are masked.
func NewLogNotifier(logger *logger.Logger, revealCodes bool) *LogNotifier {
	return &LogNotifier{logger: logger, revealCodes: revealCodes}
}

// NotifyOwner logs a notice addressed to the vault owner.
func (n *LogNotifier) NotifyOwner(ctx context.Context, ownerID uuid.UUID, notice model.Notice) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.logger.InfoContext(ctx, "Notifier: owner notice", append(n.noticeAttrs(notice), "owner_id", ownerID)...)
	return nil
}

// NotifyHeir logs a notice addressed to a heir.
func (n *LogNotifier) NotifyHeir(ctx context.Context, heir model.Heir, notice model.Notice) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.logger.InfoContext(ctx, "Notifier: heir notice", append(n.noticeAttrs(notice), "heir_id", heir.ID, "email", heir.Email)...)
	return nil
}

func (n *LogNotifier) noticeAttrs(notice model.Notice) []any {
	attrs := []any{"kind", notice.Kind}
	if notice.VaultID != uuid.Nil {
		attrs = append(attrs, "vault_id", notice.VaultID)
	}
	if notice.MissedIntervals > 0 {
		attrs = append(attrs, "missed_intervals", notice.MissedIntervals)
	}
	if notice.Code != "" {
		code := "******"
		if n.revealCodes {
			code = notice.Code
		}
		attrs = append(attrs, "code", code)
	}
	return attrs
}
