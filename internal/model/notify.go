package model

import (
	"context"

	"github.com/google/uuid"
)

// NoticeKind names a notification template.
type NoticeKind string

const (
	NoticeLivenessReminder  NoticeKind = "liveness_reminder"
	NoticeGraceStartedOwner NoticeKind = "grace_started_owner"
	NoticeGraceStartedHeir  NoticeKind = "grace_started_heir"
	NoticeInheritableOwner  NoticeKind = "inheritable_owner"
	NoticeInheritableHeir   NoticeKind = "inheritable_heir"
	NoticeVerificationCode  NoticeKind = "verification_code"
)

// Notice is a message handed to the notification collaborator.
type Notice struct {
	Kind            NoticeKind
	VaultID         uuid.UUID
	MissedIntervals int
	Code            string
}

// Notifier delivers notices to owners and heirs.
type Notifier interface {
	NotifyOwner(ctx context.Context, ownerID uuid.UUID, notice Notice) error
	NotifyHeir(ctx context.Context, heir Heir, notice Notice) error
}
