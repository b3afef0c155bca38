package model

import (
	"context"
	"time"
)

const (
	// PendingRegistrationTTL is how long a verification code stays valid.
	PendingRegistrationTTL = time.Minute * 10
	// MaxVerificationAttempts is how many wrong codes invalidate a pending verification.
	// A new code can be requested only after the invalidated one would have expired.
	MaxVerificationAttempts = 5
)

// PendingRegistrationStore persists expiring email verification tokens.
type PendingRegistrationStore interface {
	Upsert(ctx context.Context, pending PendingRegistration) error
	GetByEmail(ctx context.Context, email string) (PendingRegistration, error)
	Consume(ctx context.Context, email string) error
	// RecordFailedAttempt increments the wrong-code counter of an unconsumed registration and returns it.
	RecordFailedAttempt(ctx context.Context, email string) (int, error)
}

// PendingRegistration is an outstanding email verification.
type PendingRegistration struct {
	Email     string
	OTPHash   []byte
	ExpiresAt time.Time
	Consumed  bool
	Attempts  int
}

// LockedOut reports whether too many wrong codes were entered and the code has not expired yet.
func (p PendingRegistration) LockedOut(now time.Time) bool {
	return p.Attempts >= MaxVerificationAttempts && now.Before(p.ExpiresAt)
}
