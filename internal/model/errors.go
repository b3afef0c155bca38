package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by stores when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// Rejection reasons. They are wrapped into *Error so callers can match them with errors.Is.
var (
	ErrIllegalTransition   = errors.New("illegal vault state transition")
	ErrChallengeNotFound   = errors.New("challenge not found")
	ErrChallengeUsed       = errors.New("challenge already used")
	ErrChallengeExpired    = errors.New("challenge expired")
	ErrCounterMismatch     = errors.New("unlock counter mismatch")
	ErrVaultNotFound       = errors.New("vault not found")
	ErrHeirNotFound        = errors.New("heir not found")
	ErrAssetNotFound       = errors.New("asset not found")
	ErrVaultExists         = errors.New("vault already exists")
	ErrHeirNotVerified     = errors.New("heir is not verified")
	ErrHeirKeyMissing      = errors.New("heir key material missing")
	ErrVaultNotClaimable   = errors.New("vault is not inheritable")
	ErrVaultNotClaimed     = errors.New("vault is not claimed")
	ErrVaultAlreadyClaimed = errors.New("vault already claimed")
	ErrVaultLocked         = errors.New("vault no longer accepts owner changes")
	ErrTooManyFailures     = errors.New("too many failed unlock attempts")
	ErrInvalidCode         = errors.New("invalid verification code")
	ErrTooManyCodeAttempts = errors.New("too many wrong verification codes")
)

// ErrorKind classifies domain failures.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindNotFound
	KindStateViolation
	KindReplayRejected
	KindRateLimited
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindStateViolation:
		return "state_violation"
	case KindReplayRejected:
		return "replay_rejected"
	case KindRateLimited:
		return "rate_limited"
	case KindConflict:
		return "conflict"
	default:
		return "internal_error"
	}
}

// Error is a classified domain error returned by services.
type Error struct {
	Kind       ErrorKind
	Message    string
	RetryAfter time.Time
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Message == "":
		return e.Err.Error()
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

func NewErrValidation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func NewErrNotFound(reason error) *Error {
	return &Error{Kind: KindNotFound, Err: reason}
}

func NewErrStateViolation(reason error) *Error {
	return &Error{Kind: KindStateViolation, Err: reason}
}

func NewErrReplayRejected(reason error) *Error {
	return &Error{Kind: KindReplayRejected, Err: reason}
}

func NewErrRateLimited(until time.Time) *Error {
	return &Error{Kind: KindRateLimited, Err: ErrTooManyFailures, RetryAfter: until}
}

func NewErrConflict(reason error) *Error {
	return &Error{Kind: KindConflict, Err: reason}
}
