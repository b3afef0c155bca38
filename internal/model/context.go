package model

import (
	"context"

	"github.com/google/uuid"
)

// Role is the kind of authenticated identity.
type Role string

const (
	RoleOwner Role = "owner"
	RoleHeir  Role = "heir"
	RoleAdmin Role = "admin"
)

// Principal is an authenticated identity established by the auth collaborator.
type Principal struct {
	ID   uuid.UUID
	Role Role
}

type ContextManager interface {
	SetPrincipalToContext(ctx context.Context, principal Principal) context.Context
	GetPrincipalFromContext(ctx context.Context) (Principal, bool)
}
