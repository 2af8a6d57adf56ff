package domain

import (
	"context"
	"time"
)

// DefaultRole is granted to every newly registered identity.
const DefaultRole = "User"

// Identity is a credential record held by the credential store.
type Identity struct {
	ID                string
	Username          string
	Email             string
	PasswordHash      string
	EmailConfirmed    bool
	AccessFailedCount int
	LockoutEnd        *time.Time
	CreatedAt         time.Time
}

// CredentialStore manages identities, passwords, lockout and roles. It may
// live in its own database; it joins a relational transaction only when both
// share a connection string.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*Identity, error)
	FindByID(ctx context.Context, id string) (*Identity, error)
	Create(ctx context.Context, username, email, password string) (*Identity, error)
	Delete(ctx context.Context, id string) error
	CheckPassword(ctx context.Context, identity *Identity, password string) (bool, error)
	IsLockedOut(ctx context.Context, identity *Identity) (bool, error)
	IsEmailConfirmed(ctx context.Context, identity *Identity) (bool, error)
	AccessFailed(ctx context.Context, identity *Identity) error
	ResetAccessFailed(ctx context.Context, identity *Identity) error
	GetRoles(ctx context.Context, identity *Identity) ([]string, error)
	AddToRole(ctx context.Context, identity *Identity, role string) error
	RemoveFromRole(ctx context.Context, identity *Identity, role string) error
	RoleExists(ctx context.Context, role string) (bool, error)
	CreateRole(ctx context.Context, role string) error
}
