package domain

import (
	"context"
	"time"
)

// RefreshToken is one persisted refresh credential. Only a hash of the raw
// token is stored. IsUsed and IsRevoked never flip back to false.
type RefreshToken struct {
	ID         Identifier
	TokenHash  string
	ExpiryDate time.Time
	IdentityID string
	IsUsed     bool
	IsRevoked  bool
	CreatedAt  time.Time
}

// IsUsable reports whether the token may still be exchanged or revoked.
func (t RefreshToken) IsUsable(now time.Time) bool {
	return !t.IsUsed && !t.IsRevoked && now.Before(t.ExpiryDate)
}

// RefreshTokenRepository stores refresh tokens. MarkUsed and Revoke are
// conditional updates: they succeed only for a usable row.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token RefreshToken) Result[RefreshToken]
	GetByTokenHash(ctx context.Context, hash string) Result[RefreshToken]
	MarkUsed(ctx context.Context, hash string, now time.Time) Result[bool]
	Revoke(ctx context.Context, hash string, now time.Time) Result[bool]
}
