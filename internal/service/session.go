package service

import (
	"context"

	"github.com/msomdec/postbook/internal/domain"
)

// errInvalidRefreshToken is the only failure a caller sees for a refresh
// token that is unknown, used, revoked or expired.
var errInvalidRefreshToken = domain.NewError(domain.Unauthorized, "invalid or expired refresh token")

// Rotation is the outcome of exchanging a refresh token.
type Rotation struct {
	IdentityID   string
	RefreshToken string
}

// SessionManager owns the refresh-token lifecycle: Active, then either Used
// (rotated) or Revoked (logged out). Rows are never deleted.
type SessionManager struct {
	tokens *TokenService
	repo   domain.RefreshTokenRepository
	errs   *domain.ErrorHandler
}

// NewSessionManager creates a new SessionManager.
func NewSessionManager(tokens *TokenService, repo domain.RefreshTokenRepository, errs *domain.ErrorHandler) *SessionManager {
	if errs == nil {
		errs = domain.NewErrorHandler(nil)
	}
	return &SessionManager{tokens: tokens, repo: repo, errs: errs}
}

// Issue persists a fresh Active token for identityID and returns the raw value.
func (m *SessionManager) Issue(ctx context.Context, identityID string) domain.Result[string] {
	const op = "SessionManager.Issue"
	if e, done := domain.CheckContext(ctx, op); done {
		return domain.Failure[string](e)
	}

	raw, err := m.tokens.IssueRefreshToken()
	if err != nil {
		return domain.Failure[string](m.errs.Handle(ctx, op, err))
	}
	created := m.repo.Create(ctx, domain.RefreshToken{
		ID:         domain.GenerateIdentifier(),
		TokenHash:  HashRefreshToken(raw),
		ExpiryDate: m.tokens.RefreshTokenExpiry(),
		IdentityID: identityID,
		CreatedAt:  m.tokens.now(),
	})
	if created.IsError() {
		return domain.FailureFrom[string](created)
	}
	return domain.Success(raw)
}

// Rotate marks token Used and issues its successor. Marking and issuing are
// separate writes; a failure between them leaves the caller with no usable
// token and they must log in again.
func (m *SessionManager) Rotate(ctx context.Context, token string) domain.Result[Rotation] {
	const op = "SessionManager.Rotate"
	if e, done := domain.CheckContext(ctx, op); done {
		return domain.Failure[Rotation](e)
	}

	current := m.usable(ctx, token)
	if current.IsError() {
		return domain.FailureFrom[Rotation](current)
	}
	now := m.tokens.now()
	if marked := m.repo.MarkUsed(ctx, current.Value().TokenHash, now); marked.IsError() {
		return domain.FailureFrom[Rotation](marked)
	}

	identityID := current.Value().IdentityID
	next := m.Issue(ctx, identityID)
	if next.IsError() {
		return domain.FailureFrom[Rotation](next)
	}
	return domain.Success(Rotation{IdentityID: identityID, RefreshToken: next.Value()})
}

// Revoke ends the session behind token. Revoking twice fails the second time.
func (m *SessionManager) Revoke(ctx context.Context, token string) domain.Result[bool] {
	const op = "SessionManager.Revoke"
	if e, done := domain.CheckContext(ctx, op); done {
		return domain.Failure[bool](e)
	}

	current := m.usable(ctx, token)
	if current.IsError() {
		return domain.FailureFrom[bool](current)
	}
	return m.repo.Revoke(ctx, current.Value().TokenHash, m.tokens.now())
}

// usable loads the row for token and collapses every unusable state into
// errInvalidRefreshToken. Infrastructure failures pass through unchanged.
func (m *SessionManager) usable(ctx context.Context, token string) domain.Result[domain.RefreshToken] {
	if token == "" {
		return domain.Failure[domain.RefreshToken](errInvalidRefreshToken)
	}
	found := m.repo.GetByTokenHash(ctx, HashRefreshToken(token))
	if found.IsError() {
		if code, _ := found.Code(); code == domain.NotFound {
			return domain.Failure[domain.RefreshToken](errInvalidRefreshToken)
		}
		return found
	}
	if !found.Value().IsUsable(m.tokens.now()) {
		return domain.Failure[domain.RefreshToken](errInvalidRefreshToken)
	}
	return found
}
