package repository

import (
	"context"
	"time"

	"github.com/msomdec/postbook/internal/dbaccess"
	"github.com/msomdec/postbook/internal/domain"
)

// errTokenUnusable covers a lost race as well as a token that was never usable.
var errTokenUnusable = domain.NewError(domain.Unauthorized, "invalid or expired refresh token")

// RefreshTokenRepository implements domain.RefreshTokenRepository.
type RefreshTokenRepository struct {
	store
}

// NewRefreshTokenRepository creates a new RefreshTokenRepository.
func NewRefreshTokenRepository(factory dbaccess.ConnectionFactory, connString string, errs *domain.ErrorHandler) *RefreshTokenRepository {
	return &RefreshTokenRepository{store: newStore(factory, connString, errs)}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, t domain.RefreshToken) domain.Result[domain.RefreshToken] {
	created := nonQuery(ctx, r.store, "RefreshTokenRepository.Create", "CreateRefreshToken", []dbaccess.Parameter{
		param("RefreshTokenID", t.ID.String()),
		param("Token", t.TokenHash),
		param("ExpiryDate", t.ExpiryDate.UTC()),
		param("IdentityID", t.IdentityID),
		param("CreatedAt", t.CreatedAt.UTC()),
	}, false, domain.NewError(domain.ResourceCreationFailed, "refresh token was not created"))
	if created.IsError() {
		return domain.FailureFrom[domain.RefreshToken](created)
	}
	return domain.Success(t)
}

func (r *RefreshTokenRepository) GetByTokenHash(ctx context.Context, hash string) domain.Result[domain.RefreshToken] {
	return single(ctx, r.store, "RefreshTokenRepository.GetByTokenHash", "GetRefreshTokenByToken",
		[]dbaccess.Parameter{param("Token", hash)},
		restoreRefreshToken, domain.NewError(domain.NotFound, "refresh token not found"))
}

// MarkUsed flips IsUsed only for a usable row; zero rows is Unauthorized.
func (r *RefreshTokenRepository) MarkUsed(ctx context.Context, hash string, now time.Time) domain.Result[bool] {
	return nonQuery(ctx, r.store, "RefreshTokenRepository.MarkUsed", "MarkRefreshTokenUsed", []dbaccess.Parameter{
		param("Token", hash),
		param("Now", now.UTC()),
	}, false, errTokenUnusable)
}

// Revoke flips IsRevoked only for a usable row; zero rows is Unauthorized.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, hash string, now time.Time) domain.Result[bool] {
	return nonQuery(ctx, r.store, "RefreshTokenRepository.Revoke", "RevokeRefreshToken", []dbaccess.Parameter{
		param("Token", hash),
		param("Now", now.UTC()),
	}, false, errTokenUnusable)
}

func restoreRefreshToken(r *row) domain.Result[domain.RefreshToken] {
	id := domain.ParseIdentifier(r.str("RefreshTokenID"))
	if id.IsError() {
		return domain.FailureFrom[domain.RefreshToken](id)
	}
	return domain.Success(domain.RefreshToken{
		ID:         id.Value(),
		TokenHash:  r.str("Token"),
		ExpiryDate: r.time("ExpiryDate"),
		IdentityID: r.str("IdentityID"),
		IsUsed:     r.boolean("IsUsed"),
		IsRevoked:  r.boolean("IsRevoked"),
		CreatedAt:  r.time("CreatedAt"),
	})
}
