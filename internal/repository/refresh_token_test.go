package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/msomdec/postbook/internal/domain"
)

func createToken(t *testing.T, d testDB, hash string, expiry time.Time) domain.RefreshToken {
	t.Helper()
	tok := domain.RefreshToken{
		ID:         domain.GenerateIdentifier(),
		TokenHash:  hash,
		ExpiryDate: expiry,
		IdentityID: "identity-1",
		CreatedAt:  testNow,
	}
	r := d.tokens().Create(context.Background(), tok)
	if r.IsError() {
		t.Fatalf("Create token: %v", r)
	}
	return r.Value()
}

func TestRefreshTokenRepository_CreateAndGet(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	tok := createToken(t, d, "hash-1", testNow.Add(24*time.Hour))

	got := d.tokens().GetByTokenHash(ctx, "hash-1")
	if got.IsError() {
		t.Fatalf("GetByTokenHash: %v", got)
	}
	v := got.Value()
	if v.ID != tok.ID || v.IdentityID != "identity-1" || v.IsUsed || v.IsRevoked {
		t.Errorf("got %+v", v)
	}
	if !v.ExpiryDate.Equal(tok.ExpiryDate) {
		t.Errorf("ExpiryDate = %v, want %v", v.ExpiryDate, tok.ExpiryDate)
	}
	if !v.IsUsable(testNow) {
		t.Error("new token should be usable")
	}

	wantCode(t, d.tokens().GetByTokenHash(ctx, "missing"), domain.NotFound)
}

func TestRefreshTokenRepository_MarkUsedOnlyOnce(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	createToken(t, d, "hash-1", testNow.Add(24*time.Hour))

	if r := d.tokens().MarkUsed(ctx, "hash-1", testNow); r.IsError() {
		t.Fatalf("first MarkUsed: %v", r)
	}
	wantCode(t, d.tokens().MarkUsed(ctx, "hash-1", testNow), domain.Unauthorized)
	wantCode(t, d.tokens().Revoke(ctx, "hash-1", testNow), domain.Unauthorized)

	if got := d.tokens().GetByTokenHash(ctx, "hash-1").Value(); !got.IsUsed || got.IsRevoked {
		t.Errorf("flags = used:%v revoked:%v", got.IsUsed, got.IsRevoked)
	}
}

func TestRefreshTokenRepository_RevokeOnlyOnce(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	createToken(t, d, "hash-1", testNow.Add(24*time.Hour))

	if r := d.tokens().Revoke(ctx, "hash-1", testNow); r.IsError() {
		t.Fatalf("first Revoke: %v", r)
	}
	wantCode(t, d.tokens().Revoke(ctx, "hash-1", testNow), domain.Unauthorized)
	wantCode(t, d.tokens().MarkUsed(ctx, "hash-1", testNow), domain.Unauthorized)
}

func TestRefreshTokenRepository_ExpiredTokenIsUnusable(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	createToken(t, d, "hash-1", testNow.Add(time.Second))

	later := testNow.Add(time.Minute)
	wantCode(t, d.tokens().MarkUsed(ctx, "hash-1", later), domain.Unauthorized)
	wantCode(t, d.tokens().Revoke(ctx, "hash-1", later), domain.Unauthorized)
	wantCode(t, d.tokens().MarkUsed(ctx, "unknown", testNow), domain.Unauthorized)
}
