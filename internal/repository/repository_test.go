package repository_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/msomdec/postbook/internal/dbaccess"
	"github.com/msomdec/postbook/internal/domain"
	"github.com/msomdec/postbook/internal/repository"
	"github.com/msomdec/postbook/internal/repository/migrations"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type testDB struct {
	factory    *dbaccess.SQLFactory
	connString string
	errs       *domain.ErrorHandler
}

func newTestDB(t *testing.T) testDB {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app.db")
	factory := dbaccess.NewSQLFactory(dbaccess.SQLite())
	t.Cleanup(func() { factory.Close() })

	db, err := factory.DB(ctx, path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrations.Run(ctx, db, factory.Dialect(), migrations.App); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return testDB{factory: factory, connString: path, errs: domain.NewErrorHandler(nil)}
}

func (d testDB) posts() *repository.PostRepository {
	return repository.NewPostRepository(d.factory, d.connString, d.errs)
}

func (d testDB) comments() *repository.CommentRepository {
	return repository.NewCommentRepository(d.factory, d.connString, d.errs)
}

func (d testDB) profiles() *repository.ProfileRepository {
	return repository.NewProfileRepository(d.factory, d.connString, d.errs)
}

func (d testDB) tokens() *repository.RefreshTokenRepository {
	return repository.NewRefreshTokenRepository(d.factory, d.connString, d.errs)
}

func basicInfo(t *testing.T, first string) domain.BasicInformation {
	t.Helper()
	r := domain.NewBasicInformation(domain.BasicInformationInput{
		FirstName:   first,
		LastName:    "Smith",
		City:        "Lisbon",
		DateOfBirth: time.Date(1990, 3, 15, 0, 0, 0, 0, time.UTC),
		Gender:      "female",
	}, testNow)
	if r.IsError() {
		t.Fatalf("NewBasicInformation: %v", r)
	}
	return r.Value()
}

func createProfile(t *testing.T, d testDB, identityID string) domain.UserProfile {
	t.Helper()
	p := domain.NewUserProfile(identityID, basicInfo(t, "Alice"), "", testNow)
	if p.IsError() {
		t.Fatalf("NewUserProfile: %v", p)
	}
	created := d.profiles().Create(context.Background(), p.Value())
	if created.IsError() {
		t.Fatalf("Create profile: %v", created)
	}
	return created.Value()
}

func title(t *testing.T, s string) domain.Title {
	t.Helper()
	r := domain.NewTitle(s)
	if r.IsError() {
		t.Fatalf("NewTitle(%q): %v", s, r)
	}
	return r.Value()
}

func body(t *testing.T, s string) domain.Body {
	t.Helper()
	r := domain.NewBody(s)
	if r.IsError() {
		t.Fatalf("NewBody(%q): %v", s, r)
	}
	return r.Value()
}

func createPost(t *testing.T, d testDB, owner domain.Identifier, titleText string, at time.Time) domain.Post {
	t.Helper()
	p := domain.NewPost(owner, title(t, titleText), body(t, "Some content"), "", at)
	if p.IsError() {
		t.Fatalf("NewPost: %v", p)
	}
	created := d.posts().Create(context.Background(), p.Value())
	if created.IsError() {
		t.Fatalf("Create post: %v", created)
	}
	return created.Value()
}

func wantCode[T any](t *testing.T, r domain.Result[T], want domain.ErrorCode) {
	t.Helper()
	code, failed := r.Code()
	if !failed {
		t.Fatalf("expected %s failure, got %v", want, r)
	}
	if code != want {
		t.Fatalf("expected %s, got %v", want, r)
	}
}
