package service_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/msomdec/postbook/internal/dbaccess"
	"github.com/msomdec/postbook/internal/domain"
	"github.com/msomdec/postbook/internal/filestore"
	"github.com/msomdec/postbook/internal/identity"
	"github.com/msomdec/postbook/internal/repository"
	"github.com/msomdec/postbook/internal/repository/migrations"
	"github.com/msomdec/postbook/internal/service"
)

const (
	testSigningKey = "test-signing-key-for-unit-tests-0123456789"
	goodPassword   = "Str0ng!pass"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type testEnv struct {
	factory  *dbaccess.SQLFactory
	path     string
	clock    *testClock
	errs     *domain.ErrorHandler
	creds    *identity.Store
	profiles *repository.ProfileRepository
	posts    *repository.PostRepository
	comments *repository.CommentRepository
	refresh  *repository.RefreshTokenRepository
	files    *filestore.BlobStore
	tokens   *service.TokenService
	sessions *service.SessionManager
}

type envOption func(*envConfig)

type envConfig struct {
	maxAttempts      int
	requireConfirmed bool
	profiles         domain.ProfileRepository
}

func withMaxAttempts(n int) envOption { return func(c *envConfig) { c.maxAttempts = n } }

func withConfirmedEmail() envOption { return func(c *envConfig) { c.requireConfirmed = true } }

func withProfiles(p domain.ProfileRepository) envOption {
	return func(c *envConfig) { c.profiles = p }
}

// newTestEnv opens one SQLite file holding both the relational and the
// credential schema.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "postbook.db")
	factory := dbaccess.NewSQLFactory(dbaccess.SQLite())
	t.Cleanup(func() { factory.Close() })

	migrator := migrations.NewMigrator(factory,
		migrations.Target{ConnString: path, Set: migrations.App},
		migrations.Target{ConnString: path, Set: migrations.Identity},
	)
	if err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	clock := &testClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	errs := domain.NewErrorHandler(nil)
	tokens := service.NewTokenService(service.TokenOptions{
		SigningKey:      testSigningKey,
		Issuer:          "postbook-test",
		Audience:        "postbook-test-clients",
		AccessLifetime:  15 * time.Minute,
		RefreshLifetime: 7 * 24 * time.Hour,
		Now:             clock.Now,
	})
	refresh := repository.NewRefreshTokenRepository(factory, path, errs)

	return &testEnv{
		factory:  factory,
		path:     path,
		clock:    clock,
		errs:     errs,
		profiles: repository.NewProfileRepository(factory, path, errs),
		posts:    repository.NewPostRepository(factory, path, errs),
		comments: repository.NewCommentRepository(factory, path, errs),
		refresh:  refresh,
		files:    filestore.NewBlobStore(factory, path),
		tokens:   tokens,
		sessions: service.NewSessionManager(tokens, refresh, errs),
	}
}

func (e *testEnv) auth(t *testing.T, opts ...envOption) *service.AuthService {
	t.Helper()
	cfg := envConfig{maxAttempts: 5}
	for _, o := range opts {
		o(&cfg)
	}
	e.creds = identity.NewStore(e.factory, e.path, identity.Options{
		BcryptCost:        bcrypt.MinCost,
		MaxFailedAttempts: cfg.maxAttempts,
		LockoutDuration:   15 * time.Minute,
		Now:               e.clock.Now,
	})
	var profiles domain.ProfileRepository = e.profiles
	if cfg.profiles != nil {
		profiles = cfg.profiles
	}
	return service.NewAuthService(service.AuthConfig{
		Credentials:           e.creds,
		Profiles:              profiles,
		Files:                 e.files,
		Transactor:            repository.NewTransactor(e.factory, e.path, e.errs),
		Tokens:                e.tokens,
		Sessions:              e.sessions,
		Errors:                e.errs,
		RequireConfirmedEmail: cfg.requireConfirmed,
	})
}

func (e *testEnv) postService() *service.PostService {
	return service.NewPostService(e.posts, e.files, e.errs, e.clock.Now)
}

func (e *testEnv) commentService() *service.CommentService {
	return service.NewCommentService(e.comments, e.posts, e.clock.Now)
}

func (e *testEnv) countBlobs(t *testing.T) int {
	t.Helper()
	db, err := e.factory.DB(context.Background(), e.path)
	if err != nil {
		t.Fatalf("DB: %v", err)
	}
	var n int
	if err := db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM FileBlobs").Scan(&n); err != nil {
		t.Fatalf("count blobs: %v", err)
	}
	return n
}

func registerInput(username string) service.RegisterInput {
	return service.RegisterInput{
		Username:    username,
		Email:       username + "@example.com",
		Password:    goodPassword,
		FirstName:   "Alice",
		LastName:    "Smith",
		City:        "Lisbon",
		DateOfBirth: time.Date(1990, 3, 15, 0, 0, 0, 0, time.UTC),
		Gender:      "Female",
	}
}

func avatar() (*strings.Reader, string) {
	return strings.NewReader("fake png bytes"), "Avatar.PNG"
}

func wantCode[T any](t *testing.T, r domain.Result[T], code domain.ErrorCode) {
	t.Helper()
	got, ok := r.Code()
	if !ok {
		t.Fatalf("expected %v failure, got success %v", code, r)
	}
	if got != code {
		t.Fatalf("expected %v, got %v", code, r)
	}
}

func mustSucceed[T any](t *testing.T, r domain.Result[T]) T {
	t.Helper()
	if r.IsError() {
		t.Fatalf("unexpected failure: %v", r)
	}
	return r.Value()
}
