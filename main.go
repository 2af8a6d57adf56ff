package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/msomdec/postbook/internal/config"
	"github.com/msomdec/postbook/internal/dbaccess"
	"github.com/msomdec/postbook/internal/domain"
	"github.com/msomdec/postbook/internal/filestore"
	"github.com/msomdec/postbook/internal/identity"
	"github.com/msomdec/postbook/internal/repository"
	"github.com/msomdec/postbook/internal/repository/migrations"
	"github.com/msomdec/postbook/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Stdout carries command output, so logs go to stderr and, as JSON, to
	// LOG_FILE when set.
	logOpts := &slog.HandlerOptions{Level: cfg.Logging.SlogLevel()}
	handlers := []slog.Handler{slog.NewTextHandler(os.Stderr, logOpts)}
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			slog.Error("failed to open log file", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		handlers = append(handlers, slog.NewJSONHandler(f, logOpts))
	}
	logger := slog.New(slog.NewMultiHandler(handlers...))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}

	code := run(ctx, a, os.Args[1:], os.Stdout)
	stop()
	if err := a.db.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
	os.Exit(code)
}

// app holds the wired services for one process.
type app struct {
	db       domain.Database
	tokens   *service.TokenService
	auth     *service.AuthService
	posts    *service.PostService
	comments *service.CommentService
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	dialect := dbaccess.SQLite()
	if cfg.Database.Driver == config.DriverPostgres {
		dialect = dbaccess.Postgres()
	}
	factory := dbaccess.NewSQLFactory(dialect)
	appURL, identityURL := cfg.Database.URL, cfg.Database.IdentityURL

	db := migrations.NewMigrator(factory,
		migrations.Target{ConnString: appURL, Set: migrations.App},
		migrations.Target{ConnString: identityURL, Set: migrations.Identity},
	)
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied", "driver", dialect.Name())

	errs := domain.NewErrorHandler(logger)
	tokens := service.NewTokenService(service.TokenOptions{
		SigningKey:      cfg.JWT.SigningKey,
		Issuer:          cfg.JWT.Issuer,
		Audience:        cfg.JWT.Audience,
		AccessLifetime:  cfg.JWT.AccessTokenLifetime(),
		RefreshLifetime: cfg.JWT.RefreshTokenLifetime(),
	})
	creds := identity.NewStore(factory, identityURL, identity.Options{
		BcryptCost:        cfg.Identity.BcryptCost,
		MaxFailedAttempts: cfg.Identity.LockoutMaxAttempts,
		LockoutDuration:   cfg.Identity.LockoutDuration,
		Logger:            logger,
	})
	files := filestore.NewBlobStore(factory, appURL)
	posts := repository.NewPostRepository(factory, appURL, errs)

	auth := service.NewAuthService(service.AuthConfig{
		Credentials:           creds,
		Profiles:              repository.NewProfileRepository(factory, appURL, errs),
		Files:                 files,
		Transactor:            repository.NewTransactor(factory, appURL, errs),
		Tokens:                tokens,
		Sessions:              service.NewSessionManager(tokens, repository.NewRefreshTokenRepository(factory, appURL, errs), errs),
		Errors:                errs,
		Logger:                logger,
		RequireConfirmedEmail: cfg.Identity.RequireConfirmedEmail,
	})

	// Seed the default role (idempotent).
	if r := auth.EnsureDefaultRole(ctx); r.IsError() {
		db.Close()
		return nil, fmt.Errorf("seed default role: %w", r.Err())
	}

	return &app{
		db:       db,
		tokens:   tokens,
		auth:     auth,
		posts:    service.NewPostService(posts, files, errs, nil),
		comments: service.NewCommentService(repository.NewCommentRepository(factory, appURL, errs), posts, nil),
	}, nil
}
