package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/msomdec/postbook/internal/domain"
	"github.com/msomdec/postbook/internal/identity"
)

var (
	errInvalidCredentials = domain.NewError(domain.Unauthorized, "invalid username or password")
	errLockedOut          = domain.NewError(domain.LockedOut, "account is locked out")
	errEmailNotConfirmed  = domain.NewError(domain.Unauthorized, "email address is not confirmed")
	errUsernameTaken      = domain.NewError(domain.Conflict, "username already exists")
)

// TokenPair is what a successful sign-in hands back.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RegisterInput is everything needed to create an account and its profile.
// Avatar is optional.
type RegisterInput struct {
	Username       string
	Email          string
	Password       string
	FirstName      string
	LastName       string
	Address        string
	City           string
	DateOfBirth    time.Time
	Gender         string
	Avatar         io.Reader
	AvatarFileName string
}

// AuthConfig wires an AuthService.
type AuthConfig struct {
	Credentials           domain.CredentialStore
	Profiles              domain.ProfileRepository
	Files                 domain.FileStorage
	Transactor            domain.Transactor
	Tokens                *TokenService
	Sessions              *SessionManager
	Errors                *domain.ErrorHandler
	Logger                *slog.Logger
	RequireConfirmedEmail bool
}

// AuthService handles registration, login, refresh and logout.
type AuthService struct {
	creds     domain.CredentialStore
	profiles  domain.ProfileRepository
	files     domain.FileStorage
	tx        domain.Transactor
	tokens    *TokenService
	sessions  *SessionManager
	errs      *domain.ErrorHandler
	logger    *slog.Logger
	confirmed bool
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg AuthConfig) *AuthService {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Errors == nil {
		cfg.Errors = domain.NewErrorHandler(cfg.Logger)
	}
	return &AuthService{
		creds:     cfg.Credentials,
		profiles:  cfg.Profiles,
		files:     cfg.Files,
		tx:        cfg.Transactor,
		tokens:    cfg.Tokens,
		sessions:  cfg.Sessions,
		errs:      cfg.Errors,
		logger:    cfg.Logger,
		confirmed: cfg.RequireConfirmedEmail,
	}
}

// Login verifies credentials and returns an access token plus a fresh
// refresh token. Unknown users and wrong passwords look the same.
func (s *AuthService) Login(ctx context.Context, username, password string) domain.Result[TokenPair] {
	const op = "AuthService.Login"
	if e, done := domain.CheckContext(ctx, op); done {
		return domain.Failure[TokenPair](e)
	}

	ident, err := s.creds.FindByUsername(ctx, username)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Failure[TokenPair](errInvalidCredentials)
	}
	if err != nil {
		return domain.Failure[TokenPair](s.errs.Handle(ctx, op, err))
	}

	locked, err := s.creds.IsLockedOut(ctx, ident)
	if err != nil {
		return domain.Failure[TokenPair](s.errs.Handle(ctx, op, err))
	}
	if locked {
		return domain.Failure[TokenPair](errLockedOut)
	}

	ok, err := s.creds.CheckPassword(ctx, ident, password)
	if err != nil {
		return domain.Failure[TokenPair](s.errs.Handle(ctx, op, err))
	}
	if !ok {
		if err := s.creds.AccessFailed(ctx, ident); err != nil {
			return domain.Failure[TokenPair](s.errs.Handle(ctx, op, err))
		}
		return domain.Failure[TokenPair](errInvalidCredentials)
	}

	if s.confirmed {
		confirmed, err := s.creds.IsEmailConfirmed(ctx, ident)
		if err != nil {
			return domain.Failure[TokenPair](s.errs.Handle(ctx, op, err))
		}
		if !confirmed {
			return domain.Failure[TokenPair](errEmailNotConfirmed)
		}
	}

	if ident.AccessFailedCount > 0 || ident.LockoutEnd != nil {
		if err := s.creds.ResetAccessFailed(ctx, ident); err != nil {
			return domain.Failure[TokenPair](s.errs.Handle(ctx, op, err))
		}
	}

	access := s.accessToken(ctx, op, ident)
	if access.IsError() {
		return domain.FailureFrom[TokenPair](access)
	}
	refresh := s.sessions.Issue(ctx, ident.ID)
	if refresh.IsError() {
		return domain.FailureFrom[TokenPair](refresh)
	}

	s.logger.InfoContext(ctx, "user logged in", "identity_id", ident.ID)
	return domain.Success(TokenPair{AccessToken: access.Value(), RefreshToken: refresh.Value()})
}

// Refresh exchanges a refresh token for a new pair. The presented token
// becomes Used and cannot be exchanged again.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) domain.Result[TokenPair] {
	const op = "AuthService.Refresh"
	if e, done := domain.CheckContext(ctx, op); done {
		return domain.Failure[TokenPair](e)
	}

	rotated := s.sessions.Rotate(ctx, refreshToken)
	if rotated.IsError() {
		return domain.FailureFrom[TokenPair](rotated)
	}

	ident, err := s.creds.FindByID(ctx, rotated.Value().IdentityID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Failure[TokenPair](errInvalidRefreshToken)
	}
	if err != nil {
		return domain.Failure[TokenPair](s.errs.Handle(ctx, op, err))
	}

	access := s.accessToken(ctx, op, ident)
	if access.IsError() {
		return domain.FailureFrom[TokenPair](access)
	}
	return domain.Success(TokenPair{AccessToken: access.Value(), RefreshToken: rotated.Value().RefreshToken})
}

// Logout revokes a refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) domain.Result[bool] {
	const op = "AuthService.Logout"
	if e, done := domain.CheckContext(ctx, op); done {
		return domain.Failure[bool](e)
	}
	return s.sessions.Revoke(ctx, refreshToken)
}

// Register creates a credential, an optional avatar and a profile holding
// the default role. The profile and role grant commit together; anything
// created before a later failure is removed again on a best-effort basis.
// No refresh token is issued until the first login.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) domain.Result[TokenPair] {
	const op = "AuthService.Register"
	if e, done := domain.CheckContext(ctx, op); done {
		return domain.Failure[TokenPair](e)
	}

	if _, err := s.creds.FindByUsername(ctx, in.Username); err == nil {
		return domain.Failure[TokenPair](errUsernameTaken.WithDetails(in.Username))
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Failure[TokenPair](s.errs.Handle(ctx, op, err))
	}

	var avatarLink string
	if in.Avatar != nil {
		link, err := s.files.Save(ctx, in.Avatar, in.AvatarFileName)
		if err != nil {
			return domain.Failure[TokenPair](s.collaboratorError(ctx, op, err))
		}
		avatarLink = link
	}

	ident, err := s.creds.Create(ctx, in.Username, in.Email, in.Password)
	if err != nil {
		s.deleteFile(ctx, op, avatarLink)
		return domain.Failures[TokenPair](s.credentialErrors(ctx, op, err))
	}

	// From here on every failure undoes the credential and the avatar.
	compensate := func() {
		if err := s.creds.Delete(context.WithoutCancel(ctx), ident.ID); err != nil {
			s.logger.ErrorContext(ctx, "compensation failed: delete credential", "op", op, "identity_id", ident.ID, "error", err)
		}
		s.deleteFile(ctx, op, avatarLink)
	}

	info := domain.NewBasicInformation(domain.BasicInformationInput{
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Address:     in.Address,
		City:        in.City,
		DateOfBirth: in.DateOfBirth,
		Gender:      in.Gender,
	}, s.tokens.now())
	if info.IsError() {
		compensate()
		return domain.FailureFrom[TokenPair](info)
	}

	profile := domain.NewUserProfile(ident.ID, info.Value(), avatarLink, s.tokens.now())
	if profile.IsError() {
		compensate()
		return domain.FailureFrom[TokenPair](profile)
	}

	committed := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		if created := s.profiles.Create(ctx, profile.Value()); created.IsError() {
			return created.Err()
		}
		return s.grantDefaultRole(ctx, ident)
	})
	if committed.IsError() {
		compensate()
		return domain.FailureFrom[TokenPair](committed)
	}

	access, err := s.tokens.IssueAccessToken(ident, profile.Value().ID, []string{domain.DefaultRole})
	if err != nil {
		return domain.Failure[TokenPair](s.errs.Handle(ctx, op, err))
	}

	s.logger.InfoContext(ctx, "user registered", "identity_id", ident.ID, "profile_id", profile.Value().ID.String())
	return domain.Success(TokenPair{AccessToken: access})
}

// EnsureDefaultRole creates the default role when it does not exist yet.
func (s *AuthService) EnsureDefaultRole(ctx context.Context) domain.Result[bool] {
	const op = "AuthService.EnsureDefaultRole"
	if e, done := domain.CheckContext(ctx, op); done {
		return domain.Failure[bool](e)
	}
	if err := s.ensureRole(ctx, domain.DefaultRole); err != nil {
		return domain.Failure[bool](s.errs.Handle(ctx, op, err))
	}
	return domain.Success(true)
}

func (s *AuthService) grantDefaultRole(ctx context.Context, ident *domain.Identity) error {
	if err := s.ensureRole(ctx, domain.DefaultRole); err != nil {
		return err
	}
	if err := s.creds.AddToRole(ctx, ident, domain.DefaultRole); err != nil {
		return fmt.Errorf("assign default role: %w", err)
	}
	return nil
}

func (s *AuthService) ensureRole(ctx context.Context, role string) error {
	exists, err := s.creds.RoleExists(ctx, role)
	if err != nil {
		return fmt.Errorf("check role: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.creds.CreateRole(ctx, role); err != nil && !errors.Is(err, domain.ErrDuplicateRole) {
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}

func (s *AuthService) accessToken(ctx context.Context, op string, ident *domain.Identity) domain.Result[string] {
	profile := s.profiles.GetByIdentityID(ctx, ident.ID)
	if profile.IsError() {
		return domain.FailureFrom[string](profile)
	}
	roles, err := s.creds.GetRoles(ctx, ident)
	if err != nil {
		return domain.Failure[string](s.errs.Handle(ctx, op, err))
	}
	token, err := s.tokens.IssueAccessToken(ident, profile.Value().ID, roles)
	if err != nil {
		return domain.Failure[string](s.errs.Handle(ctx, op, err))
	}
	return domain.Success(token)
}

// credentialErrors reports one InvalidInput error per policy violation.
func (s *AuthService) credentialErrors(ctx context.Context, op string, err error) []domain.Error {
	var policy *identity.PolicyError
	if errors.As(err, &policy) {
		errs := make([]domain.Error, 0, len(policy.Violations))
		for _, v := range policy.Violations {
			errs = append(errs, domain.NewError(domain.InvalidInput, v))
		}
		return errs
	}
	if errors.Is(err, domain.ErrDuplicateUsername) {
		return []domain.Error{errUsernameTaken}
	}
	return []domain.Error{s.errs.Handle(ctx, op, err)}
}

func (s *AuthService) collaboratorError(ctx context.Context, op string, err error) domain.Error {
	return collaboratorError(ctx, s.errs, op, err)
}

func (s *AuthService) deleteFile(ctx context.Context, op, link string) {
	if link == "" {
		return
	}
	if err := s.files.Delete(context.WithoutCancel(ctx), link); err != nil {
		s.logger.ErrorContext(ctx, "compensation failed: delete file", "op", op, "link", link, "error", err)
	}
}

// collaboratorError maps the sentinel errors of the credential store and
// file storage onto Result errors.
func collaboratorError(ctx context.Context, h *domain.ErrorHandler, op string, err error) domain.Error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return domain.NewError(domain.InvalidInput, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return domain.NewError(domain.NotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return domain.NewError(domain.Unauthorized, err.Error())
	default:
		return h.Handle(ctx, op, err)
	}
}
