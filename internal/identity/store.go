// Package identity is the credential store: identities, password hashes,
// lockout state and role membership, persisted through dbaccess.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/msomdec/postbook/internal/dbaccess"
	"github.com/msomdec/postbook/internal/domain"
)

// Options tune hashing and lockout.
type Options struct {
	BcryptCost int
	// MaxFailedAttempts is the number of consecutive failures that locks an
	// account. Zero disables lockout.
	MaxFailedAttempts int
	LockoutDuration   time.Duration
	Now               func() time.Time
	Logger            *slog.Logger
}

// Store implements domain.CredentialStore.
type Store struct {
	factory    dbaccess.ConnectionFactory
	connString string
	opts       Options
	validate   *validator.Validate
}

// NewStore creates a credential store on the given database.
func NewStore(factory dbaccess.ConnectionFactory, connString string, opts Options) *Store {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{
		factory:    factory,
		connString: connString,
		opts:       opts,
		validate:   newValidator(),
	}
}

const identityColumns = "IdentityID, UserName, Email, PasswordHash, EmailConfirmed, AccessFailedCount, LockoutEnd, CreatedAt"

func normalize(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

func (s *Store) FindByUsername(ctx context.Context, username string) (*domain.Identity, error) {
	return s.findOne(ctx, "SELECT "+identityColumns+" FROM Identities WHERE NormalizedUserName = @Normalized",
		dbaccess.Parameter{Name: "Normalized", Value: normalize(username)})
}

func (s *Store) FindByID(ctx context.Context, id string) (*domain.Identity, error) {
	return s.findOne(ctx, "SELECT "+identityColumns+" FROM Identities WHERE IdentityID = @IdentityID",
		dbaccess.Parameter{Name: "IdentityID", Value: id})
}

// Create validates the credential policy, hashes the password and stores a
// new identity. Policy failures are a *PolicyError.
func (s *Store) Create(ctx context.Context, username, email, password string) (*domain.Identity, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if err := checkPolicy(s.validate, username, email, password); err != nil {
		return nil, err
	}

	if _, err := s.FindByUsername(ctx, username); err == nil {
		return nil, domain.ErrDuplicateUsername
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	ident := &domain.Identity{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.opts.Now().UTC(),
	}
	_, err = s.exec(ctx,
		`INSERT INTO Identities (IdentityID, UserName, NormalizedUserName, Email, PasswordHash, EmailConfirmed, AccessFailedCount, CreatedAt)
		 VALUES (@IdentityID, @UserName, @Normalized, @Email, @PasswordHash, @EmailConfirmed, 0, @CreatedAt)`,
		dbaccess.Parameter{Name: "IdentityID", Value: ident.ID},
		dbaccess.Parameter{Name: "UserName", Value: ident.Username},
		dbaccess.Parameter{Name: "Normalized", Value: normalize(username)},
		dbaccess.Parameter{Name: "Email", Value: ident.Email},
		dbaccess.Parameter{Name: "PasswordHash", Value: ident.PasswordHash},
		dbaccess.Parameter{Name: "EmailConfirmed", Value: false},
		dbaccess.Parameter{Name: "CreatedAt", Value: ident.CreatedAt},
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrDuplicateUsername
		}
		return nil, fmt.Errorf("insert identity: %w", err)
	}

	s.opts.Logger.InfoContext(ctx, "identity created", "identity_id", ident.ID)
	return ident, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	n, err := s.exec(ctx, "DELETE FROM Identities WHERE IdentityID = @IdentityID",
		dbaccess.Parameter{Name: "IdentityID", Value: id})
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CheckPassword reports whether password matches. A mismatch is not an error.
func (s *Store) CheckPassword(_ context.Context, ident *domain.Identity, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(ident.PasswordHash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("compare password: %w", err)
	}
	return true, nil
}

func (s *Store) IsLockedOut(_ context.Context, ident *domain.Identity) (bool, error) {
	return ident.LockoutEnd != nil && s.opts.Now().Before(*ident.LockoutEnd), nil
}

func (s *Store) IsEmailConfirmed(_ context.Context, ident *domain.Identity) (bool, error) {
	return ident.EmailConfirmed, nil
}

// ConfirmEmail marks the identity's email address as confirmed.
func (s *Store) ConfirmEmail(ctx context.Context, ident *domain.Identity) error {
	n, err := s.exec(ctx, "UPDATE Identities SET EmailConfirmed = @Confirmed WHERE IdentityID = @IdentityID",
		dbaccess.Parameter{Name: "Confirmed", Value: true},
		dbaccess.Parameter{Name: "IdentityID", Value: ident.ID})
	if err != nil {
		return fmt.Errorf("confirm email: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	ident.EmailConfirmed = true
	return nil
}

// AccessFailed records a failed sign-in. Reaching the configured limit locks
// the account and starts counting again from zero.
func (s *Store) AccessFailed(ctx context.Context, ident *domain.Identity) error {
	failures := ident.AccessFailedCount + 1
	lockoutEnd := ident.LockoutEnd
	if s.opts.MaxFailedAttempts > 0 && failures >= s.opts.MaxFailedAttempts {
		end := s.opts.Now().UTC().Add(s.opts.LockoutDuration)
		lockoutEnd = &end
		failures = 0
		s.opts.Logger.WarnContext(ctx, "identity locked out", "identity_id", ident.ID, "until", end)
	}

	var lockoutValue any
	if lockoutEnd != nil {
		lockoutValue = *lockoutEnd
	}
	if err := s.updateAccess(ctx, ident.ID, failures, lockoutValue); err != nil {
		return err
	}
	ident.AccessFailedCount = failures
	ident.LockoutEnd = lockoutEnd
	return nil
}

// ResetAccessFailed clears the failure count after a successful sign-in.
func (s *Store) ResetAccessFailed(ctx context.Context, ident *domain.Identity) error {
	if err := s.updateAccess(ctx, ident.ID, 0, nil); err != nil {
		return err
	}
	ident.AccessFailedCount = 0
	ident.LockoutEnd = nil
	return nil
}

func (s *Store) updateAccess(ctx context.Context, id string, failures int, lockoutEnd any) error {
	n, err := s.exec(ctx,
		"UPDATE Identities SET AccessFailedCount = @Failures, LockoutEnd = @LockoutEnd WHERE IdentityID = @IdentityID",
		dbaccess.Parameter{Name: "Failures", Value: failures},
		dbaccess.Parameter{Name: "LockoutEnd", Value: lockoutEnd},
		dbaccess.Parameter{Name: "IdentityID", Value: id})
	if err != nil {
		return fmt.Errorf("update access failures: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) GetRoles(ctx context.Context, ident *domain.Identity) ([]string, error) {
	conn, release, err := dbaccess.Acquire(ctx, s.factory, s.connString)
	if err != nil {
		return nil, err
	}
	defer release()

	cmd := conn.CreateCommand()
	defer cmd.Close()
	cmd.SetText("SELECT RoleName FROM IdentityRoles WHERE IdentityID = @IdentityID ORDER BY RoleName")
	cmd.AddParameter("IdentityID", ident.ID)

	reader, err := cmd.ExecuteReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}
	defer reader.Close()

	roles := []string{}
	for {
		ok, err := reader.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("read roles: %w", err)
		}
		if !ok {
			return roles, nil
		}
		role, err := reader.String(0)
		if err != nil {
			return nil, fmt.Errorf("read role: %w", err)
		}
		roles = append(roles, role)
	}
}

// AddToRole grants an existing role. Granting a role the identity already
// holds is a no-op.
func (s *Store) AddToRole(ctx context.Context, ident *domain.Identity, role string) error {
	name, err := s.roleName(ctx, role)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, "INSERT INTO IdentityRoles (IdentityID, RoleName) VALUES (@IdentityID, @RoleName)",
		dbaccess.Parameter{Name: "IdentityID", Value: ident.ID},
		dbaccess.Parameter{Name: "RoleName", Value: name})
	if err != nil && !isUniqueViolation(err) {
		return fmt.Errorf("add to role: %w", err)
	}
	return nil
}

func (s *Store) RemoveFromRole(ctx context.Context, ident *domain.Identity, role string) error {
	name, err := s.roleName(ctx, role)
	if err != nil {
		return err
	}
	n, err := s.exec(ctx, "DELETE FROM IdentityRoles WHERE IdentityID = @IdentityID AND RoleName = @RoleName",
		dbaccess.Parameter{Name: "IdentityID", Value: ident.ID},
		dbaccess.Parameter{Name: "RoleName", Value: name})
	if err != nil {
		return fmt.Errorf("remove from role: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: identity is not in role %s", domain.ErrNotFound, name)
	}
	return nil
}

func (s *Store) RoleExists(ctx context.Context, role string) (bool, error) {
	_, err := s.roleName(ctx, role)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) CreateRole(ctx context.Context, role string) error {
	role = strings.TrimSpace(role)
	if role == "" {
		return fmt.Errorf("%w: role name is required", domain.ErrInvalidInput)
	}
	_, err := s.exec(ctx, "INSERT INTO Roles (RoleName, NormalizedName) VALUES (@RoleName, @Normalized)",
		dbaccess.Parameter{Name: "RoleName", Value: role},
		dbaccess.Parameter{Name: "Normalized", Value: normalize(role)})
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateRole
		}
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}

// roleName resolves a role case-insensitively to its stored name.
func (s *Store) roleName(ctx context.Context, role string) (string, error) {
	conn, release, err := dbaccess.Acquire(ctx, s.factory, s.connString)
	if err != nil {
		return "", err
	}
	defer release()

	cmd := conn.CreateCommand()
	defer cmd.Close()
	cmd.SetText("SELECT RoleName FROM Roles WHERE NormalizedName = @Normalized")
	cmd.AddParameter("Normalized", normalize(role))
	v, err := cmd.ExecuteScalar(ctx)
	if err != nil {
		return "", fmt.Errorf("query role: %w", err)
	}
	if v == nil {
		return "", fmt.Errorf("%w: role %s", domain.ErrNotFound, role)
	}
	return dbaccess.AsString(v)
}

func (s *Store) exec(ctx context.Context, text string, params ...dbaccess.Parameter) (int64, error) {
	conn, release, err := dbaccess.Acquire(ctx, s.factory, s.connString)
	if err != nil {
		return 0, err
	}
	defer release()

	cmd := conn.CreateCommand()
	defer cmd.Close()
	cmd.SetText(text)
	for _, p := range params {
		cmd.AddParameter(p.Name, p.Value)
	}
	return cmd.ExecuteNonQuery(ctx)
}

func (s *Store) findOne(ctx context.Context, text string, params ...dbaccess.Parameter) (*domain.Identity, error) {
	conn, release, err := dbaccess.Acquire(ctx, s.factory, s.connString)
	if err != nil {
		return nil, err
	}
	defer release()

	cmd := conn.CreateCommand()
	defer cmd.Close()
	cmd.SetText(text)
	for _, p := range params {
		cmd.AddParameter(p.Name, p.Value)
	}

	reader, err := cmd.ExecuteReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("query identity: %w", err)
	}
	defer reader.Close()

	ok, err := reader.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("read identity: %w", err)
	}
	if !ok {
		return nil, domain.ErrNotFound
	}
	return scanIdentity(reader)
}

func scanIdentity(r dbaccess.RowReader) (*domain.Identity, error) {
	var (
		ident domain.Identity
		err   error
	)
	read := func(col string, fn func(i int) error) {
		if err != nil {
			return
		}
		i, cerr := r.ColumnIndex(col)
		if cerr != nil {
			err = cerr
			return
		}
		if r.IsNull(i) {
			return
		}
		err = fn(i)
	}

	read("IdentityID", func(i int) (e error) { ident.ID, e = r.String(i); return })
	read("UserName", func(i int) (e error) { ident.Username, e = r.String(i); return })
	read("Email", func(i int) (e error) { ident.Email, e = r.String(i); return })
	read("PasswordHash", func(i int) (e error) { ident.PasswordHash, e = r.String(i); return })
	read("EmailConfirmed", func(i int) (e error) { ident.EmailConfirmed, e = r.Bool(i); return })
	read("AccessFailedCount", func(i int) error {
		n, e := r.Int64(i)
		ident.AccessFailedCount = int(n)
		return e
	})
	read("LockoutEnd", func(i int) error {
		t, e := r.Time(i)
		ident.LockoutEnd = &t
		return e
	})
	read("CreatedAt", func(i int) (e error) { ident.CreatedAt, e = r.Time(i); return })

	if err != nil {
		return nil, fmt.Errorf("scan identity: %w", err)
	}
	return &ident, nil
}

// isUniqueViolation recognises unique constraint failures from either driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}
