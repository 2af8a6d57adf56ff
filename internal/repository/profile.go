package repository

import (
	"context"
	"time"

	"github.com/msomdec/postbook/internal/dbaccess"
	"github.com/msomdec/postbook/internal/domain"
)

var errProfileNotFound = domain.NewError(domain.NotFound, "user profile not found")

// ProfileRepository implements domain.ProfileRepository.
type ProfileRepository struct {
	store
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(factory dbaccess.ConnectionFactory, connString string, errs *domain.ErrorHandler) *ProfileRepository {
	return &ProfileRepository{store: newStore(factory, connString, errs)}
}

func (r *ProfileRepository) Create(ctx context.Context, p domain.UserProfile) domain.Result[domain.UserProfile] {
	created := nonQuery(ctx, r.store, "ProfileRepository.Create", "CreateUserProfile", []dbaccess.Parameter{
		param("UserProfileID", p.ID.String()),
		param("IdentityID", p.IdentityID),
		param("FirstName", p.Info.FirstName()),
		param("LastName", p.Info.LastName()),
		param("Address", p.Info.Address()),
		param("City", p.Info.City()),
		param("DateOfBirth", p.Info.DateOfBirth()),
		param("Gender", string(p.Info.Gender())),
		param("AvatarLink", p.AvatarLink),
		param("CreatedAt", p.CreatedAt),
		param("UpdatedAt", p.UpdatedAt),
	}, false, domain.NewError(domain.ResourceCreationFailed, "user profile was not created"))
	if created.IsError() {
		return domain.FailureFrom[domain.UserProfile](created)
	}
	return domain.Success(p)
}

func (r *ProfileRepository) GetByID(ctx context.Context, id domain.Identifier) domain.Result[domain.UserProfile] {
	return single(ctx, r.store, "ProfileRepository.GetByID", "GetUserProfileById",
		[]dbaccess.Parameter{param("UserProfileID", id.String())},
		restoreProfile, errProfileNotFound.WithDetails(id.String()))
}

func (r *ProfileRepository) GetByIdentityID(ctx context.Context, identityID string) domain.Result[domain.UserProfile] {
	return single(ctx, r.store, "ProfileRepository.GetByIdentityID", "GetUserProfileByIdentityId",
		[]dbaccess.Parameter{param("IdentityID", identityID)},
		restoreProfile, errProfileNotFound.WithDetails(identityID))
}

func (r *ProfileRepository) UpdateBasicInformation(ctx context.Context, id domain.Identifier, info domain.BasicInformation, updatedAt time.Time) domain.Result[bool] {
	return nonQuery(ctx, r.store, "ProfileRepository.UpdateBasicInformation", "UpdateUserProfileBasicInformation", []dbaccess.Parameter{
		param("UserProfileID", id.String()),
		param("FirstName", info.FirstName()),
		param("LastName", info.LastName()),
		param("Address", info.Address()),
		param("City", info.City()),
		param("DateOfBirth", info.DateOfBirth()),
		param("Gender", string(info.Gender())),
		param("UpdatedAt", updatedAt.UTC()),
	}, true, errProfileNotFound.WithDetails(id.String()))
}

func restoreProfile(r *row) domain.Result[domain.UserProfile] {
	return domain.RestoreUserProfile(domain.ProfileRecord{
		ID:         r.str("UserProfileID"),
		IdentityID: r.str("IdentityID"),
		Info: domain.BasicInformationInput{
			FirstName:   r.str("FirstName"),
			LastName:    r.str("LastName"),
			Address:     r.str("Address"),
			City:        r.str("City"),
			DateOfBirth: r.time("DateOfBirth"),
			Gender:      r.str("Gender"),
		},
		AvatarLink: r.str("AvatarLink"),
		CreatedAt:  r.time("CreatedAt"),
		UpdatedAt:  r.time("UpdatedAt"),
	})
}
