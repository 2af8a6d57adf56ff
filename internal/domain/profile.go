package domain

import (
	"context"
	"time"
)

// UserProfile is the public face of an identity.
type UserProfile struct {
	ID         Identifier
	IdentityID string
	Info       BasicInformation
	AvatarLink string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewUserProfile(identityID string, info BasicInformation, avatarLink string, now time.Time) Result[UserProfile] {
	if identityID == "" {
		return Failure[UserProfile](NewError(InvalidInput, "profile identity is required"))
	}
	now = now.UTC()
	return Success(UserProfile{
		ID:         GenerateIdentifier(),
		IdentityID: identityID,
		Info:       info,
		AvatarLink: avatarLink,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

// ProfileRecord holds the raw column values of a stored profile.
type ProfileRecord struct {
	ID         string
	IdentityID string
	Info       BasicInformationInput
	AvatarLink string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func RestoreUserProfile(rec ProfileRecord) Result[UserProfile] {
	id := ParseIdentifier(rec.ID)
	if id.IsError() {
		return FailureFrom[UserProfile](id)
	}
	info := RestoreBasicInformation(rec.Info)
	if info.IsError() {
		return FailureFrom[UserProfile](info)
	}
	return Success(UserProfile{
		ID:         id.Value(),
		IdentityID: rec.IdentityID,
		Info:       info.Value(),
		AvatarLink: rec.AvatarLink,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	})
}

// ProfileRepository persists user profiles.
type ProfileRepository interface {
	Create(ctx context.Context, profile UserProfile) Result[UserProfile]
	GetByID(ctx context.Context, id Identifier) Result[UserProfile]
	GetByIdentityID(ctx context.Context, identityID string) Result[UserProfile]
	UpdateBasicInformation(ctx context.Context, id Identifier, info BasicInformation, updatedAt time.Time) Result[bool]
}
