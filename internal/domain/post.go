package domain

import (
	"context"
	"time"
)

// Post is a titled piece of content owned by a user profile.
type Post struct {
	ID            Identifier
	UserProfileID Identifier
	Title         Title
	Body          Body
	ImageLink     string // empty when the post has no image
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewPost creates a post that has not been persisted yet.
func NewPost(owner Identifier, title Title, body Body, imageLink string, now time.Time) Result[Post] {
	if owner.IsZero() {
		return Failure[Post](NewError(InvalidInput, "post owner is required"))
	}
	now = now.UTC()
	return Success(Post{
		ID:            GenerateIdentifier(),
		UserProfileID: owner,
		Title:         title,
		Body:          body,
		ImageLink:     imageLink,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

// PostRecord holds the raw column values of a stored post. A nil Title or
// Body means the column was NULL.
type PostRecord struct {
	ID            string
	UserProfileID string
	Title         *string
	Body          *string
	ImageLink     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RestorePost rebuilds a post from storage without touching its timestamps.
func RestorePost(rec PostRecord) Result[Post] {
	id := ParseIdentifier(rec.ID)
	if id.IsError() {
		return FailureFrom[Post](id)
	}
	owner := ParseIdentifier(rec.UserProfileID)
	if owner.IsError() {
		return FailureFrom[Post](owner)
	}

	title := DefaultTitle
	if rec.Title != nil {
		r := NewTitle(*rec.Title)
		if r.IsError() {
			return FailureFrom[Post](r)
		}
		title = r.Value()
	}
	body := DefaultBody
	if rec.Body != nil {
		r := NewBody(*rec.Body)
		if r.IsError() {
			return FailureFrom[Post](r)
		}
		body = r.Value()
	}

	return Success(Post{
		ID:            id.Value(),
		UserProfileID: owner.Value(),
		Title:         title,
		Body:          body,
		ImageLink:     rec.ImageLink,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	})
}

// SortColumn names a column posts may be ordered by.
type SortColumn string

const (
	SortByCreatedAt SortColumn = "CreatedAt"
	SortByUpdatedAt SortColumn = "UpdatedAt"
	SortByTitle     SortColumn = "PostTitle"
)

// SortDirection is ASC or DESC.
type SortDirection string

const (
	SortAscending  SortDirection = "ASC"
	SortDescending SortDirection = "DESC"
)

const MaxPageSize = 100

// PageRequest selects one page of a listing.
type PageRequest struct {
	PageNumber    int
	PageSize      int
	SortColumn    SortColumn
	SortDirection SortDirection
}

// Validate checks paging bounds and the sort whitelist.
func (p PageRequest) Validate() []Error {
	var errs []Error
	if p.PageNumber < 1 {
		errs = append(errs, NewError(InvalidInput, "page number must be at least 1"))
	}
	if p.PageSize < 1 || p.PageSize > MaxPageSize {
		errs = append(errs, NewError(InvalidInput, "page size must be between 1 and 100"))
	}
	switch p.SortColumn {
	case SortByCreatedAt, SortByUpdatedAt, SortByTitle:
	default:
		errs = append(errs, NewError(InvalidInput, "unsupported sort column").WithDetails(string(p.SortColumn)))
	}
	switch p.SortDirection {
	case SortAscending, SortDescending:
	default:
		errs = append(errs, NewError(InvalidInput, "unsupported sort direction").WithDetails(string(p.SortDirection)))
	}
	return errs
}

// Page is one slice of a listing plus the total row count.
type Page[T any] struct {
	Items      []T `json:"items"`
	PageNumber int `json:"pageNumber"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
}

// PostRepository persists posts.
type PostRepository interface {
	Create(ctx context.Context, post Post) Result[Post]
	GetByID(ctx context.Context, id Identifier) Result[Post]
	Delete(ctx context.Context, id, owner Identifier) Result[bool]
	CountByUser(ctx context.Context, owner Identifier) Result[int]
	ListByUser(ctx context.Context, owner Identifier, page PageRequest) Result[[]Post]
	UpdateContents(ctx context.Context, id Identifier, title Title, body Body, updatedAt time.Time) Result[bool]
	UpdateImageLink(ctx context.Context, id Identifier, link string, updatedAt time.Time) Result[bool]
	Exists(ctx context.Context, id Identifier) Result[bool]
}
