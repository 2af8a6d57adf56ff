package domain

import (
	"context"
	"time"
)

// PostComment is a reply attached to a post.
type PostComment struct {
	ID            Identifier
	PostID        Identifier
	UserProfileID Identifier
	Body          CommentBody
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewPostComment(post, author Identifier, body CommentBody, now time.Time) Result[PostComment] {
	if post.IsZero() || author.IsZero() {
		return Failure[PostComment](NewError(InvalidInput, "comment post and author are required"))
	}
	now = now.UTC()
	return Success(PostComment{
		ID:            GenerateIdentifier(),
		PostID:        post,
		UserProfileID: author,
		Body:          body,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

// CommentRecord holds the raw column values of a stored comment.
type CommentRecord struct {
	ID            string
	PostID        string
	UserProfileID string
	Body          *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func RestorePostComment(rec CommentRecord) Result[PostComment] {
	ids := make([]Identifier, 0, 3)
	for _, raw := range []string{rec.ID, rec.PostID, rec.UserProfileID} {
		r := ParseIdentifier(raw)
		if r.IsError() {
			return FailureFrom[PostComment](r)
		}
		ids = append(ids, r.Value())
	}

	body := DefaultCommentBody
	if rec.Body != nil {
		r := NewCommentBody(*rec.Body)
		if r.IsError() {
			return FailureFrom[PostComment](r)
		}
		body = r.Value()
	}

	return Success(PostComment{
		ID:            ids[0],
		PostID:        ids[1],
		UserProfileID: ids[2],
		Body:          body,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	})
}

// CommentRepository persists comments.
type CommentRepository interface {
	Create(ctx context.Context, comment PostComment) Result[PostComment]
	GetByID(ctx context.Context, id Identifier) Result[PostComment]
	Delete(ctx context.Context, id, author Identifier) Result[bool]
	UpdateContents(ctx context.Context, id Identifier, body CommentBody, updatedAt time.Time) Result[bool]
	ListForPost(ctx context.Context, post Identifier, pageNumber, pageSize int) Result[[]PostComment]
	CountByPost(ctx context.Context, post Identifier) Result[int]
	Exists(ctx context.Context, id Identifier) Result[bool]
}
