package service

import (
	"context"
	"time"

	"github.com/msomdec/postbook/internal/domain"
)

// CommentService manages comments on posts.
type CommentService struct {
	comments domain.CommentRepository
	posts    domain.PostRepository
	now      func() time.Time
}

// NewCommentService creates a new CommentService. A nil now uses time.Now.
func NewCommentService(comments domain.CommentRepository, posts domain.PostRepository, now func() time.Time) *CommentService {
	if now == nil {
		now = time.Now
	}
	return &CommentService{comments: comments, posts: posts, now: now}
}

// Create adds a comment by author to an existing post.
func (s *CommentService) Create(ctx context.Context, author, post domain.Identifier, body string) domain.Result[domain.PostComment] {
	b := domain.NewCommentBody(body)
	if b.IsError() {
		return domain.FailureFrom[domain.PostComment](b)
	}

	exists := s.posts.Exists(ctx, post)
	if exists.IsError() {
		return domain.FailureFrom[domain.PostComment](exists)
	}
	if !exists.Value() {
		return domain.Failure[domain.PostComment](domain.NewError(domain.NotFound, "post not found").WithDetails(post.String()))
	}

	comment := domain.NewPostComment(post, author, b.Value(), s.now())
	if comment.IsError() {
		return comment
	}
	return s.comments.Create(ctx, comment.Value())
}

func (s *CommentService) Get(ctx context.Context, id domain.Identifier) domain.Result[domain.PostComment] {
	return s.comments.GetByID(ctx, id)
}

// ListForPost returns one page of a post's comments, oldest first, with the
// total number of comments on the post.
func (s *CommentService) ListForPost(ctx context.Context, post domain.Identifier, pageNumber, pageSize int) domain.Result[domain.Page[domain.PostComment]] {
	items := s.comments.ListForPost(ctx, post, pageNumber, pageSize)
	if items.IsError() {
		return domain.FailureFrom[domain.Page[domain.PostComment]](items)
	}
	total := s.comments.CountByPost(ctx, post)
	if total.IsError() {
		return domain.FailureFrom[domain.Page[domain.PostComment]](total)
	}
	return domain.Success(domain.Page[domain.PostComment]{
		Items:      items.Value(),
		PageNumber: pageNumber,
		PageSize:   pageSize,
		Total:      total.Value(),
	})
}

// UpdateContents replaces the text of a comment written by caller.
func (s *CommentService) UpdateContents(ctx context.Context, caller, id domain.Identifier, body string) domain.Result[domain.PostComment] {
	b := domain.NewCommentBody(body)
	if b.IsError() {
		return domain.FailureFrom[domain.PostComment](b)
	}

	comment := s.comments.GetByID(ctx, id)
	if comment.IsError() {
		return comment
	}
	if comment.Value().UserProfileID != caller {
		return domain.Failure[domain.PostComment](errNotOwner.WithDetails(id.String()))
	}

	now := s.now().UTC()
	if updated := s.comments.UpdateContents(ctx, id, b.Value(), now); updated.IsError() {
		return domain.FailureFrom[domain.PostComment](updated)
	}
	c := comment.Value()
	c.Body, c.UpdatedAt = b.Value(), now
	return domain.Success(c)
}

// Delete removes a comment written by caller; anyone else gets NotFound.
func (s *CommentService) Delete(ctx context.Context, caller, id domain.Identifier) domain.Result[bool] {
	return s.comments.Delete(ctx, id, caller)
}
