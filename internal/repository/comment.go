package repository

import (
	"context"
	"time"

	"github.com/msomdec/postbook/internal/dbaccess"
	"github.com/msomdec/postbook/internal/domain"
)

var errCommentNotFound = domain.NewError(domain.NotFound, "comment not found")

// CommentRepository implements domain.CommentRepository.
type CommentRepository struct {
	store
}

// NewCommentRepository creates a new CommentRepository.
func NewCommentRepository(factory dbaccess.ConnectionFactory, connString string, errs *domain.ErrorHandler) *CommentRepository {
	return &CommentRepository{store: newStore(factory, connString, errs)}
}

func (r *CommentRepository) Create(ctx context.Context, c domain.PostComment) domain.Result[domain.PostComment] {
	created := nonQuery(ctx, r.store, "CommentRepository.Create", "CreatePostComment", []dbaccess.Parameter{
		param("CommentID", c.ID.String()),
		param("PostID", c.PostID.String()),
		param("UserProfileID", c.UserProfileID.String()),
		param("CommentContent", c.Body.String()),
		param("CreatedAt", c.CreatedAt),
		param("UpdatedAt", c.UpdatedAt),
	}, false, domain.NewError(domain.ResourceCreationFailed, "comment was not created"))
	if created.IsError() {
		return domain.FailureFrom[domain.PostComment](created)
	}
	return domain.Success(c)
}

func (r *CommentRepository) GetByID(ctx context.Context, id domain.Identifier) domain.Result[domain.PostComment] {
	return single(ctx, r.store, "CommentRepository.GetByID", "GetCommentByID",
		[]dbaccess.Parameter{param("CommentID", id.String())},
		restoreComment, errCommentNotFound.WithDetails(id.String()))
}

// Delete removes a comment written by author; any other author sees NotFound.
func (r *CommentRepository) Delete(ctx context.Context, id, author domain.Identifier) domain.Result[bool] {
	return nonQuery(ctx, r.store, "CommentRepository.Delete", "DeleteComment", []dbaccess.Parameter{
		param("CommentID", id.String()),
		param("UserProfileID", author.String()),
	}, false, errCommentNotFound.WithDetails(id.String()))
}

func (r *CommentRepository) UpdateContents(ctx context.Context, id domain.Identifier, body domain.CommentBody, updatedAt time.Time) domain.Result[bool] {
	return nonQuery(ctx, r.store, "CommentRepository.UpdateContents", "UpdateCommentContents", []dbaccess.Parameter{
		param("CommentID", id.String()),
		param("CommentContent", body.String()),
		param("UpdatedAt", updatedAt.UTC()),
	}, true, errCommentNotFound.WithDetails(id.String()))
}

// ListForPost returns comments oldest first.
func (r *CommentRepository) ListForPost(ctx context.Context, post domain.Identifier, pageNumber, pageSize int) domain.Result[[]domain.PostComment] {
	var errs []domain.Error
	if pageNumber < 1 {
		errs = append(errs, domain.NewError(domain.InvalidInput, "page number must be at least 1"))
	}
	if pageSize < 1 || pageSize > domain.MaxPageSize {
		errs = append(errs, domain.NewError(domain.InvalidInput, "page size must be between 1 and 100"))
	}
	if len(errs) > 0 {
		return domain.Failures[[]domain.PostComment](errs)
	}
	return query(ctx, r.store, "CommentRepository.ListForPost", "GetCommentsForAPost", []dbaccess.Parameter{
		param("PostID", post.String()),
		param("PageNumber", pageNumber),
		param("PageSize", pageSize),
	}, restoreComment)
}

func (r *CommentRepository) CountByPost(ctx context.Context, post domain.Identifier) domain.Result[int] {
	return count(ctx, r.store, "CommentRepository.CountByPost", "CountPostCommentsByPost",
		[]dbaccess.Parameter{param("PostID", post.String())})
}

func (r *CommentRepository) Exists(ctx context.Context, id domain.Identifier) domain.Result[bool] {
	return exists(ctx, r.store, "CommentRepository.Exists",
		"SELECT EXISTS(SELECT 1 FROM PostComments WHERE CommentID = @CommentID)",
		[]dbaccess.Parameter{param("CommentID", id.String())})
}

func restoreComment(r *row) domain.Result[domain.PostComment] {
	return domain.RestorePostComment(domain.CommentRecord{
		ID:            r.str("CommentID"),
		PostID:        r.str("PostID"),
		UserProfileID: r.str("UserProfileID"),
		Body:          r.optStr("CommentContent"),
		CreatedAt:     r.time("CreatedAt"),
		UpdatedAt:     r.time("UpdatedAt"),
	})
}
