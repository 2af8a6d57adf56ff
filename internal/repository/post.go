package repository

import (
	"context"
	"time"

	"github.com/msomdec/postbook/internal/dbaccess"
	"github.com/msomdec/postbook/internal/domain"
)

var errPostNotFound = domain.NewError(domain.NotFound, "post not found")

// PostRepository implements domain.PostRepository.
type PostRepository struct {
	store
}

// NewPostRepository creates a new PostRepository.
func NewPostRepository(factory dbaccess.ConnectionFactory, connString string, errs *domain.ErrorHandler) *PostRepository {
	return &PostRepository{store: newStore(factory, connString, errs)}
}

func (r *PostRepository) Create(ctx context.Context, post domain.Post) domain.Result[domain.Post] {
	created := nonQuery(ctx, r.store, "PostRepository.Create", "CreatePost", []dbaccess.Parameter{
		param("PostID", post.ID.String()),
		param("UserProfileID", post.UserProfileID.String()),
		param("PostTitle", post.Title.String()),
		param("PostContent", post.Body.String()),
		param("PostImage", post.ImageLink),
		param("CreatedAt", post.CreatedAt),
		param("UpdatedAt", post.UpdatedAt),
	}, false, domain.NewError(domain.ResourceCreationFailed, "post was not created"))
	if created.IsError() {
		return domain.FailureFrom[domain.Post](created)
	}
	return domain.Success(post)
}

func (r *PostRepository) GetByID(ctx context.Context, id domain.Identifier) domain.Result[domain.Post] {
	return single(ctx, r.store, "PostRepository.GetByID", "GetPostById",
		[]dbaccess.Parameter{param("PostID", id.String())},
		restorePost, errPostNotFound.WithDetails(id.String()))
}

// Delete removes a post owned by owner; any other owner sees NotFound.
func (r *PostRepository) Delete(ctx context.Context, id, owner domain.Identifier) domain.Result[bool] {
	return nonQuery(ctx, r.store, "PostRepository.Delete", "DeletePost", []dbaccess.Parameter{
		param("PostID", id.String()),
		param("UserProfileID", owner.String()),
	}, false, errPostNotFound.WithDetails(id.String()))
}

func (r *PostRepository) CountByUser(ctx context.Context, owner domain.Identifier) domain.Result[int] {
	return count(ctx, r.store, "PostRepository.CountByUser", "CountPostsByUser",
		[]dbaccess.Parameter{param("UserProfileID", owner.String())})
}

// ListByUser returns one page of a user's posts. The page request is
// validated before any I/O.
func (r *PostRepository) ListByUser(ctx context.Context, owner domain.Identifier, page domain.PageRequest) domain.Result[[]domain.Post] {
	if errs := page.Validate(); len(errs) > 0 {
		return domain.Failures[[]domain.Post](errs)
	}
	return query(ctx, r.store, "PostRepository.ListByUser", "GetPostsByUserWithPagination", []dbaccess.Parameter{
		param("UserProfileID", owner.String()),
		param("PageNumber", page.PageNumber),
		param("PageSize", page.PageSize),
		param("SortColumn", string(page.SortColumn)),
		param("SortDirection", string(page.SortDirection)),
	}, restorePost)
}

func (r *PostRepository) UpdateContents(ctx context.Context, id domain.Identifier, title domain.Title, body domain.Body, updatedAt time.Time) domain.Result[bool] {
	return nonQuery(ctx, r.store, "PostRepository.UpdateContents", "UpdatePostContents", []dbaccess.Parameter{
		param("PostID", id.String()),
		param("PostTitle", title.String()),
		param("PostContent", body.String()),
		param("UpdatedAt", updatedAt.UTC()),
	}, true, errPostNotFound.WithDetails(id.String()))
}

func (r *PostRepository) UpdateImageLink(ctx context.Context, id domain.Identifier, link string, updatedAt time.Time) domain.Result[bool] {
	return nonQuery(ctx, r.store, "PostRepository.UpdateImageLink", "UpdatePostImageLink", []dbaccess.Parameter{
		param("PostID", id.String()),
		param("PostImage", link),
		param("UpdatedAt", updatedAt.UTC()),
	}, true, errPostNotFound.WithDetails(id.String()))
}

func (r *PostRepository) Exists(ctx context.Context, id domain.Identifier) domain.Result[bool] {
	return exists(ctx, r.store, "PostRepository.Exists",
		"SELECT EXISTS(SELECT 1 FROM Posts WHERE PostID = @PostID)",
		[]dbaccess.Parameter{param("PostID", id.String())})
}

func restorePost(r *row) domain.Result[domain.Post] {
	rec := domain.PostRecord{
		ID:            r.str("PostID"),
		UserProfileID: r.str("UserProfileID"),
		Title:         r.optStr("PostTitle"),
		Body:          r.optStr("PostContent"),
		ImageLink:     r.str("PostImage"),
		CreatedAt:     r.time("CreatedAt"),
		UpdatedAt:     r.time("UpdatedAt"),
	}
	return domain.RestorePost(rec)
}
