package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/msomdec/postbook/internal/domain"
)

var errNotOwner = domain.NewError(domain.Unauthorized, "resource belongs to another user")

// ImageUpload is an optional file attached to a post.
type ImageUpload struct {
	Reader   io.Reader
	FileName string
}

// PostService creates, reads, edits and deletes posts and their images.
type PostService struct {
	posts  domain.PostRepository
	files  domain.FileStorage
	errs   *domain.ErrorHandler
	logger *slog.Logger
	now    func() time.Time
}

// NewPostService creates a new PostService. A nil now uses time.Now.
func NewPostService(posts domain.PostRepository, files domain.FileStorage, errs *domain.ErrorHandler, now func() time.Time) *PostService {
	if errs == nil {
		errs = domain.NewErrorHandler(nil)
	}
	if now == nil {
		now = time.Now
	}
	return &PostService{posts: posts, files: files, errs: errs, logger: slog.Default(), now: now}
}

// Create validates title and body, stores the image if one is given and
// persists the post. The image is removed again when the post is not saved.
func (s *PostService) Create(ctx context.Context, owner domain.Identifier, title, body string, image *ImageUpload) domain.Result[domain.Post] {
	const op = "PostService.Create"
	if e, done := domain.CheckContext(ctx, op); done {
		return domain.Failure[domain.Post](e)
	}

	t, b := domain.NewTitle(title), domain.NewBody(body)
	if errs := append(t.Errors(), b.Errors()...); len(errs) > 0 {
		return domain.Failures[domain.Post](errs)
	}

	link := ""
	if image != nil {
		saved := s.saveImage(ctx, op, image)
		if saved.IsError() {
			return domain.FailureFrom[domain.Post](saved)
		}
		link = saved.Value()
	}

	post := domain.NewPost(owner, t.Value(), b.Value(), link, s.now())
	if post.IsError() {
		s.deleteImage(ctx, op, link)
		return post
	}
	created := s.posts.Create(ctx, post.Value())
	if created.IsError() {
		s.deleteImage(ctx, op, link)
	}
	return created
}

func (s *PostService) Get(ctx context.Context, id domain.Identifier) domain.Result[domain.Post] {
	return s.posts.GetByID(ctx, id)
}

// ListByUser returns one page of owner's posts together with their total.
func (s *PostService) ListByUser(ctx context.Context, owner domain.Identifier, page domain.PageRequest) domain.Result[domain.Page[domain.Post]] {
	items := s.posts.ListByUser(ctx, owner, page)
	if items.IsError() {
		return domain.FailureFrom[domain.Page[domain.Post]](items)
	}
	total := s.posts.CountByUser(ctx, owner)
	if total.IsError() {
		return domain.FailureFrom[domain.Page[domain.Post]](total)
	}
	return domain.Success(domain.Page[domain.Post]{
		Items:      items.Value(),
		PageNumber: page.PageNumber,
		PageSize:   page.PageSize,
		Total:      total.Value(),
	})
}

// UpdateContents replaces title and body of a post owned by caller.
func (s *PostService) UpdateContents(ctx context.Context, caller, id domain.Identifier, title, body string) domain.Result[domain.Post] {
	t, b := domain.NewTitle(title), domain.NewBody(body)
	if errs := append(t.Errors(), b.Errors()...); len(errs) > 0 {
		return domain.Failures[domain.Post](errs)
	}

	post := s.owned(ctx, caller, id)
	if post.IsError() {
		return post
	}
	now := s.now().UTC()
	if updated := s.posts.UpdateContents(ctx, id, t.Value(), b.Value(), now); updated.IsError() {
		return domain.FailureFrom[domain.Post](updated)
	}

	p := post.Value()
	p.Title, p.Body, p.UpdatedAt = t.Value(), b.Value(), now
	return domain.Success(p)
}

// UpdateImage swaps the image of a post owned by caller. A nil image clears
// it. The previous image is deleted once the post points elsewhere.
func (s *PostService) UpdateImage(ctx context.Context, caller, id domain.Identifier, image *ImageUpload) domain.Result[domain.Post] {
	const op = "PostService.UpdateImage"
	post := s.owned(ctx, caller, id)
	if post.IsError() {
		return post
	}

	link := ""
	if image != nil {
		saved := s.saveImage(ctx, op, image)
		if saved.IsError() {
			return domain.FailureFrom[domain.Post](saved)
		}
		link = saved.Value()
	}

	now := s.now().UTC()
	if updated := s.posts.UpdateImageLink(ctx, id, link, now); updated.IsError() {
		s.deleteImage(ctx, op, link)
		return domain.FailureFrom[domain.Post](updated)
	}

	p := post.Value()
	s.deleteImage(ctx, op, p.ImageLink)
	p.ImageLink, p.UpdatedAt = link, now
	return domain.Success(p)
}

// Delete removes a post owned by caller and then its image. Posts owned by
// someone else are reported as not found.
func (s *PostService) Delete(ctx context.Context, caller, id domain.Identifier) domain.Result[bool] {
	const op = "PostService.Delete"
	post := s.posts.GetByID(ctx, id)
	if post.IsError() {
		return domain.FailureFrom[bool](post)
	}
	deleted := s.posts.Delete(ctx, id, caller)
	if deleted.IsError() {
		return deleted
	}
	s.deleteImage(ctx, op, post.Value().ImageLink)
	return deleted
}

func (s *PostService) owned(ctx context.Context, caller, id domain.Identifier) domain.Result[domain.Post] {
	post := s.posts.GetByID(ctx, id)
	if post.IsError() {
		return post
	}
	if post.Value().UserProfileID != caller {
		return domain.Failure[domain.Post](errNotOwner.WithDetails(id.String()))
	}
	return post
}

func (s *PostService) saveImage(ctx context.Context, op string, image *ImageUpload) domain.Result[string] {
	if e, done := domain.CheckContext(ctx, op); done {
		return domain.Failure[string](e)
	}
	link, err := s.files.Save(ctx, image.Reader, image.FileName)
	if err != nil {
		return domain.Failure[string](collaboratorError(ctx, s.errs, op, err))
	}
	return domain.Success(link)
}

// deleteImage is best-effort: the post is already consistent without it.
func (s *PostService) deleteImage(ctx context.Context, op, link string) {
	if link == "" {
		return
	}
	if err := s.files.Delete(context.WithoutCancel(ctx), link); err != nil {
		s.logger.WarnContext(ctx, "failed to delete image", "op", op, "link", link, "error", err)
	}
}
