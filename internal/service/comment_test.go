package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/msomdec/postbook/internal/domain"
)

func TestCommentService_CreateAndList(t *testing.T) {
	env := newTestEnv(t)
	comments := env.commentService()
	ctx := context.Background()
	author := newProfile(t, env, "identity-1")
	post := mustSucceed(t, env.postService().Create(ctx, author, "Discuss", "body", nil))

	for _, body := range []string{"first", "second", "third"} {
		mustSucceed(t, comments.Create(ctx, author, post.ID, body))
		env.clock.Advance(time.Second)
	}

	page := mustSucceed(t, comments.ListForPost(ctx, post.ID, 1, 2))
	if page.Total != 3 {
		t.Fatalf("expected total 3, got %d", page.Total)
	}
	if len(page.Items) != 2 || page.Items[0].Body.String() != "first" || page.Items[1].Body.String() != "second" {
		t.Fatalf("unexpected first page %+v", page.Items)
	}

	last := mustSucceed(t, comments.ListForPost(ctx, post.ID, 2, 2))
	if len(last.Items) != 1 || last.Items[0].Body.String() != "third" {
		t.Fatalf("unexpected second page %+v", last.Items)
	}

	wantCode(t, comments.ListForPost(ctx, post.ID, 0, 2), domain.InvalidInput)
	wantCode(t, comments.ListForPost(ctx, post.ID, 1, 101), domain.InvalidInput)
}

func TestCommentService_Create_RequiresPost(t *testing.T) {
	env := newTestEnv(t)
	comments := env.commentService()
	author := newProfile(t, env, "identity-1")

	wantCode(t, comments.Create(context.Background(), author, domain.GenerateIdentifier(), "hello"), domain.NotFound)
}

func TestCommentService_Create_ValidatesBody(t *testing.T) {
	env := newTestEnv(t)
	comments := env.commentService()
	ctx := context.Background()
	author := newProfile(t, env, "identity-1")
	post := mustSucceed(t, env.postService().Create(ctx, author, "Discuss", "body", nil))

	wantCode(t, comments.Create(ctx, author, post.ID, "  "), domain.InvalidInput)
	wantCode(t, comments.Create(ctx, author, post.ID, strings.Repeat("x", domain.MaxCommentBodyLength+1)), domain.InvalidInput)
	mustSucceed(t, comments.Create(ctx, author, post.ID, strings.Repeat("x", domain.MaxCommentBodyLength)))
}

func TestCommentService_UpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	comments := env.commentService()
	ctx := context.Background()
	author := newProfile(t, env, "identity-1")
	other := newProfile(t, env, "identity-2")
	post := mustSucceed(t, env.postService().Create(ctx, author, "Discuss", "body", nil))
	comment := mustSucceed(t, comments.Create(ctx, author, post.ID, "original"))

	wantCode(t, comments.UpdateContents(ctx, other, comment.ID, "edited"), domain.Unauthorized)

	env.clock.Advance(time.Minute)
	updated := mustSucceed(t, comments.UpdateContents(ctx, author, comment.ID, "edited"))
	if updated.Body.String() != "edited" || !updated.UpdatedAt.Equal(env.clock.now) {
		t.Fatalf("unexpected updated comment %+v", updated)
	}
	if got := mustSucceed(t, comments.Get(ctx, comment.ID)); got.Body.String() != "edited" {
		t.Fatalf("expected stored body edited, got %q", got.Body)
	}

	wantCode(t, comments.Delete(ctx, other, comment.ID), domain.NotFound)
	mustSucceed(t, comments.Delete(ctx, author, comment.ID))
	wantCode(t, comments.Get(ctx, comment.ID), domain.NotFound)
}

func TestCommentService_DeletingPostRemovesComments(t *testing.T) {
	env := newTestEnv(t)
	comments := env.commentService()
	posts := env.postService()
	ctx := context.Background()
	author := newProfile(t, env, "identity-1")
	post := mustSucceed(t, posts.Create(ctx, author, "Discuss", "body", nil))
	comment := mustSucceed(t, comments.Create(ctx, author, post.ID, "hello"))

	mustSucceed(t, posts.Delete(ctx, author, post.ID))
	wantCode(t, comments.Get(ctx, comment.ID), domain.NotFound)
}
