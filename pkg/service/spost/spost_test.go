package spost_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewbase/crewbase/pkg/model/mpost"
	"github.com/crewbase/crewbase/pkg/service/spost"
	"github.com/crewbase/crewbase/pkg/testutil"
)

func newService(ctx context.Context, t *testing.T) spost.PostService {
	t.Helper()
	return spost.New(testutil.OpenTestDB(ctx, t))
}

func TestPostRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newService(ctx, t)

	post := &mpost.Post{
		Body:      "Welcome everyone",
		AuthorID:  7,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, svc.CreatePost(ctx, post))
	require.NotZero(t, post.ID)

	got, err := svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, *post, *got)

	_, err = svc.GetPost(ctx, 99)
	assert.ErrorIs(t, err, spost.ErrPostNotFound)
}

func TestCommentsBelongToPost(t *testing.T) {
	ctx := context.Background()
	svc := newService(ctx, t)

	now := time.Now().UTC().Truncate(time.Second)
	first := &mpost.Post{Body: "a", AuthorID: 7, CreatedAt: now}
	second := &mpost.Post{Body: "b", AuthorID: 7, CreatedAt: now}
	require.NoError(t, svc.CreatePost(ctx, first))
	require.NoError(t, svc.CreatePost(ctx, second))

	require.NoError(t, svc.CreateComment(ctx, &mpost.Comment{PostID: first.ID, Body: "on first", AuthorID: 9, CreatedAt: now}))
	require.NoError(t, svc.CreateComment(ctx, &mpost.Comment{PostID: second.ID, Body: "on second", AuthorID: 9, CreatedAt: now}))

	comments, err := svc.ListComments(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "on first", comments[0].Body)
}

func TestUpdateAndDeleteComment(t *testing.T) {
	ctx := context.Background()
	svc := newService(ctx, t)

	now := time.Now().UTC().Truncate(time.Second)
	post := &mpost.Post{Body: "a", AuthorID: 7, CreatedAt: now}
	require.NoError(t, svc.CreatePost(ctx, post))

	comment := &mpost.Comment{PostID: post.ID, Body: "draft", AuthorID: 9, CreatedAt: now}
	require.NoError(t, svc.CreateComment(ctx, comment))

	comment.Body = "final"
	require.NoError(t, svc.UpdateComment(ctx, comment))
	got, err := svc.GetComment(ctx, comment.ID)
	require.NoError(t, err)
	assert.Equal(t, "final", got.Body)

	require.NoError(t, svc.DeleteComment(ctx, comment.ID))
	_, err = svc.GetComment(ctx, comment.ID)
	assert.ErrorIs(t, err, spost.ErrCommentNotFound)
}
