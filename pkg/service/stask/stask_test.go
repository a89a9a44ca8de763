package stask_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewbase/crewbase/pkg/model/mtask"
	"github.com/crewbase/crewbase/pkg/model/mtaskcomment"
	"github.com/crewbase/crewbase/pkg/service/stask"
	"github.com/crewbase/crewbase/pkg/testutil"
)

func newService(ctx context.Context, t *testing.T) stask.TaskService {
	t.Helper()
	return stask.New(testutil.OpenTestDB(ctx, t))
}

func TestTaskRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newService(ctx, t)

	due := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	assignee := int64(7)
	task := &mtask.Task{
		Title:       "Restock supplies",
		Description: "storage room B",
		Status:      mtask.StatusTodo,
		Priority:    mtask.PriorityHigh,
		DueDate:     &due,
		AssigneeID:  &assignee,
		CreatedBy:   1,
		CreatedAt:   time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, svc.CreateTask(ctx, task))
	require.NotZero(t, task.ID)

	got, err := svc.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, *task, *got)
}

func TestTaskNullableFieldsStayNil(t *testing.T) {
	ctx := context.Background()
	svc := newService(ctx, t)

	task := &mtask.Task{
		Title:     "No due date",
		Status:    mtask.StatusTodo,
		Priority:  mtask.PriorityNormal,
		CreatedBy: 1,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, svc.CreateTask(ctx, task))

	got, err := svc.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DueDate)
	assert.Nil(t, got.AssigneeID)
}

func TestListTasksByStatus(t *testing.T) {
	ctx := context.Background()
	svc := newService(ctx, t)

	now := time.Now().UTC().Truncate(time.Second)
	for _, status := range []mtask.Status{mtask.StatusTodo, mtask.StatusDoing, mtask.StatusTodo} {
		task := &mtask.Task{
			Title:     "t",
			Status:    status,
			Priority:  mtask.PriorityNormal,
			CreatedBy: 1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, svc.CreateTask(ctx, task))
	}

	todo, err := svc.ListTasksByStatus(ctx, mtask.StatusTodo)
	require.NoError(t, err)
	assert.Len(t, todo, 2)

	done, err := svc.ListTasksByStatus(ctx, mtask.StatusDone)
	require.NoError(t, err)
	assert.Empty(t, done)
}

func TestUpdateTaskNotFound(t *testing.T) {
	ctx := context.Background()
	svc := newService(ctx, t)

	err := svc.UpdateTask(ctx, &mtask.Task{ID: 99, Title: "x", Status: mtask.StatusTodo})
	assert.ErrorIs(t, err, stask.ErrTaskNotFound)

	_, err = svc.GetTask(ctx, 99)
	assert.ErrorIs(t, err, stask.ErrTaskNotFound)
}

func TestCommentLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newService(ctx, t)

	now := time.Now().UTC().Truncate(time.Second)
	task := &mtask.Task{Title: "t", Status: mtask.StatusTodo, Priority: mtask.PriorityNormal, CreatedBy: 1, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, svc.CreateTask(ctx, task))

	root := &mtaskcomment.Comment{TaskID: task.ID, AuthorID: 1, Body: "first", CreatedAt: now}
	require.NoError(t, svc.CreateComment(ctx, root))

	reply := &mtaskcomment.Comment{TaskID: task.ID, ParentID: &root.ID, AuthorID: 2, Body: "second", CreatedAt: now}
	require.NoError(t, svc.CreateComment(ctx, reply))

	comments, err := svc.ListComments(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	require.NotNil(t, comments[1].ParentID)
	assert.Equal(t, root.ID, *comments[1].ParentID)

	root.Body = "edited"
	require.NoError(t, svc.UpdateComment(ctx, root))
	got, err := svc.GetComment(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Body)

	require.NoError(t, svc.DeleteComment(ctx, reply.ID))
	_, err = svc.GetComment(ctx, reply.ID)
	assert.ErrorIs(t, err, stask.ErrTaskCommentNotFound)
}
