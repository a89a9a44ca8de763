package screw_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewbase/crewbase/pkg/model/mcrew"
	"github.com/crewbase/crewbase/pkg/model/mtask"
	"github.com/crewbase/crewbase/pkg/testutil"
)

func TestUpsertMemberCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	base := testutil.GetBaseServices(ctx, t)

	member := &mcrew.Member{ID: 7, Name: "Alex", Email: "alex@example.org", RoleLabel: "volunteer"}
	require.NoError(t, base.Crew.UpsertMember(ctx, member))

	member.RoleLabel = "coordinator"
	member.Skills = "first aid"
	require.NoError(t, base.Crew.UpsertMember(ctx, member))

	got, err := base.Crew.GetMember(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, *member, *got)

	members, err := base.Crew.ListMembers(ctx)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestDeleteMemberIsReplaySafe(t *testing.T) {
	ctx := context.Background()
	base := testutil.GetBaseServices(ctx, t)

	require.NoError(t, base.Crew.UpsertMember(ctx, &mcrew.Member{ID: 7, Name: "Alex", RoleLabel: "volunteer"}))
	require.NoError(t, base.Crew.DeleteMember(ctx, 7))
	require.NoError(t, base.Crew.DeleteMember(ctx, 7))
}

func TestRosterCountsOpenTasks(t *testing.T) {
	ctx := context.Background()
	base := testutil.GetBaseServices(ctx, t)

	require.NoError(t, base.Crew.UpsertMember(ctx, &mcrew.Member{ID: 7, Name: "Alex", RoleLabel: "volunteer"}))
	require.NoError(t, base.Crew.UpsertMember(ctx, &mcrew.Member{ID: 9, Name: "Sam", RoleLabel: "coordinator"}))

	now := time.Now().UTC().Truncate(time.Second)
	seven := int64(7)
	for _, status := range []mtask.Status{mtask.StatusTodo, mtask.StatusDoing, mtask.StatusDone} {
		task := &mtask.Task{
			Title:      "t",
			Status:     status,
			Priority:   mtask.PriorityNormal,
			AssigneeID: &seven,
			CreatedBy:  9,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		require.NoError(t, base.Tasks.CreateTask(ctx, task))
	}

	roster, err := base.Crew.Roster(ctx)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, int64(2), roster[0].OpenTasks, "done tasks do not count")
	assert.Zero(t, roster[1].OpenTasks)
}
