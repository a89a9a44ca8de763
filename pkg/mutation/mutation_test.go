package mutation_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewbase/crewbase/pkg/apperror"
	"github.com/crewbase/crewbase/pkg/capability"
	"github.com/crewbase/crewbase/pkg/event"
	"github.com/crewbase/crewbase/pkg/model/maccount"
	"github.com/crewbase/crewbase/pkg/model/mnotification"
	"github.com/crewbase/crewbase/pkg/model/mtask"
	"github.com/crewbase/crewbase/pkg/mutation"
	"github.com/crewbase/crewbase/pkg/patch"
	"github.com/crewbase/crewbase/pkg/testutil"
)

type capturePublisher struct {
	events []event.Event
}

func (c *capturePublisher) PublishAll(events []event.Event) {
	c.events = append(c.events, events...)
}

type fixture struct {
	pipeline *mutation.Pipeline
	services testutil.BaseTestServices
	pub      *capturePublisher
	now      time.Time
}

func newFixture(ctx context.Context, t *testing.T, toggles capability.StaticToggles) *fixture {
	t.Helper()

	services := testutil.GetBaseServices(ctx, t)
	pub := &capturePublisher{}
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	pipeline := mutation.New(mutation.Deps{
		DB:            services.DB,
		Authz:         capability.NewResolver(toggles, capability.WithClock(clock)),
		Accounts:      services.Accounts,
		Tasks:         services.Tasks,
		Funding:       services.Funding,
		Posts:         services.Posts,
		Notifications: services.Notifications,
		Publisher:     pub,
		Logger:        testutil.Logger(),
	}, mutation.WithClock(clock))

	return &fixture{pipeline: pipeline, services: services, pub: pub, now: now}
}

func defaultToggles() capability.StaticToggles {
	return capability.StaticToggles{VolunteerTasks: false, Window: 15 * time.Minute}
}

func seedAccount(ctx context.Context, t *testing.T, f *fixture, name string, roles ...maccount.Role) maccount.Account {
	t.Helper()

	account := &maccount.Account{DisplayName: name, Email: name + "@crew.test", Roles: roles}
	require.NoError(t, f.services.Accounts.CreateAccount(ctx, account))
	return *account
}

func TestCreateTaskReturnsCanonicalAndPublishes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t, defaultToggles())
	coordinator := seedAccount(ctx, t, f, "dana", maccount.RoleCoordinator)
	assignee := seedAccount(ctx, t, f, "lee", maccount.RoleVolunteer)

	task, err := f.pipeline.CreateTask(ctx, coordinator, mutation.TaskCreateInput{
		Title:      "  Pack supplies  ",
		AssigneeID: &assignee.ID,
	})
	require.NoError(t, err)
	assert.Positive(t, task.ID)
	assert.Equal(t, "Pack supplies", task.Title)
	assert.Equal(t, mtask.StatusTodo, task.Status)
	assert.Equal(t, coordinator.ID, task.CreatedBy)
	assert.Equal(t, f.now, task.CreatedAt)

	require.Len(t, f.pub.events, 1)
	evt := f.pub.events[0]
	assert.Equal(t, event.EntityTask, evt.Entity)
	assert.Equal(t, event.OpCreate, evt.Op)
	assert.Equal(t, task.ID, evt.EntityID)
	assert.Equal(t, coordinator.ID, evt.ActorID)
}

func TestCreateTaskValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t, defaultToggles())
	coordinator := seedAccount(ctx, t, f, "dana", maccount.RoleCoordinator)

	_, err := f.pipeline.CreateTask(ctx, coordinator, mutation.TaskCreateInput{Title: "   "})
	assert.True(t, apperror.Is(err, apperror.CodeInvalid))

	missing := int64(999)
	_, err = f.pipeline.CreateTask(ctx, coordinator, mutation.TaskCreateInput{Title: "x", AssigneeID: &missing})
	assert.True(t, apperror.Is(err, apperror.CodeInvalid))

	assert.Empty(t, f.pub.events, "failed mutations must not publish")
}

func TestVolunteerTaskCreateFollowsToggle(t *testing.T) {
	ctx := context.Background()

	f := newFixture(ctx, t, defaultToggles())
	volunteer := seedAccount(ctx, t, f, "sam", maccount.RoleVolunteer)
	_, err := f.pipeline.CreateTask(ctx, volunteer, mutation.TaskCreateInput{Title: "x"})
	assert.True(t, apperror.Is(err, apperror.CodeDenied))

	enabled := defaultToggles()
	enabled.VolunteerTasks = true
	f = newFixture(ctx, t, enabled)
	volunteer = seedAccount(ctx, t, f, "sam", maccount.RoleVolunteer)
	_, err = f.pipeline.CreateTask(ctx, volunteer, mutation.TaskCreateInput{Title: "x"})
	assert.NoError(t, err)
}

func TestAssigneeStatusOnlyUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t, defaultToggles())
	coordinator := seedAccount(ctx, t, f, "dana", maccount.RoleCoordinator)
	assignee := seedAccount(ctx, t, f, "lee", maccount.RoleVolunteer)

	task, err := f.pipeline.CreateTask(ctx, coordinator, mutation.TaskCreateInput{
		Title:      "Pack supplies",
		AssigneeID: &assignee.ID,
	})
	require.NoError(t, err)
	f.pub.events = nil

	// Status-only moves are within the assignee's grant.
	updated, err := f.pipeline.UpdateTask(ctx, assignee, task.ID, patch.TaskPatch{
		Status: patch.NewOptional(mtask.StatusDoing),
	})
	require.NoError(t, err)
	assert.Equal(t, mtask.StatusDoing, updated.Status)
	require.Len(t, f.pub.events, 1)
	assert.Equal(t, event.OpUpdate, f.pub.events[0].Op)

	// Anything wider is denied.
	_, err = f.pipeline.UpdateTask(ctx, assignee, task.ID, patch.TaskPatch{
		Status: patch.NewOptional(mtask.StatusDone),
		Title:  patch.NewOptional("renamed"),
	})
	assert.True(t, apperror.Is(err, apperror.CodeDenied))
}

func TestUpdateTaskNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t, defaultToggles())
	coordinator := seedAccount(ctx, t, f, "dana", maccount.RoleCoordinator)

	_, err := f.pipeline.UpdateTask(ctx, coordinator, 404, patch.TaskPatch{
		Title: patch.NewOptional("x"),
	})
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))
}

func TestPostEditOutsideWindowBecomesModeration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t, defaultToggles())
	author := seedAccount(ctx, t, f, "sam", maccount.RoleVolunteer)

	post, err := f.pipeline.CreatePost(ctx, author, "original body")
	require.NoError(t, err)
	f.pub.events = nil

	// Age the post past the edit window.
	aged, err := f.services.DB.ExecContext(ctx,
		`UPDATE posts SET created_at = ? WHERE id = ?`,
		f.now.Add(-20*time.Minute).Format(time.RFC3339), post.ID)
	require.NoError(t, err)
	n, err := aged.RowsAffected()
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = f.pipeline.UpdatePost(ctx, author, post.ID, patch.PostPatch{
		Body: patch.NewOptional("revised body"),
	})
	require.True(t, apperror.Is(err, apperror.CodeModeration))

	// The store keeps the original body; only a moderation event goes out.
	current, err := f.services.Posts.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "original body", current.Body)

	require.Len(t, f.pub.events, 1)
	evt := f.pub.events[0]
	assert.Equal(t, event.OpModerate, evt.Op)
	assert.Equal(t, event.EntityPost, evt.Entity)
	req, ok := evt.Snapshot.(event.ModerationRequest)
	require.True(t, ok)
	assert.Equal(t, author.ID, req.RequestedBy)
	assert.Equal(t, "update", req.Action)
}

func TestPostEditInsideWindowApplies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t, defaultToggles())
	author := seedAccount(ctx, t, f, "sam", maccount.RoleVolunteer)

	post, err := f.pipeline.CreatePost(ctx, author, "original body")
	require.NoError(t, err)

	updated, err := f.pipeline.UpdatePost(ctx, author, post.ID, patch.PostPatch{
		Body: patch.NewOptional("revised body"),
	})
	require.NoError(t, err)
	assert.Equal(t, "revised body", updated.Body)
}

func TestFundingManageOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t, defaultToggles())
	coordinator := seedAccount(ctx, t, f, "dana", maccount.RoleCoordinator)
	volunteer := seedAccount(ctx, t, f, "sam", maccount.RoleVolunteer)

	in := mutation.FundingCreateInput{
		Kind:   "income",
		Amount: decimal.RequireFromString("120.50"),
		TxDate: f.now,
	}
	_, err := f.pipeline.CreateFunding(ctx, volunteer, in)
	assert.True(t, apperror.Is(err, apperror.CodeDenied))

	tx, err := f.pipeline.CreateFunding(ctx, coordinator, in)
	require.NoError(t, err)
	assert.True(t, tx.Amount.Equal(decimal.RequireFromString("120.50")))

	_, err = f.pipeline.DeleteFunding(ctx, volunteer, tx.ID)
	assert.True(t, apperror.Is(err, apperror.CodeDenied))

	deleted, err := f.pipeline.DeleteFunding(ctx, coordinator, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, deleted.ID)
}

func TestTaskCommentReplyMustMatchTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t, defaultToggles())
	coordinator := seedAccount(ctx, t, f, "dana", maccount.RoleCoordinator)

	taskA, err := f.pipeline.CreateTask(ctx, coordinator, mutation.TaskCreateInput{Title: "a"})
	require.NoError(t, err)
	taskB, err := f.pipeline.CreateTask(ctx, coordinator, mutation.TaskCreateInput{Title: "b"})
	require.NoError(t, err)

	root, err := f.pipeline.CreateTaskComment(ctx, coordinator, taskA.ID, nil, "root")
	require.NoError(t, err)

	_, err = f.pipeline.CreateTaskComment(ctx, coordinator, taskB.ID, &root.ID, "cross-task reply")
	assert.True(t, apperror.Is(err, apperror.CodeInvalid))

	reply, err := f.pipeline.CreateTaskComment(ctx, coordinator, taskA.ID, &root.ID, "reply")
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, root.ID, *reply.ParentID)
}

func TestDisabledActorDeniedEverywhere(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t, defaultToggles())
	admin := seedAccount(ctx, t, f, "root", maccount.RoleAdministrator)
	admin.Disabled = true

	_, err := f.pipeline.CreateTask(ctx, admin, mutation.TaskCreateInput{Title: "x"})
	assert.True(t, apperror.Is(err, apperror.CodeDenied))

	_, err = f.pipeline.CreatePost(ctx, admin, "hello")
	assert.True(t, apperror.Is(err, apperror.CodeDenied))
}

func TestAccountRoleChangesAreManageLevel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t, defaultToggles())
	admin := seedAccount(ctx, t, f, "root", maccount.RoleAdministrator)
	volunteer := seedAccount(ctx, t, f, "sam", maccount.RoleVolunteer)

	_, err := f.pipeline.AssignRoles(ctx, volunteer, volunteer.ID, []maccount.Role{maccount.RoleAdministrator})
	assert.True(t, apperror.Is(err, apperror.CodeDenied))

	updated, err := f.pipeline.AssignRoles(ctx, admin, volunteer.ID, []maccount.Role{maccount.RoleCoordinator})
	require.NoError(t, err)
	assert.True(t, updated.IsCoordinator())

	require.NotEmpty(t, f.pub.events)
	last := f.pub.events[len(f.pub.events)-1]
	assert.Equal(t, event.EntityAccount, last.Entity)
	assert.Equal(t, event.OpUpdate, last.Op)
}

func TestMarkNotificationReadIsMonotonic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t, defaultToggles())
	volunteer := seedAccount(ctx, t, f, "sam", maccount.RoleVolunteer)

	notif := &mnotification.Notification{
		Kind:            mnotification.KindTaskAssigned,
		Message:         "you were assigned a task",
		TargetAccountID: &volunteer.ID,
		CreatedAt:       f.now,
	}
	require.NoError(t, f.services.Notifications.CreateNotification(ctx, notif))

	read, err := f.pipeline.MarkNotificationRead(ctx, volunteer, notif.ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)

	again, err := f.pipeline.MarkNotificationRead(ctx, volunteer, notif.ID)
	require.NoError(t, err)
	assert.True(t, again.IsRead)
}

func TestMarkNotificationReadOtherTargetDenied(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t, defaultToggles())
	volunteer := seedAccount(ctx, t, f, "sam", maccount.RoleVolunteer)
	other := seedAccount(ctx, t, f, "lee", maccount.RoleVolunteer)

	notif := &mnotification.Notification{
		Kind:            mnotification.KindTaskAssigned,
		Message:         "not yours",
		TargetAccountID: &other.ID,
		CreatedAt:       f.now,
	}
	require.NoError(t, f.services.Notifications.CreateNotification(ctx, notif))

	_, err := f.pipeline.MarkNotificationRead(ctx, volunteer, notif.ID)
	assert.True(t, apperror.Is(err, apperror.CodeDenied))
}
