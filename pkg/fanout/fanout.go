// Package fanout turns committed domain events into in-app notifications and
// pushes them out through the configured delivery channels. It runs as a
// stream subscriber, decoupled from the mutation that produced the event: a
// slow template render or a failed email never delays or fails a mutation.
package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crewbase/crewbase/pkg/delivery"
	"github.com/crewbase/crewbase/pkg/event"
	"github.com/crewbase/crewbase/pkg/eventstream"
	"github.com/crewbase/crewbase/pkg/model/maccount"
	"github.com/crewbase/crewbase/pkg/model/mfunding"
	"github.com/crewbase/crewbase/pkg/model/mnotification"
	"github.com/crewbase/crewbase/pkg/model/mpost"
	"github.com/crewbase/crewbase/pkg/model/mtask"
	"github.com/crewbase/crewbase/pkg/model/mtaskcomment"
	"github.com/crewbase/crewbase/pkg/mutation"
	"github.com/crewbase/crewbase/pkg/service/saccount"
	"github.com/crewbase/crewbase/pkg/service/snotification"
	"github.com/crewbase/crewbase/pkg/service/spost"
	"github.com/crewbase/crewbase/pkg/service/ssetting"
	"github.com/crewbase/crewbase/pkg/service/stask"
)

// Templates maps notification kinds to the subject line used on external
// channels. The notification message itself is the body.
type Templates map[mnotification.Kind]string

// DefaultTemplates returns the built-in subject lines. Config may override
// individual kinds.
func DefaultTemplates() Templates {
	return Templates{
		mnotification.KindTaskAssigned:      "A task was assigned to you",
		mnotification.KindTaskStatusChanged: "Task status changed",
		mnotification.KindTaskAudit:         "Task activity",
		mnotification.KindFundingChanged:    "Funding update",
		mnotification.KindPostCreated:       "New community post",
		mnotification.KindCommentCreated:    "New comment",
		mnotification.KindCommentReply:      "Someone replied to you",
		mnotification.KindModerationRequest: "A change needs your review",
		mnotification.KindNewMember:         "A new member joined",
	}
}

func (t Templates) subject(kind mnotification.Kind) string {
	if s, ok := t[kind]; ok {
		return s
	}
	return "Crewbase update"
}

// Fanout subscribes to the domain event stream and materializes
// notifications.
type Fanout struct {
	accounts      saccount.AccountService
	tasks         stask.TaskService
	posts         spost.PostService
	notifications snotification.NotificationService
	settings      ssetting.SettingService
	streamer      eventstream.SyncStreamer[event.Entity, event.Event]
	publisher     mutation.Publisher
	senders       []delivery.Sender
	templates     Templates
	logger        *slog.Logger
	now           func() time.Time
}

// Deps are the fan-out's collaborators.
type Deps struct {
	Accounts      saccount.AccountService
	Tasks         stask.TaskService
	Posts         spost.PostService
	Notifications snotification.NotificationService
	Settings      ssetting.SettingService
	Streamer      eventstream.SyncStreamer[event.Entity, event.Event]
	Publisher     mutation.Publisher
	Senders       []delivery.Sender
	Logger        *slog.Logger
}

type Option func(*Fanout)

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(f *Fanout) { f.now = now }
}

// WithTemplates overrides individual subject lines.
func WithTemplates(overrides Templates) Option {
	return func(f *Fanout) {
		for kind, subject := range overrides {
			f.templates[kind] = subject
		}
	}
}

func New(deps Deps, opts ...Option) *Fanout {
	f := &Fanout{
		accounts:      deps.Accounts,
		tasks:         deps.Tasks,
		posts:         deps.Posts,
		notifications: deps.Notifications,
		settings:      deps.Settings,
		streamer:      deps.Streamer,
		publisher:     deps.Publisher,
		senders:       deps.Senders,
		templates:     DefaultTemplates(),
		logger:        deps.Logger,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run consumes the event stream until ctx is cancelled. Handler errors are
// logged and never stop the loop.
func (f *Fanout) Run(ctx context.Context) error {
	filter := func(entity event.Entity) bool {
		// Notification events are our own output; consuming them would loop.
		return entity != event.EntityNotification
	}
	return eventstream.Consume(ctx, f.streamer, filter,
		func(evt eventstream.Event[event.Entity, event.Event]) error {
			return f.Handle(ctx, evt.Payload)
		},
		func(err error) {
			f.logger.Error("fanout handler failed", slog.String("error", err.Error()))
		})
}

// Handle materializes the notifications one domain event calls for. Exported
// so tests can drive the fan-out synchronously. The in-app rows are always
// written; the global and per-kind toggles gate external delivery only.
func (f *Fanout) Handle(ctx context.Context, evt event.Event) error {
	drafts, err := f.draftsFor(ctx, evt)
	if err != nil {
		return err
	}

	deliverOn, err := f.settings.GetBool(ctx, ssetting.KeyNotificationsEnabled, true)
	if err != nil {
		return fmt.Errorf("read notifications toggle: %w", err)
	}

	for i := range drafts {
		n := &drafts[i]
		n.RelatedEntityType = evt.Entity.String()
		n.RelatedEntityID = evt.EntityID
		n.CreatedAt = f.now().UTC()
		if err := f.notifications.CreateNotification(ctx, n); err != nil {
			return fmt.Errorf("store notification: %w", err)
		}
		if f.publisher != nil {
			f.publisher.PublishAll([]event.Event{
				event.New(event.EntityNotification, event.OpCreate, n.ID, evt.ActorID, *n),
			})
		}
		if !deliverOn {
			continue
		}
		kindOn, err := f.settings.GetBool(ctx, ssetting.KindToggleKey(string(n.Kind)), true)
		if err != nil {
			return fmt.Errorf("read kind toggle: %w", err)
		}
		if !kindOn {
			continue
		}
		f.deliver(ctx, *n)
	}
	return nil
}

// draftsFor maps one domain event to the notifications it produces. Unknown
// snapshots produce nothing; the event log may carry more than we consume.
func (f *Fanout) draftsFor(ctx context.Context, evt event.Event) ([]mnotification.Notification, error) {
	if evt.Op == event.OpModerate {
		req, ok := evt.Snapshot.(event.ModerationRequest)
		if !ok {
			return nil, nil
		}
		return f.toCoordinators(ctx, mnotification.KindModerationRequest,
			fmt.Sprintf("A %s %s needs review", req.Entity, req.Action))
	}

	switch snapshot := evt.Snapshot.(type) {
	case mtask.Task:
		return f.taskDrafts(evt.Op, snapshot, nil)
	case mutation.TaskUpdate:
		return f.taskDrafts(evt.Op, snapshot.Task, &snapshot)
	case mtaskcomment.Comment:
		if evt.Op != event.OpCreate {
			return nil, nil
		}
		return f.taskCommentDrafts(ctx, snapshot)
	case mfunding.Transaction:
		return []mnotification.Notification{broadcast(mnotification.KindFundingChanged,
			fmt.Sprintf("Funding %s: %s %s (%s)", evt.Op, snapshot.Kind, snapshot.Amount.StringFixed(2), snapshot.Category))}, nil
	case mpost.Post:
		if evt.Op != event.OpCreate {
			return nil, nil
		}
		return []mnotification.Notification{broadcast(mnotification.KindPostCreated,
			excerpt("New post: ", snapshot.Body))}, nil
	case mpost.Comment:
		if evt.Op != event.OpCreate {
			return nil, nil
		}
		return f.postCommentDrafts(ctx, snapshot)
	case maccount.Account:
		if evt.Op != event.OpCreate {
			return nil, nil
		}
		return f.toCoordinators(ctx, mnotification.KindNewMember,
			fmt.Sprintf("%s joined the crew", snapshot.DisplayName))
	}
	return nil, nil
}

func (f *Fanout) taskDrafts(op event.Op, task mtask.Task, update *mutation.TaskUpdate) ([]mnotification.Notification, error) {
	var out []mnotification.Notification
	switch op {
	case event.OpCreate:
		out = append(out, broadcast(mnotification.KindTaskAudit, "New task: "+task.Title))
		if task.AssigneeID != nil {
			out = append(out, targeted(*task.AssigneeID, mnotification.KindTaskAssigned,
				"You were assigned: "+task.Title))
		}
	case event.OpUpdate:
		if update == nil {
			return nil, nil
		}
		if update.AssigneeChanged && task.AssigneeID != nil {
			out = append(out, targeted(*task.AssigneeID, mnotification.KindTaskAssigned,
				"You were assigned: "+task.Title))
		}
		if update.StatusChanged {
			message := fmt.Sprintf("Task %q moved from %s to %s", task.Title, update.PrevStatus, task.Status)
			if task.AssigneeID != nil {
				out = append(out, targeted(*task.AssigneeID, mnotification.KindTaskStatusChanged, message))
			}
			out = append(out, broadcast(mnotification.KindTaskStatusChanged, message))
		}
	case event.OpDelete:
		out = append(out, broadcast(mnotification.KindTaskAudit, "Task deleted: "+task.Title))
	}
	return out, nil
}

func (f *Fanout) taskCommentDrafts(ctx context.Context, comment mtaskcomment.Comment) ([]mnotification.Notification, error) {
	out := []mnotification.Notification{broadcast(mnotification.KindCommentCreated,
		excerpt("New task comment: ", comment.Body))}
	if comment.ParentID == nil {
		return out, nil
	}
	parent, err := f.tasks.GetComment(ctx, *comment.ParentID)
	if err != nil {
		// Parent may have been deleted since the event was published.
		f.logger.Warn("reply parent lookup failed", slog.String("error", err.Error()))
		return out, nil
	}
	if parent.AuthorID != comment.AuthorID {
		out = append(out, targeted(parent.AuthorID, mnotification.KindCommentReply,
			excerpt("Reply to your comment: ", comment.Body)))
	}
	return out, nil
}

func (f *Fanout) postCommentDrafts(ctx context.Context, comment mpost.Comment) ([]mnotification.Notification, error) {
	out := []mnotification.Notification{broadcast(mnotification.KindCommentCreated,
		excerpt("New comment: ", comment.Body))}
	post, err := f.posts.GetPost(ctx, comment.PostID)
	if err != nil {
		// Post may have been deleted since the event was published.
		f.logger.Warn("comment post lookup failed", slog.String("error", err.Error()))
		return out, nil
	}
	if post.AuthorID != comment.AuthorID {
		out = append(out, targeted(post.AuthorID, mnotification.KindCommentReply,
			excerpt("Someone replied to your post: ", comment.Body)))
	}
	return out, nil
}

func (f *Fanout) toCoordinators(ctx context.Context, kind mnotification.Kind, message string) ([]mnotification.Notification, error) {
	coordinators, err := f.accounts.ListCoordinators(ctx)
	if err != nil {
		return nil, fmt.Errorf("list coordinators: %w", err)
	}
	out := make([]mnotification.Notification, 0, len(coordinators))
	for _, c := range coordinators {
		out = append(out, targeted(c.ID, kind, message))
	}
	return out, nil
}

// deliver pushes one stored notification out through every configured
// sender. Failures are logged and swallowed: external channels are
// best-effort, the in-app row is the source of truth.
func (f *Fanout) deliver(ctx context.Context, n mnotification.Notification) {
	if len(f.senders) == 0 {
		return
	}
	recipients, err := f.recipients(ctx, n)
	if err != nil {
		f.logger.Error("resolve recipients failed", slog.String("error", err.Error()))
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, sender := range f.senders {
		for _, recipient := range recipients {
			msg := delivery.Message{
				To:      recipient.Email,
				Subject: f.templates.subject(n.Kind),
				Body:    n.Message,
			}
			name := sender.Name()
			send := sender.Send
			g.Go(func() error {
				if err := send(gctx, msg); err != nil {
					code := delivery.Classify(err)
					f.logger.Error("delivery failed",
						slog.String("channel", name),
						slog.String("kind", string(n.Kind)),
						slog.String("code", string(code)),
						slog.Bool("transient", code.Transient()),
						slog.String("error", err.Error()))
				}
				return nil
			})
		}
	}
	_ = g.Wait()
}

// recipients resolves who a notification goes to on external channels:
// the target account, or for broadcasts the coordinator circle.
func (f *Fanout) recipients(ctx context.Context, n mnotification.Notification) ([]maccount.Account, error) {
	if n.TargetAccountID != nil {
		account, err := f.accounts.GetAccount(ctx, *n.TargetAccountID)
		if err != nil {
			return nil, err
		}
		if account.Disabled || account.Email == "" {
			return nil, nil
		}
		return []maccount.Account{*account}, nil
	}
	coordinators, err := f.accounts.ListCoordinators(ctx)
	if err != nil {
		return nil, err
	}
	out := coordinators[:0]
	for _, c := range coordinators {
		if c.Email != "" {
			out = append(out, c)
		}
	}
	return out, nil
}

func broadcast(kind mnotification.Kind, message string) mnotification.Notification {
	return mnotification.Notification{Kind: kind, Message: message}
}

func targeted(accountID int64, kind mnotification.Kind, message string) mnotification.Notification {
	return mnotification.Notification{Kind: kind, Message: message, TargetAccountID: &accountID}
}

func excerpt(prefix, body string) string {
	const max = 120
	if len(body) > max {
		body = body[:max] + "…"
	}
	return prefix + body
}
