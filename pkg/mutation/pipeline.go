package mutation

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/crewbase/crewbase/pkg/apperror"
	"github.com/crewbase/crewbase/pkg/capability"
	"github.com/crewbase/crewbase/pkg/event"
	"github.com/crewbase/crewbase/pkg/model/maccount"
	"github.com/crewbase/crewbase/pkg/service/saccount"
	"github.com/crewbase/crewbase/pkg/service/sfunding"
	"github.com/crewbase/crewbase/pkg/service/snotification"
	"github.com/crewbase/crewbase/pkg/service/spost"
	"github.com/crewbase/crewbase/pkg/service/stask"
)

// Pipeline applies every client-originated mutation the same way: validate
// the input, resolve the actor's capability, write inside a transaction,
// re-read the canonical record, then publish domain events after commit.
// Methods return either the canonical record or a typed *apperror.Error.
type Pipeline struct {
	db            *sql.DB
	authz         *capability.Resolver
	accounts      saccount.AccountService
	tasks         stask.TaskService
	funding       sfunding.FundingService
	posts         spost.PostService
	notifications snotification.NotificationService
	publisher     Publisher
	logger        *slog.Logger
	now           func() time.Time
}

// Deps are the pipeline's collaborators, explicit so wiring stays visible at
// the call site.
type Deps struct {
	DB            *sql.DB
	Authz         *capability.Resolver
	Accounts      saccount.AccountService
	Tasks         stask.TaskService
	Funding       sfunding.FundingService
	Posts         spost.PostService
	Notifications snotification.NotificationService
	Publisher     Publisher
	Logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(deps Deps, opts ...Option) *Pipeline {
	p := &Pipeline{
		db:            deps.DB,
		authz:         deps.Authz,
		accounts:      deps.Accounts,
		tasks:         deps.Tasks,
		funding:       deps.Funding,
		posts:         deps.Posts,
		notifications: deps.Notifications,
		publisher:     deps.Publisher,
		logger:        deps.Logger,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run wraps fn in a mutation context, rolling back on any error and
// committing (which publishes the tracked events) on success.
func (p *Pipeline) run(ctx context.Context, fn func(mc *Context) error) error {
	mc, err := Begin(ctx, p.db, p.publisher)
	if err != nil {
		return apperror.Wrap(apperror.CodeUnexpected, "begin transaction", err)
	}
	defer mc.Rollback()
	if err := fn(mc); err != nil {
		return err
	}
	if err := mc.Commit(); err != nil {
		return apperror.Wrap(apperror.CodeConflict, "commit failed", err)
	}
	return nil
}

// gate resolves the actor's capability for the action. Deny becomes a typed
// denial; Moderate publishes a moderation request and reports the soft
// failure; Allow returns nil and the caller proceeds with the write.
func (p *Pipeline) gate(actor maccount.Account, action capability.Action, res capability.Resource, entityID int64, what string) error {
	switch p.authz.Authorize(actor, action, res) {
	case capability.Allow:
		return nil
	case capability.Moderate:
		return p.moderate(actor, action, res.Entity, entityID)
	default:
		return apperror.Denied(what)
	}
}

// moderate records the intercepted edit as an OpModerate event without any
// store write and returns the soft failure shown to the author.
func (p *Pipeline) moderate(actor maccount.Account, action capability.Action, entity event.Entity, entityID int64) error {
	mc := WithoutTX(p.publisher)
	mc.Track(event.New(entity, event.OpModerate, entityID, actor.ID, event.ModerationRequest{
		Action:      action.String(),
		Entity:      entity.String(),
		EntityID:    entityID,
		RequestedBy: actor.ID,
	}))
	if err := mc.Commit(); err != nil {
		return apperror.Wrap(apperror.CodeUnexpected, "queue moderation request", err)
	}
	p.logger.Info("mutation routed to moderation",
		slog.String("entity", entity.String()),
		slog.String("action", action.String()),
		slog.Int64("entity_id", entityID),
		slog.Int64("actor_id", actor.ID))
	return apperror.New(apperror.CodeModeration, "change sent to coordinators for review")
}

func storeErr(op string, err error) error {
	return apperror.Wrap(apperror.CodeConflict, op, err)
}
