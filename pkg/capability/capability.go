package capability

import (
	"time"

	"github.com/crewbase/crewbase/pkg/event"
	"github.com/crewbase/crewbase/pkg/model/maccount"
)

// Action is the operation being authorized.
type Action uint8

const (
	ActionCreate Action = iota
	ActionUpdate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	}
	return "unknown"
}

// Verdict is the outcome of an authorization check.
type Verdict uint8

const (
	// Deny blocks the mutation outright.
	Deny Verdict = iota
	// Allow lets the mutation proceed.
	Allow
	// Moderate converts the mutation into a moderation request for the
	// coordinators instead of applying it. A soft failure, not an error.
	Moderate
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case Moderate:
		return "moderate"
	}
	return "deny"
}

// Resource describes the record an action targets, carrying just enough for
// the ownership rules.
type Resource struct {
	Entity event.Entity
	// OwnerID is the author/creator of the record, or for self-scoped
	// records (accounts, targeted notifications) the account itself.
	OwnerID int64
	// AssigneeID is the task assignee, when the entity is a task.
	AssigneeID *int64
	// CreatedAt feeds the author edit window.
	CreatedAt time.Time
	// StatusOnly marks a task update that touches nothing but the status.
	StatusOnly bool
}

// Toggles supplies the runtime switches the rules depend on.
type Toggles interface {
	// VolunteerCreatesTasks reports whether volunteers may create tasks.
	VolunteerCreatesTasks() bool
	// EditWindow is how long authors may edit their own community content.
	EditWindow() time.Duration
}

// StaticToggles is a fixed Toggles, used by tests and as config fallback.
type StaticToggles struct {
	VolunteerTasks bool
	Window         time.Duration
}

func (t StaticToggles) VolunteerCreatesTasks() bool { return t.VolunteerTasks }
func (t StaticToggles) EditWindow() time.Duration   { return t.Window }

// rule is one row of the declarative authorization table. The zero rule
// grants volunteers nothing, which makes manage-only rules explicit no-flag
// entries and keeps missing entries a hard deny.
type rule struct {
	// anyEnabled allows every enabled account, volunteer included.
	anyEnabled bool
	// volunteerToggle allows volunteers when VolunteerCreatesTasks is on.
	volunteerToggle bool
	// assigneeStatusOnly allows the task's current assignee, but only for a
	// status-only update.
	assigneeStatusOnly bool
	// ownerWindow allows the record's author inside the edit window and
	// converts everything else into a moderation request.
	ownerWindow bool
	// selfOnly allows the account the record belongs to.
	selfOnly bool
}

type ruleKey struct {
	entity event.Entity
	action Action
}

// rules maps (entity, action) to its authorization rule. Administrators pass
// everything; coordinators pass every listed entry; the flags describe the
// volunteer paths. An entity/action missing here is denied for everyone
// below coordinator, so new entity types cannot bypass the gate by omission.
var rules = map[ruleKey]rule{
	{event.EntityTask, ActionCreate}: {volunteerToggle: true},
	{event.EntityTask, ActionUpdate}: {volunteerToggle: true, assigneeStatusOnly: true},
	{event.EntityTask, ActionDelete}: {}, // manage-level only

	{event.EntityTaskComment, ActionCreate}: {anyEnabled: true},
	{event.EntityTaskComment, ActionUpdate}: {ownerWindow: true},
	{event.EntityTaskComment, ActionDelete}: {ownerWindow: true},

	{event.EntityFunding, ActionCreate}: {},
	{event.EntityFunding, ActionUpdate}: {},
	{event.EntityFunding, ActionDelete}: {},

	{event.EntityPost, ActionCreate}: {anyEnabled: true},
	{event.EntityPost, ActionUpdate}: {ownerWindow: true},
	{event.EntityPost, ActionDelete}: {ownerWindow: true},

	{event.EntityPostComment, ActionCreate}: {anyEnabled: true},
	{event.EntityPostComment, ActionUpdate}: {ownerWindow: true},
	{event.EntityPostComment, ActionDelete}: {ownerWindow: true},

	{event.EntityAccount, ActionCreate}: {}, // identity provider writes, manage otherwise
	{event.EntityAccount, ActionUpdate}: {selfOnly: true},

	{event.EntityCrewMember, ActionDelete}: {}, // manage-level only

	{event.EntityNotification, ActionUpdate}: {selfOnly: true}, // mark-read
}

// Resolver answers authorization questions. Pure: no side effects, failures
// are verdicts, never errors.
type Resolver struct {
	toggles Toggles
	now     func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func NewResolver(toggles Toggles, opts ...Option) *Resolver {
	r := &Resolver{toggles: toggles, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Authorize resolves whether actor may perform action on the resource.
func (r *Resolver) Authorize(actor maccount.Account, action Action, res Resource) Verdict {
	if actor.Disabled {
		return Deny
	}
	if actor.HasRole(maccount.RoleAdministrator) {
		return Allow
	}

	rl, ok := rules[ruleKey{res.Entity, action}]
	if !ok {
		return Deny
	}

	// Coordinators manage every tabled entity.
	if actor.HasRole(maccount.RoleCoordinator) {
		return Allow
	}

	if rl.anyEnabled {
		return Allow
	}
	if rl.volunteerToggle && r.toggles.VolunteerCreatesTasks() {
		return Allow
	}
	if rl.assigneeStatusOnly && res.AssigneeID != nil && *res.AssigneeID == actor.ID && res.StatusOnly {
		return Allow
	}
	if rl.selfOnly && res.OwnerID == actor.ID {
		return Allow
	}
	if rl.ownerWindow {
		if res.OwnerID == actor.ID && r.now().Sub(res.CreatedAt) <= r.toggles.EditWindow() {
			return Allow
		}
		return Moderate
	}
	return Deny
}
