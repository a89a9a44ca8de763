package event

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Entity identifies the record collection a domain event belongs to.
// Using uint8 for compact storage and no string comparisons at runtime.
type Entity uint8

const (
	EntityAccount Entity = iota
	EntityTask
	EntityTaskComment
	EntityFunding
	EntityPost
	EntityPostComment
	EntityCrewMember
	EntityNotification
)

func (e Entity) String() string {
	switch e {
	case EntityAccount:
		return "account"
	case EntityTask:
		return "task"
	case EntityTaskComment:
		return "task_comment"
	case EntityFunding:
		return "funding"
	case EntityPost:
		return "post"
	case EntityPostComment:
		return "post_comment"
	case EntityCrewMember:
		return "crew_member"
	case EntityNotification:
		return "notification"
	}
	return "unknown"
}

// Op identifies the kind of mutation an event records.
type Op uint8

const (
	OpCreate Op = iota
	OpUpdate
	OpDelete
	// OpModerate records a soft-failed edit that was converted into a
	// moderation request instead of touching the store.
	OpModerate
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpModerate:
		return "moderate"
	}
	return "unknown"
}

// Event is one entry of the append-only domain event log. Events are
// published only after the triggering store write has committed, so the
// snapshot always reflects persisted state (or, for deletes, the last
// persisted state).
type Event struct {
	ID       ulid.ULID
	Entity   Entity
	Op       Op
	EntityID int64
	ActorID  int64
	Snapshot any
	At       time.Time
}

// ModerationRequest is the snapshot carried by OpModerate events. It records
// the edit that was intercepted so coordinators can act on it.
type ModerationRequest struct {
	Action      string `json:"action"`
	Entity      string `json:"entity"`
	EntityID    int64  `json:"entity_id"`
	RequestedBy int64  `json:"requested_by"`
}

// New stamps an event with a fresh ULID. ULIDs are monotonic enough for log
// ordering and double as dedupe keys for at-least-once subscribers.
func New(entity Entity, op Op, entityID, actorID int64, snapshot any) Event {
	return Event{
		ID:       ulid.Make(),
		Entity:   entity,
		Op:       op,
		EntityID: entityID,
		ActorID:  actorID,
		Snapshot: snapshot,
		At:       time.Now().UTC(),
	}
}
