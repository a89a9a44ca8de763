package patch

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/crewbase/crewbase/pkg/model/mtask"
)

// TaskPatch represents sparse updates to a task.
//
// Semantics:
//   - Field.IsSet() == false = field not changed (omitted from update)
//   - Field.IsUnset() == true = field explicitly UNSET/cleared
//   - Field.HasValue() == true = field set to that value
type TaskPatch struct {
	Title       Optional[string]
	Description Optional[string]
	Status      Optional[mtask.Status]
	Priority    Optional[mtask.Priority]
	DueDate     Optional[time.Time]
	AssigneeID  Optional[int64]
}

// HasChanges returns true if any field in the patch has been set.
func (p TaskPatch) HasChanges() bool {
	return p.Title.IsSet() || p.Description.IsSet() || p.Status.IsSet() ||
		p.Priority.IsSet() || p.DueDate.IsSet() || p.AssigneeID.IsSet()
}

// StatusOnly reports whether the patch touches nothing but the status field.
// The capability rules let a task's assignee move it between statuses without
// any wider write grant.
func (p TaskPatch) StatusOnly() bool {
	return p.Status.IsSet() && !p.Title.IsSet() && !p.Description.IsSet() &&
		!p.Priority.IsSet() && !p.DueDate.IsSet() && !p.AssigneeID.IsSet()
}

// FundingPatch represents sparse updates to a funding transaction.
type FundingPatch struct {
	Kind     Optional[string]
	Amount   Optional[decimal.Decimal]
	Category Optional[string]
	Note     Optional[string]
	TxDate   Optional[time.Time]
}

// HasChanges returns true if any field in the patch has been set.
func (p FundingPatch) HasChanges() bool {
	return p.Kind.IsSet() || p.Amount.IsSet() || p.Category.IsSet() ||
		p.Note.IsSet() || p.TxDate.IsSet()
}

// PostPatch represents sparse updates to a community post or comment body.
type PostPatch struct {
	Body Optional[string]
}

// HasChanges returns true if any field in the patch has been set.
func (p PostPatch) HasChanges() bool {
	return p.Body.IsSet()
}

// AccountPatch represents sparse updates to an account profile.
type AccountPatch struct {
	DisplayName Optional[string]
	Email       Optional[string]
	Phone       Optional[string]
	Skills      Optional[string]
	AvatarRef   Optional[string]
	Roles       Optional[[]string]
	Disabled    Optional[bool]
}

// HasChanges returns true if any field in the patch has been set.
func (p AccountPatch) HasChanges() bool {
	return p.DisplayName.IsSet() || p.Email.IsSet() || p.Phone.IsSet() ||
		p.Skills.IsSet() || p.AvatarRef.IsSet() ||
		p.Roles.IsSet() || p.Disabled.IsSet()
}
