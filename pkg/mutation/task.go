package mutation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/crewbase/crewbase/pkg/apperror"
	"github.com/crewbase/crewbase/pkg/capability"
	"github.com/crewbase/crewbase/pkg/event"
	"github.com/crewbase/crewbase/pkg/model/maccount"
	"github.com/crewbase/crewbase/pkg/model/mtask"
	"github.com/crewbase/crewbase/pkg/patch"
	"github.com/crewbase/crewbase/pkg/service/saccount"
	"github.com/crewbase/crewbase/pkg/service/stask"
)

// TaskCreateInput is the client payload for a new task.
type TaskCreateInput struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      mtask.Status   `json:"status"`
	Priority    mtask.Priority `json:"priority"`
	DueDate     *time.Time     `json:"due_date"`
	AssigneeID  *int64         `json:"assignee_id"`
}

func (p *Pipeline) CreateTask(ctx context.Context, actor maccount.Account, in TaskCreateInput) (*mtask.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, apperror.Invalid("title", "title is required")
	}
	if in.Status == "" {
		in.Status = mtask.StatusTodo
	}
	if !in.Status.Valid() {
		return nil, apperror.Invalid("status", "unknown status "+string(in.Status))
	}
	if in.Priority < mtask.PriorityLow || in.Priority > mtask.PriorityHigh {
		return nil, apperror.Invalid("priority", "priority out of range")
	}
	if err := p.checkAssignee(ctx, in.AssigneeID); err != nil {
		return nil, err
	}
	if err := p.gate(actor, capability.ActionCreate, capability.Resource{Entity: event.EntityTask}, 0, "create tasks"); err != nil {
		return nil, err
	}

	now := p.now().UTC()
	task := &mtask.Task{
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		AssigneeID:  in.AssigneeID,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	var out *mtask.Task
	err := p.run(ctx, func(mc *Context) error {
		svc := p.tasks.TX(mc.TX())
		if err := svc.CreateTask(ctx, task); err != nil {
			return storeErr("create task", err)
		}
		canonical, err := svc.GetTask(ctx, task.ID)
		if err != nil {
			return storeErr("read back task", err)
		}
		out = canonical
		mc.Track(event.New(event.EntityTask, event.OpCreate, canonical.ID, actor.ID, *canonical))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) UpdateTask(ctx context.Context, actor maccount.Account, id int64, tp patch.TaskPatch) (*mtask.Task, error) {
	if !tp.HasChanges() {
		return nil, apperror.Invalid("", "patch contains no changes")
	}
	existing, err := p.tasks.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, stask.ErrTaskNotFound) {
			return nil, apperror.NotFound("task")
		}
		return nil, storeErr("load task", err)
	}

	res := capability.Resource{
		Entity:     event.EntityTask,
		OwnerID:    existing.CreatedBy,
		AssigneeID: existing.AssigneeID,
		CreatedAt:  existing.CreatedAt,
		StatusOnly: tp.StatusOnly(),
	}
	if err := p.gate(actor, capability.ActionUpdate, res, id, "update this task"); err != nil {
		return nil, err
	}

	next := *existing
	if err := applyTaskPatch(&next, tp); err != nil {
		return nil, err
	}
	if tp.AssigneeID.HasValue() {
		if err := p.checkAssignee(ctx, next.AssigneeID); err != nil {
			return nil, err
		}
	}
	next.UpdatedAt = p.now().UTC()

	statusChanged := next.Status != existing.Status
	assigneeChanged := !int64PtrEq(next.AssigneeID, existing.AssigneeID)

	var out *mtask.Task
	err = p.run(ctx, func(mc *Context) error {
		svc := p.tasks.TX(mc.TX())
		if err := svc.UpdateTask(ctx, &next); err != nil {
			if errors.Is(err, stask.ErrTaskNotFound) {
				return apperror.NotFound("task")
			}
			return storeErr("update task", err)
		}
		canonical, err := svc.GetTask(ctx, id)
		if err != nil {
			return storeErr("read back task", err)
		}
		out = canonical
		mc.Track(event.New(event.EntityTask, event.OpUpdate, id, actor.ID, TaskUpdate{
			Task:            *canonical,
			StatusChanged:   statusChanged,
			AssigneeChanged: assigneeChanged,
			PrevStatus:      existing.Status,
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) DeleteTask(ctx context.Context, actor maccount.Account, id int64) (*mtask.Task, error) {
	existing, err := p.tasks.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, stask.ErrTaskNotFound) {
			return nil, apperror.NotFound("task")
		}
		return nil, storeErr("load task", err)
	}
	res := capability.Resource{Entity: event.EntityTask, OwnerID: existing.CreatedBy, CreatedAt: existing.CreatedAt}
	if err := p.gate(actor, capability.ActionDelete, res, id, "delete tasks"); err != nil {
		return nil, err
	}

	err = p.run(ctx, func(mc *Context) error {
		if err := p.tasks.TX(mc.TX()).DeleteTask(ctx, id); err != nil {
			if errors.Is(err, stask.ErrTaskNotFound) {
				return apperror.NotFound("task")
			}
			return storeErr("delete task", err)
		}
		mc.Track(event.New(event.EntityTask, event.OpDelete, id, actor.ID, *existing))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return existing, nil
}

// TaskUpdate is the OpUpdate payload for tasks. The change flags let the
// notification fan-out pick the right message without diffing snapshots.
type TaskUpdate struct {
	mtask.Task
	StatusChanged   bool         `json:"status_changed"`
	AssigneeChanged bool         `json:"assignee_changed"`
	PrevStatus      mtask.Status `json:"prev_status"`
}

// applyTaskPatch folds the sparse update into the task copy. Clearing a
// required field is invalid; clearing due date or assignee is a real change.
func applyTaskPatch(task *mtask.Task, tp patch.TaskPatch) error {
	if tp.Title.IsSet() {
		title := strings.TrimSpace(tp.Title.Or(""))
		if title == "" {
			return apperror.Invalid("title", "title is required")
		}
		task.Title = title
	}
	if tp.Description.IsSet() {
		task.Description = tp.Description.Or("")
	}
	if tp.Status.IsSet() {
		status := tp.Status.Or("")
		if !status.Valid() {
			return apperror.Invalid("status", "unknown status "+string(status))
		}
		task.Status = status
	}
	if tp.Priority.IsSet() {
		prio := tp.Priority.Or(mtask.PriorityLow)
		if prio < mtask.PriorityLow || prio > mtask.PriorityHigh {
			return apperror.Invalid("priority", "priority out of range")
		}
		task.Priority = prio
	}
	if tp.DueDate.IsSet() {
		task.DueDate = tp.DueDate.Value()
	}
	if tp.AssigneeID.IsSet() {
		task.AssigneeID = tp.AssigneeID.Value()
	}
	return nil
}

// checkAssignee verifies the assignee references an existing enabled account.
func (p *Pipeline) checkAssignee(ctx context.Context, assigneeID *int64) error {
	if assigneeID == nil {
		return nil
	}
	account, err := p.accounts.GetAccount(ctx, *assigneeID)
	if err != nil {
		if errors.Is(err, saccount.ErrAccountNotFound) {
			return apperror.Invalid("assignee_id", "assignee does not exist")
		}
		return storeErr("load assignee", err)
	}
	if account.Disabled {
		return apperror.Invalid("assignee_id", "assignee account is disabled")
	}
	return nil
}

func int64PtrEq(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
