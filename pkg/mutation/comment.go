package mutation

import (
	"context"
	"errors"
	"strings"

	"github.com/crewbase/crewbase/pkg/apperror"
	"github.com/crewbase/crewbase/pkg/capability"
	"github.com/crewbase/crewbase/pkg/event"
	"github.com/crewbase/crewbase/pkg/model/maccount"
	"github.com/crewbase/crewbase/pkg/model/mtaskcomment"
	"github.com/crewbase/crewbase/pkg/patch"
	"github.com/crewbase/crewbase/pkg/service/stask"
)

func (p *Pipeline) CreateTaskComment(ctx context.Context, actor maccount.Account, taskID int64, parentID *int64, body string) (*mtaskcomment.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperror.Invalid("body", "body is required")
	}
	if _, err := p.tasks.GetTask(ctx, taskID); err != nil {
		if errors.Is(err, stask.ErrTaskNotFound) {
			return nil, apperror.Invalid("task_id", "task does not exist")
		}
		return nil, storeErr("load task", err)
	}
	if parentID != nil {
		parent, err := p.tasks.GetComment(ctx, *parentID)
		if err != nil {
			if errors.Is(err, stask.ErrTaskCommentNotFound) {
				return nil, apperror.Invalid("parent_id", "parent comment does not exist")
			}
			return nil, storeErr("load parent comment", err)
		}
		if parent.TaskID != taskID {
			return nil, apperror.Invalid("parent_id", "parent comment belongs to another task")
		}
	}
	if err := p.gate(actor, capability.ActionCreate, capability.Resource{Entity: event.EntityTaskComment}, 0, "comment on tasks"); err != nil {
		return nil, err
	}

	comment := &mtaskcomment.Comment{
		TaskID:    taskID,
		ParentID:  parentID,
		AuthorID:  actor.ID,
		Body:      body,
		CreatedAt: p.now().UTC(),
	}
	var out *mtaskcomment.Comment
	err := p.run(ctx, func(mc *Context) error {
		svc := p.tasks.TX(mc.TX())
		if err := svc.CreateComment(ctx, comment); err != nil {
			return storeErr("create task comment", err)
		}
		canonical, err := svc.GetComment(ctx, comment.ID)
		if err != nil {
			return storeErr("read back task comment", err)
		}
		out = canonical
		mc.Track(event.New(event.EntityTaskComment, event.OpCreate, canonical.ID, actor.ID, *canonical))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) UpdateTaskComment(ctx context.Context, actor maccount.Account, id int64, pp patch.PostPatch) (*mtaskcomment.Comment, error) {
	if !pp.HasChanges() {
		return nil, apperror.Invalid("", "patch contains no changes")
	}
	body := strings.TrimSpace(pp.Body.Or(""))
	if body == "" {
		return nil, apperror.Invalid("body", "body is required")
	}
	existing, err := p.tasks.GetComment(ctx, id)
	if err != nil {
		if errors.Is(err, stask.ErrTaskCommentNotFound) {
			return nil, apperror.NotFound("task comment")
		}
		return nil, storeErr("load task comment", err)
	}
	res := capability.Resource{Entity: event.EntityTaskComment, OwnerID: existing.AuthorID, CreatedAt: existing.CreatedAt}
	if err := p.gate(actor, capability.ActionUpdate, res, id, "edit this comment"); err != nil {
		return nil, err
	}

	next := *existing
	next.Body = body
	var out *mtaskcomment.Comment
	err = p.run(ctx, func(mc *Context) error {
		svc := p.tasks.TX(mc.TX())
		if err := svc.UpdateComment(ctx, &next); err != nil {
			if errors.Is(err, stask.ErrTaskCommentNotFound) {
				return apperror.NotFound("task comment")
			}
			return storeErr("update task comment", err)
		}
		canonical, err := svc.GetComment(ctx, id)
		if err != nil {
			return storeErr("read back task comment", err)
		}
		out = canonical
		mc.Track(event.New(event.EntityTaskComment, event.OpUpdate, id, actor.ID, *canonical))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) DeleteTaskComment(ctx context.Context, actor maccount.Account, id int64) (*mtaskcomment.Comment, error) {
	existing, err := p.tasks.GetComment(ctx, id)
	if err != nil {
		if errors.Is(err, stask.ErrTaskCommentNotFound) {
			return nil, apperror.NotFound("task comment")
		}
		return nil, storeErr("load task comment", err)
	}
	res := capability.Resource{Entity: event.EntityTaskComment, OwnerID: existing.AuthorID, CreatedAt: existing.CreatedAt}
	if err := p.gate(actor, capability.ActionDelete, res, id, "delete this comment"); err != nil {
		return nil, err
	}

	err = p.run(ctx, func(mc *Context) error {
		if err := p.tasks.TX(mc.TX()).DeleteComment(ctx, id); err != nil {
			if errors.Is(err, stask.ErrTaskCommentNotFound) {
				return apperror.NotFound("task comment")
			}
			return storeErr("delete task comment", err)
		}
		mc.Track(event.New(event.EntityTaskComment, event.OpDelete, id, actor.ID, *existing))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return existing, nil
}
