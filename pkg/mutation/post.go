package mutation

import (
	"context"
	"errors"
	"strings"

	"github.com/crewbase/crewbase/pkg/apperror"
	"github.com/crewbase/crewbase/pkg/capability"
	"github.com/crewbase/crewbase/pkg/event"
	"github.com/crewbase/crewbase/pkg/model/maccount"
	"github.com/crewbase/crewbase/pkg/model/mpost"
	"github.com/crewbase/crewbase/pkg/patch"
	"github.com/crewbase/crewbase/pkg/service/spost"
)

func (p *Pipeline) CreatePost(ctx context.Context, actor maccount.Account, body string) (*mpost.Post, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperror.Invalid("body", "body is required")
	}
	if err := p.gate(actor, capability.ActionCreate, capability.Resource{Entity: event.EntityPost}, 0, "create posts"); err != nil {
		return nil, err
	}

	post := &mpost.Post{Body: body, AuthorID: actor.ID, CreatedAt: p.now().UTC()}
	var out *mpost.Post
	err := p.run(ctx, func(mc *Context) error {
		svc := p.posts.TX(mc.TX())
		if err := svc.CreatePost(ctx, post); err != nil {
			return storeErr("create post", err)
		}
		canonical, err := svc.GetPost(ctx, post.ID)
		if err != nil {
			return storeErr("read back post", err)
		}
		out = canonical
		mc.Track(event.New(event.EntityPost, event.OpCreate, canonical.ID, actor.ID, *canonical))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) UpdatePost(ctx context.Context, actor maccount.Account, id int64, pp patch.PostPatch) (*mpost.Post, error) {
	if !pp.HasChanges() {
		return nil, apperror.Invalid("", "patch contains no changes")
	}
	body := strings.TrimSpace(pp.Body.Or(""))
	if body == "" {
		return nil, apperror.Invalid("body", "body is required")
	}
	existing, err := p.posts.GetPost(ctx, id)
	if err != nil {
		if errors.Is(err, spost.ErrPostNotFound) {
			return nil, apperror.NotFound("post")
		}
		return nil, storeErr("load post", err)
	}
	res := capability.Resource{Entity: event.EntityPost, OwnerID: existing.AuthorID, CreatedAt: existing.CreatedAt}
	if err := p.gate(actor, capability.ActionUpdate, res, id, "edit this post"); err != nil {
		return nil, err
	}

	next := *existing
	next.Body = body
	var out *mpost.Post
	err = p.run(ctx, func(mc *Context) error {
		svc := p.posts.TX(mc.TX())
		if err := svc.UpdatePost(ctx, &next); err != nil {
			if errors.Is(err, spost.ErrPostNotFound) {
				return apperror.NotFound("post")
			}
			return storeErr("update post", err)
		}
		canonical, err := svc.GetPost(ctx, id)
		if err != nil {
			return storeErr("read back post", err)
		}
		out = canonical
		mc.Track(event.New(event.EntityPost, event.OpUpdate, id, actor.ID, *canonical))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) DeletePost(ctx context.Context, actor maccount.Account, id int64) (*mpost.Post, error) {
	existing, err := p.posts.GetPost(ctx, id)
	if err != nil {
		if errors.Is(err, spost.ErrPostNotFound) {
			return nil, apperror.NotFound("post")
		}
		return nil, storeErr("load post", err)
	}
	res := capability.Resource{Entity: event.EntityPost, OwnerID: existing.AuthorID, CreatedAt: existing.CreatedAt}
	if err := p.gate(actor, capability.ActionDelete, res, id, "delete this post"); err != nil {
		return nil, err
	}

	err = p.run(ctx, func(mc *Context) error {
		// Cascades to the post's comments inside the same transaction.
		if err := p.posts.TX(mc.TX()).DeletePost(ctx, id); err != nil {
			if errors.Is(err, spost.ErrPostNotFound) {
				return apperror.NotFound("post")
			}
			return storeErr("delete post", err)
		}
		mc.Track(event.New(event.EntityPost, event.OpDelete, id, actor.ID, *existing))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return existing, nil
}

func (p *Pipeline) CreatePostComment(ctx context.Context, actor maccount.Account, postID int64, body string) (*mpost.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperror.Invalid("body", "body is required")
	}
	if _, err := p.posts.GetPost(ctx, postID); err != nil {
		if errors.Is(err, spost.ErrPostNotFound) {
			return nil, apperror.Invalid("post_id", "post does not exist")
		}
		return nil, storeErr("load post", err)
	}
	if err := p.gate(actor, capability.ActionCreate, capability.Resource{Entity: event.EntityPostComment}, 0, "comment on posts"); err != nil {
		return nil, err
	}

	comment := &mpost.Comment{PostID: postID, Body: body, AuthorID: actor.ID, CreatedAt: p.now().UTC()}
	var out *mpost.Comment
	err := p.run(ctx, func(mc *Context) error {
		svc := p.posts.TX(mc.TX())
		if err := svc.CreateComment(ctx, comment); err != nil {
			return storeErr("create post comment", err)
		}
		canonical, err := svc.GetComment(ctx, comment.ID)
		if err != nil {
			return storeErr("read back post comment", err)
		}
		out = canonical
		mc.Track(event.New(event.EntityPostComment, event.OpCreate, canonical.ID, actor.ID, *canonical))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) UpdatePostComment(ctx context.Context, actor maccount.Account, id int64, pp patch.PostPatch) (*mpost.Comment, error) {
	if !pp.HasChanges() {
		return nil, apperror.Invalid("", "patch contains no changes")
	}
	body := strings.TrimSpace(pp.Body.Or(""))
	if body == "" {
		return nil, apperror.Invalid("body", "body is required")
	}
	existing, err := p.posts.GetComment(ctx, id)
	if err != nil {
		if errors.Is(err, spost.ErrCommentNotFound) {
			return nil, apperror.NotFound("post comment")
		}
		return nil, storeErr("load post comment", err)
	}
	res := capability.Resource{Entity: event.EntityPostComment, OwnerID: existing.AuthorID, CreatedAt: existing.CreatedAt}
	if err := p.gate(actor, capability.ActionUpdate, res, id, "edit this comment"); err != nil {
		return nil, err
	}

	next := *existing
	next.Body = body
	var out *mpost.Comment
	err = p.run(ctx, func(mc *Context) error {
		svc := p.posts.TX(mc.TX())
		if err := svc.UpdateComment(ctx, &next); err != nil {
			if errors.Is(err, spost.ErrCommentNotFound) {
				return apperror.NotFound("post comment")
			}
			return storeErr("update post comment", err)
		}
		canonical, err := svc.GetComment(ctx, id)
		if err != nil {
			return storeErr("read back post comment", err)
		}
		out = canonical
		mc.Track(event.New(event.EntityPostComment, event.OpUpdate, id, actor.ID, *canonical))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) DeletePostComment(ctx context.Context, actor maccount.Account, id int64) (*mpost.Comment, error) {
	existing, err := p.posts.GetComment(ctx, id)
	if err != nil {
		if errors.Is(err, spost.ErrCommentNotFound) {
			return nil, apperror.NotFound("post comment")
		}
		return nil, storeErr("load post comment", err)
	}
	res := capability.Resource{Entity: event.EntityPostComment, OwnerID: existing.AuthorID, CreatedAt: existing.CreatedAt}
	if err := p.gate(actor, capability.ActionDelete, res, id, "delete this comment"); err != nil {
		return nil, err
	}

	err = p.run(ctx, func(mc *Context) error {
		if err := p.posts.TX(mc.TX()).DeleteComment(ctx, id); err != nil {
			if errors.Is(err, spost.ErrCommentNotFound) {
				return apperror.NotFound("post comment")
			}
			return storeErr("delete post comment", err)
		}
		mc.Track(event.New(event.EntityPostComment, event.OpDelete, id, actor.ID, *existing))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return existing, nil
}
