package mutation

import (
	"context"
	"errors"

	"github.com/crewbase/crewbase/pkg/apperror"
	"github.com/crewbase/crewbase/pkg/capability"
	"github.com/crewbase/crewbase/pkg/event"
	"github.com/crewbase/crewbase/pkg/model/maccount"
	"github.com/crewbase/crewbase/pkg/model/mnotification"
	"github.com/crewbase/crewbase/pkg/service/snotification"
)

// MarkNotificationRead flips a notification to read. Monotonic: marking an
// already-read notification is a no-op, never an error.
func (p *Pipeline) MarkNotificationRead(ctx context.Context, actor maccount.Account, id int64) (*mnotification.Notification, error) {
	existing, err := p.notifications.GetNotification(ctx, id)
	if err != nil {
		if errors.Is(err, snotification.ErrNotificationNotFound) {
			return nil, apperror.NotFound("notification")
		}
		return nil, storeErr("load notification", err)
	}

	// Broadcast rows belong to every reader; targeted rows only to their
	// target.
	owner := actor.ID
	if existing.TargetAccountID != nil {
		owner = *existing.TargetAccountID
	}
	res := capability.Resource{Entity: event.EntityNotification, OwnerID: owner}
	if err := p.gate(actor, capability.ActionUpdate, res, id, "mark this notification read"); err != nil {
		return nil, err
	}
	if existing.IsRead {
		return existing, nil
	}

	var out *mnotification.Notification
	err = p.run(ctx, func(mc *Context) error {
		svc := p.notifications.TX(mc.TX())
		if err := svc.MarkRead(ctx, id); err != nil {
			if errors.Is(err, snotification.ErrNotificationNotFound) {
				return apperror.NotFound("notification")
			}
			return storeErr("mark notification read", err)
		}
		canonical, err := svc.GetNotification(ctx, id)
		if err != nil {
			return storeErr("read back notification", err)
		}
		out = canonical
		mc.Track(event.New(event.EntityNotification, event.OpUpdate, id, actor.ID, *canonical))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkAllNotificationsRead marks every notification visible to the actor as
// read. Always self-scoped, so no capability lookup is needed.
func (p *Pipeline) MarkAllNotificationsRead(ctx context.Context, actor maccount.Account) error {
	if actor.Disabled {
		return apperror.Denied("mark notifications read")
	}
	err := p.run(ctx, func(mc *Context) error {
		if err := p.notifications.TX(mc.TX()).MarkAllRead(ctx, actor.ID); err != nil {
			return storeErr("mark notifications read", err)
		}
		return nil
	})
	return err
}
