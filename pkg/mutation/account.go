package mutation

import (
	"context"
	"errors"
	"strings"

	"github.com/crewbase/crewbase/pkg/apperror"
	"github.com/crewbase/crewbase/pkg/capability"
	"github.com/crewbase/crewbase/pkg/event"
	"github.com/crewbase/crewbase/pkg/model/maccount"
	"github.com/crewbase/crewbase/pkg/patch"
	"github.com/crewbase/crewbase/pkg/service/saccount"
)

// AccountCreateInput is the payload for registering an account. Accounts
// normally arrive from the identity directory, so creation is manage-level.
type AccountCreateInput struct {
	DisplayName string          `json:"display_name"`
	Email       string          `json:"email"`
	Phone       string          `json:"phone"`
	Skills      string          `json:"skills"`
	AvatarRef   string          `json:"avatar_ref"`
	Roles       []maccount.Role `json:"roles"`
}

func (p *Pipeline) CreateAccount(ctx context.Context, actor maccount.Account, in AccountCreateInput) (*maccount.Account, error) {
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.Email = strings.TrimSpace(in.Email)
	if in.DisplayName == "" {
		return nil, apperror.Invalid("display_name", "display name is required")
	}
	if in.Email == "" {
		return nil, apperror.Invalid("email", "email is required")
	}
	if err := validRoles(in.Roles); err != nil {
		return nil, err
	}
	if err := p.gate(actor, capability.ActionCreate, capability.Resource{Entity: event.EntityAccount}, 0, "create accounts"); err != nil {
		return nil, err
	}

	account := &maccount.Account{
		DisplayName: in.DisplayName,
		Email:       in.Email,
		Phone:       in.Phone,
		Skills:      in.Skills,
		AvatarRef:   in.AvatarRef,
		Roles:       in.Roles,
	}
	var out *maccount.Account
	err := p.run(ctx, func(mc *Context) error {
		svc := p.accounts.TX(mc.TX())
		if err := svc.CreateAccount(ctx, account); err != nil {
			return storeErr("create account", err)
		}
		canonical, err := svc.GetAccount(ctx, account.ID)
		if err != nil {
			return storeErr("read back account", err)
		}
		out = canonical
		mc.Track(event.New(event.EntityAccount, event.OpCreate, canonical.ID, actor.ID, *canonical))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateAccountProfile changes the profile fields an account holder controls.
// Role and disabled changes go through AssignRoles and SetAccountDisabled.
func (p *Pipeline) UpdateAccountProfile(ctx context.Context, actor maccount.Account, id int64, ap patch.AccountPatch) (*maccount.Account, error) {
	if ap.Roles.IsSet() || ap.Disabled.IsSet() {
		return nil, apperror.Invalid("", "roles and disabled are not profile fields")
	}
	if !ap.HasChanges() {
		return nil, apperror.Invalid("", "patch contains no changes")
	}
	existing, err := p.accounts.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, saccount.ErrAccountNotFound) {
			return nil, apperror.NotFound("account")
		}
		return nil, storeErr("load account", err)
	}
	res := capability.Resource{Entity: event.EntityAccount, OwnerID: existing.ID}
	if err := p.gate(actor, capability.ActionUpdate, res, id, "edit this account"); err != nil {
		return nil, err
	}

	next := *existing
	if ap.DisplayName.IsSet() {
		name := strings.TrimSpace(ap.DisplayName.Or(""))
		if name == "" {
			return nil, apperror.Invalid("display_name", "display name is required")
		}
		next.DisplayName = name
	}
	if ap.Email.IsSet() {
		email := strings.TrimSpace(ap.Email.Or(""))
		if email == "" {
			return nil, apperror.Invalid("email", "email is required")
		}
		next.Email = email
	}
	if ap.Phone.IsSet() {
		next.Phone = ap.Phone.Or("")
	}
	if ap.Skills.IsSet() {
		next.Skills = ap.Skills.Or("")
	}
	if ap.AvatarRef.IsSet() {
		next.AvatarRef = ap.AvatarRef.Or("")
	}
	return p.writeAccount(ctx, actor, &next)
}

// AssignRoles replaces an account's role set. Coordinator-level only.
func (p *Pipeline) AssignRoles(ctx context.Context, actor maccount.Account, id int64, roles []maccount.Role) (*maccount.Account, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	if err := validRoles(roles); err != nil {
		return nil, err
	}
	existing, err := p.accounts.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, saccount.ErrAccountNotFound) {
			return nil, apperror.NotFound("account")
		}
		return nil, storeErr("load account", err)
	}
	next := *existing
	next.Roles = roles
	return p.writeAccount(ctx, actor, &next)
}

// SetAccountDisabled flips the disabled flag. Coordinator-level only.
// Disabling keeps the row; accounts are never deleted.
func (p *Pipeline) SetAccountDisabled(ctx context.Context, actor maccount.Account, id int64, disabled bool) (*maccount.Account, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	existing, err := p.accounts.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, saccount.ErrAccountNotFound) {
			return nil, apperror.NotFound("account")
		}
		return nil, storeErr("load account", err)
	}
	if existing.Disabled == disabled {
		return existing, nil
	}
	next := *existing
	next.Disabled = disabled
	return p.writeAccount(ctx, actor, &next)
}

// writeAccount persists the full account row and publishes the update event
// that drives the crew synchronizer.
func (p *Pipeline) writeAccount(ctx context.Context, actor maccount.Account, account *maccount.Account) (*maccount.Account, error) {
	var out *maccount.Account
	err := p.run(ctx, func(mc *Context) error {
		svc := p.accounts.TX(mc.TX())
		if err := svc.UpdateAccount(ctx, account); err != nil {
			if errors.Is(err, saccount.ErrAccountNotFound) {
				return apperror.NotFound("account")
			}
			return storeErr("update account", err)
		}
		canonical, err := svc.GetAccount(ctx, account.ID)
		if err != nil {
			return storeErr("read back account", err)
		}
		out = canonical
		mc.Track(event.New(event.EntityAccount, event.OpUpdate, canonical.ID, actor.ID, *canonical))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func requireManager(actor maccount.Account) error {
	if actor.Disabled || !actor.IsCoordinator() {
		return apperror.Denied("manage accounts")
	}
	return nil
}

func validRoles(roles []maccount.Role) error {
	for _, r := range roles {
		switch r {
		case maccount.RoleAdministrator, maccount.RoleCoordinator, maccount.RoleVolunteer:
		default:
			return apperror.Invalid("roles", "unknown role "+string(r))
		}
	}
	return nil
}
