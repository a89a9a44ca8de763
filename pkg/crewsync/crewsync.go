// Package crewsync keeps the crew roster projection in step with the account
// directory. The roster is derived state: the synchronizer is its only
// writer, every operation is idempotent, and a full bootstrap can rebuild it
// from the accounts table at any time.
package crewsync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crewbase/crewbase/pkg/event"
	"github.com/crewbase/crewbase/pkg/eventstream"
	"github.com/crewbase/crewbase/pkg/model/maccount"
	"github.com/crewbase/crewbase/pkg/model/mcrew"
	"github.com/crewbase/crewbase/pkg/service/saccount"
	"github.com/crewbase/crewbase/pkg/service/screw"
	"github.com/crewbase/crewbase/pkg/service/ssetting"
)

// Synchronizer projects accounts onto the crew roster.
type Synchronizer struct {
	accounts saccount.AccountService
	crew     screw.CrewService
	settings ssetting.SettingService
	streamer eventstream.SyncStreamer[event.Entity, event.Event]
	logger   *slog.Logger
}

// Deps are the synchronizer's collaborators.
type Deps struct {
	Accounts saccount.AccountService
	Crew     screw.CrewService
	Settings ssetting.SettingService
	Streamer eventstream.SyncStreamer[event.Entity, event.Event]
	Logger   *slog.Logger
}

func New(deps Deps) *Synchronizer {
	return &Synchronizer{
		accounts: deps.Accounts,
		crew:     deps.Crew,
		settings: deps.Settings,
		streamer: deps.Streamer,
		logger:   deps.Logger,
	}
}

// Run consumes account events until ctx is cancelled. Handler errors are
// logged and the loop continues; the next event or a bootstrap repairs any
// missed projection.
func (s *Synchronizer) Run(ctx context.Context) error {
	filter := func(entity event.Entity) bool { return entity == event.EntityAccount }
	return eventstream.Consume(ctx, s.streamer, filter,
		func(evt eventstream.Event[event.Entity, event.Event]) error {
			return s.Handle(ctx, evt.Payload)
		},
		func(err error) {
			s.logger.Error("crew sync failed", slog.String("error", err.Error()))
		})
}

// Handle applies one account event to the roster.
func (s *Synchronizer) Handle(ctx context.Context, evt event.Event) error {
	switch evt.Op {
	case event.OpCreate, event.OpUpdate:
		account, ok := evt.Snapshot.(maccount.Account)
		if !ok {
			return nil
		}
		return s.SyncAccount(ctx, account)
	case event.OpDelete:
		return s.RemoveAccount(ctx, evt.EntityID)
	}
	return nil
}

// SyncAccount upserts the roster row for an account. Applying the same
// account twice leaves the roster unchanged.
func (s *Synchronizer) SyncAccount(ctx context.Context, account maccount.Account) error {
	member := &mcrew.Member{
		ID:        account.ID,
		Name:      account.DisplayName,
		Email:     account.Email,
		Phone:     account.Phone,
		RoleLabel: RoleLabel(account),
		Skills:    account.Skills,
		AvatarRef: account.AvatarRef,
		Disabled:  account.Disabled,
	}
	if err := s.crew.UpsertMember(ctx, member); err != nil {
		return fmt.Errorf("upsert crew member %d: %w", account.ID, err)
	}
	return nil
}

// RemoveAccount drops the roster row. Removing an account that was never
// synced is a no-op.
func (s *Synchronizer) RemoveAccount(ctx context.Context, accountID int64) error {
	if err := s.crew.DeleteMember(ctx, accountID); err != nil {
		return fmt.Errorf("delete crew member %d: %w", accountID, err)
	}
	return nil
}

// Bootstrap projects every account onto the roster. Runs once per database
// unless force is set; the guard keeps server restarts cheap while force
// lets an operator rebuild a roster that drifted.
func (s *Synchronizer) Bootstrap(ctx context.Context, force bool) error {
	if !force {
		done, err := s.settings.GetBool(ctx, ssetting.KeyCrewBootstrapDone, false)
		if err != nil {
			return fmt.Errorf("read bootstrap flag: %w", err)
		}
		if done {
			return nil
		}
	}

	accounts, err := s.accounts.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	for _, account := range accounts {
		if err := s.SyncAccount(ctx, account); err != nil {
			return err
		}
	}
	if err := s.settings.SetBool(ctx, ssetting.KeyCrewBootstrapDone, true); err != nil {
		return fmt.Errorf("write bootstrap flag: %w", err)
	}
	s.logger.Info("crew roster bootstrapped", slog.Int("accounts", len(accounts)))
	return nil
}

// RoleLabel derives the roster label from an account's role set.
// Coordinator-capable accounts label as coordinator, volunteers as
// volunteer; an account with other labels keeps its first one.
func RoleLabel(account maccount.Account) string {
	if account.IsCoordinator() {
		return string(maccount.RoleCoordinator)
	}
	if account.HasRole(maccount.RoleVolunteer) {
		return string(maccount.RoleVolunteer)
	}
	if len(account.Roles) > 0 {
		return string(account.Roles[0])
	}
	return string(maccount.RoleVolunteer)
}
