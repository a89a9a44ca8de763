package mutation

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/crewbase/crewbase/pkg/apperror"
	"github.com/crewbase/crewbase/pkg/capability"
	"github.com/crewbase/crewbase/pkg/event"
	"github.com/crewbase/crewbase/pkg/model/maccount"
	"github.com/crewbase/crewbase/pkg/model/mfunding"
	"github.com/crewbase/crewbase/pkg/patch"
	"github.com/crewbase/crewbase/pkg/service/sfunding"
)

// FundingCreateInput is the client payload for a new funding transaction.
type FundingCreateInput struct {
	Kind     mfunding.Kind   `json:"type"`
	Amount   decimal.Decimal `json:"amount"`
	Category string          `json:"category"`
	Note     string          `json:"note"`
	TxDate   time.Time       `json:"tx_date"`
}

func (p *Pipeline) CreateFunding(ctx context.Context, actor maccount.Account, in FundingCreateInput) (*mfunding.Transaction, error) {
	if !in.Kind.Valid() {
		return nil, apperror.Invalid("type", "unknown transaction type "+string(in.Kind))
	}
	if in.Amount.IsNegative() {
		return nil, apperror.Invalid("amount", "amount must not be negative")
	}
	if in.TxDate.IsZero() {
		return nil, apperror.Invalid("tx_date", "transaction date is required")
	}
	if err := p.gate(actor, capability.ActionCreate, capability.Resource{Entity: event.EntityFunding}, 0, "record funding"); err != nil {
		return nil, err
	}

	tx := &mfunding.Transaction{
		Kind:      in.Kind,
		Amount:    in.Amount,
		Category:  in.Category,
		Note:      in.Note,
		TxDate:    in.TxDate,
		CreatedBy: actor.ID,
		CreatedAt: p.now().UTC(),
	}
	var out *mfunding.Transaction
	err := p.run(ctx, func(mc *Context) error {
		svc := p.funding.TX(mc.TX())
		if err := svc.CreateTransaction(ctx, tx); err != nil {
			return storeErr("create funding transaction", err)
		}
		canonical, err := svc.GetTransaction(ctx, tx.ID)
		if err != nil {
			return storeErr("read back funding transaction", err)
		}
		out = canonical
		mc.Track(event.New(event.EntityFunding, event.OpCreate, canonical.ID, actor.ID, *canonical))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) UpdateFunding(ctx context.Context, actor maccount.Account, id int64, fp patch.FundingPatch) (*mfunding.Transaction, error) {
	if !fp.HasChanges() {
		return nil, apperror.Invalid("", "patch contains no changes")
	}
	existing, err := p.funding.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, sfunding.ErrTransactionNotFound) {
			return nil, apperror.NotFound("funding transaction")
		}
		return nil, storeErr("load funding transaction", err)
	}
	res := capability.Resource{Entity: event.EntityFunding, OwnerID: existing.CreatedBy, CreatedAt: existing.CreatedAt}
	if err := p.gate(actor, capability.ActionUpdate, res, id, "update funding"); err != nil {
		return nil, err
	}

	next := *existing
	if err := applyFundingPatch(&next, fp); err != nil {
		return nil, err
	}

	var out *mfunding.Transaction
	err = p.run(ctx, func(mc *Context) error {
		svc := p.funding.TX(mc.TX())
		if err := svc.UpdateTransaction(ctx, &next); err != nil {
			if errors.Is(err, sfunding.ErrTransactionNotFound) {
				return apperror.NotFound("funding transaction")
			}
			return storeErr("update funding transaction", err)
		}
		canonical, err := svc.GetTransaction(ctx, id)
		if err != nil {
			return storeErr("read back funding transaction", err)
		}
		out = canonical
		mc.Track(event.New(event.EntityFunding, event.OpUpdate, id, actor.ID, *canonical))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) DeleteFunding(ctx context.Context, actor maccount.Account, id int64) (*mfunding.Transaction, error) {
	existing, err := p.funding.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, sfunding.ErrTransactionNotFound) {
			return nil, apperror.NotFound("funding transaction")
		}
		return nil, storeErr("load funding transaction", err)
	}
	res := capability.Resource{Entity: event.EntityFunding, OwnerID: existing.CreatedBy, CreatedAt: existing.CreatedAt}
	if err := p.gate(actor, capability.ActionDelete, res, id, "delete funding"); err != nil {
		return nil, err
	}

	err = p.run(ctx, func(mc *Context) error {
		if err := p.funding.TX(mc.TX()).DeleteTransaction(ctx, id); err != nil {
			if errors.Is(err, sfunding.ErrTransactionNotFound) {
				return apperror.NotFound("funding transaction")
			}
			return storeErr("delete funding transaction", err)
		}
		mc.Track(event.New(event.EntityFunding, event.OpDelete, id, actor.ID, *existing))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return existing, nil
}

func applyFundingPatch(tx *mfunding.Transaction, fp patch.FundingPatch) error {
	if fp.Kind.IsSet() {
		kind := mfunding.Kind(fp.Kind.Or(""))
		if !kind.Valid() {
			return apperror.Invalid("type", "unknown transaction type "+string(kind))
		}
		tx.Kind = kind
	}
	if fp.Amount.IsSet() {
		amount := fp.Amount.Or(decimal.Zero)
		if amount.IsNegative() {
			return apperror.Invalid("amount", "amount must not be negative")
		}
		tx.Amount = amount
	}
	if fp.Category.IsSet() {
		tx.Category = fp.Category.Or("")
	}
	if fp.Note.IsSet() {
		tx.Note = fp.Note.Or("")
	}
	if fp.TxDate.IsSet() {
		date := fp.TxDate.Or(time.Time{})
		if date.IsZero() {
			return apperror.Invalid("tx_date", "transaction date is required")
		}
		tx.TxDate = date
	}
	return nil
}
