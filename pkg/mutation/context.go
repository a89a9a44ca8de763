package mutation

import (
	"context"
	"database/sql"

	"github.com/crewbase/crewbase/pkg/event"
)

// Publisher receives the events a committed mutation produced.
type Publisher interface {
	PublishAll(events []event.Event)
}

// Context carries one mutation's transaction together with the domain events
// it produces. Events are buffered while the transaction is open and handed
// to the publisher only after a successful commit, so subscribers never
// observe state that was rolled back.
type Context struct {
	tx        *sql.Tx
	events    []event.Event
	publisher Publisher
	skipTx    bool
	done      bool
}

// Begin opens a transaction-backed mutation context.
func Begin(ctx context.Context, db *sql.DB, publisher Publisher) (*Context, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Context{tx: tx, publisher: publisher}, nil
}

// WithoutTX builds a publish-only context for mutations that produce events
// without store writes, such as moderation requests.
func WithoutTX(publisher Publisher) *Context {
	return &Context{skipTx: true, publisher: publisher}
}

// TX exposes the underlying transaction for service calls.
func (c *Context) TX() *sql.Tx { return c.tx }

// Track buffers an event for publication after commit.
func (c *Context) Track(e event.Event) {
	c.events = append(c.events, e)
}

// Events returns the events buffered so far.
func (c *Context) Events() []event.Event { return c.events }

// Commit commits the transaction and, on success, hands the buffered events
// to the publisher.
func (c *Context) Commit() error {
	if c.done {
		return nil
	}
	c.done = true
	if !c.skipTx {
		if err := c.tx.Commit(); err != nil {
			return err
		}
	}
	if c.publisher != nil && len(c.events) > 0 {
		c.publisher.PublishAll(c.events)
	}
	return nil
}

// Rollback aborts the transaction and drops the buffered events. Safe to
// defer after a successful Commit.
func (c *Context) Rollback() error {
	if c.done {
		return nil
	}
	c.done = true
	c.events = nil
	if c.skipTx {
		return nil
	}
	return c.tx.Rollback()
}
