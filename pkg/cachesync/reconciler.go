package cachesync

import (
	"context"
	"errors"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/crewbase/crewbase/pkg/apperror"
)

// ErrSuperseded reports that a later mutation against the same record
// settled first; the earlier outcome was discarded and the view state
// belongs to the later mutation.
var ErrSuperseded = errors.New("mutation superseded")

// Reconciler drives one entity collection's optimistic mutations end to end:
// splice provisional, issue the request, commit or roll back. In-flight
// mutations are keyed by target record id with sequence numbers, so a stale
// callback can never clobber a newer mutation's overlay.
type Reconciler[T Record] struct {
	cache     *Cache[T]
	transport Transport
	entity    string

	mu       sync.Mutex
	seq      uint64
	inflight map[int64]uint64
}

func NewReconciler[T Record](cache *Cache[T], transport Transport, entity string) *Reconciler[T] {
	return &Reconciler[T]{
		cache:     cache,
		transport: transport,
		entity:    entity,
		inflight:  make(map[int64]uint64),
	}
}

// Cache exposes the underlying cache for view registration and reads.
func (r *Reconciler[T]) Cache() *Cache[T] { return r.cache }

// Create splices the provisional record (its id must come from
// Cache.ProvisionalID) and issues the create. On success the provisional is
// replaced by the canonical record wherever it still belongs.
func (r *Reconciler[T]) Create(ctx context.Context, provisional T, payload any) (T, error) {
	id := provisional.RecordID()
	return r.apply(ctx, id, func(c *Cache[T]) {
		c.spliceLocked(provisional, 0)
	}, Request{Entity: r.entity, Action: "create"}, id, payload)
}

// Update splices the predicted record over the current one and issues the
// update. The predicted record keeps the canonical id.
func (r *Reconciler[T]) Update(ctx context.Context, predicted T, payload any) (T, error) {
	id := predicted.RecordID()
	return r.apply(ctx, id, func(c *Cache[T]) {
		c.spliceLocked(predicted, id)
	}, Request{Entity: r.entity, Action: "update", ID: id}, id, payload)
}

// Delete removes the record from every view and issues the delete.
func (r *Reconciler[T]) Delete(ctx context.Context, id int64) error {
	_, err := r.apply(ctx, id, func(c *Cache[T]) {
		c.removeLocked(id)
	}, Request{Entity: r.entity, Action: "delete", ID: id}, 0, nil)
	return err
}

// apply is the shared snapshot → splice → send → settle path. provisionalID
// is the id to replace on commit; 0 means nothing to replace (deletes).
func (r *Reconciler[T]) apply(ctx context.Context, key int64, splice func(*Cache[T]), req Request, provisionalID int64, payload any) (T, error) {
	var zero T
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return zero, err
		}
		req.Payload = body
	}

	seq := r.begin(key)

	c := r.cache
	c.mu.Lock()
	snap := c.snapshotLocked()
	splice(c)
	c.mu.Unlock()

	raw, err := r.send(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !r.current(key, seq) {
		// A later mutation owns the overlay now; neither commit nor roll
		// back on its behalf. Our splice may still be baked into whatever
		// snapshot the later mutation restores, so force a refetch to
		// settle the views against canonical state.
		c.needsRefetch = true
		return zero, ErrSuperseded
	}
	r.finish(key, seq)

	if err != nil {
		c.restoreLocked(snap)
		return zero, err
	}

	if provisionalID == 0 {
		// Delete: the removal stands, refetch confirms.
		c.needsRefetch = true
		return zero, nil
	}

	var canonical T
	if err := json.Unmarshal(raw, &canonical); err != nil {
		c.restoreLocked(snap)
		return zero, err
	}
	c.spliceLocked(canonical, provisionalID)
	c.needsRefetch = true
	return canonical, nil
}

// send issues the request, retrying once on a transient conflict. A
// not-found answer flags a forced refetch: the client held a stale reference.
func (r *Reconciler[T]) send(ctx context.Context, req Request) (json.RawMessage, error) {
	resp, err := r.transport.Mutate(ctx, req)
	if err != nil && retryable(err) {
		resp, err = r.transport.Mutate(ctx, req)
	}
	if err != nil {
		if codeOf(err) == apperror.CodeNotFound {
			r.cache.MarkRefetch()
		}
		return nil, err
	}
	return resp.Record, nil
}

func (r *Reconciler[T]) begin(key int64) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.inflight[key] = r.seq
	return r.seq
}

func (r *Reconciler[T]) current(key int64, seq uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inflight[key] == seq
}

func (r *Reconciler[T]) finish(key int64, seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inflight[key] == seq {
		delete(r.inflight, key)
	}
}

func retryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable()
	}
	var ae *apperror.Error
	if errors.As(err, &ae) {
		return ae.Retryable()
	}
	return false
}

func codeOf(err error) apperror.Code {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Code
	}
	return apperror.CodeOf(err)
}
