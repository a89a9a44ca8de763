// Package cachesync is the client-side optimistic cache reconciler. A cache
// holds named filtered views over one entity collection; every mutating user
// action snapshots the touched views, splices in a provisional record, issues
// the mutation, and then either replaces the provisional with the canonical
// record or restores the snapshot exactly. A view therefore always shows
// either the last committed server state or a single self-consistent
// provisional overlay, never a partial splice.
package cachesync

import (
	"sync"
)

// Record is anything the cache can hold. Provisional records carry negative
// ids so a reconciliation match-by-id can never collide with a real record.
type Record interface {
	RecordID() int64
}

type view[T Record] struct {
	filter func(T) bool
	items  []T
}

// Cache holds the named views of one logical collection. All access is
// serialized by a single mutex: overlapping mutations against the same
// collection must not interleave their snapshot and splice steps.
type Cache[T Record] struct {
	mu              sync.Mutex
	views           map[string]*view[T]
	nextProvisional int64
	needsRefetch    bool
}

func NewCache[T Record]() *Cache[T] {
	return &Cache[T]{
		views:           make(map[string]*view[T]),
		nextProvisional: -1,
	}
}

// AddView registers a named filtered view. A nil filter accepts everything.
func (c *Cache[T]) AddView(name string, filter func(T) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if filter == nil {
		filter = func(T) bool { return true }
	}
	c.views[name] = &view[T]{filter: filter}
}

// Load replaces a view's contents with fresh server data.
func (c *Cache[T]) Load(name string, items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.views[name]
	if !ok {
		return
	}
	v.items = append([]T(nil), items...)
}

// Items returns a copy of a view's current contents.
func (c *Cache[T]) Items(name string) []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.views[name]
	if !ok {
		return nil
	}
	return append([]T(nil), v.items...)
}

// ProvisionalID draws the next temporary identifier. Provisional ids count
// down from -1, a range no canonical record ever occupies.
func (c *Cache[T]) ProvisionalID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextProvisional
	c.nextProvisional--
	return id
}

// NeedsRefetch reports whether a background refetch has been requested since
// the last ClearRefetch. Commits set it so the client converges on full
// server state even if a splice prediction was wrong.
func (c *Cache[T]) NeedsRefetch() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.needsRefetch
}

// ClearRefetch resets the flag, typically right before the refetch runs.
func (c *Cache[T]) ClearRefetch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.needsRefetch = false
}

// MarkRefetch requests a background refetch.
func (c *Cache[T]) MarkRefetch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.needsRefetch = true
}

// snapshotLocked copies every view's contents. Caller holds c.mu.
func (c *Cache[T]) snapshotLocked() map[string][]T {
	snap := make(map[string][]T, len(c.views))
	for name, v := range c.views {
		snap[name] = append([]T(nil), v.items...)
	}
	return snap
}

// restoreLocked puts every view back to its snapshot, element for element.
// Caller holds c.mu.
func (c *Cache[T]) restoreLocked(snap map[string][]T) {
	for name, items := range snap {
		if v, ok := c.views[name]; ok {
			v.items = append([]T(nil), items...)
		}
	}
}

// spliceLocked removes removeID from every view, then inserts record into
// each view whose filter accepts it. Caller holds c.mu.
func (c *Cache[T]) spliceLocked(record T, removeID int64) {
	for _, v := range c.views {
		v.remove(removeID)
		if v.filter(record) {
			v.items = append(v.items, record)
		}
	}
}

// removeLocked drops id from every view. Caller holds c.mu.
func (c *Cache[T]) removeLocked(id int64) {
	for _, v := range c.views {
		v.remove(id)
	}
}

func (v *view[T]) remove(id int64) {
	if id == 0 {
		return
	}
	for i, item := range v.items {
		if item.RecordID() == id {
			v.items = append(v.items[:i], v.items[i+1:]...)
			return
		}
	}
}
