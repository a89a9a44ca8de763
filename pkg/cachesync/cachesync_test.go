package cachesync_test

import (
	"context"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewbase/crewbase/pkg/apperror"
	"github.com/crewbase/crewbase/pkg/cachesync"
	"github.com/crewbase/crewbase/pkg/model/mfunding"
	"github.com/crewbase/crewbase/pkg/model/mtask"
)

// scriptedTransport routes every request through a swappable handler.
type scriptedTransport struct {
	mu      sync.Mutex
	handler func(cachesync.Request) (cachesync.Response, error)
	calls   int
}

func (s *scriptedTransport) Mutate(_ context.Context, req cachesync.Request) (cachesync.Response, error) {
	s.mu.Lock()
	h := s.handler
	s.calls++
	s.mu.Unlock()
	return h(req)
}

func (s *scriptedTransport) set(h func(cachesync.Request) (cachesync.Response, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

func (s *scriptedTransport) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func respondWith[T any](record T) func(cachesync.Request) (cachesync.Response, error) {
	return func(cachesync.Request) (cachesync.Response, error) {
		raw, err := json.Marshal(record)
		if err != nil {
			return cachesync.Response{}, err
		}
		return cachesync.Response{Record: raw}, nil
	}
}

func failWith(code apperror.Code) func(cachesync.Request) (cachesync.Response, error) {
	return func(cachesync.Request) (cachesync.Response, error) {
		return cachesync.Response{}, &cachesync.TransportError{Code: code, Message: "rejected"}
	}
}

func taskCache() *cachesync.Cache[mtask.Task] {
	cache := cachesync.NewCache[mtask.Task]()
	cache.AddView("todo", func(t mtask.Task) bool { return t.Status == mtask.StatusTodo })
	cache.AddView("done", func(t mtask.Task) bool { return t.Status == mtask.StatusDone })
	cache.AddView("all", nil)
	return cache
}

func TestRollbackRestoresViewExactly(t *testing.T) {
	ctx := context.Background()
	cache := taskCache()
	transport := &scriptedTransport{}
	transport.set(failWith(apperror.CodeDenied))
	rec := cachesync.NewReconciler(cache, transport, "task")

	fresh := []mtask.Task{
		{ID: 1, Title: "a", Status: mtask.StatusTodo},
		{ID: 2, Title: "b", Status: mtask.StatusTodo},
		{ID: 3, Title: "c", Status: mtask.StatusTodo},
	}
	cache.Load("todo", fresh)
	cache.Load("all", fresh)

	provisional := mtask.Task{ID: cache.ProvisionalID(), Title: "d", Status: mtask.StatusTodo}
	_, err := rec.Create(ctx, provisional, map[string]string{"title": "d"})
	require.Error(t, err)

	// Same elements, same order as the Fresh snapshot.
	assert.Equal(t, fresh, cache.Items("todo"))
	assert.Equal(t, fresh, cache.Items("all"))
}

func TestCrossViewMoveOnCommit(t *testing.T) {
	ctx := context.Background()
	cache := taskCache()
	transport := &scriptedTransport{}
	rec := cachesync.NewReconciler(cache, transport, "task")

	task := mtask.Task{ID: 5, Title: "ship it", Status: mtask.StatusTodo}
	cache.Load("todo", []mtask.Task{task})
	cache.Load("done", nil)
	cache.Load("all", []mtask.Task{task})

	canonical := task
	canonical.Status = mtask.StatusDone
	transport.set(respondWith(canonical))

	predicted := task
	predicted.Status = mtask.StatusDone
	got, err := rec.Update(ctx, predicted, map[string]string{"status": "done"})
	require.NoError(t, err)
	assert.Equal(t, mtask.StatusDone, got.Status)

	assert.Empty(t, cache.Items("todo"), "task must leave the todo view")
	done := cache.Items("done")
	require.Len(t, done, 1)
	assert.Equal(t, canonical, done[0])
	all := cache.Items("all")
	require.Len(t, all, 1, "no duplicate or orphaned provisional copy")
	assert.Equal(t, canonical, all[0])
	assert.True(t, cache.NeedsRefetch())
}

func TestProvisionalIDsAreNegativeAndDistinct(t *testing.T) {
	cache := cachesync.NewCache[mtask.Task]()
	seen := map[int64]bool{}
	for i := 0; i < 100; i++ {
		id := cache.ProvisionalID()
		assert.Negative(t, id)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestConflictRetriesExactlyOnce(t *testing.T) {
	ctx := context.Background()
	cache := taskCache()
	transport := &scriptedTransport{}
	rec := cachesync.NewReconciler(cache, transport, "task")
	cache.Load("all", nil)

	canonical := mtask.Task{ID: 9, Title: "x", Status: mtask.StatusTodo}
	attempt := 0
	transport.set(func(req cachesync.Request) (cachesync.Response, error) {
		attempt++
		if attempt == 1 {
			return cachesync.Response{}, &cachesync.TransportError{Code: apperror.CodeConflict, Message: "busy"}
		}
		raw, _ := json.Marshal(canonical)
		return cachesync.Response{Record: raw}, nil
	})

	provisional := mtask.Task{ID: cache.ProvisionalID(), Title: "x", Status: mtask.StatusTodo}
	got, err := rec.Create(ctx, provisional, map[string]string{"title": "x"})
	require.NoError(t, err)
	assert.Equal(t, canonical, got)
	assert.Equal(t, 2, transport.callCount())
}

func TestDeniedIsNotRetried(t *testing.T) {
	ctx := context.Background()
	cache := taskCache()
	transport := &scriptedTransport{}
	transport.set(failWith(apperror.CodeDenied))
	rec := cachesync.NewReconciler(cache, transport, "task")
	cache.Load("all", nil)

	provisional := mtask.Task{ID: cache.ProvisionalID(), Title: "x", Status: mtask.StatusTodo}
	_, err := rec.Create(ctx, provisional, nil)
	require.Error(t, err)
	assert.Equal(t, 1, transport.callCount())
}

func TestNotFoundFlagsForcedRefetch(t *testing.T) {
	ctx := context.Background()
	cache := taskCache()
	transport := &scriptedTransport{}
	transport.set(failWith(apperror.CodeNotFound))
	rec := cachesync.NewReconciler(cache, transport, "task")

	stale := mtask.Task{ID: 7, Title: "gone", Status: mtask.StatusTodo}
	cache.Load("todo", []mtask.Task{stale})

	err := rec.Delete(ctx, 7)
	require.Error(t, err)
	// Rolled back and queued for refetch.
	assert.Equal(t, []mtask.Task{stale}, cache.Items("todo"))
	assert.True(t, cache.NeedsRefetch())
}

func TestSupersededMutationIsAbandoned(t *testing.T) {
	ctx := context.Background()
	cache := taskCache()
	transport := &scriptedTransport{}
	rec := cachesync.NewReconciler(cache, transport, "task")

	task := mtask.Task{ID: 5, Title: "first", Status: mtask.StatusTodo}
	cache.Load("all", []mtask.Task{task})

	release := make(chan struct{})
	firstResult := make(chan error, 1)
	transport.set(func(req cachesync.Request) (cachesync.Response, error) {
		<-release
		return cachesync.Response{}, &cachesync.TransportError{Code: apperror.CodeDenied, Message: "late rejection"}
	})

	// First update stalls in flight.
	go func() {
		predicted := task
		predicted.Title = "first edit"
		_, err := rec.Update(ctx, predicted, nil)
		firstResult <- err
	}()

	// Second update against the same record settles first.
	canonical := task
	canonical.Title = "second edit"
	second := make(chan struct{})
	go func() {
		defer close(second)
		// Wait until the first request is actually in flight.
		for transport.callCount() == 0 {
			time.Sleep(time.Millisecond)
		}
		transport.set(respondWith(canonical))
		predicted := task
		predicted.Title = "second edit"
		_, err := rec.Update(ctx, predicted, nil)
		assert.NoError(t, err)
	}()
	<-second
	cache.ClearRefetch()

	// Now let the first, stale mutation fail.
	close(release)
	err := <-firstResult
	assert.ErrorIs(t, err, cachesync.ErrSuperseded)

	// The late failure must not clobber the second mutation's committed view.
	all := cache.Items("all")
	require.Len(t, all, 1)
	assert.Equal(t, "second edit", all[0].Title)

	// The abandoned overlay may still be baked into restored snapshots, so
	// the superseded outcome queues a refetch to settle against the server.
	assert.True(t, cache.NeedsRefetch())
}

func TestNetTrackerMatchesRecompute(t *testing.T) {
	tracker := cachesync.NewNetTracker()

	income := mfunding.Transaction{ID: 1, Kind: mfunding.KindIncome, Amount: decimal.RequireFromString("1200.00")}
	expense := mfunding.Transaction{ID: 2, Kind: mfunding.KindExpense, Amount: decimal.RequireFromString("450.00")}

	tracker.Add(income)
	tracker.Add(expense)
	assert.True(t, tracker.Net().Equal(mfunding.NetOf([]mfunding.Transaction{income, expense})))

	edited := expense
	edited.Amount = decimal.RequireFromString("500.00")
	tracker.Replace(expense, edited)
	assert.True(t, tracker.Net().Equal(mfunding.NetOf([]mfunding.Transaction{income, edited})))

	tracker.Remove(income)
	assert.True(t, tracker.Net().Equal(mfunding.NetOf([]mfunding.Transaction{edited})))

	// A rollback path resets from the authoritative set; totals converge.
	tracker.Reset([]mfunding.Transaction{income, expense})
	assert.True(t, tracker.Net().Equal(decimal.RequireFromString("750.00")))
}

func TestFundingDeleteRecomputesNetToZero(t *testing.T) {
	ctx := context.Background()
	cache := cachesync.NewCache[mfunding.Transaction]()
	cache.AddView("funding", nil)
	transport := &scriptedTransport{}
	transport.set(func(cachesync.Request) (cachesync.Response, error) {
		return cachesync.Response{}, nil
	})
	rec := cachesync.NewReconciler(cache, transport, "funding")
	tracker := cachesync.NewNetTracker()

	expense := mfunding.Transaction{ID: 42, Kind: mfunding.KindExpense, Amount: decimal.RequireFromString("450.00")}
	cache.Load("funding", []mfunding.Transaction{expense})
	tracker.Reset(cache.Items("funding"))
	assert.True(t, tracker.Net().Equal(decimal.RequireFromString("-450.00")))

	require.NoError(t, rec.Delete(ctx, expense.ID))

	assert.Empty(t, cache.Items("funding"), "deleted row absent from every cached view")
	tracker.Reset(cache.Items("funding"))
	assert.True(t, tracker.Net().IsZero())
}
