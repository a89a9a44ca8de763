package cachesync

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/crewbase/crewbase/pkg/model/mfunding"
)

// NetTracker maintains the running funding net total a client shows beside
// the funding view. Incremental updates keep the display cheap; Reset
// recomputes from scratch after a refetch or rollback so drift can never
// accumulate.
type NetTracker struct {
	mu  sync.Mutex
	net decimal.Decimal
}

func NewNetTracker() *NetTracker {
	return &NetTracker{net: decimal.Zero}
}

// Add folds a new transaction into the total.
func (t *NetTracker) Add(tx mfunding.Transaction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.net = t.net.Add(signed(tx))
}

// Remove backs a transaction out of the total.
func (t *NetTracker) Remove(tx mfunding.Transaction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.net = t.net.Sub(signed(tx))
}

// Replace swaps an edited transaction's contribution.
func (t *NetTracker) Replace(old, updated mfunding.Transaction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.net = t.net.Sub(signed(old)).Add(signed(updated))
}

// Reset recomputes the total from the full transaction set.
func (t *NetTracker) Reset(txs []mfunding.Transaction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.net = mfunding.NetOf(txs)
}

// Net returns the current total.
func (t *NetTracker) Net() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.net
}

func signed(tx mfunding.Transaction) decimal.Decimal {
	if tx.Kind == mfunding.KindIncome {
		return tx.Amount
	}
	return tx.Amount.Neg()
}
