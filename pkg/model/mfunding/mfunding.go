package mfunding

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the transaction direction.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

type Transaction struct {
	ID        int64           `json:"id"`
	Kind      Kind            `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Category  string          `json:"category"`
	Note      string          `json:"note"`
	TxDate    time.Time       `json:"tx_date"`
	CreatedBy int64           `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

// Summary is the aggregate over a date range. Net is always recomputed from
// the stored rows, never cached.
type Summary struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// NetOf recomputes the net balance from scratch.
func NetOf(txs []Transaction) decimal.Decimal {
	net := decimal.Zero
	for _, tx := range txs {
		if tx.Kind == KindIncome {
			net = net.Add(tx.Amount)
		} else {
			net = net.Sub(tx.Amount)
		}
	}
	return net
}

// RecordID implements the client cache record contract.
func (t Transaction) RecordID() int64 { return t.ID }
