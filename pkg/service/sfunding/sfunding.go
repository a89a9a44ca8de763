package sfunding

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/crewbase/crewbase/pkg/model/mfunding"
)

var ErrTransactionNotFound = errors.New("funding transaction not found")

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type FundingService struct {
	q dbtx
}

func New(db *sql.DB) FundingService {
	return FundingService{q: db}
}

// TX returns a copy of the service bound to the given transaction.
func (s FundingService) TX(tx *sql.Tx) FundingService {
	return FundingService{q: tx}
}

// Amounts are stored as integer cents so SQL aggregation stays exact.
func CreateTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
                CREATE TABLE IF NOT EXISTS funding_transactions (
                        id INTEGER PRIMARY KEY AUTOINCREMENT,
                        kind TEXT NOT NULL,
                        amount_cents INTEGER NOT NULL,
                        category TEXT NOT NULL DEFAULT '',
                        note TEXT NOT NULL DEFAULT '',
                        tx_date TEXT NOT NULL,
                        created_by INTEGER NOT NULL,
                        created_at TEXT NOT NULL
                )
        `)
	return err
}

func (s FundingService) CreateTransaction(ctx context.Context, tx *mfunding.Transaction) error {
	res, err := s.q.ExecContext(ctx, `
                INSERT INTO funding_transactions (kind, amount_cents, category, note, tx_date, created_by, created_at)
                VALUES (?, ?, ?, ?, ?, ?, ?)
        `, string(tx.Kind), toCents(tx.Amount), tx.Category, tx.Note,
		tx.TxDate.UTC().Format(dateLayout), tx.CreatedBy, tx.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	tx.ID, err = res.LastInsertId()
	return err
}

func (s FundingService) GetTransaction(ctx context.Context, id int64) (*mfunding.Transaction, error) {
	row := s.q.QueryRowContext(ctx, `
                SELECT id, kind, amount_cents, category, note, tx_date, created_by, created_at
                FROM funding_transactions
                WHERE id = ?
        `, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	return tx, err
}

func (s FundingService) ListTransactions(ctx context.Context) ([]mfunding.Transaction, error) {
	rows, err := s.q.QueryContext(ctx, `
                SELECT id, kind, amount_cents, category, note, tx_date, created_by, created_at
                FROM funding_transactions
                ORDER BY tx_date, id
        `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []mfunding.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tx)
	}
	return out, rows.Err()
}

func (s FundingService) UpdateTransaction(ctx context.Context, tx *mfunding.Transaction) error {
	res, err := s.q.ExecContext(ctx, `
                UPDATE funding_transactions
                SET kind = ?, amount_cents = ?, category = ?, note = ?, tx_date = ?
                WHERE id = ?
        `, string(tx.Kind), toCents(tx.Amount), tx.Category, tx.Note,
		tx.TxDate.UTC().Format(dateLayout), tx.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s FundingService) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM funding_transactions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Summary aggregates income and expense inside [from, to] in SQL and derives
// the net balance. The balance is always recomputed from the rows, never read
// from a stored total.
func (s FundingService) Summary(ctx context.Context, from, to time.Time) (mfunding.Summary, error) {
	row := s.q.QueryRowContext(ctx, `
                SELECT
                        COALESCE(SUM(CASE WHEN kind = 'income' THEN amount_cents ELSE 0 END), 0),
                        COALESCE(SUM(CASE WHEN kind = 'expense' THEN amount_cents ELSE 0 END), 0)
                FROM funding_transactions
                WHERE tx_date >= ? AND tx_date <= ?
        `, from.UTC().Format(dateLayout), to.UTC().Format(dateLayout))

	var incomeCents, expenseCents int64
	if err := row.Scan(&incomeCents, &expenseCents); err != nil {
		return mfunding.Summary{}, err
	}
	income := fromCents(incomeCents)
	expense := fromCents(expenseCents)
	return mfunding.Summary{
		Income:  income,
		Expense: expense,
		Net:     income.Sub(expense),
	}, nil
}

const dateLayout = "2006-01-02"

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func toCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*mfunding.Transaction, error) {
	var tx mfunding.Transaction
	var kind string
	var cents int64
	var txDate, createdAt string

	err := row.Scan(&tx.ID, &kind, &cents, &tx.Category, &tx.Note, &txDate, &tx.CreatedBy, &createdAt)
	if err != nil {
		return nil, err
	}
	tx.Kind = mfunding.Kind(kind)
	tx.Amount = fromCents(cents)
	if tx.TxDate, err = time.Parse(dateLayout, txDate); err != nil {
		return nil, err
	}
	if tx.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, err
	}
	return &tx, nil
}
