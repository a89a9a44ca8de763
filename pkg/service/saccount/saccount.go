package saccount

import (
	"context"
	"database/sql"
	"errors"

	"github.com/goccy/go-json"

	"github.com/crewbase/crewbase/pkg/model/maccount"
)

var ErrAccountNotFound = errors.New("account not found")

// dbtx is the subset of database/sql shared by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type AccountService struct {
	q dbtx
}

func New(db *sql.DB) AccountService {
	return AccountService{q: db}
}

// TX returns a copy of the service bound to the given transaction.
func (s AccountService) TX(tx *sql.Tx) AccountService {
	return AccountService{q: tx}
}

func CreateTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
                CREATE TABLE IF NOT EXISTS accounts (
                        id INTEGER PRIMARY KEY AUTOINCREMENT,
                        display_name TEXT NOT NULL,
                        email TEXT NOT NULL UNIQUE,
                        phone TEXT NOT NULL DEFAULT '',
                        skills TEXT NOT NULL DEFAULT '',
                        avatar_ref TEXT NOT NULL DEFAULT '',
                        roles TEXT NOT NULL DEFAULT '[]',
                        disabled INTEGER NOT NULL DEFAULT 0
                )
        `)
	return err
}

func (s AccountService) CreateAccount(ctx context.Context, account *maccount.Account) error {
	roles, err := rolesToJSON(account.Roles)
	if err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `
                INSERT INTO accounts (display_name, email, phone, skills, avatar_ref, roles, disabled)
                VALUES (?, ?, ?, ?, ?, ?, ?)
        `, account.DisplayName, account.Email, account.Phone, account.Skills,
		account.AvatarRef, roles, account.Disabled)
	if err != nil {
		return err
	}
	account.ID, err = res.LastInsertId()
	return err
}

func (s AccountService) GetAccount(ctx context.Context, id int64) (*maccount.Account, error) {
	row := s.q.QueryRowContext(ctx, `
                SELECT id, display_name, email, phone, skills, avatar_ref, roles, disabled
                FROM accounts
                WHERE id = ?
        `, id)
	return scanAccount(row)
}

func (s AccountService) GetAccountByEmail(ctx context.Context, email string) (*maccount.Account, error) {
	row := s.q.QueryRowContext(ctx, `
                SELECT id, display_name, email, phone, skills, avatar_ref, roles, disabled
                FROM accounts
                WHERE email = ?
        `, email)
	return scanAccount(row)
}

func (s AccountService) ListAccounts(ctx context.Context) ([]maccount.Account, error) {
	rows, err := s.q.QueryContext(ctx, `
                SELECT id, display_name, email, phone, skills, avatar_ref, roles, disabled
                FROM accounts
                ORDER BY id
        `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAccounts(rows)
}

// ListCoordinators returns every enabled account holding coordinator-level
// capabilities. Used as the broadcast delivery audience.
func (s AccountService) ListCoordinators(ctx context.Context) ([]maccount.Account, error) {
	accounts, err := s.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	out := accounts[:0]
	for _, a := range accounts {
		if !a.Disabled && a.IsCoordinator() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s AccountService) UpdateAccount(ctx context.Context, account *maccount.Account) error {
	roles, err := rolesToJSON(account.Roles)
	if err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `
                UPDATE accounts
                SET display_name = ?, email = ?, phone = ?, skills = ?, avatar_ref = ?, roles = ?, disabled = ?
                WHERE id = ?
        `, account.DisplayName, account.Email, account.Phone, account.Skills,
		account.AvatarRef, roles, account.Disabled, account.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetDisabled flips the disabled flag. Accounts are never deleted.
func (s AccountService) SetDisabled(ctx context.Context, id int64, disabled bool) error {
	res, err := s.q.ExecContext(ctx, `
                UPDATE accounts SET disabled = ? WHERE id = ?
        `, disabled, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func rolesToJSON(roles []maccount.Role) (string, error) {
	if roles == nil {
		roles = []maccount.Role{}
	}
	raw, err := json.Marshal(roles)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func scanAccount(row *sql.Row) (*maccount.Account, error) {
	var a maccount.Account
	var roles string
	err := row.Scan(&a.ID, &a.DisplayName, &a.Email, &a.Phone, &a.Skills, &a.AvatarRef, &roles, &a.Disabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(roles), &a.Roles); err != nil {
		return nil, err
	}
	return &a, nil
}

func collectAccounts(rows *sql.Rows) ([]maccount.Account, error) {
	var out []maccount.Account
	for rows.Next() {
		var a maccount.Account
		var roles string
		if err := rows.Scan(&a.ID, &a.DisplayName, &a.Email, &a.Phone, &a.Skills, &a.AvatarRef, &roles, &a.Disabled); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(roles), &a.Roles); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
