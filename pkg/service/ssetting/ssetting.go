package ssetting

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
)

// Well-known setting keys. Values are stored as strings; booleans use "1"/"0".
const (
	KeyNotificationsEnabled  = "notifications.enabled"
	KeyVolunteerCreatesTasks = "tasks.volunteer_create"
	KeyEditWindowMinutes     = "posts.edit_window_minutes"
	KeyCrewBootstrapDone     = "crewsync.bootstrap_done"

	// Per-notification-kind delivery toggles are stored under
	// "notifications.<kind>.enabled".
	KindTogglePrefix = "notifications."
	KindToggleSuffix = ".enabled"
)

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SettingService is a small key/value store for runtime-editable toggles.
// Config supplies the defaults; rows here override them.
type SettingService struct {
	q dbtx
}

func New(db *sql.DB) SettingService {
	return SettingService{q: db}
}

// TX returns a copy of the service bound to the given transaction.
func (s SettingService) TX(tx *sql.Tx) SettingService {
	return SettingService{q: tx}
}

func CreateTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
                CREATE TABLE IF NOT EXISTS settings (
                        key TEXT PRIMARY KEY,
                        value TEXT NOT NULL
                )
        `)
	return err
}

func (s SettingService) Set(ctx context.Context, key, value string) error {
	_, err := s.q.ExecContext(ctx, `
                INSERT INTO settings (key, value) VALUES (?, ?)
                ON CONFLICT (key) DO UPDATE SET value = excluded.value
        `, key, value)
	return err
}

// Get returns the stored value, or ok=false when the key is absent.
func (s SettingService) Get(ctx context.Context, key string) (string, bool, error) {
	row := s.q.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key)
	var value string
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s SettingService) SetBool(ctx context.Context, key string, value bool) error {
	v := "0"
	if value {
		v = "1"
	}
	return s.Set(ctx, key, v)
}

// GetBool returns the stored boolean, falling back to def when absent.
func (s SettingService) GetBool(ctx context.Context, key string, def bool) (bool, error) {
	value, ok, err := s.Get(ctx, key)
	if err != nil {
		return def, err
	}
	if !ok {
		return def, nil
	}
	return value == "1" || value == "true", nil
}

// GetInt returns the stored integer, falling back to def when absent or
// malformed.
func (s SettingService) GetInt(ctx context.Context, key string, def int) (int, error) {
	value, ok, err := s.Get(ctx, key)
	if err != nil {
		return def, err
	}
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return def, nil
	}
	return n, nil
}

// KindToggleKey builds the per-notification-kind delivery toggle key.
func KindToggleKey(kind string) string {
	return KindTogglePrefix + kind + KindToggleSuffix
}
