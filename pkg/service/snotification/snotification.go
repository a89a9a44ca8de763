package snotification

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/crewbase/crewbase/pkg/model/mnotification"
)

var ErrNotificationNotFound = errors.New("notification not found")

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type NotificationService struct {
	q dbtx
}

func New(db *sql.DB) NotificationService {
	return NotificationService{q: db}
}

// TX returns a copy of the service bound to the given transaction.
func (s NotificationService) TX(tx *sql.Tx) NotificationService {
	return NotificationService{q: tx}
}

func CreateTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
                CREATE TABLE IF NOT EXISTS notifications (
                        id INTEGER PRIMARY KEY AUTOINCREMENT,
                        kind TEXT NOT NULL,
                        message TEXT NOT NULL,
                        target_account_id INTEGER,
                        related_entity_type TEXT NOT NULL DEFAULT '',
                        related_entity_id INTEGER NOT NULL DEFAULT 0,
                        is_read INTEGER NOT NULL DEFAULT 0,
                        created_at TEXT NOT NULL
                )
        `)
	return err
}

func (s NotificationService) CreateNotification(ctx context.Context, n *mnotification.Notification) error {
	res, err := s.q.ExecContext(ctx, `
                INSERT INTO notifications (kind, message, target_account_id, related_entity_type, related_entity_id, is_read, created_at)
                VALUES (?, ?, ?, ?, ?, ?, ?)
        `, string(n.Kind), n.Message, n.TargetAccountID, n.RelatedEntityType,
		n.RelatedEntityID, n.IsRead, n.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	n.ID, err = res.LastInsertId()
	return err
}

func (s NotificationService) GetNotification(ctx context.Context, id int64) (*mnotification.Notification, error) {
	row := s.q.QueryRowContext(ctx, `
                SELECT id, kind, message, target_account_id, related_entity_type, related_entity_id, is_read, created_at
                FROM notifications
                WHERE id = ?
        `, id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotificationNotFound
	}
	return n, err
}

// ListForAccount returns the account's feed: notifications targeted at it
// plus all broadcasts, newest first.
func (s NotificationService) ListForAccount(ctx context.Context, accountID int64) ([]mnotification.Notification, error) {
	rows, err := s.q.QueryContext(ctx, `
                SELECT id, kind, message, target_account_id, related_entity_type, related_entity_id, is_read, created_at
                FROM notifications
                WHERE target_account_id = ? OR target_account_id IS NULL
                ORDER BY id DESC
        `, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []mnotification.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// MarkRead sets is_read. The flag is monotonic: a read notification can
// never go back to unread, so the update only ever flips false to true.
func (s NotificationService) MarkRead(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `
                UPDATE notifications SET is_read = 1 WHERE id = ?
        `, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead marks the whole feed of an account as read.
func (s NotificationService) MarkAllRead(ctx context.Context, accountID int64) error {
	_, err := s.q.ExecContext(ctx, `
                UPDATE notifications
                SET is_read = 1
                WHERE is_read = 0 AND (target_account_id = ? OR target_account_id IS NULL)
        `, accountID)
	return err
}

func (s NotificationService) CountUnread(ctx context.Context, accountID int64) (int64, error) {
	row := s.q.QueryRowContext(ctx, `
                SELECT COUNT(*)
                FROM notifications
                WHERE is_read = 0 AND (target_account_id = ? OR target_account_id IS NULL)
        `, accountID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*mnotification.Notification, error) {
	var n mnotification.Notification
	var kind string
	var target sql.NullInt64
	var createdAt string

	err := row.Scan(&n.ID, &kind, &n.Message, &target, &n.RelatedEntityType, &n.RelatedEntityID, &n.IsRead, &createdAt)
	if err != nil {
		return nil, err
	}
	n.Kind = mnotification.Kind(kind)
	if target.Valid {
		n.TargetAccountID = &target.Int64
	}
	n.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	return &n, err
}
