package screw

import (
	"context"
	"database/sql"
	"errors"

	"github.com/crewbase/crewbase/pkg/model/mcrew"
)

var ErrMemberNotFound = errors.New("crew member not found")

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CrewService persists the derived roster projection. The crew synchronizer
// is its only legitimate writer.
type CrewService struct {
	q dbtx
}

func New(db *sql.DB) CrewService {
	return CrewService{q: db}
}

// TX returns a copy of the service bound to the given transaction.
func (s CrewService) TX(tx *sql.Tx) CrewService {
	return CrewService{q: tx}
}

func CreateTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
                CREATE TABLE IF NOT EXISTS crew_members (
                        id INTEGER PRIMARY KEY,
                        name TEXT NOT NULL,
                        email TEXT NOT NULL,
                        phone TEXT NOT NULL DEFAULT '',
                        role_label TEXT NOT NULL,
                        skills TEXT NOT NULL DEFAULT '',
                        avatar_ref TEXT NOT NULL DEFAULT '',
                        disabled INTEGER NOT NULL DEFAULT 0
                )
        `)
	return err
}

// UpsertMember writes the projection row for an account, creating it if
// absent. Replaying the same member is a no-op beyond the first application.
func (s CrewService) UpsertMember(ctx context.Context, member *mcrew.Member) error {
	_, err := s.q.ExecContext(ctx, `
                INSERT INTO crew_members (id, name, email, phone, role_label, skills, avatar_ref, disabled)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?)
                ON CONFLICT (id) DO UPDATE SET
                        name = excluded.name,
                        email = excluded.email,
                        phone = excluded.phone,
                        role_label = excluded.role_label,
                        skills = excluded.skills,
                        avatar_ref = excluded.avatar_ref,
                        disabled = excluded.disabled
        `, member.ID, member.Name, member.Email, member.Phone, member.RoleLabel,
		member.Skills, member.AvatarRef, member.Disabled)
	return err
}

func (s CrewService) GetMember(ctx context.Context, id int64) (*mcrew.Member, error) {
	row := s.q.QueryRowContext(ctx, `
                SELECT id, name, email, phone, role_label, skills, avatar_ref, disabled
                FROM crew_members
                WHERE id = ?
        `, id)
	var m mcrew.Member
	err := row.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.RoleLabel, &m.Skills, &m.AvatarRef, &m.Disabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s CrewService) ListMembers(ctx context.Context) ([]mcrew.Member, error) {
	rows, err := s.q.QueryContext(ctx, `
                SELECT id, name, email, phone, role_label, skills, avatar_ref, disabled
                FROM crew_members
                ORDER BY id
        `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []mcrew.Member
	for rows.Next() {
		var m mcrew.Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.RoleLabel, &m.Skills, &m.AvatarRef, &m.Disabled); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteMember removes a projection row. Deleting an absent row is not an
// error: account removal events may be replayed.
func (s CrewService) DeleteMember(ctx context.Context, id int64) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM crew_members WHERE id = ?`, id)
	return err
}

// Roster lists the crew joined with each member's count of open tasks
// (anything not done). This is one of the two raw-query escape hatches.
func (s CrewService) Roster(ctx context.Context) ([]mcrew.RosterEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
                SELECT c.id, c.name, c.email, c.phone, c.role_label, c.skills, c.avatar_ref, c.disabled,
                       COUNT(t.id)
                FROM crew_members c
                LEFT JOIN tasks t ON t.assignee_id = c.id AND t.status != 'done'
                GROUP BY c.id
                ORDER BY c.id
        `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []mcrew.RosterEntry
	for rows.Next() {
		var e mcrew.RosterEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.Email, &e.Phone, &e.RoleLabel, &e.Skills, &e.AvatarRef, &e.Disabled, &e.OpenTasks); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
