package stask

import (
	"database/sql"
	"time"

	"github.com/crewbase/crewbase/pkg/model/mtask"
)

const dateLayout = "2006-01-02"

// stamp formats a timestamp for storage. All timestamps are stored as
// RFC 3339 UTC strings so they round-trip to the wire format unchanged.
func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseStamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func dateOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(dateLayout)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*mtask.Task, error) {
	var t mtask.Task
	var status string
	var dueDate sql.NullString
	var assignee sql.NullInt64
	var createdAt, updatedAt string

	err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &t.Priority,
		&dueDate, &assignee, &t.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = mtask.Status(status)
	if dueDate.Valid {
		due, err := time.Parse(dateLayout, dueDate.String)
		if err != nil {
			return nil, err
		}
		t.DueDate = &due
	}
	if assignee.Valid {
		t.AssigneeID = &assignee.Int64
	}
	if t.CreatedAt, err = parseStamp(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseStamp(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func collectTasks(rows *sql.Rows) ([]mtask.Task, error) {
	var out []mtask.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
