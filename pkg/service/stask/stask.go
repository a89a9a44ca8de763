package stask

import (
	"context"
	"database/sql"
	"errors"

	"github.com/crewbase/crewbase/pkg/model/mtask"
	"github.com/crewbase/crewbase/pkg/model/mtaskcomment"
)

var (
	ErrTaskNotFound        = errors.New("task not found")
	ErrTaskCommentNotFound = errors.New("task comment not found")
)

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type TaskService struct {
	q dbtx
}

func New(db *sql.DB) TaskService {
	return TaskService{q: db}
}

// TX returns a copy of the service bound to the given transaction.
func (s TaskService) TX(tx *sql.Tx) TaskService {
	return TaskService{q: tx}
}

func CreateTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
                CREATE TABLE IF NOT EXISTS tasks (
                        id INTEGER PRIMARY KEY AUTOINCREMENT,
                        title TEXT NOT NULL,
                        description TEXT NOT NULL DEFAULT '',
                        status TEXT NOT NULL,
                        priority INTEGER NOT NULL DEFAULT 1,
                        due_date TEXT,
                        assignee_id INTEGER REFERENCES accounts (id),
                        created_by INTEGER NOT NULL,
                        created_at TEXT NOT NULL,
                        updated_at TEXT NOT NULL
                )
        `)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
                CREATE TABLE IF NOT EXISTS task_comments (
                        id INTEGER PRIMARY KEY AUTOINCREMENT,
                        task_id INTEGER NOT NULL REFERENCES tasks (id),
                        parent_id INTEGER REFERENCES task_comments (id),
                        author_id INTEGER NOT NULL,
                        body TEXT NOT NULL,
                        created_at TEXT NOT NULL
                )
        `)
	return err
}

func (s TaskService) CreateTask(ctx context.Context, task *mtask.Task) error {
	res, err := s.q.ExecContext(ctx, `
                INSERT INTO tasks (title, description, status, priority, due_date, assignee_id, created_by, created_at, updated_at)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        `, task.Title, task.Description, string(task.Status), task.Priority,
		dateOrNil(task.DueDate), task.AssigneeID, task.CreatedBy,
		stamp(task.CreatedAt), stamp(task.UpdatedAt))
	if err != nil {
		return err
	}
	task.ID, err = res.LastInsertId()
	return err
}

func (s TaskService) GetTask(ctx context.Context, id int64) (*mtask.Task, error) {
	row := s.q.QueryRowContext(ctx, `
                SELECT id, title, description, status, priority, due_date, assignee_id, created_by, created_at, updated_at
                FROM tasks
                WHERE id = ?
        `, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	return task, err
}

func (s TaskService) ListTasks(ctx context.Context) ([]mtask.Task, error) {
	rows, err := s.q.QueryContext(ctx, `
                SELECT id, title, description, status, priority, due_date, assignee_id, created_by, created_at, updated_at
                FROM tasks
                ORDER BY id
        `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (s TaskService) ListTasksByStatus(ctx context.Context, status mtask.Status) ([]mtask.Task, error) {
	rows, err := s.q.QueryContext(ctx, `
                SELECT id, title, description, status, priority, due_date, assignee_id, created_by, created_at, updated_at
                FROM tasks
                WHERE status = ?
                ORDER BY id
        `, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (s TaskService) UpdateTask(ctx context.Context, task *mtask.Task) error {
	res, err := s.q.ExecContext(ctx, `
                UPDATE tasks
                SET title = ?, description = ?, status = ?, priority = ?, due_date = ?, assignee_id = ?, updated_at = ?
                WHERE id = ?
        `, task.Title, task.Description, string(task.Status), task.Priority,
		dateOrNil(task.DueDate), task.AssigneeID, stamp(task.UpdatedAt), task.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// DeleteTask removes a task and every comment owned by it. The comment
// cascade is explicit so it also runs on drivers without foreign_keys.
func (s TaskService) DeleteTask(ctx context.Context, id int64) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM task_comments WHERE task_id = ?`, id); err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (s TaskService) CreateComment(ctx context.Context, comment *mtaskcomment.Comment) error {
	res, err := s.q.ExecContext(ctx, `
                INSERT INTO task_comments (task_id, parent_id, author_id, body, created_at)
                VALUES (?, ?, ?, ?, ?)
        `, comment.TaskID, comment.ParentID, comment.AuthorID, comment.Body, stamp(comment.CreatedAt))
	if err != nil {
		return err
	}
	comment.ID, err = res.LastInsertId()
	return err
}

func (s TaskService) GetComment(ctx context.Context, id int64) (*mtaskcomment.Comment, error) {
	row := s.q.QueryRowContext(ctx, `
                SELECT id, task_id, parent_id, author_id, body, created_at
                FROM task_comments
                WHERE id = ?
        `, id)
	var c mtaskcomment.Comment
	var createdAt string
	err := row.Scan(&c.ID, &c.TaskID, &c.ParentID, &c.AuthorID, &c.Body, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskCommentNotFound
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt, err = parseStamp(createdAt)
	return &c, err
}

func (s TaskService) ListComments(ctx context.Context, taskID int64) ([]mtaskcomment.Comment, error) {
	rows, err := s.q.QueryContext(ctx, `
                SELECT id, task_id, parent_id, author_id, body, created_at
                FROM task_comments
                WHERE task_id = ?
                ORDER BY id
        `, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []mtaskcomment.Comment
	for rows.Next() {
		var c mtaskcomment.Comment
		var createdAt string
		if err := rows.Scan(&c.ID, &c.TaskID, &c.ParentID, &c.AuthorID, &c.Body, &createdAt); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = parseStamp(createdAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s TaskService) UpdateComment(ctx context.Context, comment *mtaskcomment.Comment) error {
	res, err := s.q.ExecContext(ctx, `
                UPDATE task_comments SET body = ? WHERE id = ?
        `, comment.Body, comment.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTaskCommentNotFound
	}
	return nil
}

func (s TaskService) DeleteComment(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM task_comments WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTaskCommentNotFound
	}
	return nil
}
