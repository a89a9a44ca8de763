package spost

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/crewbase/crewbase/pkg/model/mpost"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("post comment not found")
)

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PostService struct {
	q dbtx
}

func New(db *sql.DB) PostService {
	return PostService{q: db}
}

// TX returns a copy of the service bound to the given transaction.
func (s PostService) TX(tx *sql.Tx) PostService {
	return PostService{q: tx}
}

func CreateTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
                CREATE TABLE IF NOT EXISTS posts (
                        id INTEGER PRIMARY KEY AUTOINCREMENT,
                        body TEXT NOT NULL,
                        author_id INTEGER NOT NULL,
                        created_at TEXT NOT NULL
                )
        `)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
                CREATE TABLE IF NOT EXISTS post_comments (
                        id INTEGER PRIMARY KEY AUTOINCREMENT,
                        post_id INTEGER NOT NULL REFERENCES posts (id),
                        body TEXT NOT NULL,
                        author_id INTEGER NOT NULL,
                        created_at TEXT NOT NULL
                )
        `)
	return err
}

func (s PostService) CreatePost(ctx context.Context, post *mpost.Post) error {
	res, err := s.q.ExecContext(ctx, `
                INSERT INTO posts (body, author_id, created_at) VALUES (?, ?, ?)
        `, post.Body, post.AuthorID, post.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	post.ID, err = res.LastInsertId()
	return err
}

func (s PostService) GetPost(ctx context.Context, id int64) (*mpost.Post, error) {
	row := s.q.QueryRowContext(ctx, `
                SELECT id, body, author_id, created_at FROM posts WHERE id = ?
        `, id)
	var p mpost.Post
	var createdAt string
	err := row.Scan(&p.ID, &p.Body, &p.AuthorID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	return &p, err
}

func (s PostService) ListPosts(ctx context.Context) ([]mpost.Post, error) {
	rows, err := s.q.QueryContext(ctx, `
                SELECT id, body, author_id, created_at FROM posts ORDER BY id DESC
        `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []mpost.Post
	for rows.Next() {
		var p mpost.Post
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Body, &p.AuthorID, &createdAt); err != nil {
			return nil, err
		}
		if p.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s PostService) UpdatePost(ctx context.Context, post *mpost.Post) error {
	res, err := s.q.ExecContext(ctx, `UPDATE posts SET body = ? WHERE id = ?`, post.Body, post.ID)
	if err != nil {
		return err
	}
	return requireRow(res, ErrPostNotFound)
}

// DeletePost removes a post and cascades to its comments.
func (s PostService) DeletePost(ctx context.Context, id int64) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM post_comments WHERE post_id = ?`, id); err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res, ErrPostNotFound)
}

func (s PostService) CreateComment(ctx context.Context, comment *mpost.Comment) error {
	res, err := s.q.ExecContext(ctx, `
                INSERT INTO post_comments (post_id, body, author_id, created_at) VALUES (?, ?, ?, ?)
        `, comment.PostID, comment.Body, comment.AuthorID, comment.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	comment.ID, err = res.LastInsertId()
	return err
}

func (s PostService) GetComment(ctx context.Context, id int64) (*mpost.Comment, error) {
	row := s.q.QueryRowContext(ctx, `
                SELECT id, post_id, body, author_id, created_at FROM post_comments WHERE id = ?
        `, id)
	var c mpost.Comment
	var createdAt string
	err := row.Scan(&c.ID, &c.PostID, &c.Body, &c.AuthorID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCommentNotFound
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	return &c, err
}

func (s PostService) ListComments(ctx context.Context, postID int64) ([]mpost.Comment, error) {
	rows, err := s.q.QueryContext(ctx, `
                SELECT id, post_id, body, author_id, created_at
                FROM post_comments
                WHERE post_id = ?
                ORDER BY id
        `, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []mpost.Comment
	for rows.Next() {
		var c mpost.Comment
		var createdAt string
		if err := rows.Scan(&c.ID, &c.PostID, &c.Body, &c.AuthorID, &createdAt); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s PostService) UpdateComment(ctx context.Context, comment *mpost.Comment) error {
	res, err := s.q.ExecContext(ctx, `UPDATE post_comments SET body = ? WHERE id = ?`, comment.Body, comment.ID)
	if err != nil {
		return err
	}
	return requireRow(res, ErrCommentNotFound)
}

func (s PostService) DeleteComment(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM post_comments WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res, ErrCommentNotFound)
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
