package mpost

import "time"

// Post is a community feed entry. Deleting a post cascades to its comments.
type Post struct {
	ID        int64     `json:"id"`
	Body      string    `json:"body"`
	AuthorID  int64     `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment belongs to exactly one post.
type Comment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post_id"`
	Body      string    `json:"body"`
	AuthorID  int64     `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordID implements the client cache record contract.
func (p Post) RecordID() int64 { return p.ID }

func (c Comment) RecordID() int64 { return c.ID }
