package mtaskcomment

import "time"

// Comment is a comment on a task. ParentID allows arbitrary nesting in
// storage; clients render at most one level.
type Comment struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	ParentID  *int64    `json:"parent_id"`
	AuthorID  int64     `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordID implements the client cache record contract.
func (c Comment) RecordID() int64 { return c.ID }
