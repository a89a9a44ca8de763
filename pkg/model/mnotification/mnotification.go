package mnotification

import "time"

// Kind tags a notification with the domain event that produced it.
type Kind string

const (
	KindTaskAssigned      Kind = "task_assigned"
	KindTaskStatusChanged Kind = "task_status_changed"
	KindTaskAudit         Kind = "task_audit"
	KindFundingChanged    Kind = "funding_changed"
	KindPostCreated       Kind = "post_created"
	KindCommentCreated    Kind = "comment_created"
	KindCommentReply      Kind = "comment_reply"
	KindModerationRequest Kind = "moderation_request"
	KindNewMember         Kind = "new_member"
)

// Notification is an in-app feed entry. TargetAccountID nil means broadcast
// to every account with read access. IsRead is monotonic: false to true only.
type Notification struct {
	ID                int64     `json:"id"`
	Kind              Kind      `json:"type"`
	Message           string    `json:"message"`
	TargetAccountID   *int64    `json:"target_account_id"`
	RelatedEntityType string    `json:"related_entity_type"`
	RelatedEntityID   int64     `json:"related_entity_id"`
	IsRead            bool      `json:"is_read"`
	CreatedAt         time.Time `json:"created_at"`
}

// RecordID implements the client cache record contract.
func (n Notification) RecordID() int64 { return n.ID }
