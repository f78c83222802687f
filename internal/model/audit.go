package model

import "time"

// Audit actions.
const (
	ActionDocumentUploaded     = "document_uploaded"
	ActionDocumentClassified   = "document_classified"
	ActionDocumentReclassified = "document_reclassified"
	ActionEmailSent            = "email_sent"
	ActionInviteCreated        = "invite_created"
	ActionMemberJoined         = "team_member_joined"
	ActionLoadStatusChanged    = "load_status_changed"
	ActionUnsubscribed         = "email_unsubscribed"
)

// Email send outcomes stored in email_sent metadata.
const (
	EmailStatusSent   = "sent"
	EmailStatusFailed = "failed"
)

type AuditLogEntry struct {
	ID          int64          `json:"id"`
	Action      string         `json:"action"`
	DocumentIDs []string       `json:"document_ids"`
	TeamID      *int64         `json:"team_id"`
	UserID      *int64         `json:"user_id"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
}
