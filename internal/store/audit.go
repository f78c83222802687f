package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/freightdocs/internal/model"
)

type AuditStore struct {
	db *sql.DB
}

func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

func scanAuditEntry(scanner interface{ Scan(...any) error }) (*model.AuditLogEntry, error) {
	var e model.AuditLogEntry
	var teamID, userID sql.NullInt64
	var docIDs, metadata string

	if err := scanner.Scan(&e.ID, &e.Action, &docIDs, &teamID, &userID, &metadata, &e.CreatedAt); err != nil {
		return nil, err
	}
	if teamID.Valid {
		e.TeamID = &teamID.Int64
	}
	if userID.Valid {
		e.UserID = &userID.Int64
	}
	if err := json.Unmarshal([]byte(docIDs), &e.DocumentIDs); err != nil {
		return nil, fmt.Errorf("decode document_ids: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if e.DocumentIDs == nil {
		e.DocumentIDs = []string{}
	}
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	return &e, nil
}

const auditCols = `id, action, document_ids, team_id, user_id, metadata, created_at`

// Insert appends an audit record. A zero CreatedAt is stamped with the current time.
func (s *AuditStore) Insert(e *model.AuditLogEntry) (*model.AuditLogEntry, error) {
	docIDs := e.DocumentIDs
	if docIDs == nil {
		docIDs = []string{}
	}
	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	docJSON, err := json.Marshal(docIDs)
	if err != nil {
		return nil, fmt.Errorf("encode document_ids: %w", err)
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var teamID, userID sql.NullInt64
	if e.TeamID != nil {
		teamID = sql.NullInt64{Int64: *e.TeamID, Valid: true}
	}
	if e.UserID != nil {
		userID = sql.NullInt64{Int64: *e.UserID, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO audit_logs (action, document_ids, team_id, user_id, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Action, string(docJSON), teamID, userID, string(metaJSON), createdAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert audit log: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+auditCols+` FROM audit_logs WHERE id = ?`, id)
	return scanAuditEntry(row)
}

// EmailFilter narrows a count of successful email_sent records. Empty fields are ignored.
type EmailFilter struct {
	Since       time.Time
	Template    string
	RecipientID string
	LoadID      string
	DocumentID  string
	TeamID      *int64
}

// CountSentEmails counts email_sent records whose metadata status is "sent"
// and that match every non-empty field of f.
func (s *AuditStore) CountSentEmails(f EmailFilter) (int, error) {
	var b strings.Builder
	b.WriteString(`SELECT COUNT(*) FROM audit_logs
		WHERE action = ? AND json_extract(metadata, '$.status') = ? AND created_at >= ?`)
	args := []any{model.ActionEmailSent, model.EmailStatusSent, f.Since.UTC()}

	if f.Template != "" {
		b.WriteString(` AND json_extract(metadata, '$.template') = ?`)
		args = append(args, f.Template)
	}
	if f.RecipientID != "" {
		b.WriteString(` AND json_extract(metadata, '$.recipient_id') = ?`)
		args = append(args, f.RecipientID)
	}
	if f.LoadID != "" {
		b.WriteString(` AND json_extract(metadata, '$.load_id') = ?`)
		args = append(args, f.LoadID)
	}
	if f.DocumentID != "" {
		b.WriteString(` AND EXISTS (SELECT 1 FROM json_each(audit_logs.document_ids) WHERE json_each.value = ?)`)
		args = append(args, f.DocumentID)
	}
	if f.TeamID != nil {
		b.WriteString(` AND team_id = ?`)
		args = append(args, *f.TeamID)
	}

	var count int
	if err := s.db.QueryRow(b.String(), args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count sent emails: %w", err)
	}
	return count, nil
}

// ListFilter selects audit records for a team, newest first.
type ListFilter struct {
	TeamID     int64
	Action     string
	DocumentID string
	Limit      int
}

func (s *AuditStore) List(f ListFilter) ([]model.AuditLogEntry, error) {
	query := `SELECT ` + auditCols + ` FROM audit_logs WHERE team_id = ?`
	args := []any{f.TeamID}
	if f.Action != "" {
		query += ` AND action = ?`
		args = append(args, f.Action)
	}
	if f.DocumentID != "" {
		query += ` AND EXISTS (SELECT 1 FROM json_each(audit_logs.document_ids) WHERE json_each.value = ?)`
		args = append(args, f.DocumentID)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var entries []model.AuditLogEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// DeleteOlderThan removes audit records created before cutoff and returns how many went.
func (s *AuditStore) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM audit_logs WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete old audit logs: %w", err)
	}
	return result.RowsAffected()
}
