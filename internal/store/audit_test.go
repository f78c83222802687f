package store

import (
	"testing"
	"time"

	"github.com/dukerupert/freightdocs/internal/model"
)

func insertEmailSent(t *testing.T, as *AuditStore, at time.Time, meta map[string]any) {
	t.Helper()
	if _, err := as.Insert(&model.AuditLogEntry{
		Action:    model.ActionEmailSent,
		Metadata:  meta,
		CreatedAt: at,
	}); err != nil {
		t.Fatalf("insert audit: %v", err)
	}
}

func TestAuditInsertRoundTrip(t *testing.T) {
	as := NewAuditStore(setupTestDB(t))
	teamID := int64(7)

	e, err := as.Insert(&model.AuditLogEntry{
		Action:      model.ActionDocumentClassified,
		DocumentIDs: []string{"doc-1"},
		TeamID:      &teamID,
		Metadata:    map[string]any{"type": "bol"},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if len(e.DocumentIDs) != 1 || e.DocumentIDs[0] != "doc-1" {
		t.Errorf("document_ids = %v", e.DocumentIDs)
	}
	if e.Metadata["type"] != "bol" {
		t.Errorf("metadata type = %v, want bol", e.Metadata["type"])
	}
	if e.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestAuditCountSentEmails(t *testing.T) {
	as := NewAuditStore(setupTestDB(t))
	now := time.Now().UTC()

	insertEmailSent(t, as, now.Add(-10*time.Minute), map[string]any{
		"status": "sent", "template": "missing_documents", "recipient_id": "5", "load_id": "12",
	})
	insertEmailSent(t, as, now.Add(-5*time.Minute), map[string]any{
		"status": "failed", "template": "missing_documents", "recipient_id": "5", "load_id": "12",
	})
	insertEmailSent(t, as, now.Add(-2*time.Hour), map[string]any{
		"status": "sent", "template": "missing_documents", "recipient_id": "5", "load_id": "12",
	})
	insertEmailSent(t, as, now.Add(-time.Minute), map[string]any{
		"status": "sent", "template": "missing_documents", "recipient_id": "6", "load_id": "12",
	})

	tests := []struct {
		name   string
		filter EmailFilter
		want   int
	}{
		{"recipient in last hour", EmailFilter{Since: now.Add(-time.Hour), RecipientID: "5"}, 1},
		{"recipient in last day", EmailFilter{Since: now.Add(-24 * time.Hour), RecipientID: "5"}, 2},
		{"load in last day", EmailFilter{Since: now.Add(-24 * time.Hour), LoadID: "12"}, 3},
		{"other template", EmailFilter{Since: now.Add(-24 * time.Hour), Template: "invite"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := as.CountSentEmails(tt.filter)
			if err != nil {
				t.Fatalf("count: %v", err)
			}
			if got != tt.want {
				t.Errorf("count = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAuditCountByDocument(t *testing.T) {
	as := NewAuditStore(setupTestDB(t))
	now := time.Now().UTC()

	as.Insert(&model.AuditLogEntry{
		Action:      model.ActionEmailSent,
		DocumentIDs: []string{"doc-a", "doc-b"},
		Metadata:    map[string]any{"status": "sent"},
		CreatedAt:   now,
	})

	n, err := as.CountSentEmails(EmailFilter{Since: now.Add(-time.Hour), DocumentID: "doc-b"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestAuditDeleteOlderThan(t *testing.T) {
	as := NewAuditStore(setupTestDB(t))
	teamID := int64(1)
	now := time.Now().UTC()

	as.Insert(&model.AuditLogEntry{Action: "old", TeamID: &teamID, CreatedAt: now.Add(-200 * 24 * time.Hour)})
	as.Insert(&model.AuditLogEntry{Action: "new", TeamID: &teamID, CreatedAt: now})

	n, err := as.DeleteOlderThan(now.Add(-180 * 24 * time.Hour))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}
	entries, err := as.List(ListFilter{TeamID: teamID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "new" {
		t.Errorf("entries = %+v, want only the recent one", entries)
	}
}

func TestAuditListFilters(t *testing.T) {
	db := setupTestDB(t)
	teamID, userID := seedTeam(t, db, "lister@example.com")
	as := NewAuditStore(db)

	for _, e := range []model.AuditLogEntry{
		{Action: model.ActionDocumentUploaded, DocumentIDs: []string{"doc-1"}, TeamID: &teamID, UserID: &userID},
		{Action: model.ActionDocumentClassified, DocumentIDs: []string{"doc-1"}, TeamID: &teamID},
		{Action: model.ActionDocumentUploaded, DocumentIDs: []string{"doc-2"}, TeamID: &teamID, UserID: &userID},
	} {
		if _, err := as.Insert(&e); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	all, err := as.List(ListFilter{TeamID: teamID})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].DocumentIDs[0] != "doc-2" {
		t.Errorf("first entry = %v, want newest (doc-2)", all[0].DocumentIDs)
	}

	byDoc, err := as.List(ListFilter{TeamID: teamID, DocumentID: "doc-1"})
	if err != nil {
		t.Fatalf("List by document: %v", err)
	}
	if len(byDoc) != 2 {
		t.Errorf("by document len = %d, want 2", len(byDoc))
	}

	byAction, err := as.List(ListFilter{TeamID: teamID, Action: model.ActionDocumentUploaded, Limit: 1})
	if err != nil {
		t.Fatalf("List by action: %v", err)
	}
	if len(byAction) != 1 {
		t.Errorf("limited len = %d, want 1", len(byAction))
	}
}
