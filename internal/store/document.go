package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/freightdocs/internal/model"
)

type DocumentStore struct {
	db *sql.DB
}

func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func scanDocument(scanner interface{ Scan(...any) error }) (*model.Document, error) {
	var d model.Document
	var loadID, uploadedBy sql.NullInt64
	var docType sql.NullString
	var confidence sql.NullFloat64
	var classifiedAt sql.NullTime

	err := scanner.Scan(
		&d.ID, &d.TeamID, &loadID, &d.StoragePath, &d.Filename, &d.ContentType, &d.SizeBytes,
		&docType, &confidence, &d.ClassificationReason, &d.Status, &d.Source,
		&classifiedAt, &uploadedBy, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if loadID.Valid {
		d.LoadID = &loadID.Int64
	}
	if docType.Valid {
		d.Type = &docType.String
	}
	if confidence.Valid {
		d.Confidence = &confidence.Float64
	}
	if classifiedAt.Valid {
		d.ClassifiedAt = &classifiedAt.Time
	}
	if uploadedBy.Valid {
		d.UploadedBy = &uploadedBy.Int64
	}
	return &d, nil
}

func scanHistoryEntry(scanner interface{ Scan(...any) error }) (*model.ClassificationHistoryEntry, error) {
	var h model.ClassificationHistoryEntry
	var prev sql.NullString
	var changedBy sql.NullInt64

	err := scanner.Scan(&h.ID, &h.DocumentID, &prev, &h.NewType, &h.Confidence, &h.Source, &changedBy, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	if prev.Valid {
		h.PreviousType = &prev.String
	}
	if changedBy.Valid {
		h.ChangedBy = &changedBy.Int64
	}
	return &h, nil
}

const documentCols = `id, team_id, load_id, storage_path, filename, content_type, size_bytes,
	type, confidence, classification_reason, status, source,
	classified_at, uploaded_by, created_at, updated_at`

const historyCols = `id, document_id, previous_type, new_type, confidence, source, changed_by, created_at`

// NewDocument holds the fields known at upload time.
type NewDocument struct {
	ID          string
	TeamID      int64
	LoadID      *int64
	StoragePath string
	Filename    string
	ContentType string
	SizeBytes   int64
	UploadedBy  *int64
}

// Create inserts a pending document.
func (s *DocumentStore) Create(nd NewDocument) (*model.Document, error) {
	var loadID, uploadedBy sql.NullInt64
	if nd.LoadID != nil {
		loadID = sql.NullInt64{Int64: *nd.LoadID, Valid: true}
	}
	if nd.UploadedBy != nil {
		uploadedBy = sql.NullInt64{Int64: *nd.UploadedBy, Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO documents (id, team_id, load_id, storage_path, filename, content_type, size_bytes, status, uploaded_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nd.ID, nd.TeamID, loadID, nd.StoragePath, nd.Filename, nd.ContentType, nd.SizeBytes,
		model.DocStatusPending, uploadedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return s.GetByID(nd.ID)
}

func (s *DocumentStore) GetByID(id string) (*model.Document, error) {
	row := s.db.QueryRow(`SELECT `+documentCols+` FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// List returns a team's documents, optionally restricted to one load.
func (s *DocumentStore) List(teamID int64, loadID *int64) ([]model.Document, error) {
	query := `SELECT ` + documentCols + ` FROM documents WHERE team_id = ?`
	args := []any{teamID}
	if loadID != nil {
		query += ` AND load_id = ?`
		args = append(args, *loadID)
	}
	query += ` ORDER BY created_at DESC, id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// ApplyClassification updates the document's classification fields and appends a
// history entry recording the transition from its current type. Both writes commit
// together; nothing is written if either fails.
func (s *DocumentStore) ApplyClassification(id string, c model.Classification) (*model.Document, error) {
	at := c.At
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var prev sql.NullString
	if err := tx.QueryRow(`SELECT type FROM documents WHERE id = ?`, id).Scan(&prev); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("read previous type: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE documents
		 SET type = ?, confidence = ?, classification_reason = ?, source = ?, status = ?,
		     classified_at = ?, updated_at = ?
		 WHERE id = ?`,
		c.Type, c.Confidence, c.Reason, c.Source, c.Status, at, at, id,
	); err != nil {
		return nil, fmt.Errorf("update classification: %w", err)
	}

	var changedBy sql.NullInt64
	if c.ChangedBy != nil {
		changedBy = sql.NullInt64{Int64: *c.ChangedBy, Valid: true}
	}
	if _, err := tx.Exec(
		`INSERT INTO classification_history (document_id, previous_type, new_type, confidence, source, changed_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, prev, c.Type, c.Confidence, c.Source, changedBy, at,
	); err != nil {
		return nil, fmt.Errorf("insert classification history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

// UpdateStatus sets the document status without touching its classification.
func (s *DocumentStore) UpdateStatus(id, status string) error {
	_, err := s.db.Exec(
		`UPDATE documents SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}

func (s *DocumentStore) ListHistory(documentID string) ([]model.ClassificationHistoryEntry, error) {
	rows, err := s.db.Query(
		`SELECT `+historyCols+` FROM classification_history WHERE document_id = ? ORDER BY created_at ASC, id ASC`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list classification history: %w", err)
	}
	defer rows.Close()

	var entries []model.ClassificationHistoryEntry
	for rows.Next() {
		h, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, *h)
	}
	return entries, rows.Err()
}

func (s *DocumentStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
