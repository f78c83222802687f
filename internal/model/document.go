package model

import "time"

// Document types assigned by classification.
const (
	DocTypeBOL     = "bol"
	DocTypePOD     = "pod"
	DocTypeInvoice = "invoice"
	DocTypeOther   = "other"
)

var ValidDocTypes = map[string]bool{
	DocTypeBOL:     true,
	DocTypePOD:     true,
	DocTypeInvoice: true,
	DocTypeOther:   true,
}

// RequiredDocTypes are the documents every load is expected to collect.
var RequiredDocTypes = []string{DocTypeBOL, DocTypePOD, DocTypeInvoice}

// Document statuses.
const (
	DocStatusPending    = "pending"
	DocStatusProcessed  = "processed"
	DocStatusClassified = "classified"
	DocStatusRejected   = "rejected"
)

// Classification sources.
const (
	SourceOpenAI      = "openai"
	SourceOpenAIRetry = "openai_retry"
	SourceManual      = "manual"
)

type Document struct {
	ID                   string     `json:"id"`
	TeamID               int64      `json:"team_id"`
	LoadID               *int64     `json:"load_id"`
	StoragePath          string     `json:"storage_path"`
	Filename             string     `json:"filename"`
	ContentType          string     `json:"content_type"`
	SizeBytes            int64      `json:"size_bytes"`
	Type                 *string    `json:"type"`
	Confidence           *float64   `json:"confidence"`
	ClassificationReason string     `json:"classification_reason"`
	Status               string     `json:"status"`
	Source               string     `json:"source"`
	ClassifiedAt         *time.Time `json:"classified_at"`
	UploadedBy           *int64     `json:"uploaded_by"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// ClassificationHistoryEntry records one change of a document's type. Entries are never updated.
type ClassificationHistoryEntry struct {
	ID           int64     `json:"id"`
	DocumentID   string    `json:"document_id"`
	PreviousType *string   `json:"previous_type"`
	NewType      string    `json:"new_type"`
	Confidence   float64   `json:"confidence"`
	Source       string    `json:"source"`
	ChangedBy    *int64    `json:"changed_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// Classification is the outcome applied to a document row.
type Classification struct {
	Type       string
	Confidence float64
	Reason     string
	Source     string
	Status     string
	ChangedBy  *int64
	At         time.Time
}
