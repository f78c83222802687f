package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/freightdocs/internal/audit"
	"github.com/dukerupert/freightdocs/internal/auth"
	"github.com/dukerupert/freightdocs/internal/classify"
	"github.com/dukerupert/freightdocs/internal/model"
	"github.com/dukerupert/freightdocs/internal/storage"
	"github.com/dukerupert/freightdocs/internal/store"
	"github.com/dukerupert/freightdocs/internal/task"
	"github.com/dukerupert/freightdocs/internal/websocket"
)

// MaxUploadSize caps a single document upload.
const MaxUploadSize = 25 << 20

// ObjectStore holds uploaded document bytes.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
}

type DocumentHandler struct {
	docs       *store.DocumentStore
	loads      *store.LoadStore
	teams      *store.TeamStore
	objects    ObjectStore
	classifier *classify.Service
	audit      *audit.Logger
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewDocumentHandler(ds *store.DocumentStore, ls *store.LoadStore, ts *store.TeamStore, objects ObjectStore, classifier *classify.Service, al *audit.Logger, hub *websocket.Hub, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{
		docs:       ds,
		loads:      ls,
		teams:      ts,
		objects:    objects,
		classifier: classifier,
		audit:      al,
		hub:        hub,
		logger:     logger,
	}
}

func storageKey(teamID int64, id, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 10 {
		ext = ""
	}
	return fmt.Sprintf("teams/%d/documents/%s%s", teamID, id, ext)
}

// Upload handles POST /api/documents (multipart: team_id, optional load_id, file).
// The stored object is removed again if the document row cannot be written.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	teamID, err := strconv.ParseInt(r.FormValue("team_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "team_id is required")
		return
	}
	var loadID *int64
	if v := r.FormValue("load_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid load_id")
			return
		}
		loadID = &id
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	if header.Size > MaxUploadSize {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	if requireMember(w, r, h.teams, teamID, h.logger) == nil {
		return
	}
	if loadID != nil {
		load, err := h.loads.GetByID(*loadID)
		if err != nil {
			h.logger.Error("get load", "id", *loadID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to get load")
			return
		}
		if load == nil || load.TeamID != teamID {
			writeError(w, http.StatusNotFound, "Load not found")
			return
		}
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(header.Filename))
	}

	id := uuid.NewString()
	key := storageKey(teamID, id, header.Filename)
	if err := h.objects.Upload(r.Context(), key, file, header.Size, contentType); err != nil {
		if errors.Is(err, storage.ErrNotConfigured) {
			writeError(w, http.StatusServiceUnavailable, "document storage is not configured")
			return
		}
		h.logger.Error("upload document", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store document")
		return
	}

	userID := auth.UserID(r.Context())
	doc, err := h.docs.Create(store.NewDocument{
		ID:          id,
		TeamID:      teamID,
		LoadID:      loadID,
		StoragePath: key,
		Filename:    filepath.Base(header.Filename),
		ContentType: contentType,
		SizeBytes:   header.Size,
		UploadedBy:  &userID,
	})
	if err != nil {
		h.logger.Error("create document", "id", id, "error", err)
		task.BestEffort(context.WithoutCancel(r.Context()), h.logger, "delete orphaned upload", func(ctx context.Context) error {
			return h.objects.Delete(ctx, key)
		})
		writeError(w, http.StatusInternalServerError, "failed to save document")
		return
	}

	h.audit.Log(r.Context(), audit.Entry{
		Action:      model.ActionDocumentUploaded,
		DocumentIDs: []string{doc.ID},
		TeamID:      &teamID,
		UserID:      &userID,
		Metadata: map[string]any{
			"filename":   doc.Filename,
			"size_bytes": doc.SizeBytes,
			"load_id":    loadID,
		},
	})
	broadcast(h.hub, teamID, websocket.NewMessage("document", "uploaded", doc.ID, map[string]any{"load_id": loadID}))

	writeJSON(w, http.StatusCreated, doc)
}

// List handles GET /api/documents?team_id=&load_id=
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	teamID, err := queryInt64(r, "team_id")
	if err != nil || teamID == nil {
		writeError(w, http.StatusBadRequest, "team_id is required")
		return
	}
	loadID, err := queryInt64(r, "load_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid load_id")
		return
	}
	if requireMember(w, r, h.teams, *teamID, h.logger) == nil {
		return
	}

	docs, err := h.docs.List(*teamID, loadID)
	if err != nil {
		h.logger.Error("list documents", "team_id", *teamID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	if docs == nil {
		docs = []model.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

// documentFor loads id and checks the caller belongs to its team.
func (h *DocumentHandler) documentFor(w http.ResponseWriter, r *http.Request, id string) (*model.Document, *model.TeamMember) {
	doc, err := h.docs.GetByID(id)
	if err != nil {
		h.logger.Error("get document", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get document")
		return nil, nil
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "Document not found")
		return nil, nil
	}
	m := requireMember(w, r, h.teams, doc.TeamID, h.logger)
	if m == nil {
		return nil, nil
	}
	return doc, m
}

// Get handles GET /api/documents/{id}
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, _ := h.documentFor(w, r, r.PathValue("id"))
	if doc == nil {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type classifyRequest struct {
	DocumentID  string `json:"documentId"`
	StoragePath string `json:"storagePath"`
}

type classificationBody struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

type classifyResponse struct {
	Success        bool               `json:"success"`
	Classification classificationBody `json:"classification"`
	Source         string             `json:"source"`
	Attempts       int                `json:"attempts"`
	Document       *model.Document    `json:"document"`
}

// Classify handles POST /api/documents/classify
func (h *DocumentHandler) Classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.DocumentID = strings.TrimSpace(req.DocumentID)
	if req.DocumentID == "" {
		writeError(w, http.StatusBadRequest, "documentId is required")
		return
	}

	doc, _ := h.documentFor(w, r, req.DocumentID)
	if doc == nil {
		return
	}
	if req.StoragePath != "" && req.StoragePath != doc.StoragePath {
		writeError(w, http.StatusBadRequest, "storagePath does not match the document")
		return
	}

	out, err := h.classifier.ClassifyWithRetry(r.Context(), doc, req.StoragePath)
	if err != nil {
		var cerr *classify.ClassificationError
		switch {
		case errors.Is(err, classify.ErrDocumentNotFound):
			writeError(w, http.StatusNotFound, "Document not found")
		case errors.As(err, &cerr):
			h.logger.Error("classify document", "id", doc.ID, "attempts", cerr.Attempts, "error", cerr.Err)
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("Classification failed after %d attempts", cerr.Attempts))
		default:
			h.logger.Error("classify document", "id", doc.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "Classification failed")
		}
		return
	}

	h.audit.Log(r.Context(), audit.Entry{
		Action:      model.ActionDocumentClassified,
		DocumentIDs: []string{doc.ID},
		TeamID:      &doc.TeamID,
		UserID:      int64Ptr(auth.UserID(r.Context())),
		Metadata: map[string]any{
			"type":       out.Result.Type,
			"confidence": out.Result.Confidence,
			"source":     out.Source,
			"attempts":   out.Attempts,
			"status":     out.Document.Status,
		},
	})
	broadcast(h.hub, doc.TeamID, websocket.NewMessage("document", "classified", doc.ID, map[string]any{
		"type":       out.Result.Type,
		"confidence": out.Result.Confidence,
		"status":     out.Document.Status,
	}))

	writeJSON(w, http.StatusOK, classifyResponse{
		Success: true,
		Classification: classificationBody{
			Type:       out.Result.Type,
			Confidence: out.Result.Confidence,
			Reason:     out.Result.Reason,
		},
		Source:   out.Source,
		Attempts: out.Attempts,
		Document: out.Document,
	})
}

type reclassifyRequest struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// Reclassify handles PUT /api/documents/{id}/classification
func (h *DocumentHandler) Reclassify(w http.ResponseWriter, r *http.Request) {
	doc, _ := h.documentFor(w, r, r.PathValue("id"))
	if doc == nil {
		return
	}

	var req reclassifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	docType := strings.ToLower(strings.TrimSpace(req.Type))

	userID := auth.UserID(r.Context())
	updated, err := h.classifier.Reclassify(doc.ID, docType, strings.TrimSpace(req.Reason), userID)
	switch {
	case errors.Is(err, classify.ErrInvalidType):
		writeError(w, http.StatusBadRequest, "type must be one of bol, pod, invoice, other")
		return
	case errors.Is(err, classify.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, "Document not found")
		return
	case err != nil:
		h.logger.Error("reclassify document", "id", doc.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reclassify document")
		return
	}

	var previous any
	if doc.Type != nil {
		previous = *doc.Type
	}
	h.audit.Log(r.Context(), audit.Entry{
		Action:      model.ActionDocumentReclassified,
		DocumentIDs: []string{doc.ID},
		TeamID:      &doc.TeamID,
		UserID:      &userID,
		Metadata: map[string]any{
			"previous_type": previous,
			"type":          docType,
		},
	})
	broadcast(h.hub, doc.TeamID, websocket.NewMessage("document", "reclassified", doc.ID, map[string]any{"type": docType}))

	writeJSON(w, http.StatusOK, updated)
}

// History handles GET /api/documents/{id}/history
func (h *DocumentHandler) History(w http.ResponseWriter, r *http.Request) {
	doc, _ := h.documentFor(w, r, r.PathValue("id"))
	if doc == nil {
		return
	}
	entries, err := h.docs.ListHistory(doc.ID)
	if err != nil {
		h.logger.Error("list classification history", "id", doc.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	if entries == nil {
		entries = []model.ClassificationHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
