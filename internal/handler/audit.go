package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/freightdocs/internal/model"
	"github.com/dukerupert/freightdocs/internal/store"
)

type AuditHandler struct {
	audit  *store.AuditStore
	teams  *store.TeamStore
	logger *slog.Logger
}

func NewAuditHandler(as *store.AuditStore, ts *store.TeamStore, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{audit: as, teams: ts, logger: logger}
}

// List handles GET /api/audit-logs?team_id=&document_id=&action=&limit=
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	teamID, err := queryInt64(r, "team_id")
	if err != nil || teamID == nil {
		writeError(w, http.StatusBadRequest, "team_id is required")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}
	if requireManager(w, r, h.teams, *teamID, h.logger) == nil {
		return
	}

	entries, err := h.audit.List(store.ListFilter{
		TeamID:     *teamID,
		Action:     r.URL.Query().Get("action"),
		DocumentID: r.URL.Query().Get("document_id"),
		Limit:      limit,
	})
	if err != nil {
		h.logger.Error("list audit logs", "team_id", *teamID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list audit logs")
		return
	}
	if entries == nil {
		entries = []model.AuditLogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
