package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/freightdocs/internal/audit"
	"github.com/dukerupert/freightdocs/internal/auth"
	"github.com/dukerupert/freightdocs/internal/model"
	"github.com/dukerupert/freightdocs/internal/push"
	"github.com/dukerupert/freightdocs/internal/store"
	"github.com/dukerupert/freightdocs/internal/task"
	"github.com/dukerupert/freightdocs/internal/websocket"
)

// TeamNotifier pushes a notification to a team's devices.
type TeamNotifier interface {
	NotifyTeam(ctx context.Context, teamID int64, payload push.Payload) error
}

type LoadHandler struct {
	loads  *store.LoadStore
	teams  *store.TeamStore
	audit  *audit.Logger
	hub    *websocket.Hub
	push   TeamNotifier
	logger *slog.Logger
}

func NewLoadHandler(ls *store.LoadStore, ts *store.TeamStore, al *audit.Logger, hub *websocket.Hub, notifier TeamNotifier, logger *slog.Logger) *LoadHandler {
	return &LoadHandler{loads: ls, teams: ts, audit: al, hub: hub, push: notifier, logger: logger}
}

type createLoadRequest struct {
	TeamID      int64  `json:"team_id"`
	Reference   string `json:"reference"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

// Create handles POST /api/loads
func (h *LoadHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLoadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Reference = strings.TrimSpace(req.Reference)
	if req.TeamID == 0 || req.Reference == "" {
		writeError(w, http.StatusBadRequest, "team_id and reference are required")
		return
	}
	if requireManager(w, r, h.teams, req.TeamID, h.logger) == nil {
		return
	}

	load, err := h.loads.Create(req.TeamID, req.Reference, strings.TrimSpace(req.Origin), strings.TrimSpace(req.Destination))
	if err != nil {
		h.logger.Error("create load", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create load")
		return
	}
	writeJSON(w, http.StatusCreated, load)
}

// List handles GET /api/loads?team_id=
func (h *LoadHandler) List(w http.ResponseWriter, r *http.Request) {
	teamID, err := queryInt64(r, "team_id")
	if err != nil || teamID == nil {
		writeError(w, http.StatusBadRequest, "team_id is required")
		return
	}
	if requireMember(w, r, h.teams, *teamID, h.logger) == nil {
		return
	}

	loads, err := h.loads.ListByTeam(*teamID)
	if err != nil {
		h.logger.Error("list loads", "team_id", *teamID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list loads")
		return
	}
	if loads == nil {
		loads = []model.Load{}
	}
	writeJSON(w, http.StatusOK, loads)
}

// loadForRequest resolves {id} to a load the caller's team owns.
func (h *LoadHandler) loadForRequest(w http.ResponseWriter, r *http.Request) (*model.Load, *model.TeamMember) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, nil
	}
	load, err := h.loads.GetByID(id)
	if err != nil {
		h.logger.Error("get load", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get load")
		return nil, nil
	}
	if load == nil {
		writeError(w, http.StatusNotFound, "Load not found")
		return nil, nil
	}
	m := requireMember(w, r, h.teams, load.TeamID, h.logger)
	if m == nil {
		return nil, nil
	}
	return load, m
}

// Get handles GET /api/loads/{id}
func (h *LoadHandler) Get(w http.ResponseWriter, r *http.Request) {
	load, _ := h.loadForRequest(w, r)
	if load == nil {
		return
	}
	writeJSON(w, http.StatusOK, load)
}

type updateLoadStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PUT /api/loads/{id}/status
func (h *LoadHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	load, member := h.loadForRequest(w, r)
	if load == nil {
		return
	}
	if !member.CanManage() {
		writeError(w, http.StatusForbidden, "admin or manager role required")
		return
	}

	var req updateLoadStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if !model.ValidLoadStatuses[status] {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	if status == load.Status {
		writeJSON(w, http.StatusOK, load)
		return
	}

	updated, err := h.loads.UpdateStatus(load.ID, status)
	if err != nil {
		h.logger.Error("update load status", "id", load.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update load")
		return
	}

	userID := auth.UserID(r.Context())
	h.audit.Log(r.Context(), audit.Entry{
		Action: model.ActionLoadStatusChanged,
		TeamID: &load.TeamID,
		UserID: &userID,
		Metadata: map[string]any{
			"load_id":         load.ID,
			"previous_status": load.Status,
			"status":          status,
		},
	})
	broadcast(h.hub, load.TeamID, websocket.NewMessage("load", "status_changed", strconv.FormatInt(load.ID, 10), map[string]any{
		"status": status,
	}))
	if h.push != nil {
		payload := push.Payload{
			Title: "Load " + updated.Reference,
			Body:  fmt.Sprintf("Status changed to %s", strings.ReplaceAll(status, "_", " ")),
			URL:   fmt.Sprintf("/loads/%d", load.ID),
			Tag:   fmt.Sprintf("load-%d", load.ID),
		}
		task.Go(r.Context(), h.logger, "push load status", func(ctx context.Context) error {
			return h.push.NotifyTeam(ctx, load.TeamID, payload)
		})
	}

	writeJSON(w, http.StatusOK, updated)
}

// MissingDocuments handles GET /api/loads/{id}/missing-documents
func (h *LoadHandler) MissingDocuments(w http.ResponseWriter, r *http.Request) {
	load, _ := h.loadForRequest(w, r)
	if load == nil {
		return
	}
	missing, err := h.loads.MissingDocumentTypes(load.ID)
	if err != nil {
		h.logger.Error("missing document types", "id", load.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check documents")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"load_id": load.ID, "missing": missing})
}
