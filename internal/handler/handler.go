// Package handler implements the JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/freightdocs/internal/auth"
	"github.com/dukerupert/freightdocs/internal/model"
	"github.com/dukerupert/freightdocs/internal/websocket"
)

// MemberLookup resolves a user's membership in a team, returning nil if none.
type MemberLookup interface {
	GetMember(teamID, userID int64) (*model.TeamMember, error)
}

const maxJSONBody = 1 << 20

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

// queryInt64 parses an optional integer query parameter.
func queryInt64(r *http.Request, name string) (*int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

var errNotMember = errors.New("not a member of this team")

// requireMember writes 403 and returns nil if the caller does not belong to teamID.
func requireMember(w http.ResponseWriter, r *http.Request, members MemberLookup, teamID int64, logger *slog.Logger) *model.TeamMember {
	m, err := members.GetMember(teamID, auth.UserID(r.Context()))
	if err != nil {
		logger.Error("check team membership", "team_id", teamID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil
	}
	if m == nil {
		writeError(w, http.StatusForbidden, errNotMember.Error())
		return nil
	}
	return m
}

// requireManager is requireMember restricted to admins and managers.
func requireManager(w http.ResponseWriter, r *http.Request, members MemberLookup, teamID int64, logger *slog.Logger) *model.TeamMember {
	m := requireMember(w, r, members, teamID, logger)
	if m == nil {
		return nil
	}
	if !m.CanManage() {
		writeError(w, http.StatusForbidden, "admin or manager role required")
		return nil
	}
	return m
}

func broadcast(hub *websocket.Hub, teamID int64, msg websocket.Message) {
	if hub != nil {
		hub.Broadcast(teamID, msg)
	}
}

func int64Ptr(v int64) *int64 {
	return &v
}
