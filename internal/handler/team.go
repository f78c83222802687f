package handler

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukerupert/freightdocs/internal/audit"
	"github.com/dukerupert/freightdocs/internal/auth"
	"github.com/dukerupert/freightdocs/internal/email"
	"github.com/dukerupert/freightdocs/internal/model"
	"github.com/dukerupert/freightdocs/internal/store"
	"github.com/dukerupert/freightdocs/internal/task"
	"github.com/dukerupert/freightdocs/internal/token"
)

// InviteSender delivers invitation emails.
type InviteSender interface {
	SendInvite(ctx context.Context, inv email.Invite) error
}

type TeamHandler struct {
	teams        *store.TeamStore
	users        *store.UserStore
	invites      *store.InviteStore
	tokens       *token.Service
	mailer       InviteSender
	audit        *audit.Logger
	baseURL      string
	inviteExpiry time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

type TeamHandlerConfig struct {
	BaseURL      string
	InviteExpiry time.Duration
}

func NewTeamHandler(ts *store.TeamStore, us *store.UserStore, is *store.InviteStore, tokens *token.Service, mailer InviteSender, al *audit.Logger, cfg TeamHandlerConfig, logger *slog.Logger) *TeamHandler {
	if cfg.InviteExpiry <= 0 {
		cfg.InviteExpiry = token.DefaultInviteExpiry
	}
	return &TeamHandler{
		teams:        ts,
		users:        us,
		invites:      is,
		tokens:       tokens,
		mailer:       mailer,
		audit:        al,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		inviteExpiry: cfg.InviteExpiry,
		now:          time.Now,
		logger:       logger,
	}
}

type createTeamRequest struct {
	Name string `json:"name"`
}

// Create handles POST /api/teams. The caller becomes the team's admin.
func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTeamRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	team, err := h.teams.CreateWithOwner(req.Name, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("create team", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create team")
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

// List handles GET /api/teams
func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	teams, err := h.teams.ListTeamsForUser(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list teams", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list teams")
		return
	}
	if teams == nil {
		teams = []model.Team{}
	}
	writeJSON(w, http.StatusOK, teams)
}

// Members handles GET /api/teams/{id}/members
func (h *TeamHandler) Members(w http.ResponseWriter, r *http.Request) {
	teamID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if requireMember(w, r, h.teams, teamID, h.logger) == nil {
		return
	}

	members, err := h.teams.ListMembers(teamID)
	if err != nil {
		h.logger.Error("list members", "team_id", teamID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	if members == nil {
		members = []model.TeamMember{}
	}
	writeJSON(w, http.StatusOK, members)
}

type inviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type inviteResponse struct {
	Invite  *model.TeamInvite `json:"invite"`
	JoinURL string            `json:"join_url"`
}

// Invite handles POST /api/teams/{id}/invites. Admin only.
func (h *TeamHandler) Invite(w http.ResponseWriter, r *http.Request) {
	teamID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	member := requireMember(w, r, h.teams, teamID, h.logger)
	if member == nil {
		return
	}
	if member.Role != model.RoleAdmin {
		writeError(w, http.StatusForbidden, "only team admins can invite members")
		return
	}

	var req inviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	addr := strings.ToLower(strings.TrimSpace(req.Email))
	if addr == "" || !strings.Contains(addr, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	role := model.RoleUser
	if req.Role != "" {
		var ok bool
		if role, ok = model.NormalizeRole(req.Role); !ok {
			writeError(w, http.StatusBadRequest, "role must be admin, manager or user")
			return
		}
	}

	team, err := h.teams.GetByID(teamID)
	if err != nil || team == nil {
		h.logger.Error("get team", "team_id", teamID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load team")
		return
	}

	tok, err := h.tokens.GenerateInviteToken(teamID, addr, h.inviteExpiry)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	inviterID := auth.UserID(r.Context())
	inv, err := h.invites.Create(teamID, addr, role, tok, &inviterID, h.now().Add(h.inviteExpiry))
	if err != nil {
		h.logger.Error("create invite", "team_id", teamID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create invite")
		return
	}

	joinURL := h.baseURL + "/teams/join?token=" + url.QueryEscape(tok)

	if h.mailer != nil {
		msg := email.Invite{
			To:        addr,
			TeamName:  team.Name,
			Inviter:   auth.Email(r.Context()),
			Role:      role,
			JoinURL:   joinURL,
			ExpiresAt: inv.ExpiresAt,
		}
		task.Go(r.Context(), h.logger, "send invite email", func(ctx context.Context) error {
			return h.mailer.SendInvite(ctx, msg)
		})
	}

	h.audit.Log(r.Context(), audit.Entry{
		Action: model.ActionInviteCreated,
		TeamID: &teamID,
		UserID: &inviterID,
		Metadata: map[string]any{
			"invite_id": inv.ID,
			"email":     addr,
			"role":      role,
		},
	})

	writeJSON(w, http.StatusCreated, inviteResponse{Invite: inv, JoinURL: joinURL})
}

type joinPreview struct {
	TeamID    int64     `json:"team_id"`
	TeamName  string    `json:"team_name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// writeInvalidToken maps a failed validation to 410 for expiry and 400 otherwise.
func writeInvalidToken(w http.ResponseWriter, v token.InviteValidation) {
	if v.Expired {
		writeError(w, http.StatusGone, v.Error)
		return
	}
	writeError(w, http.StatusBadRequest, v.Error)
}

// lookupInvite validates tok and loads the matching pending invite.
func (h *TeamHandler) lookupInvite(w http.ResponseWriter, tok string) (*model.TeamInvite, bool) {
	if tok == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return nil, false
	}
	v := h.tokens.ValidateInviteToken(tok)
	if !v.Valid {
		writeInvalidToken(w, v)
		return nil, false
	}

	inv, err := h.invites.GetByToken(tok)
	if err != nil {
		h.logger.Error("get invite", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load invite")
		return nil, false
	}
	if inv == nil || inv.TeamID != v.TeamID {
		writeError(w, http.StatusNotFound, "Invite not found")
		return nil, false
	}
	if !h.now().Before(inv.ExpiresAt) {
		writeError(w, http.StatusGone, token.ErrMsgExpired)
		return nil, false
	}
	return inv, true
}

// JoinPreview handles GET /teams/join?token=. It shows the invite so the
// client can confirm before posting to /api/teams/join.
func (h *TeamHandler) JoinPreview(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.lookupInvite(w, r.URL.Query().Get("token"))
	if !ok {
		return
	}
	team, err := h.teams.GetByID(inv.TeamID)
	if err != nil {
		h.logger.Error("get team", "team_id", inv.TeamID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load team")
		return
	}
	if team == nil {
		writeError(w, http.StatusNotFound, "Team not found")
		return
	}
	writeJSON(w, http.StatusOK, joinPreview{
		TeamID:    team.ID,
		TeamName:  team.Name,
		Email:     inv.Email,
		Role:      inv.Role,
		ExpiresAt: inv.ExpiresAt,
	})
}

type joinRequest struct {
	Token string `json:"token"`
}

// Join handles POST /api/teams/join. The invite is consumed on success.
func (h *TeamHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, ok := h.lookupInvite(w, strings.TrimSpace(req.Token))
	if !ok {
		return
	}

	if !strings.EqualFold(inv.Email, auth.Email(r.Context())) {
		writeError(w, http.StatusForbidden, "This invite was sent to a different email address")
		return
	}

	userID := auth.UserID(r.Context())
	member, err := h.invites.Accept(inv, userID)
	switch {
	case errors.Is(err, store.ErrAlreadyMember):
		writeError(w, http.StatusConflict, "You are already a member of this team")
		return
	case errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, "Invite not found")
		return
	case err != nil:
		h.logger.Error("accept invite", "invite_id", inv.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to join team")
		return
	}

	h.audit.Log(r.Context(), audit.Entry{
		Action:   model.ActionMemberJoined,
		TeamID:   int64Ptr(inv.TeamID),
		UserID:   &userID,
		Metadata: map[string]any{"role": member.Role, "invite_id": inv.ID},
	})

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "member": member})
}
