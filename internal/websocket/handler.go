package websocket

import (
	"log/slog"
	"net/http"
	"strconv"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/freightdocs/internal/auth"
	"github.com/dukerupert/freightdocs/internal/model"
)

// MemberGetter reports a user's membership in a team, or nil if none.
type MemberGetter interface {
	GetMember(teamID, userID int64) (*model.TeamMember, error)
}

// HandleWebSocket upgrades authenticated team members and runs them as Hub
// clients for the team named by the team_id query parameter.
func HandleWebSocket(hub *Hub, members MemberGetter, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		if userID == 0 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		teamID, err := strconv.ParseInt(r.URL.Query().Get("team_id"), 10, 64)
		if err != nil {
			http.Error(w, "team_id is required", http.StatusBadRequest)
			return
		}
		m, err := members.GetMember(teamID, userID)
		if err != nil {
			logger.Error("websocket membership check", "team_id", teamID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if m == nil {
			http.Error(w, "not a member of this team", http.StatusForbidden)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, teamID, userID)
		client.Run(r.Context())
	}
}
