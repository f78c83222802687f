package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/freightdocs/internal/audit"
	"github.com/dukerupert/freightdocs/internal/model"
	"github.com/dukerupert/freightdocs/internal/store"
	"github.com/dukerupert/freightdocs/internal/token"
)

type UnsubscribeHandler struct {
	tokens *token.Service
	prefs  *store.PreferencesStore
	users  *store.UserStore
	audit  *audit.Logger
	logger *slog.Logger
}

func NewUnsubscribeHandler(tokens *token.Service, ps *store.PreferencesStore, us *store.UserStore, al *audit.Logger, logger *slog.Logger) *UnsubscribeHandler {
	return &UnsubscribeHandler{tokens: tokens, prefs: ps, users: us, audit: al, logger: logger}
}

// Unsubscribe handles GET /api/unsubscribe?token=. It is public: the signed
// token is the only credential.
func (h *UnsubscribeHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	tok := r.URL.Query().Get("token")
	if tok == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	v := h.tokens.ValidateUnsubscribeToken(tok)
	if !v.Valid {
		if v.Expired {
			writeError(w, http.StatusGone, v.Error)
			return
		}
		writeError(w, http.StatusBadRequest, v.Error)
		return
	}

	addr := v.Email
	var userID *int64
	if v.UserID != 0 {
		u, err := h.users.GetByID(v.UserID)
		if err != nil {
			h.logger.Error("get user", "id", v.UserID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to unsubscribe")
			return
		}
		if u == nil {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		addr = u.Email
		userID = &u.ID
	}

	prefs, err := h.prefs.Unsubscribe(addr, v.Category)
	if err != nil {
		h.logger.Error("unsubscribe", "category", v.Category, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to unsubscribe")
		return
	}

	scope := "all emails"
	if v.Category != "" {
		scope = v.Category
		if name, ok := model.EmailCategoryNames[v.Category]; ok {
			scope = name
		}
	}

	h.audit.Log(r.Context(), audit.Entry{
		Action:   model.ActionUnsubscribed,
		UserID:   userID,
		Metadata: map[string]any{"email": addr, "category": v.Category},
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "You have been unsubscribed from " + scope,
		"scope":       scope,
		"preferences": prefs,
	})
}
