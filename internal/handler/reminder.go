package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dukerupert/freightdocs/internal/auth"
	"github.com/dukerupert/freightdocs/internal/notify"
	"github.com/dukerupert/freightdocs/internal/store"
)

// ReminderSender sends missing-document reminders for a load.
type ReminderSender interface {
	SendMissingDocuments(ctx context.Context, req notify.ReminderRequest) (*notify.ReminderSummary, error)
}

type ReminderHandler struct {
	reminders ReminderSender
	loads     *store.LoadStore
	teams     *store.TeamStore
	logger    *slog.Logger
}

func NewReminderHandler(rs ReminderSender, ls *store.LoadStore, ts *store.TeamStore, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{reminders: rs, loads: ls, teams: ts, logger: logger}
}

type sendRemindersRequest struct {
	LoadID        int64    `json:"loadId"`
	DocumentTypes []string `json:"documentTypes"`
	Recipients    []int64  `json:"recipients"`
}

type sendRemindersResponse struct {
	Success bool                     `json:"success"`
	Message string                   `json:"message"`
	Results []notify.RecipientResult `json:"results"`
}

// SendMissingDocuments handles POST /api/reminders/send-missing-documents.
// Partial failures are reported per recipient with a 200 response.
func (h *ReminderHandler) SendMissingDocuments(w http.ResponseWriter, r *http.Request) {
	var req sendRemindersRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.LoadID == 0 {
		writeError(w, http.StatusBadRequest, "loadId is required")
		return
	}

	load, err := h.loads.GetByID(req.LoadID)
	if err != nil {
		h.logger.Error("get load", "id", req.LoadID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get load")
		return
	}
	if load == nil {
		writeError(w, http.StatusNotFound, "Load not found")
		return
	}
	if requireManager(w, r, h.teams, load.TeamID, h.logger) == nil {
		return
	}

	summary, err := h.reminders.SendMissingDocuments(r.Context(), notify.ReminderRequest{
		LoadID:        req.LoadID,
		DocumentTypes: req.DocumentTypes,
		RecipientIDs:  req.Recipients,
		SenderID:      auth.UserID(r.Context()),
	})
	switch {
	case errors.Is(err, notify.ErrNoRecipients):
		writeError(w, http.StatusBadRequest, "recipients is required")
		return
	case errors.Is(err, notify.ErrNoDocumentTypes):
		writeError(w, http.StatusBadRequest, "documentTypes is required")
		return
	case errors.Is(err, notify.ErrInvalidDocType):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, notify.ErrLoadNotFound):
		writeError(w, http.StatusNotFound, "Load not found")
		return
	case errors.Is(err, notify.ErrLoadRateLimited):
		writeError(w, http.StatusTooManyRequests, "Too many reminders have been sent for this load today")
		return
	case err != nil:
		h.logger.Error("send reminders", "load_id", req.LoadID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to send reminders")
		return
	}

	msg := fmt.Sprintf("Sent %d of %d reminders", summary.Sent, len(summary.Results))
	if !summary.Success() {
		msg = "No reminders were sent"
	}
	writeJSON(w, http.StatusOK, sendRemindersResponse{
		Success: summary.Success(),
		Message: msg,
		Results: summary.Results,
	})
}
