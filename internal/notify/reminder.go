package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dukerupert/freightdocs/internal/audit"
	"github.com/dukerupert/freightdocs/internal/email"
	"github.com/dukerupert/freightdocs/internal/model"
	"github.com/dukerupert/freightdocs/internal/task"
	"github.com/dukerupert/freightdocs/internal/token"
)

// TemplateMissingDocuments names the reminder email in audit metadata.
const TemplateMissingDocuments = email.TemplateMissingDocuments

var (
	ErrLoadNotFound    = errors.New("load not found")
	ErrLoadRateLimited = errors.New("too many reminders for this load")
	ErrNoRecipients    = errors.New("no recipients")
	ErrNoDocumentTypes = errors.New("no document types")
	ErrInvalidDocType  = errors.New("invalid document type")
)

// Reasons reported for recipients that were not emailed.
const (
	ReasonNotMember   = "Recipient is not a member of this team"
	ReasonOptedOut    = "Recipient has unsubscribed from these emails"
	ReasonDuplicate   = "Duplicate email prevented"
	ReasonRateLimited = "Recipient rate limit exceeded"
	ReasonLoadLimited = "Reminder limit for this load reached"
	ReasonSendFailed  = "Failed to send email"
)

type LoadGetter interface {
	GetByID(id int64) (*model.Load, error)
}

type MemberGetter interface {
	GetMember(teamID, userID int64) (*model.TeamMember, error)
}

type UserGetter interface {
	GetByID(id int64) (*model.User, error)
}

type PreferencesGetter interface {
	GetByEmail(addr string) (*model.UserPreferences, error)
}

type Mailer interface {
	SendMissingDocuments(ctx context.Context, msg email.MissingDocuments) error
}

type UnsubscribeSigner interface {
	GenerateUnsubscribeToken(subject token.UnsubscribeSubject, category string) (string, error)
}

// Pusher delivers a short notification to a user's subscribed devices.
type Pusher interface {
	NotifyUser(ctx context.Context, userID int64, title, body, url string) error
}

type ReminderRequest struct {
	LoadID        int64
	DocumentTypes []string
	RecipientIDs  []int64
	SenderID      int64
}

type RecipientResult struct {
	RecipientID int64  `json:"recipientId"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
}

type ReminderSummary struct {
	Sent    int
	Results []RecipientResult
}

// Success reports whether at least one recipient was emailed.
func (s *ReminderSummary) Success() bool {
	return s.Sent > 0
}

type ReminderDeps struct {
	Loads       LoadGetter
	Members     MemberGetter
	Users       UserGetter
	Preferences PreferencesGetter
	Guard       *Guard
	Mailer      Mailer
	Tokens      UnsubscribeSigner
	Audit       *audit.Logger
	Push        Pusher
	BaseURL     string
}

type Reminder struct {
	ReminderDeps
	logger *slog.Logger
}

func NewReminder(deps ReminderDeps, logger *slog.Logger) *Reminder {
	return &Reminder{ReminderDeps: deps, logger: logger}
}

// SendMissingDocuments emails each recipient about the load's missing documents.
// Recipients are processed independently; one failing does not stop the rest.
func (r *Reminder) SendMissingDocuments(ctx context.Context, req ReminderRequest) (*ReminderSummary, error) {
	if len(req.RecipientIDs) == 0 {
		return nil, ErrNoRecipients
	}
	if len(req.DocumentTypes) == 0 {
		return nil, ErrNoDocumentTypes
	}
	for _, t := range req.DocumentTypes {
		if !model.ValidDocTypes[t] {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDocType, t)
		}
	}

	load, err := r.Loads.GetByID(req.LoadID)
	if err != nil {
		return nil, fmt.Errorf("get load: %w", err)
	}
	if load == nil {
		return nil, ErrLoadNotFound
	}

	remaining := r.Guard.LoadSendsRemaining(load.ID, DefaultLoadWindow, DefaultLoadMax)
	if remaining <= 0 {
		return nil, ErrLoadRateLimited
	}

	summary := &ReminderSummary{}
	for _, recipientID := range req.RecipientIDs {
		var res RecipientResult
		if summary.Sent >= remaining {
			res = RecipientResult{RecipientID: recipientID, Error: ReasonLoadLimited}
		} else {
			res = r.sendOne(ctx, load, req, recipientID)
		}
		if res.Success {
			summary.Sent++
		}
		summary.Results = append(summary.Results, res)
	}

	r.logger.Info("missing document reminders processed",
		"load_id", load.ID, "recipients", len(req.RecipientIDs), "sent", summary.Sent)
	return summary, nil
}

func (r *Reminder) sendOne(ctx context.Context, load *model.Load, req ReminderRequest, recipientID int64) RecipientResult {
	fail := func(reason string) RecipientResult {
		return RecipientResult{RecipientID: recipientID, Error: reason}
	}

	member, err := r.Members.GetMember(load.TeamID, recipientID)
	if err != nil {
		r.logger.Error("check recipient membership", "recipient_id", recipientID, "error", err)
		return fail(ReasonSendFailed)
	}
	if member == nil {
		return fail(ReasonNotMember)
	}
	user, err := r.Users.GetByID(recipientID)
	if err != nil || user == nil {
		r.logger.Error("load recipient", "recipient_id", recipientID, "error", err)
		return fail(ReasonSendFailed)
	}

	prefs, err := r.Preferences.GetByEmail(user.Email)
	if err != nil {
		// Preferences are read the same way the guard is: unavailable means allowed.
		r.logger.Warn("read email preferences, allowing send", "recipient_id", recipientID, "error", err)
	}
	if !prefs.Allows(model.EmailCategoryMissingDocuments) {
		return fail(ReasonOptedOut)
	}

	loadID := load.ID
	teamID := load.TeamID
	if r.Guard.IsDuplicateEmail(EmailContext{
		Template:    TemplateMissingDocuments,
		RecipientID: recipientID,
		LoadID:      &loadID,
		TeamID:      &teamID,
	}, DefaultDuplicateWindow) {
		return fail(ReasonDuplicate)
	}
	if r.Guard.IsRateLimited(recipientID, DefaultRecipientWindow, DefaultRecipientMax) {
		return fail(ReasonRateLimited)
	}

	sendErr := r.Mailer.SendMissingDocuments(ctx, email.MissingDocuments{
		To:             user.Email,
		LoadReference:  load.Reference,
		DocumentTypes:  req.DocumentTypes,
		UnsubscribeURL: r.unsubscribeURL(user.Email),
	})

	status := model.EmailStatusSent
	meta := map[string]any{
		"template":        TemplateMissingDocuments,
		"recipient_id":    strconv.FormatInt(recipientID, 10),
		"recipient_email": user.Email,
		"load_id":         strconv.FormatInt(load.ID, 10),
		"document_types":  req.DocumentTypes,
	}
	if sendErr != nil {
		status = model.EmailStatusFailed
		meta["error"] = sendErr.Error()
		r.logger.Error("send missing documents email", "recipient_id", recipientID, "load_id", load.ID, "error", sendErr)
	}
	meta["status"] = status

	var senderID *int64
	if req.SenderID != 0 {
		senderID = &req.SenderID
	}
	r.Audit.Log(ctx, audit.Entry{
		Action:   model.ActionEmailSent,
		TeamID:   &teamID,
		UserID:   senderID,
		Metadata: meta,
	})

	if sendErr != nil {
		return fail(ReasonSendFailed)
	}

	if r.Push != nil {
		task.BestEffort(ctx, r.logger, "reminder push", func(ctx context.Context) error {
			return r.Push.NotifyUser(ctx, recipientID,
				"Documents needed for "+load.Reference,
				"Missing: "+strings.ToUpper(strings.Join(req.DocumentTypes, ", ")),
				fmt.Sprintf("%s/loads/%d", r.BaseURL, load.ID))
		})
	}

	return RecipientResult{RecipientID: recipientID, Success: true}
}

func (r *Reminder) unsubscribeURL(addr string) string {
	if r.Tokens == nil {
		return ""
	}
	tok, err := r.Tokens.GenerateUnsubscribeToken(token.UnsubscribeSubject{Email: addr}, model.EmailCategoryMissingDocuments)
	if err != nil {
		r.logger.Warn("unsubscribe link omitted", "error", err)
		return ""
	}
	return r.BaseURL + "/api/unsubscribe?token=" + tok
}
