// Package notify decides whether outbound email may be sent and delivers
// missing-document reminders.
package notify

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/dukerupert/freightdocs/internal/store"
)

const (
	DefaultDuplicateWindow = 24 * time.Hour
	DefaultRecipientWindow = time.Hour
	DefaultRecipientMax    = 10
	DefaultLoadWindow      = 24 * time.Hour
	DefaultLoadMax         = 5
)

// EmailCounter counts successful sends recorded in the audit log.
type EmailCounter interface {
	CountSentEmails(f store.EmailFilter) (int, error)
}

// EmailContext identifies an email for duplicate detection. Optional fields
// narrow the match when set.
type EmailContext struct {
	Template    string
	RecipientID int64
	LoadID      *int64
	DocumentID  string
	TeamID      *int64
}

// Guard checks recent sends before another email goes out. Every check fails
// open: a query error is logged and reported as "not limited".
type Guard struct {
	counter EmailCounter
	logger  *slog.Logger
	now     func() time.Time
}

func NewGuard(counter EmailCounter, logger *slog.Logger) *Guard {
	return &Guard{counter: counter, logger: logger, now: time.Now}
}

// IsDuplicateEmail reports whether an email with the same template, recipient
// and context was sent within window.
func (g *Guard) IsDuplicateEmail(ec EmailContext, window time.Duration) bool {
	f := store.EmailFilter{
		Since:       g.now().Add(-window),
		Template:    ec.Template,
		RecipientID: formatID(ec.RecipientID),
		DocumentID:  ec.DocumentID,
		TeamID:      ec.TeamID,
	}
	if ec.LoadID != nil {
		f.LoadID = formatID(*ec.LoadID)
	}
	n, ok := g.count("duplicate", f)
	return ok && n > 0
}

// IsRateLimited reports whether recipientID has already received max emails within window.
func (g *Guard) IsRateLimited(recipientID int64, window time.Duration, max int) bool {
	n, ok := g.count("recipient rate limit", store.EmailFilter{
		Since:       g.now().Add(-window),
		RecipientID: formatID(recipientID),
	})
	return ok && n >= max
}

// IsLoadRateLimited reports whether max emails about loadID went out within window.
func (g *Guard) IsLoadRateLimited(loadID int64, window time.Duration, max int) bool {
	n, ok := g.count("load rate limit", store.EmailFilter{
		Since:  g.now().Add(-window),
		LoadID: formatID(loadID),
	})
	return ok && n >= max
}

// LoadSendsRemaining returns how many more emails about loadID may go out
// within window. A failed query reports max.
func (g *Guard) LoadSendsRemaining(loadID int64, window time.Duration, max int) int {
	n, ok := g.count("load rate limit", store.EmailFilter{
		Since:  g.now().Add(-window),
		LoadID: formatID(loadID),
	})
	if !ok {
		return max
	}
	if n >= max {
		return 0
	}
	return max - n
}

// count reports false when the query failed, so callers never compare a
// missing count against a threshold.
func (g *Guard) count(check string, f store.EmailFilter) (int, bool) {
	n, err := g.counter.CountSentEmails(f)
	if err != nil {
		g.logger.Warn("email guard check failed, allowing send", "check", check, "error", err)
		return 0, false
	}
	return n, true
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
