// Package audit records significant actions. Recording is best-effort: a
// failed write is logged and dropped so it can never fail the operation it describes.
package audit

import (
	"context"
	"log/slog"

	"github.com/dukerupert/freightdocs/internal/model"
)

type Entry struct {
	Action      string
	DocumentIDs []string
	TeamID      *int64
	UserID      *int64
	Metadata    map[string]any
}

// Inserter persists audit records.
type Inserter interface {
	Insert(e *model.AuditLogEntry) (*model.AuditLogEntry, error)
}

type Logger struct {
	store  Inserter
	logger *slog.Logger
}

func NewLogger(store Inserter, logger *slog.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

// Log writes one audit record. It never returns an error and is safe to call
// on a nil Logger or one without a store.
func (l *Logger) Log(ctx context.Context, e Entry) {
	if l == nil {
		return
	}
	if l.store == nil {
		l.logger.Error("audit log dropped: no store", "action", e.Action)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("audit log dropped", "action", e.Action, "panic", r)
		}
	}()

	if _, err := l.store.Insert(&model.AuditLogEntry{
		Action:      e.Action,
		DocumentIDs: e.DocumentIDs,
		TeamID:      e.TeamID,
		UserID:      e.UserID,
		Metadata:    e.Metadata,
	}); err != nil {
		l.logger.Error("audit log dropped", "action", e.Action, "error", err)
	}
}
