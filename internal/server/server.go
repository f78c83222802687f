package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/freightdocs/internal/audit"
	"github.com/dukerupert/freightdocs/internal/auth"
	"github.com/dukerupert/freightdocs/internal/classify"
	"github.com/dukerupert/freightdocs/internal/email"
	"github.com/dukerupert/freightdocs/internal/handler"
	"github.com/dukerupert/freightdocs/internal/middleware"
	"github.com/dukerupert/freightdocs/internal/notify"
	"github.com/dukerupert/freightdocs/internal/push"
	"github.com/dukerupert/freightdocs/internal/store"
	"github.com/dukerupert/freightdocs/internal/token"
	ws "github.com/dukerupert/freightdocs/internal/websocket"
)

// Config holds the settings the router needs directly.
type Config struct {
	BaseURL        string
	JWTSecret      string
	AllowedOrigins []string
	InviteExpiry   time.Duration
}

// ObjectStore is document storage that can also hand out presigned URLs.
type ObjectStore interface {
	handler.ObjectStore
	classify.URLSigner
}

// Services are the outbound integrations. Unconfigured integrations degrade
// rather than fail: uploads return 503, email and push are skipped.
type Services struct {
	Objects        ObjectStore
	Classifier     classify.Classifier
	ClassifyConfig classify.Config
	Email          *email.Client
	Push           *push.Service
	Tokens         *token.Service
}

type Server struct {
	db          *sql.DB
	cfg         Config
	hub         *ws.Hub
	teamH       *handler.TeamHandler
	loadH       *handler.LoadHandler
	documentH   *handler.DocumentHandler
	reminderH   *handler.ReminderHandler
	unsubH      *handler.UnsubscribeHandler
	auditH      *handler.AuditHandler
	pushH       *handler.PushHandler
	userStore   *store.UserStore
	teamStore   *store.TeamStore
	inviteStore *store.InviteStore
	auditStore  *store.AuditStore
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, cfg Config, svc Services, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	teamStore := store.NewTeamStore(db)
	inviteStore := store.NewInviteStore(db)
	loadStore := store.NewLoadStore(db)
	documentStore := store.NewDocumentStore(db)
	auditStore := store.NewAuditStore(db)
	prefsStore := store.NewPreferencesStore(db)
	pushStore := store.NewPushStore(db)

	auditLogger := audit.NewLogger(auditStore, logger.With("component", "audit"))
	notifier := push.NewNotifier(svc.Push, pushStore, logger.With("component", "push"))

	classifySvc := classify.NewService(svc.Classifier, svc.Objects, documentStore, svc.ClassifyConfig, logger.With("component", "classify"))

	var inviteMailer handler.InviteSender
	var reminderMailer notify.Mailer
	if svc.Email != nil && svc.Email.Configured() {
		inviteMailer = svc.Email
		reminderMailer = svc.Email
	} else {
		logger.Warn("email not configured, invites and reminders will not be delivered")
		reminderMailer = unconfiguredMailer{}
	}

	reminder := notify.NewReminder(notify.ReminderDeps{
		Loads:       loadStore,
		Members:     teamStore,
		Users:       userStore,
		Preferences: prefsStore,
		Guard:       notify.NewGuard(auditStore, logger.With("component", "notify_guard")),
		Mailer:      reminderMailer,
		Tokens:      svc.Tokens,
		Audit:       auditLogger,
		Push:        notifier,
		BaseURL:     cfg.BaseURL,
	}, logger.With("component", "reminder"))

	return &Server{
		db:  db,
		cfg: cfg,
		hub: hub,
		teamH: handler.NewTeamHandler(teamStore, userStore, inviteStore, svc.Tokens, inviteMailer, auditLogger, handler.TeamHandlerConfig{
			BaseURL:      cfg.BaseURL,
			InviteExpiry: cfg.InviteExpiry,
		}, logger.With("component", "team")),
		loadH:       handler.NewLoadHandler(loadStore, teamStore, auditLogger, hub, notifier, logger.With("component", "load")),
		documentH:   handler.NewDocumentHandler(documentStore, loadStore, teamStore, svc.Objects, classifySvc, auditLogger, hub, logger.With("component", "document")),
		reminderH:   handler.NewReminderHandler(reminder, loadStore, teamStore, logger.With("component", "reminder_handler")),
		unsubH:      handler.NewUnsubscribeHandler(svc.Tokens, prefsStore, userStore, auditLogger, logger.With("component", "unsubscribe")),
		auditH:      handler.NewAuditHandler(auditStore, teamStore, logger.With("component", "audit_handler")),
		pushH:       handler.NewPushHandler(pushStore, teamStore, svc.Push, logger.With("component", "push_handler")),
		userStore:   userStore,
		teamStore:   teamStore,
		inviteStore: inviteStore,
		auditStore:  auditStore,
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// InviteStore returns the invite store for cleanup tasks.
func (s *Server) InviteStore() *store.InviteStore {
	return s.inviteStore
}

// AuditStore returns the audit store for retention pruning.
func (s *Server) AuditStore() *store.AuditStore {
	return s.auditStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("GET /teams/join", s.rateLimitedByIP(s.teamH.JoinPreview))
	outerMux.HandleFunc("GET /api/unsubscribe", s.rateLimitedByIP(s.unsubH.Unsubscribe))

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.cfg.JWTSecret, s.userStore, s.logger.With("component", "auth"))
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestID(middleware.RequestLogger(s.logger.With("component", "http"))(outerMux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) rateLimitedByIP(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return "ip:" + middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 20, time.Minute)
	return rl(h).ServeHTTP
}

func (s *Server) rateLimitedByUser(h http.HandlerFunc, limit int) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return "user:" + strconv.FormatInt(auth.UserID(r.Context()), 10) + ":" + r.URL.Path
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, limit, time.Minute)
	return rl(h).ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Teams and invites
	mux.HandleFunc("POST /api/teams", s.teamH.Create)
	mux.HandleFunc("GET /api/teams", s.teamH.List)
	mux.HandleFunc("GET /api/teams/{id}/members", s.teamH.Members)
	mux.HandleFunc("POST /api/teams/{id}/invites", s.teamH.Invite)
	mux.HandleFunc("POST /api/teams/join", s.teamH.Join)

	// Loads
	mux.HandleFunc("POST /api/loads", s.loadH.Create)
	mux.HandleFunc("GET /api/loads", s.loadH.List)
	mux.HandleFunc("GET /api/loads/{id}", s.loadH.Get)
	mux.HandleFunc("PUT /api/loads/{id}/status", s.loadH.UpdateStatus)
	mux.HandleFunc("GET /api/loads/{id}/missing-documents", s.loadH.MissingDocuments)

	// Documents
	mux.HandleFunc("POST /api/documents", s.documentH.Upload)
	mux.HandleFunc("GET /api/documents", s.documentH.List)
	mux.HandleFunc("POST /api/documents/classify", s.rateLimitedByUser(s.documentH.Classify, 30))
	mux.HandleFunc("GET /api/documents/{id}", s.documentH.Get)
	mux.HandleFunc("PUT /api/documents/{id}/classification", s.documentH.Reclassify)
	mux.HandleFunc("GET /api/documents/{id}/history", s.documentH.History)

	// Reminders
	mux.HandleFunc("POST /api/reminders/send-missing-documents", s.rateLimitedByUser(s.reminderH.SendMissingDocuments, 10))

	// Audit
	mux.HandleFunc("GET /api/audit-logs", s.auditH.List)

	// Push notification API routes
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)

	// Realtime
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.teamStore, s.cfg.AllowedOrigins, s.logger.With("component", "websocket")))
}
