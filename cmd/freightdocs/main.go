package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dukerupert/freightdocs/internal/classify"
	"github.com/dukerupert/freightdocs/internal/config"
	"github.com/dukerupert/freightdocs/internal/database"
	"github.com/dukerupert/freightdocs/internal/email"
	"github.com/dukerupert/freightdocs/internal/logging"
	"github.com/dukerupert/freightdocs/internal/push"
	"github.com/dukerupert/freightdocs/internal/server"
	"github.com/dukerupert/freightdocs/internal/storage"
	"github.com/dukerupert/freightdocs/internal/token"
)

func main() {
	configPath := flag.String("config", os.Getenv("FREIGHTDOCS_CONFIG"), "path to YAML config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	if cfg.Auth.JWTSecret == "" {
		logger.Error("FREIGHTDOCS_JWT_SECRET is required")
		os.Exit(1)
	}
	if cfg.Auth.UnsubscribeSecret == "" {
		logger.Warn("unsubscribe secret not set, reminder emails will have no unsubscribe link")
	}

	db, err := database.Open(cfg.Server.DBPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	objects := storage.New(storage.Config{
		Endpoint:   cfg.Storage.Endpoint,
		Bucket:     cfg.Storage.Bucket,
		Region:     cfg.Storage.Region,
		AccessKey:  cfg.Storage.AccessKey,
		SecretKey:  cfg.Storage.SecretKey,
		PresignTTL: cfg.Storage.PresignTTL,
	})
	if !objects.Configured() {
		logger.Warn("object storage not configured, uploads are disabled")
	}

	classifierOpts := []classify.Option{classify.WithTimeout(cfg.Classify.RequestTimeout)}
	if cfg.Classify.BaseURL != "" {
		classifierOpts = append(classifierOpts, classify.WithBaseURL(cfg.Classify.BaseURL))
	}
	if cfg.Classify.Model != "" {
		classifierOpts = append(classifierOpts, classify.WithModel(cfg.Classify.Model))
	}
	classifier := classify.NewClient(cfg.Classify.APIKey, classifierOpts...)
	if !classifier.Configured() {
		logger.Warn("classification API key not set, classification requests will fail")
	}

	var pushSvc *push.Service
	if cfg.Push.VAPIDPublicKey != "" && cfg.Push.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey, cfg.Push.Subscriber)
	}

	classifyCfg := classify.Config{
		MaxRetries:          cfg.Classify.MaxRetries,
		RetryDelay:          cfg.Classify.RetryDelay,
		ConfidenceThreshold: cfg.Classify.ConfidenceThreshold,
	}

	// A classify request must be able to exhaust its retries and still write
	// the error response.
	writeTimeout := 90 * time.Second
	if worst := classifyCfg.WorstCase(cfg.Classify.RequestTimeout) + 15*time.Second; worst > writeTimeout {
		writeTimeout = worst
	}

	srv := server.New(db, server.Config{
		BaseURL:        cfg.Server.BaseURL,
		JWTSecret:      cfg.Auth.JWTSecret,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		InviteExpiry:   cfg.InviteExpiry(),
	}, server.Services{
		Objects:        objects,
		Classifier:     classifier,
		ClassifyConfig: classifyCfg,
		Email:          email.NewClient(cfg.Email.PostmarkToken, cfg.Email.FromEmail),
		Push:           pushSvc,
		Tokens:         token.New(cfg.Auth.UnsubscribeSecret),
	}, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
	}

	// Background cleanup goroutine
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.InviteStore().DeleteExpired(time.Now()); err != nil {
					logger.Error("cleanup expired invites", "error", err)
				} else if n > 0 {
					logger.Info("cleaned up expired invites", "count", n)
				}
				cutoff := time.Now().Add(-cfg.AuditRetention())
				if n, err := srv.AuditStore().DeleteOlderThan(cutoff); err != nil {
					logger.Error("prune audit logs", "error", err)
				} else if n > 0 {
					logger.Info("pruned audit logs", "count", n, "before", cutoff)
				}
				srv.RateLimiter().Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("freightdocs starting", "addr", httpServer.Addr, "base_url", cfg.Server.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cleanupCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
