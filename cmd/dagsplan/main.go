package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/askelund/dagsplan/internal/backup"
	"github.com/askelund/dagsplan/internal/database"
	"github.com/askelund/dagsplan/internal/email"
	"github.com/askelund/dagsplan/internal/logging"
	"github.com/askelund/dagsplan/internal/media"
	"github.com/askelund/dagsplan/internal/server"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	// Optional .env for local runs; real deployments set the environment.
	godotenv.Load()

	logger := logging.Setup(envOr("DAGSPLAN_LOG_LEVEL", "info"), envOr("DAGSPLAN_LOG_FORMAT", "text"))

	port := envOr("DAGSPLAN_PORT", "8080")
	dbPath := envOr("DAGSPLAN_DB_PATH", "dagsplan.db")

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	emailClient := email.NewClient(
		os.Getenv("DAGSPLAN_POSTMARK_TOKEN"),
		os.Getenv("DAGSPLAN_EMAIL_FROM"),
	)
	if !emailClient.Configured() {
		logger.Warn("email not configured, login codes cannot be delivered")
	}

	s3cfg := backup.S3Config{
		Endpoint:  os.Getenv("DAGSPLAN_S3_ENDPOINT"),
		Bucket:    os.Getenv("DAGSPLAN_S3_BUCKET"),
		Region:    envOr("DAGSPLAN_S3_REGION", "auto"),
		AccessKey: os.Getenv("DAGSPLAN_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("DAGSPLAN_S3_SECRET_KEY"),
	}

	mediaStore := media.NewStore(s3cfg, envOr("DAGSPLAN_MEDIA_URL", s3cfg.Endpoint+"/"+s3cfg.Bucket))
	if mediaStore == nil {
		logger.Warn("S3 not configured, media uploads disabled")
	}

	backupSvc := backup.NewService(backup.Config{
		S3:            s3cfg,
		DBPath:        dbPath,
		Passphrase:    os.Getenv("DAGSPLAN_BACKUP_PASSPHRASE"),
		Hour:          envInt("DAGSPLAN_BACKUP_HOUR", 3),
		RetentionDays: envInt("DAGSPLAN_BACKUP_RETENTION_DAYS", 30),
	}, db, logger.With("component", "backup"))

	srv := server.New(db, emailClient, mediaStore, server.Config{
		SecureCookies: envOr("DAGSPLAN_SECURE_COOKIES", "true") == "true",
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backupSvc.Start(ctx)

	// Periodic housekeeping: expired sessions and stale rate limit buckets.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("session cleanup", "error", err)
				} else if n > 0 {
					logger.Info("expired sessions removed", "count", n)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("dagsplan listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()
	backupSvc.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
