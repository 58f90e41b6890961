package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"teambeat/api/internal/app"
	"teambeat/api/internal/archive"
	"teambeat/api/internal/authpw"
	"teambeat/api/internal/config"
	"teambeat/api/internal/email"
	"teambeat/api/internal/export"
	"teambeat/api/internal/live"
	"teambeat/api/internal/minutes"
	"teambeat/api/internal/presence"
	"teambeat/api/internal/search"
	"teambeat/api/internal/session"
	"teambeat/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.MinutesDir, 0o755); err != nil {
		log.Fatalf("failed to create minutes dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	var sessions session.Store
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for session storage")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		sessions = redisStore
	} else {
		log.Printf("Using in-process session storage")
		sessions = session.NewMemoryStore(time.Minute)
	}
	defer sessions.Close()

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, pgfts)

	uploader, err := archive.NewUploader(ctx, archive.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		log.Fatalf("object storage setup failed: %v", err)
	}
	if uploader.Enabled() {
		log.Printf("Archiving exported reports to %s/%s", cfg.MinioEndpoint, cfg.MinioBucket)
	}

	tracker := presence.NewTracker(cfg.PresenceTimeout)
	defer tracker.Close()

	registry := live.NewRegistry()
	broadcaster := live.NewBroadcaster(registry, dataStore, nil)

	service := app.New(cfg, dataStore, app.Deps{
		Sessions: sessions,
		Presence: tracker,
		Live:     broadcaster,
		Auth:     authpw.NewService(dataStore, cfg.ResetTokenTTL),
		Search:   searchService,
		Export:   export.NewService(dataStore),
		Archive:  uploader,
		Minutes:  minutes.New(cfg.MinutesDir),
		Email: email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		}),
	})

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// No WriteTimeout: event streams stay open indefinitely.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("TeamBeat API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
