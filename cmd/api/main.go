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

	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/app"
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/authpw"
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/config"
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/email"
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/export"
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/files"
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/history"
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/llm"
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/search"
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/session"
	"github.com/jhyun7932-pixel/k-beauty-biz-buddy-sub002/internal/store"
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

	if err := os.MkdirAll(cfg.HistoryDir, 0o755); err != nil {
		log.Fatalf("failed to create history dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	historyService := history.New(cfg.HistoryDir)
	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		defer meiliClient.Close()
	}

	var service *app.Service
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for refresh token storage")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		service = app.NewWithSessionStore(cfg, dataStore, redisStore, historyService, searchService)
	} else {
		log.Printf("Using PostgreSQL for refresh token storage")
		service = app.New(cfg, dataStore, historyService, searchService)
	}

	service.SetAuthPasswordService(authpw.NewService(dataStore))
	service.SetEmailService(email.NewService(email.Config{
		Host:      cfg.SMTPHost,
		Port:      cfg.SMTPPort,
		Username:  cfg.SMTPUsername,
		Password:  cfg.SMTPPassword,
		From:      cfg.SMTPFrom,
		FromName:  cfg.SMTPFromName,
		EnableTLS: true,
	}))
	service.SetExportService(export.NewService(service.ExportDataStore()))
	service.SetLLMClient(llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey))

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		fileStore, err := files.New(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("object storage connection failed: %v", err)
		}
		service.SetFileStore(fileStore)
	} else {
		log.Printf("Object storage not configured; attachments disabled")
	}

	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Biz Buddy API listening on %s", cfg.Addr)
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
