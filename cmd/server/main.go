package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/sms-portal/internal/api"
	"github.com/ignite/sms-portal/internal/config"
	"github.com/ignite/sms-portal/internal/repository/postgres"
	"github.com/ignite/sms-portal/internal/service/imports"
	"github.com/ignite/sms-portal/internal/service/unsubscribe"
	"github.com/ignite/sms-portal/internal/storage"
	"github.com/ignite/sms-portal/internal/worker"
)

func main() {
	log.Println("Starting IGNITE SMS Portal...")

	cfg, err := config.LoadFromEnv("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	maxOpen := cfg.Database.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	maxIdle := cfg.Database.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Printf("Redis unavailable, progress snapshots disabled: %v", err)
		redisClient = nil
	} else {
		log.Println("Connected to Redis")
	}

	files, err := newFileStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize file storage: %v", err)
	}

	// Repositories
	contactRepo := postgres.NewContactRepo(db)
	taskRepo := postgres.NewImportTaskRepo(db)
	logRepo := postgres.NewImportLogRepo(db)
	redirectRepo := postgres.NewRedirectRepo(db)

	// Services
	importsSvc := imports.NewService(taskRepo, logRepo, files)
	signer := unsubscribe.NewSigner(cfg.Unsubscribe.SigningSecret, cfg.Unsubscribe.BaseURL)
	unsubSvc := unsubscribe.NewService(redirectRepo, contactRepo, signer, cfg.Unsubscribe.BaseURL, cfg.Unsubscribe.BackfillBatch)

	// Background import worker, in-process alongside the API.
	importWorker := worker.NewImportWorker(taskRepo, logRepo, files, contactRepo, redisClient, cfg.Imports)
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	go importWorker.Start(workerCtx)

	handlers := api.NewHandlers(importsSvc, unsubSvc, signer, db, redisClient)
	router := api.SetupRoutes(handlers)

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	cancelWorker()
	importWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

func newFileStore(cfg *config.Config) (storage.FileStore, error) {
	switch cfg.Storage.Type {
	case "s3":
		return storage.NewS3FileStore(context.Background(), storage.S3Config{
			Bucket:     cfg.Storage.S3Bucket,
			Region:     cfg.Storage.S3Region,
			AWSProfile: cfg.Storage.GetAWSProfile(),
		})
	default:
		return storage.NewLocalFileStore(cfg.Storage.LocalPath)
	}
}
