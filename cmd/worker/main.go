package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/sms-portal/internal/config"
	"github.com/ignite/sms-portal/internal/repository/postgres"
	"github.com/ignite/sms-portal/internal/storage"
	"github.com/ignite/sms-portal/internal/worker"
)

// Standalone import worker. The server runs one in-process already;
// this binary adds horizontal capacity when import volume needs it.
func main() {
	log.Println("Starting IGNITE SMS Import Worker...")

	cfg, err := config.LoadFromEnv("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
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
	}

	var files storage.FileStore
	if cfg.Storage.Type == "s3" {
		files, err = storage.NewS3FileStore(context.Background(), storage.S3Config{
			Bucket:     cfg.Storage.S3Bucket,
			Region:     cfg.Storage.S3Region,
			AWSProfile: cfg.Storage.GetAWSProfile(),
		})
	} else {
		files, err = storage.NewLocalFileStore(cfg.Storage.LocalPath)
	}
	if err != nil {
		log.Fatalf("Failed to initialize file storage: %v", err)
	}

	contactRepo := postgres.NewContactRepo(db)
	taskRepo := postgres.NewImportTaskRepo(db)
	logRepo := postgres.NewImportLogRepo(db)

	importWorker := worker.NewImportWorker(taskRepo, logRepo, files, contactRepo, redisClient, cfg.Imports)

	ctx, cancel := context.WithCancel(context.Background())
	go importWorker.Start(ctx)
	log.Println("Import worker running...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()
	importWorker.Stop()
	log.Println("Worker stopped")
}
