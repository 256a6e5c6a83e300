// Package main is the application entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"inventario-go/internal/config"
	"inventario-go/internal/handler"
	"inventario-go/internal/middleware"
	"inventario-go/internal/repository"
	"inventario-go/internal/scheduler"
	"inventario-go/internal/service"
	"inventario-go/pkg/cache"
	"inventario-go/pkg/events"
	"inventario-go/pkg/filestore"
	"inventario-go/pkg/log"
	"inventario-go/pkg/sheets"
	"inventario-go/pkg/token"
)

func main() {
	// 1. Configuration
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. Logger
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("logger initialized")

	ctx := context.Background()

	// 3. Backing stores: spreadsheet, cache, object storage, events
	var readCache cache.Cache
	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		readCache = cache.NewRedisCache(rdb)
		log.Info("using redis read cache")
	} else {
		readCache = cache.NewMemoryCache()
		log.Info("using in-process read cache")
	}

	googleStore, err := sheets.NewGoogleStore(ctx, cfg.Sheets.SpreadsheetID, cfg.Sheets.CredentialsFile)
	if err != nil {
		log.Fatalf("failed to initialize spreadsheet store: %v", err)
	}
	store := sheets.NewClient(googleStore, sheets.Options{
		Cache:            readCache,
		CacheTTL:         time.Duration(cfg.Sheets.CacheTTLSeconds) * time.Second,
		MinInterval:      time.Duration(cfg.Sheets.MinIntervalMs) * time.Millisecond,
		CallsPerMinute:   cfg.Sheets.CallsPerMinute,
		DegradedFraction: cfg.Sheets.DegradedFraction,
		MaxRetries:       uint64(cfg.Sheets.MaxRetries),
		CallTimeout:      time.Duration(cfg.Sheets.CallTimeoutSec) * time.Second,
	})

	fileStore, err := filestore.NewMinioStore(ctx, cfg.MinIO.Endpoint, cfg.MinIO.AccessKeyID, cfg.MinIO.SecretAccessKey, cfg.MinIO.BucketName, cfg.MinIO.UseSSL)
	if err != nil {
		log.Fatalf("failed to initialize object storage: %v", err)
	}

	var producer *events.Producer
	if cfg.Kafka.Enabled {
		producer = events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
	}

	// 4. Repositories
	summaryRepo := repository.NewSummaryRepository(store)
	scanRepo := repository.NewScanRepository(store)
	fileRecordRepo := repository.NewFileRecordRepository(store)

	// 5. Services (dependency injection)
	sessionService := service.NewSessionService(summaryRepo, scanRepo, producer)
	labelService := service.NewLabelService(fileStore, sessionService, producer,
		time.Duration(cfg.Retention.BatchGraceHours)*time.Hour)
	storageService := service.NewStorageService(fileStore, fileRecordRepo, producer, cfg.Retention.Days)
	exportService := service.NewExportService(scanRepo, summaryRepo)

	// 6. Maintenance scheduler
	sched := scheduler.New(10 * time.Minute)
	if err := sched.AddRetentionSweep(cfg.Retention.SweepSchedule, storageService); err != nil {
		log.Fatalf("invalid sweep schedule: %v", err)
	}
	if err := sched.AddBatchPurge(cfg.Retention.PurgeSchedule, labelService); err != nil {
		log.Fatalf("invalid purge schedule: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// 7. Router
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiV1 := r.Group("/api/v1")
	if cfg.Auth.Enabled {
		jwtManager := token.NewJWTManager(cfg.Auth.Secret, cfg.Auth.TokenExpireHours)
		apiV1.Use(middleware.AuthMiddleware(jwtManager))
		log.Info("JWT auth enabled on /api/v1")
	}
	{
		scanHandler := handler.NewScanHandler(sessionService, labelService)
		scans := apiV1.Group("/scans")
		{
			scans.POST("", scanHandler.SaveScan)
			scans.POST("/qr", scanHandler.SaveQRScan)
			scans.DELETE("", scanHandler.DeleteScan)
		}

		sessionHandler := handler.NewSessionHandler(sessionService, exportService, storageService)
		apiV1.GET("/inventory", sessionHandler.GetInventory)
		sessions := apiV1.Group("/sessions")
		{
			sessions.GET("/limits", sessionHandler.GetLimits)
			sessions.POST("/finish", sessionHandler.FinishSession)
			sessions.POST("/finish-and-backup", sessionHandler.FinishAndBackup)
			sessions.POST("/cleanup", sessionHandler.CleanupDuplicates)
		}

		labelHandler := handler.NewLabelHandler(labelService)
		labels := apiV1.Group("/labels")
		{
			labels.POST("/upload", labelHandler.Upload)
			labels.GET("/archive/:sessionId", labelHandler.DownloadArchive)
		}

		fileHandler := handler.NewFileHandler(storageService)
		files := apiV1.Group("/files")
		{
			files.GET("", fileHandler.List)
			files.GET("/:fileId/download", fileHandler.Download)
		}
	}

	// 8. HTTP server with graceful shutdown
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received, stopping server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("HTTP server shutdown failed: %v", err)
	}

	log.Info("server stopped")
}
