package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pkolev/warrantyhub/pkg/accounts"
	"github.com/pkolev/warrantyhub/pkg/api"
	"github.com/pkolev/warrantyhub/pkg/audit"
	"github.com/pkolev/warrantyhub/pkg/auth"
	"github.com/pkolev/warrantyhub/pkg/blob"
	"github.com/pkolev/warrantyhub/pkg/config"
	"github.com/pkolev/warrantyhub/pkg/httputil"
	"github.com/pkolev/warrantyhub/pkg/middleware"
	"github.com/pkolev/warrantyhub/pkg/observability"
	"github.com/pkolev/warrantyhub/pkg/storage"
	"github.com/pkolev/warrantyhub/pkg/users"
	"github.com/pkolev/warrantyhub/pkg/warranty"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	ctx := context.Background()

	db, err := storage.Open(storage.ConnectionConfig{
		URL:         cfg.Database.URL,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
		MaxLifetime: cfg.Database.MaxLifetime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := storage.RunMigrations(ctx, db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("database ready")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	blobs, err := newBlobStore(ctx, cfg.Blob)
	if err != nil {
		log.Fatalf("Failed to initialize blob storage: %v", err)
	}
	logger.WithField("type", cfg.Blob.Type).Info("blob storage ready")

	var registry *prometheus.Registry
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		metrics = observability.NewMetrics(registry)
		blobs = blob.NewInstrumentedStore(blobs, metrics)
	}

	sessions := auth.NewRedisSessionStore(redisClient, cfg.Auth.SessionTTL)
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	auditor := audit.NewDBLogger(db)

	accountsSvc := accounts.NewPostgresService(db, blobs, auditor, logger, metrics)
	warrantySvc := warranty.NewPostgresService(db, accountsSvc, blobs, auditor, logger, metrics)
	usersSvc := users.NewPostgresService(db, hasher, accountsSvc, auditor, logger)

	var rateLimiter *middleware.RateLimiter
	if !cfg.Auth.RateLimitDisabled {
		rateLimiter = middleware.NewRateLimiter(redisClient, &middleware.RateLimitConfig{
			RequestsPerWindow: cfg.Auth.RateLimitPerMin,
			WindowDuration:    time.Minute,
		}, "ratelimit")
	}

	server := api.NewServer(api.Options{
		Accounts:    accountsSvc,
		Warranties:  warrantySvc,
		Users:       usersSvc,
		Sessions:    sessions,
		Blobs:       blobs,
		Logger:      logger,
		Metrics:     metrics,
		Registry:    registry,
		RateLimiter: rateLimiter,
	})

	handler := httputil.MaxBytesMiddleware(cfg.Server.MaxBodyBytes)(server.Router())
	if metrics != nil {
		handler = observability.HTTPMetricsMiddleware(metrics)(handler)
	}
	handler = httputil.RecoveryMiddleware(logger)(httputil.LoggingMiddleware(logger)(handler))

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.WithField("addr", addr).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}

// newBlobStore selects the blob backend from configuration.
func newBlobStore(ctx context.Context, cfg config.BlobConfig) (blob.Store, error) {
	if cfg.Type == "filesystem" {
		return blob.NewFilesystemStore(cfg.FilesystemRoot)
	}
	return blob.NewS3Store(ctx, blob.S3Config{
		Endpoint:     cfg.Endpoint,
		Region:       cfg.Region,
		Bucket:       cfg.Bucket,
		AccessKey:    cfg.AccessKey,
		SecretKey:    cfg.SecretKey,
		UsePathStyle: cfg.UsePathStyle,
	})
}
