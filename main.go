package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/ksw5434/realestate/internal/api"
	"github.com/ksw5434/realestate/internal/api/middleware"
	"github.com/ksw5434/realestate/internal/cache"
	"github.com/ksw5434/realestate/internal/config"
	"github.com/ksw5434/realestate/internal/db"
	"github.com/ksw5434/realestate/internal/logger"
	"github.com/ksw5434/realestate/internal/metrics"
	"github.com/ksw5434/realestate/internal/services"
	"github.com/ksw5434/realestate/internal/storage"
	"github.com/ksw5434/realestate/internal/store"
	"github.com/ksw5434/realestate/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'img' (thumbnail worker), 'all' (default)")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zl.Sync()

	if cfg.RunMode != "api" && cfg.RunMode != "img" && cfg.RunMode != "all" {
		zl.Fatal("Invalid run mode", zap.String("mode", cfg.RunMode))
	}

	ctx := context.Background()

	// Initialize row store
	rowStore, closeStore, err := openStore(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("Failed to open row store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()

	// Initialize Cache (Redis)
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, zl)
	if err != nil {
		zl.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			zl.Warn("Error disconnecting from Redis", zap.Error(err))
		}
	}()
	viewCache := cache.NewRedisViewCache(redisClient, zl)

	invalidator := cache.NewCompositeInvalidator(viewCache)
	if cfg.NatsURL != "" {
		nc, err := cache.ConnectNats(cfg.NatsURL, zl)
		if err != nil {
			zl.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer nc.Drain()
		invalidator.Add(cache.NewNatsInvalidator(nc, cfg.NatsInvalidateTopic, zl))
	}

	// Initialize object storage
	objects, err := storage.New(cfg, zl)
	if err != nil {
		zl.Fatal("Failed to initialize object storage", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}

	m := metrics.NewMetricsManager("realestate")

	// Thumbnail queue (optional)
	var thumbnails services.IThumbnailQueue
	if cfg.ThumbnailsEnabled {
		taskClient := tasks.NewClient(cfg)
		defer taskClient.Close()
		thumbnails = tasks.NewThumbnailQueue(taskClient, zl)
	}

	// Initialize services
	access := services.NewAccessService(rowStore)
	svc := api.Services{
		Accounts: services.NewAccountService(rowStore, rowStore, cfg, zl),
		Access:   access,
		Profiles: services.NewProfileService(rowStore, rowStore, invalidator, zl),
		Listings: services.NewListingService(services.ListingStores{
			Listings: rowStore,
			Images:   rowStore,
			Tx:       rowStore,
		}, access, invalidator, m, zl),
		Queries: services.NewListingQueryService(rowStore, rowStore, rowStore, viewCache, cfg.ViewCacheTTL, zl),
		Assets:  services.NewAssetService(cfg, objects, thumbnails, m, zl),
	}

	// WaitGroup for managing goroutines
	var wg sync.WaitGroup

	// Channel to signal shutdown from Service API
	shutdownChan := make(chan struct{}, 1)

	// Start Service API (always runs)
	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(m, zl, shutdownChan),
	}
	serve(&wg, serviceSrv, "Service API", zl)

	// --- Mode-specific servers ---
	var mainApiSrv *http.Server
	var rateLimiter *middleware.RateLimiterMiddleware
	var imageTaskSrv *asynq.Server

	zl.Info("Starting application", zap.String("mode", cfg.RunMode), zap.String("store", cfg.StoreDriver), zap.String("storage", cfg.StorageDriver))

	if cfg.RunMode == "api" || cfg.RunMode == "all" {
		rateLimiter = middleware.NewRateLimiterMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst, zl)
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: api.SetupRouter(cfg, svc, rateLimiter, m, zl),
		}
		serve(&wg, mainApiSrv, "Main API", zl)
	}

	if cfg.RunMode == "img" || cfg.RunMode == "all" {
		processor := tasks.NewTaskProcessor(cfg, objects, zl)
		imageTaskSrv, err = tasks.StartServer(cfg, processor, zl)
		if err != nil {
			zl.Fatal("Failed to start image task server", zap.Error(err))
		}
	}

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		zl.Info("Received signal, shutting down gracefully", zap.String("signal", sig.String()))
	case <-shutdownChan:
		zl.Info("Shutdown requested via Service API, shutting down gracefully")
	}

	// Create context with timeout for shutdown
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		zl.Warn("Service API server shutdown error", zap.Error(err))
	}
	if mainApiSrv != nil {
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			zl.Warn("Main API server shutdown error", zap.Error(err))
		}
		rateLimiter.Stop()
	}
	if imageTaskSrv != nil {
		imageTaskSrv.Shutdown()
	}

	// Wait for all server goroutines to finish
	wg.Wait()
	zl.Info("Server gracefully stopped")
}

// serve runs srv in the background until it is shut down.
func serve(wg *sync.WaitGroup, srv *http.Server, name string, zl *zap.Logger) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		zl.Info(name+" listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Fatal(name+" ListenAndServe error", zap.Error(err))
		}
		zl.Info(name + " server stopped")
	}()
}

// openStore connects the configured row store and prepares its schema.
func openStore(ctx context.Context, cfg *config.Config, zl *zap.Logger) (store.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := db.ConnectPostgres(cfg.PostgresDSN, zl)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx, pool); err != nil {
			db.DisconnectPostgres(pool)
			return nil, nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
		return store.NewPostgresStore(pool), func() { db.DisconnectPostgres(pool) }, nil

	case config.StoreDriverMongo:
		client, database, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName, zl)
		if err != nil {
			return nil, nil, err
		}
		if err := db.EnsureIndexes(ctx, database); err != nil {
			_ = db.DisconnectDB(client)
			return nil, nil, fmt.Errorf("failed to ensure indexes: %w", err)
		}
		closeFn := func() {
			if err := db.DisconnectDB(client); err != nil {
				zl.Warn("Error disconnecting from MongoDB", zap.Error(err))
			}
		}
		return store.NewMongoStore(database, cfg.MongoTransactions), closeFn, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
