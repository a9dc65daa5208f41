package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/octobees/directory-search/internal/auth"
	"github.com/octobees/directory-search/internal/cache"
	"github.com/octobees/directory-search/internal/config"
	"github.com/octobees/directory-search/internal/database"
	"github.com/octobees/directory-search/internal/handler"
	middlewarepkg "github.com/octobees/directory-search/internal/middleware"
	"github.com/octobees/directory-search/internal/repository"
	"github.com/octobees/directory-search/internal/router"
	"github.com/octobees/directory-search/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	normalizer := repository.NewNormalizer(cfg.DefaultPhoneRegion)

	store, closeStore, err := openStore(ctx, cfg, normalizer)
	if err != nil {
		log.Fatalf("failed to open %s store: %v", cfg.StoreBackend, err)
	}
	defer closeStore()

	referenceCache, err := openCache(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open reference cache: %v", err)
	}
	defer referenceCache.Close()

	directory := repository.NewCachedReferenceRepository(store, referenceCache, cfg.ReferenceCacheTTL)
	searchService := service.NewSearchService(directory,
		service.WithStoreTimeout(cfg.StoreTimeout),
		service.WithDefaultRadius(cfg.DefaultRadiusKm),
	)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, 0)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middlewarepkg.RequestID())
	e.Use(middlewarepkg.Logging())
	e.Use(echoMiddleware.Recover())

	router.Register(e, cfg, jwtManager, router.Handlers{
		Search: handler.NewSearchHandler(searchService),
	})

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("component=api backend=%s cache=%s port=%s starting", cfg.StoreBackend, cacheKind(cfg), cfg.Port)
		serverErr <- e.Start(":" + cfg.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config, normalizer *repository.Normalizer) (repository.DirectoryRepository, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendSupabase:
		client, err := repository.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseKey)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewSupabaseDirectoryRepository(client, normalizer), func() {}, nil
	case config.BackendPostgres:
		pool, err := database.Connect(ctx, cfg.DatabaseURL, database.Options{
			ApplicationName:  "directory-search",
			StatementTimeout: cfg.StoreTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return repository.NewPGXDirectoryRepository(pool, normalizer), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
}

func openCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	if cfg.Redis.Addr == "" {
		return cache.NewMemoryCache(), nil
	}
	redisCache, err := cache.NewRedisCache(ctx, cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, err
	}
	return redisCache, nil
}

func cacheKind(cfg *config.Config) string {
	if cfg.Redis.Addr == "" {
		return "memory"
	}
	return "redis"
}
