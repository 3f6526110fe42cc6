package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hatefsystems/search-engine-core-sub000/analytics"
	"github.com/hatefsystems/search-engine-core-sub000/cache"
	"github.com/hatefsystems/search-engine-core-sub000/config"
	"github.com/hatefsystems/search-engine-core-sub000/handler"
	appLogger "github.com/hatefsystems/search-engine-core-sub000/logger"
	"github.com/hatefsystems/search-engine-core-sub000/middleware"
	redisClient "github.com/hatefsystems/search-engine-core-sub000/redis"
	"github.com/hatefsystems/search-engine-core-sub000/security"
	"github.com/hatefsystems/search-engine-core-sub000/service"
	"github.com/hatefsystems/search-engine-core-sub000/store"
	"github.com/hatefsystems/search-engine-core-sub000/store/sqlite"
	"github.com/hatefsystems/search-engine-core-sub000/utils"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
)

// @title Hatef Clean-URL Resolver API
// @version 1.0
// @description Public profile pages at hatef.ir/{slug}, tracked link redirects at /l/{linkId}, and the owner API behind them.

// @BasePath /
// @schemes http https

// @tag.name Public
// @tag.description Slug resolution and link redirects

// @tag.name Profiles
// @tag.description Profile lifecycle and slug management (requires ownerToken)

// @tag.name Links
// @tag.description Link blocks of a profile (requires ownerToken)

// @tag.name Analytics
// @tag.description Privacy-filtered click and view counts

// @tag.name Internal
// @tag.description Maintenance routes for schedulers (requires INTERNAL_API_KEY)

// @tag.name System
// @tag.description Health checks and cache metrics

// backend is the store plus its connection lifecycle
type backend struct {
	store.Store
	io.Closer
}

func openStore(ctx context.Context, cfg config.Config) (backend, error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		st, err := sqlite.NewStore(cfg.Storage.SQLiteDSN)
		if err != nil {
			return backend{}, err
		}
		log.Info().Str("dsn", cfg.Storage.SQLiteDSN).Msg("Using SQLite storage")
		return backend{Store: st, Closer: st}, nil
	default:
		rdb, err := redisClient.NewClient(ctx, cfg.Redis)
		if err != nil {
			return backend{}, err
		}
		return backend{Store: store.NewRedisStore(rdb), Closer: rdb}, nil
	}
}

func main() {
	// Initialize logger
	appLogger.Initialize()

	// Load configuration
	cfg := config.MustLoadConfig()
	logCloser := appLogger.Configure(cfg.Log)

	// Error reporting
	if cfg.Sentry.DSN != "" {
		if err := middleware.InitSentry(cfg.Sentry.DSN, cfg.Sentry.Environment, cfg.Sentry.SampleRate); err != nil {
			log.Error().Err(err).Msg("Failed to initialize Sentry, continuing without it")
			cfg.Sentry.DSN = ""
		}
	}

	utils.SetExtraReservedSlugs(cfg.Slugs.Reserved)

	// Initialize storage
	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := openStore(startCtx, cfg)
	cancelStart()
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("Failed to open storage")
	}

	// Initialize caches
	slugCache := cache.NewSlugCache(
		time.Duration(cfg.Cache.SlugTTLSeconds)*time.Second,
		cfg.Cache.SlugMaxSize,
		cfg.Cache.SlugCleanupEvery,
	)
	var profileCache *cache.ProfileCache
	if cfg.Cache.Enabled {
		profileCache, err = cache.New(cfg.Cache)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize cache")
		}
	} else {
		log.Info().Msg("Profile cache disabled in configuration")
	}

	// Rate limiters
	trustProxy := cfg.WebServer.TrustProxyHeaders
	publicLimiter := middleware.NewSlidingWindowLimiter(cfg.RateLimit.PublicProfile.Requests, cfg.RateLimit.PublicProfile.Window())
	linkLimiter := middleware.NewSlidingWindowLimiter(cfg.RateLimit.LinkRedirect.Requests, cfg.RateLimit.LinkRedirect.Window())
	var apiLimiter *middleware.RateLimiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		apiLimiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, trustProxy)
	}

	// Analytics recording
	geo := analytics.NewLocator(cfg.Analytics.GeoIPDatabase)
	recorder := analytics.NewRecorder(db, geo, analytics.Options{
		Async:        cfg.Analytics.Async,
		QueueSize:    cfg.Analytics.QueueSize,
		Workers:      cfg.Analytics.Workers,
		WriteTimeout: time.Duration(cfg.Analytics.WriteTimeoutMS) * time.Millisecond,
		TrustProxy:   trustProxy,
	})

	// Services
	profiles := service.NewProfiles(db, slugCache, profileCache, service.OptionsFromConfig(cfg))
	links := service.NewLinks(db, profiles).
		WithChecker(security.NewLinkScanner(cfg.Security.LinkBlocklistEnabled, cfg.Security.LinkBlocklist))
	stats := service.NewAnalytics(db, profiles, cfg.Analytics.RetentionDays, cfg.Analytics.RecentLimit)

	h := handler.New(handler.Deps{
		Config:        cfg,
		Profiles:      profiles,
		Links:         links,
		Analytics:     stats,
		Recorder:      recorder,
		Store:         db,
		PublicLimiter: publicLimiter,
		LinkLimiter:   linkLimiter,
		APILimiter:    apiLimiter,
	})

	// Configure HTTP server
	serverAddress := fmt.Sprintf("%s:%s", cfg.WebServer.IP, cfg.WebServer.Port)
	server := &http.Server{
		Addr:         serverAddress,
		Handler:      h.Router(),
		ReadTimeout:  time.Duration(cfg.WebServer.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WebServer.WriteTimeout) * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("address", serverAddress).
			Str("public_base_url", cfg.PublicBaseURL()).
			Str("storage", cfg.Storage.Driver).
			Msg("Starting server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.WebServer.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Drain pending analytics before the store goes away
	recorder.Close()
	publicLimiter.Stop()
	linkLimiter.Stop()

	if err := geo.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close GeoIP database")
	}
	if profileCache != nil {
		profileCache.Close()
	}
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close storage")
	}

	sentry.Flush(2 * time.Second)
	log.Info().Msg("Server stopped gracefully")
	logCloser.Close()
}
