package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	echoapi "github.com/hcommons/membersync/api/echo"
	cacheredis "github.com/hcommons/membersync/cache/redis"
	"github.com/hcommons/membersync/config"
	"github.com/hcommons/membersync/directory"
	"github.com/hcommons/membersync/log"
	"github.com/hcommons/membersync/mongodb"
	"github.com/hcommons/membersync/ratelimit"
	"github.com/hcommons/membersync/syncapi"
	"github.com/hcommons/membersync/syncengine"
	"github.com/hcommons/membersync/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
	}
	logger := log.NewZerologAdapter(logLevel, cfg.LogPretty)

	ctx := context.Background()
	logger.Info(ctx, "Starting membersync server", map[string]interface{}{
		"http_port":   cfg.HTTPPort,
		"mongo_db":    cfg.MongoDBName,
		"redis_addr":  cfg.RedisAddr,
		"app_version": cfg.AppVersion,
	})

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize TracerProvider", err, nil)
	}

	db, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		logger.Fatal(ctx, "Failed to connect to MongoDB", err, nil)
	}

	profileRepo, err := mongodb.NewProfileRepository(ctx, db)
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize ProfileRepository", err, nil)
	}
	roleRepo, err := mongodb.NewRoleRepository(ctx, db)
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize RoleRepository", err, nil)
	}
	dirStore := mongodb.NewDirectoryStore(db)

	redisClient := goredis.NewClient(&goredis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal(ctx, "Failed to connect to Redis", err, nil)
	}

	store := cacheredis.NewStore(redisClient, "membersync")
	limiter := ratelimit.NewLimiter(
		ratelimit.NewRedisCounter(redisClient, "membersync"),
		cfg.RateLimitMaxCalls,
		cfg.RateLimitWindow(),
	)

	clients := map[string]syncapi.Client{
		"MLA": syncapi.NewMLA(syncapi.MLAOptions{
			BaseURL:      cfg.MLAAPIBaseURL,
			APIKey:       cfg.MLAAPIKey,
			APISecret:    cfg.MLAAPISecret,
			Store:        store,
			Limiter:      limiter,
			CacheCeiling: cfg.CacheCeiling(),
			Version:      cfg.AppVersion,
			Logger:       logger,
		}),
		"ARLISNA": syncapi.NewARLISNA(syncapi.ARLISNAOptions{
			BaseURL:      cfg.ARLISNAAPIBaseURL,
			APIToken:     cfg.ARLISNAAPIToken,
			Store:        store,
			Limiter:      limiter,
			CacheCeiling: cfg.CacheCeiling(),
			Version:      cfg.AppVersion,
			Logger:       logger,
		}),
		"UP": syncapi.NewUP(syncapi.UPOptions{
			BaseURL:      cfg.UPAPIBaseURL,
			TokenURL:     cfg.UPTokenURL,
			ClientID:     cfg.UPClientID,
			ClientSecret: cfg.UPClientSecret,
			RefreshToken: cfg.UPRefreshToken,
			Store:        store,
			Limiter:      limiter,
			CacheCeiling: cfg.CacheCeiling(),
			Version:      cfg.AppVersion,
			Logger:       logger,
		}),
		"MSU": syncapi.NewMSU(logger),
	}

	var updates *syncengine.UpdateNotifier
	if len(cfg.UpdateEndpoints) > 0 {
		updates = syncengine.NewUpdateNotifier(cfg.UpdateEndpoints, cfg.UpdateIDP, cfg.WebhookToken, logger)
	}

	engine := syncengine.NewEngine(syncengine.Options{
		Clients:      clients,
		Systems:      cfg.ExternalSyncSystems,
		Profiles:     profileRepo,
		Roles:        roleRepo,
		SyncWindow:   cfg.SyncWindow(),
		WebhookToken: cfg.WebhookToken,
		WebhookURLs:  cfg.WebhookURLs,
		Updates:      updates,
		Logger:       logger,
	})

	broadcaster := syncengine.NewLogoutBroadcaster(cfg.LogoutEndpoints, cfg.StaticAPIBearer, logger)

	paginator := directory.NewPaginator(dirStore, cfg.DirectoryPageSize)
	api := echoapi.NewMemberAPI(paginator, dirStore, engine, broadcaster, cfg.StaticAPIBearer, logger)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	api.RegisterRoutes(e)

	go func() {
		if err := e.Start(":" + cfg.HTTPPort); err != nil && err != http.ErrServerClosed {
			logger.Fatal(context.Background(), "Failed to start HTTP server", err, nil)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "Shutting down server", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "HTTP server shutdown error", err, nil)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "TracerProvider shutdown error", err, nil)
	}
	if err := redisClient.Close(); err != nil {
		logger.Error(shutdownCtx, "Redis close error", err, nil)
	}
	if err := db.Client().Disconnect(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "MongoDB disconnect error", err, nil)
	}
}
