package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/wes-chat/internal/cache"
	"github.com/weiawesome/wes-chat/internal/config"
	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/internal/handler"
	"github.com/weiawesome/wes-chat/internal/hub"
	"github.com/weiawesome/wes-chat/internal/presence"
	"github.com/weiawesome/wes-chat/internal/repository"
	"github.com/weiawesome/wes-chat/internal/service"
	"github.com/weiawesome/wes-chat/pkg/database"
	"github.com/weiawesome/wes-chat/pkg/jwt"
	pkglog "github.com/weiawesome/wes-chat/pkg/log"
	"github.com/weiawesome/wes-chat/pkg/middleware"
	"github.com/weiawesome/wes-chat/pkg/pubsub"
	"github.com/weiawesome/wes-chat/pkg/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	logger := pkglog.Setup(pkglog.Config{
		Level:   cfg.Log.Level,
		Pretty:  cfg.Log.Pretty || cfg.Log.Level == "debug",
		Service: "wes-chat",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database using GORM
	db, err := database.Open(cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Auto-migrate
	if err := db.AutoMigrate(domain.Models()...); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Msg("database migration completed")

	// Initialize repositories
	chatRepo := repository.NewGormChatRepository(db)
	messageRepo := repository.NewGormMessageRepository(db)
	notificationRepo := repository.NewGormNotificationRepository(db)
	userRepo := repository.NewGormUserRepository(db)

	// Redis backs the user cache and the presence registry when configured
	if cfg.Presence.InstanceID == "" {
		cfg.Presence.InstanceID = uuid.New().String()
	}
	var (
		userCache cache.UserCache
		tracker   presence.Tracker
	)
	if cfg.Redis.Address != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()

		userCache = cache.NewRedisUserCache(redisClient, cfg.Cache.Prefix, cfg.Cache.TTL)
		tracker = presence.NewRedisTracker(redisClient, cfg.Presence)
		logger.Info().Str("address", cfg.Redis.Address).Msg("redis connected")
	} else {
		tracker = presence.NewMemoryTracker()
		logger.Warn().Msg("redis not configured, using in-process presence and no user cache")
	}

	// Initialize pub/sub bus
	bus, err := pubsub.NewBus(ctx, cfg.PubSub)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.PubSub.Driver).Msg("failed to create pubsub")
	}
	defer bus.Close()

	// Initialize storage
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to create storage")
	}

	// Initialize token validation
	tokens, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessDuration)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create jwt manager")
	}
	authMiddleware := middleware.NewAuthMiddleware(tokens)

	// Initialize hub and relay
	wsHub := hub.NewHub(cfg.WebSocket)
	relay := hub.NewRelay(bus, wsHub)
	publisher := hub.NewEventPublisher(bus)

	// Initialize services
	userSvc := service.NewUserService(userRepo, userCache, tracker, cfg.Chat.UserSearchLimit)
	notificationSvc := service.NewNotificationService(notificationRepo, publisher)
	chatSvc := service.NewChatService(chatRepo, messageRepo, userSvc, notificationSvc, publisher, store, cfg.Chat)
	messageSvc := service.NewMessageService(messageRepo, chatRepo, userSvc, cfg.Chat.DefaultPageSize)
	sessionSvc := service.NewSessionService(wsHub, tokens, chatSvc, messageSvc, notificationSvc, userSvc, publisher, tracker, cfg.Chat)

	if err := sessionSvc.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start session service")
	}
	defer sessionSvc.Stop()

	// Setup Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.AccessLog(logger))

	// Serve local chat pictures when their public URL is a path on this server
	if disk, ok := store.(*storage.DiskStore); ok && strings.HasPrefix(disk.Mount(), "/") {
		r.Static(disk.Mount(), disk.Root())
	}

	handler.NewHandler(chatSvc, messageSvc, sessionSvc, notificationSvc, userSvc, authMiddleware, cfg.Chat.DefaultPageSize).RegisterRoutes(r)
	handler.NewWSHandler(wsHub, sessionSvc, cfg.WebSocket).RegisterRoutes(r)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		wsHub.Run(gCtx)
		return nil
	})
	g.Go(func() error {
		return relay.Run(gCtx)
	})
	g.Go(func() error {
		logger.Info().
			Str("addr", server.Addr).
			Str("db_driver", cfg.Database.Driver).
			Str("pubsub_driver", cfg.PubSub.Driver).
			Str("instance_id", cfg.Presence.InstanceID).
			Msg("chat-service starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info().Msg("shutting down chat-service")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("chat-service stopped with error")
		return
	}
	logger.Info().Msg("chat-service stopped")
}
