package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/fanline/config"
	"github.com/d60-Lab/fanline/internal/api/handler"
	"github.com/d60-Lab/fanline/internal/api/router"
	"github.com/d60-Lab/fanline/internal/bus"
	"github.com/d60-Lab/fanline/internal/cache"
	"github.com/d60-Lab/fanline/internal/repository"
	"github.com/d60-Lab/fanline/internal/service"
	"github.com/d60-Lab/fanline/internal/ws"
	"github.com/d60-Lab/fanline/pkg/database"
	"github.com/d60-Lab/fanline/pkg/logger"
	"github.com/d60-Lab/fanline/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN}); err != nil {
			logger.Warn("sentry init failed", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg, "fanline")
	if err != nil {
		logger.Fatal("tracing init failed", zap.Error(err))
	}
	defer shutdownTracing(context.Background())

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("redis unreachable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	defer rdb.Close()

	// Repositories and caches.
	followRepo := repository.NewFollowRepository(db)
	fanRepo := repository.NewFanRepository(db)
	postRepo := repository.NewPostRepository(db)
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	unreadRepo := repository.NewUnreadRepository(db)
	readRepo := repository.NewReadStatusRepository(db)

	timelines := cache.NewTimelineCache(rdb, cfg.Feed.TimelineSize, cfg.Feed.TimelineTTL, cfg.Feed.EmptyFeedTTL)
	engagement := cache.NewEngagementCache(rdb, cfg.Feed.EngagementTTL)
	relationships := cache.NewRelationshipCache(rdb, cfg.Feed.RelationshipTTL)

	// Services.
	best := service.NewBestEffort()
	publisher := bus.NewPublisher(rdb)
	feedStream := "POST_TOPIC"
	if len(cfg.Bus.Streams) > 0 {
		feedStream = cfg.Bus.Streams[0]
	}
	feedSvc := service.NewFeedService(
		timelines, engagement, relationships, postRepo, followRepo, best,
		cfg.Feed.TimelineSize, cfg.Feed.LikeWeight, cfg.Feed.CommentWeight,
	).WithPublisher(publisher, feedStream)
	relSvc := service.NewRelationshipService(followRepo, fanRepo, relationships, best)
	chatSvc := service.NewChatService(convRepo, msgRepo, unreadRepo, readRepo, best)

	// Event bus consumer: posts and engagement events from the other services.
	consumer := bus.NewConsumer(rdb, cfg.Bus.Streams, cfg.Bus.Group, cfg.Bus.Consumers, cfg.Bus.Block)
	service.RegisterFeedHandlers(consumer, feedSvc)
	stopConsumer, err := consumer.Start(ctx)
	if err != nil {
		logger.Fatal("bus consumer start failed", zap.Error(err))
	}
	defer stopConsumer()

	// Realtime hub bridges local sockets with the cross-instance pub/sub fabric.
	hub := ws.NewHub(rdb)
	go hub.Run(ctx)

	h := handler.New(feedSvc, chatSvc, relSvc, hub)
	serveWS := ws.ServeWS(hub, chatSvc, relSvc, cfg.Auth.GatewaySecret)
	engine := router.New(h, serveWS, cfg.Server.Mode)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: engine,
	}
	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		os.Exit(1)
	}
}
