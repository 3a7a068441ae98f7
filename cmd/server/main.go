package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"social_rtc/internal/broker"
	"social_rtc/internal/config"
	"social_rtc/internal/handler"
	"social_rtc/internal/middleware"
	"social_rtc/internal/repository"
	"social_rtc/internal/service"
	"social_rtc/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Log.Level)

	// Подключение к PostgreSQL
	dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", "error", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		appLogger.Fatal("Failed to ping database", "error", err)
	}
	appLogger.Info("Database connection established")

	// Подключение к Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		appLogger.Fatal("Failed to connect to Redis", "error", err)
	}
	appLogger.Info("Redis connection established")

	repos := repository.NewRepositories(dbPool, rdb, appLogger)
	deliveryBroker := broker.NewRedisBroker(rdb, appLogger)
	services := service.NewServices(repos, deliveryBroker, cfg, appLogger)

	authMiddleware := middleware.NewAuthMiddleware(services.Auth, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, appLogger)

	handlers := handler.NewHandlers(services, repos, deliveryBroker, cfg, appLogger)

	router := setupRouter(handlers, authMiddleware, rateLimitMiddleware, cfg, appLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		appLogger.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Fatal("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exited")
}

func setupRouter(
	handlers *handler.Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler())

	router.GET("/health", handlers.Health.Check)

	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware.RequireAuth())
	{
		rooms := v1.Group("/rooms")
		rooms.Use(rateLimitMiddleware.Limit())
		{
			rooms.POST("", handlers.Room.Create)
			rooms.GET("/history", handlers.Room.History)
			rooms.GET("/:id", handlers.Room.GetByID)
			rooms.GET("/:id/can-join", handlers.Room.CanJoin)
			rooms.POST("/:id/join", handlers.Room.Join)
			rooms.POST("/:id/leave", handlers.Room.Leave)
			rooms.POST("/:id/end", handlers.Room.End)

			// Signaling relay
			rooms.POST("/:id/offer", handlers.Call.SendOffer)
			rooms.POST("/:id/answer", handlers.Call.SendAnswer)
			rooms.POST("/:id/ice", handlers.Call.SendICECandidate)
			rooms.POST("/:id/answer/broadcast", handlers.Call.BroadcastAnswer)
			rooms.POST("/:id/ice/broadcast", handlers.Call.BroadcastICECandidate)
			rooms.POST("/:id/invite", handlers.Call.Invite)
			rooms.POST("/:id/respond", handlers.Call.Respond)
			rooms.POST("/:id/connection-state", handlers.Call.UpdateConnectionState)
		}

		conversations := v1.Group("/conversations")
		conversations.Use(rateLimitMiddleware.Limit())
		{
			conversations.GET("/:id/messages", handlers.Message.List)
			conversations.POST("/:id/messages", handlers.Message.Send)
			conversations.PUT("/:id/messages/:messageId", handlers.Message.Edit)
			conversations.DELETE("/:id/messages/:messageId", handlers.Message.Delete)
			conversations.POST("/:id/messages/:messageId/reactions", handlers.Message.React)
			conversations.DELETE("/:id/messages/:messageId/reactions", handlers.Message.Unreact)
			conversations.POST("/:id/messages/:messageId/read", handlers.Message.MarkRead)
			conversations.POST("/:id/read-all", handlers.Message.MarkAllRead)
			conversations.GET("/:id/unread", handlers.Message.UnreadCount)
		}
	}

	// WebSocket gateway: токен берётся из query, заголовки недоступны
	router.GET("/ws", authMiddleware.RequireAuth(), handlers.WebSocket.Handle)

	return router
}
