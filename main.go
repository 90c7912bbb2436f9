package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"dm-service/internal/clients"
	"dm-service/internal/config"
	"dm-service/internal/db"
	"dm-service/internal/handlers"
	"dm-service/internal/middleware"
	"dm-service/internal/observability"
	"dm-service/internal/presence"
	"dm-service/internal/rabbitmq"
	"dm-service/internal/repositories"
	"dm-service/internal/telemetry"
	"dm-service/internal/ws"
)

const serviceName = "dm-service"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("audit publisher mode=%s", rabbitmq.PublisherMode(publisher))

	audit := telemetry.NewAuditEmitter(publisher, "audit.dm", serviceName, cfg.Environment)

	if cfg.AMQPURL != "" {
		wsPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Printf("ws event publisher disabled: %v", err)
		} else {
			observability.SetPublisher(wsPublisher)
			defer wsPublisher.Close()
		}
	}

	if cfg.OTLPAddr != "" {
		shutdown, err := telemetry.SetupTracing(context.Background(), serviceName, cfg.OTLPAddr)
		if err != nil {
			log.Printf("tracing disabled: %v", err)
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					log.Printf("tracing shutdown: %v", err)
				}
			}()
		}
	}

	threadRepo := repositories.NewThreadRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	friendRepo := repositories.NewFriendRepo(database)
	interestRepo := repositories.NewInterestRepo(database)

	contentClient := clients.NewContentClient(cfg.ContentServiceURL)
	entitlementClient := clients.NewEntitlementClient(cfg.EntitlementServiceURL)
	storageClient := clients.NewStorageClient(cfg.StorageServiceURL)

	tracker := presence.NewRedisTracker(redisClient, cfg.PresenceWindow)

	hub := ws.NewHub()

	threadHandler := handlers.NewThreadHandler(threadRepo, friendRepo, interestRepo, contentClient, hub, audit, cfg.MinSharedInterests)
	messageHandler := handlers.NewMessageHandler(threadRepo, messageRepo, entitlementClient, storageClient, hub, audit, cfg.MaxAudioSeconds, cfg.BaseVideoBytes)
	friendHandler := handlers.NewFriendHandler(friendRepo, audit)
	presenceHandler := handlers.NewPresenceHandler(tracker, threadRepo, hub)

	threadWS := ws.NewThreadWebSocketHandler(hub, threadRepo, cfg.JWTSecret)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, audit, cfg.AuditDebug)

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)

	router.GET("/threads", authMiddleware, threadHandler.ListThreads)
	router.POST("/threads/start", authMiddleware, threadHandler.StartThread)
	router.GET("/threads/:thread_id/messages", authMiddleware, messageHandler.GetThreadMessages)
	router.POST("/threads/:thread_id/messages", authMiddleware, messageHandler.PostMessage)
	router.POST("/threads/:thread_id/read", authMiddleware, messageHandler.MarkThreadRead)
	router.DELETE("/threads/:thread_id/messages/:message_id", authMiddleware, messageHandler.DeleteMessage)
	router.POST("/threads/:thread_id/typing", authMiddleware, presenceHandler.BroadcastTyping)

	router.POST("/friends/requests", authMiddleware, friendHandler.SendRequest)
	router.GET("/friends/requests", authMiddleware, friendHandler.ListPendingRequests)
	router.POST("/friends/requests/:request_id/accept", authMiddleware, friendHandler.AcceptRequest)
	router.POST("/friends/requests/:request_id/decline", authMiddleware, friendHandler.DeclineRequest)
	router.GET("/friends/status/:user_id", authMiddleware, friendHandler.GetStatus)

	router.POST("/presence/heartbeat", authMiddleware, presenceHandler.Heartbeat)
	router.GET("/presence", authMiddleware, presenceHandler.GetPresence)

	router.GET("/ws/threads/:thread_id", threadWS.Handle)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
