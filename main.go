package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/lonelydomino/pilkchat-sub000/internal/config"
	"github.com/lonelydomino/pilkchat-sub000/internal/db"
	"github.com/lonelydomino/pilkchat-sub000/internal/handlers"
	"github.com/lonelydomino/pilkchat-sub000/internal/middleware"
	"github.com/lonelydomino/pilkchat-sub000/internal/observability"
	"github.com/lonelydomino/pilkchat-sub000/internal/rabbitmq"
	"github.com/lonelydomino/pilkchat-sub000/internal/repositories"
	"github.com/lonelydomino/pilkchat-sub000/internal/stream"
	"github.com/lonelydomino/pilkchat-sub000/internal/telemetry"
)

const serviceName = "realtime-service"

func main() {
	cfg := config.Load()

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	shutdownTracer := observability.InitTracer(context.Background(), serviceName, cfg.Environment, cfg.OTLPEndpoint)
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("tracer shutdown: %v", err)
		}
	}()

	if eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange); err != nil {
		log.Printf("stream event publishing disabled: %v", err)
	} else {
		observability.SetPublisher(eventPublisher)
		defer eventPublisher.Close()
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer auditPublisher.Close()
	audit := telemetry.NewAuditEmitter(auditPublisher, "audit.realtime", serviceName, cfg.Environment)

	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	notificationRepo := repositories.NewNotificationRepo(database)
	userRepo := repositories.NewUserRepo(database)

	registry := stream.NewRegistry()
	dispatcher := stream.NewDispatcher(registry, conversationRepo, userRepo)
	streamHandler := stream.NewHandler(registry, cfg.HeartbeatInterval)

	messageHandler := handlers.NewMessageHandler(conversationRepo, messageRepo, userRepo, dispatcher, audit)
	notificationHandler := handlers.NewNotificationHandler(notificationRepo, dispatcher, audit)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)

	router.GET("/events", authMiddleware, streamHandler.Stream)

	router.GET("/conversations", authMiddleware, messageHandler.ListConversations)
	router.POST("/conversations", authMiddleware, messageHandler.StartConversation)
	router.GET("/conversations/:conversation_id/messages", authMiddleware, messageHandler.GetMessages)
	router.POST("/conversations/:conversation_id/messages", authMiddleware, messageHandler.PostMessage)
	router.POST("/conversations/:conversation_id/messages/read", authMiddleware, messageHandler.MarkConversationRead)
	router.GET("/messages/unread-count", authMiddleware, messageHandler.UnreadCounts)

	router.GET("/notifications", authMiddleware, notificationHandler.ListNotifications)
	router.POST("/notifications", authMiddleware, notificationHandler.CreateNotification)
	router.POST("/notifications/:notification_id/read", authMiddleware, notificationHandler.MarkNotificationRead)
	router.POST("/notifications/mark-all-read", authMiddleware, notificationHandler.MarkAllNotificationsRead)
	router.GET("/notifications/unread-count", authMiddleware, notificationHandler.UnreadNotificationCount)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "streams": registry.Count()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
